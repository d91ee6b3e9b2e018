// Package world describes the game-session capability the rest of the
// system drives: avatar telemetry, block and entity queries, and motion
// primitives. Implementations live in sub-packages (wsclient, worldtest).
package world

import (
	"encoding/json"
	"fmt"
	"math"
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Distance(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

// Floored snaps the vector onto the block grid.
func (v Vec3) Floored() Vec3 {
	return Vec3{X: math.Floor(v.X), Y: math.Floor(v.Y), Z: math.Floor(v.Z)}
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// UnmarshalJSON accepts both {"x":1,"y":2,"z":3} and [1,2,3].
func (v *Vec3) UnmarshalJSON(b []byte) error {
	var arr []float64
	if err := json.Unmarshal(b, &arr); err == nil {
		if len(arr) != 3 {
			return fmt.Errorf("position array needs 3 elements, got %d", len(arr))
		}
		*v = Vec3{X: arr[0], Y: arr[1], Z: arr[2]}
		return nil
	}
	type plain Vec3
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*v = Vec3(p)
	return nil
}

// Faces are the six unit offsets around a block, support-first (below).
var Faces = []Vec3{
	{Y: -1}, {Y: 1}, {X: -1}, {X: 1}, {Z: -1}, {Z: 1},
}

type Block struct {
	Name     string `json:"name"`
	Position Vec3   `json:"position"`
	Diggable bool   `json:"diggable"`
}

func (b Block) IsAir() bool {
	switch b.Name {
	case "", "air", "cave_air", "void_air":
		return true
	}
	return false
}

const (
	EntityPlayer  = "player"
	EntityHostile = "hostile"
	EntityMob     = "mob"
	EntityObject  = "object"
)

type Entity struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Username string  `json:"username,omitempty"`
	Position Vec3    `json:"position"`
	Health   float64 `json:"health,omitempty"`
}

// DisplayName prefers the username for players.
func (e Entity) DisplayName() string {
	if e.Username != "" {
		return e.Username
	}
	return e.Name
}

type ItemStack struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Slot  int    `json:"slot"`
}

type Recipe struct {
	ID            string `json:"id"`
	Result        string `json:"result"`
	ResultCount   int    `json:"result_count"`
	RequiresTable bool   `json:"requires_table"`
}

// Telemetry is the avatar state readable at any time after spawn.
type Telemetry struct {
	Username        string  `json:"username"`
	Health          float64 `json:"health"`
	Food            float64 `json:"food"`
	Position        *Vec3   `json:"position"`
	Dimension       string  `json:"dimension"`
	ExperienceLevel int     `json:"experience_level"`
	GameMode        string  `json:"game_mode"`
	HeldItem        string  `json:"held_item,omitempty"`
	TimeOfDay       int     `json:"time_of_day"`
	Weather         string  `json:"weather"`
}

type GoalKind string

const (
	GoalKindNear   GoalKind = "near"
	GoalKindFollow GoalKind = "follow"
)

// Goal is a navigation target handed to the pathfinder. Kind selects
// which of Target and EntityID applies; both are always sent.
type Goal struct {
	Kind     GoalKind `json:"kind"`
	Target   Vec3     `json:"target"`
	EntityID int      `json:"entity_id"`
	Range    float64  `json:"range"`
}

func GoalNear(target Vec3, rng float64) Goal {
	return Goal{Kind: GoalKindNear, Target: target, Range: rng}
}

func GoalFollow(entityID int, rng float64) Goal {
	return Goal{Kind: GoalKindFollow, EntityID: entityID, Range: rng}
}

// MovementOptions are the navigation defaults applied right after spawn.
type MovementOptions struct {
	AllowSprinting bool `json:"allow_sprinting" yaml:"allow_sprinting"`
	CanDig         bool `json:"can_dig" yaml:"can_dig"`
	AllowParkour   bool `json:"allow_parkour" yaml:"allow_parkour"`
}

type BlockQuery struct {
	Name        string  `json:"name"`
	MaxDistance float64 `json:"max_distance"`
	Count       int     `json:"count"`
}
