package protocol

import (
	"encoding/json"

	"minepilot.ai/internal/world"
)

// HELLO (client -> gateway)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Username        string `json:"username"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	GameVersion     string `json:"game_version,omitempty"`
	ResumeToken     string `json:"resume_token,omitempty"`
}

// WELCOME (gateway -> client): the gateway accepted the session and is
// logging in. The avatar is not in the world until an EVENT of kind spawned.
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	ResumeToken     string `json:"resume_token,omitempty"`
	GameVersion     string `json:"game_version,omitempty"`
}

// STATE (gateway -> client): full telemetry, sent whenever it changes.
type StateMsg struct {
	Type      string          `json:"type"`
	Telemetry world.Telemetry `json:"telemetry"`
}

// EVENT (gateway -> client)
type EventMsg struct {
	Type     string          `json:"type"`
	Kind     world.EventKind `json:"kind"`
	Reason   string          `json:"reason,omitempty"`
	Username string          `json:"username,omitempty"`
	Message  string          `json:"message,omitempty"`
}

func (m EventMsg) Event() world.Event {
	return world.Event{Kind: m.Kind, Reason: m.Reason, Username: m.Username, Message: m.Message}
}

// CMD (client -> gateway). Every CMD gets exactly one RESULT with the same req_id.
type CmdMsg struct {
	Type  string          `json:"type"`
	ReqID string          `json:"req_id"`
	Op    string          `json:"op"`
	Args  json.RawMessage `json:"args,omitempty"`
}

// RESULT (gateway -> client)
type ResultMsg struct {
	Type    string          `json:"type"`
	ReqID   string          `json:"req_id"`
	OK      bool            `json:"ok"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Command ops.
const (
	OpChat           = "chat"
	OpSetMovements   = "set_movements"
	OpSetGoal        = "set_goal"
	OpStopNavigation = "stop_navigation"
	OpBlockAt        = "block_at"
	OpFindBlocks     = "find_blocks"
	OpEntities       = "entities"
	OpInventory      = "inventory"
	OpDig            = "dig"
	OpPlace          = "place"
	OpEquip          = "equip"
	OpToss           = "toss"
	OpActivateItem   = "activate_item"
	OpDeactivateItem = "deactivate_item"
	OpAttack         = "attack"
	OpRecipes        = "recipes"
	OpCraft          = "craft"
)

type ChatArgs struct {
	Message string `json:"message"`
}

type GoalArgs struct {
	Goal       world.Goal `json:"goal"`
	Continuous bool       `json:"continuous"`
}

type PositionArgs struct {
	Position world.Vec3 `json:"position"`
}

type PlaceArgs struct {
	Reference world.Vec3 `json:"reference"`
	Face      world.Vec3 `json:"face"`
}

type EquipArgs struct {
	Item        string `json:"item"`
	Destination string `json:"destination"`
}

type TossArgs struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type AttackArgs struct {
	EntityID int `json:"entity_id"`
}

type RecipesArgs struct {
	Item    string      `json:"item"`
	Count   int         `json:"count"`
	Station *world.Vec3 `json:"station,omitempty"`
}

type CraftArgs struct {
	Recipe  world.Recipe `json:"recipe"`
	Count   int          `json:"count"`
	Station *world.Vec3  `json:"station,omitempty"`
}

// BlockAtData is the RESULT payload of block_at.
type BlockAtData struct {
	Loaded bool        `json:"loaded"`
	Block  world.Block `json:"block"`
}
