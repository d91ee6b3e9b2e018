package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/world"
)

type tool struct {
	name        string
	description string
	schema      map[string]any
	compiled    *jsonschema.Schema
	run         func(ctx context.Context, s *Server, args json.RawMessage) (any, error)
}

// reply carries a status line together with structured data.
type reply struct {
	text string
	data any
}

func define[A any](name, description string, schema map[string]any, fn func(ctx context.Context, s *Server, a A) (any, error)) *tool {
	return &tool{
		name:        name,
		description: description,
		schema:      schema,
		run: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			var a A
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fault.BadRequest("%s: %v", name, err)
			}
			return fn(ctx, s, a)
		},
	}
}

func (t *tool) compile(c *jsonschema.Compiler) error {
	b, err := json.Marshal(t.schema)
	if err != nil {
		return err
	}
	url := "mem://tools/" + t.name + ".json"
	if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
		return err
	}
	t.compiled, err = c.Compile(url)
	return err
}

func (t *tool) validate(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fault.BadRequest("%s: arguments are not valid json", t.name)
	}
	if err := t.compiled.Validate(v); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return fault.BadRequest("%s: %s", t.name, leafMessage(ve))
		}
		return fault.BadRequest("%s: %v", t.name, err)
	}
	return nil
}

// leafMessage picks the most specific cause of a validation failure.
func leafMessage(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if ve.InstanceLocation == "" {
		return ve.Message
	}
	return strings.TrimPrefix(ve.InstanceLocation, "/") + ": " + ve.Message
}

func object(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func str(desc string) map[string]any { return map[string]any{"type": "string", "minLength": 1, "description": desc} }
func num(desc string) map[string]any { return map[string]any{"type": "number", "description": desc} }
func positive(desc string) map[string]any {
	return map[string]any{"type": "number", "exclusiveMinimum": 0, "description": desc}
}
func count(desc string) map[string]any {
	return map[string]any{"type": "integer", "minimum": 1, "description": desc}
}

func xyz(extra map[string]any) map[string]any {
	p := map[string]any{
		"x": num("block x"),
		"y": num("block y"),
		"z": num("block z"),
	}
	for k, v := range extra {
		p[k] = v
	}
	return p
}

type noArgs struct{}

type (
	connectArgs struct {
		Host     string `json:"host"`
		Port     int    `json:"port"`
		Username string `json:"username"`
		Version  string `json:"version"`
	}
	chatArgs struct {
		Message string `json:"message"`
	}
	posArgs struct {
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
		Z     float64 `json:"z"`
		Range float64 `json:"range"`
		Item  string  `json:"item"`
	}
	followArgs struct {
		Player   string  `json:"player"`
		Distance float64 `json:"distance"`
	}
	blockArgs struct {
		BlockType string  `json:"block_type"`
		Count     int     `json:"count"`
		Radius    float64 `json:"radius"`
	}
	entityArgs struct {
		EntityID int     `json:"entity_id"`
		Radius   float64 `json:"radius"`
	}
	itemArgs struct {
		Item        string `json:"item"`
		Count       int    `json:"count"`
		Destination string `json:"destination"`
	}
	behaviorArgs struct {
		Name   string         `json:"name"`
		Config map[string]any `json:"config"`
	}
)

func (a posArgs) pos() world.Vec3 { return world.V(a.X, a.Y, a.Z) }

func builtinTools() []*tool {
	return []*tool{
		define("connect", "Join the configured game server. Arguments override the configured host, port, username and version.",
			object(map[string]any{
				"host":     str("server host"),
				"port":     map[string]any{"type": "integer", "minimum": 1, "maximum": 65535},
				"username": str("account name"),
				"version":  str("game version, empty for auto-detect"),
			}),
			func(ctx context.Context, s *Server, a connectArgs) (any, error) {
				opts := s.connectOptions(ctx)
				if a.Host != "" {
					opts.Host = a.Host
				}
				if a.Port != 0 {
					opts.Port = a.Port
				}
				if a.Username != "" {
					opts.Username = a.Username
				}
				if a.Version != "" {
					opts.Version = a.Version
				}
				st, err := s.session.Connect(ctx, opts)
				if err != nil {
					return nil, err
				}
				return reply{text: fmt.Sprintf("Connected as %s", st.Username), data: st}, nil
			}),
		define("disconnect", "Leave the game server. Running behaviors are stopped first.",
			object(map[string]any{}),
			func(ctx context.Context, s *Server, _ noArgs) (any, error) {
				return s.session.Disconnect(ctx), nil
			}),
		define("get_state", "Snapshot of the avatar: status, health, food, position, held item.",
			object(map[string]any{}),
			func(ctx context.Context, s *Server, _ noArgs) (any, error) {
				return s.session.Snapshot(), nil
			}),
		define("world_info", "Time of day, weather, dimension and other players online.",
			object(map[string]any{}),
			func(ctx context.Context, s *Server, _ noArgs) (any, error) {
				return s.actions.WorldInfo(ctx)
			}),
		define("chat", "Send a chat message.",
			object(map[string]any{"message": str("text to say")}, "message"),
			func(ctx context.Context, s *Server, a chatArgs) (any, error) {
				return s.actions.Chat(ctx, a.Message)
			}),
		define("go_to", "Walk to a position and wait for arrival.",
			object(xyz(map[string]any{"range": positive("stop within this many blocks (default 1)")}), "x", "y", "z"),
			func(ctx context.Context, s *Server, a posArgs) (any, error) {
				return s.actions.GoTo(ctx, a.pos(), a.Range)
			}),
		define("follow_player", "Keep following a player until stopped.",
			object(map[string]any{
				"player":   str("username to follow"),
				"distance": positive("follow distance in blocks (default 3)"),
			}, "player"),
			func(ctx context.Context, s *Server, a followArgs) (any, error) {
				return s.actions.Follow(ctx, a.Player, a.Distance)
			}),
		define("stop_moving", "Cancel the current navigation goal.",
			object(map[string]any{}),
			func(ctx context.Context, s *Server, _ noArgs) (any, error) {
				return s.actions.StopMoving(ctx)
			}),
		define("dig_block", "Walk into reach of a block and dig it.",
			object(xyz(nil), "x", "y", "z"),
			func(ctx context.Context, s *Server, a posArgs) (any, error) {
				return s.actions.DigAt(ctx, a.pos())
			}),
		define("place_block", "Place an item from the inventory at a position.",
			object(xyz(map[string]any{"item": str("block item to place")}), "x", "y", "z", "item"),
			func(ctx context.Context, s *Server, a posArgs) (any, error) {
				return s.actions.PlaceAt(ctx, a.pos(), a.Item)
			}),
		define("collect_blocks", "Find and dig up to count blocks of a type nearby.",
			object(map[string]any{
				"block_type": str("block name, e.g. oak_log"),
				"count":      count("how many (default 1)"),
			}, "block_type"),
			func(ctx context.Context, s *Server, a blockArgs) (any, error) {
				return s.actions.CollectBlocks(ctx, a.BlockType, a.Count)
			}),
		define("attack_entity", "Chase and attack an entity until it is dead or the attempt times out.",
			object(map[string]any{"entity_id": map[string]any{"type": "integer", "description": "entity id from nearby_entities"}}, "entity_id"),
			func(ctx context.Context, s *Server, a entityArgs) (any, error) {
				res, err := s.actions.AttackUntilDead(ctx, a.EntityID)
				if err != nil {
					return nil, err
				}
				return reply{text: res.String(), data: res}, nil
			}),
		define("craft_item", "Craft an item, using a nearby crafting table if the recipe needs one.",
			object(map[string]any{
				"item":  str("item to craft"),
				"count": count("how many crafts (default 1)"),
			}, "item"),
			func(ctx context.Context, s *Server, a itemArgs) (any, error) {
				return s.actions.CraftItem(ctx, a.Item, a.Count)
			}),
		define("equip_item", "Move an inventory item into a slot.",
			object(map[string]any{
				"item":        str("item name"),
				"destination": map[string]any{"type": "string", "enum": []string{"hand", "off-hand", "head", "torso", "legs", "feet"}},
			}, "item"),
			func(ctx context.Context, s *Server, a itemArgs) (any, error) {
				return s.actions.EquipItem(ctx, a.Item, a.Destination)
			}),
		define("toss_item", "Drop items from the inventory.",
			object(map[string]any{
				"item":  str("item name"),
				"count": count("how many (default all)"),
			}, "item"),
			func(ctx context.Context, s *Server, a itemArgs) (any, error) {
				return s.actions.TossItem(ctx, a.Item, a.Count)
			}),
		define("list_inventory", "List inventory slots.",
			object(map[string]any{}),
			func(ctx context.Context, s *Server, _ noArgs) (any, error) {
				return s.actions.ListInventory(ctx)
			}),
		define("nearby_entities", "Entities around the avatar, nearest first.",
			object(map[string]any{"radius": positive("search radius (default 32)")}),
			func(ctx context.Context, s *Server, a entityArgs) (any, error) {
				return s.actions.NearbyEntities(ctx, a.Radius)
			}),
		define("find_blocks", "Positions of blocks of a type, nearest first.",
			object(map[string]any{
				"block_type": str("block name"),
				"radius":     positive("search radius (default 64)"),
				"count":      count("max results (default 10)"),
			}, "block_type"),
			func(ctx context.Context, s *Server, a blockArgs) (any, error) {
				return s.actions.FindBlocks(ctx, a.BlockType, a.Radius, a.Count)
			}),
		define("start_behavior", "Start a background behavior, or update the config of a running one.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":   str("behavior name, see list_behaviors"),
					"config": map[string]any{"type": "object", "description": "option overrides"},
				},
				"required":             []string{"name"},
				"additionalProperties": false,
			},
			func(ctx context.Context, s *Server, a behaviorArgs) (any, error) {
				res, err := s.scheduler.Start(a.Name, a.Config)
				if err != nil {
					return nil, err
				}
				text := res.Message
				if len(res.Ignored) > 0 {
					text += fmt.Sprintf(" (ignored: %s)", strings.Join(res.Ignored, ", "))
				}
				return reply{text: text, data: res}, nil
			}),
		define("stop_behavior", "Stop a background behavior. Its config is kept.",
			object(map[string]any{"name": str("behavior name")}, "name"),
			func(ctx context.Context, s *Server, a behaviorArgs) (any, error) {
				return s.scheduler.Stop(a.Name)
			}),
		define("stop_all_behaviors", "Stop every running behavior.",
			object(map[string]any{}),
			func(ctx context.Context, s *Server, _ noArgs) (any, error) {
				stopped := s.scheduler.StopAll()
				if len(stopped) == 0 {
					return "No behaviors were running", nil
				}
				return reply{text: "Stopped " + strings.Join(stopped, ", "), data: stopped}, nil
			}),
		define("list_behaviors", "Every registered behavior with its state and config.",
			object(map[string]any{}),
			func(ctx context.Context, s *Server, _ noArgs) (any, error) {
				return s.scheduler.List(), nil
			}),
	}
}
