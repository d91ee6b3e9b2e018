package wsclient

import (
	"context"

	"minepilot.ai/internal/protocol"
	"minepilot.ai/internal/world"
)

func (c *Conn) Chat(ctx context.Context, message string) error {
	return c.command(ctx, protocol.OpChat, protocol.ChatArgs{Message: message}, nil)
}

func (c *Conn) SetMovements(ctx context.Context, opts world.MovementOptions) error {
	return c.command(ctx, protocol.OpSetMovements, opts, nil)
}

func (c *Conn) SetGoal(ctx context.Context, goal world.Goal, continuous bool) error {
	return c.command(ctx, protocol.OpSetGoal, protocol.GoalArgs{Goal: goal, Continuous: continuous}, nil)
}

func (c *Conn) StopNavigation(ctx context.Context) error {
	return c.command(ctx, protocol.OpStopNavigation, nil, nil)
}

func (c *Conn) BlockAt(ctx context.Context, pos world.Vec3) (world.Block, bool, error) {
	var out protocol.BlockAtData
	if err := c.command(ctx, protocol.OpBlockAt, protocol.PositionArgs{Position: pos}, &out); err != nil {
		return world.Block{}, false, err
	}
	return out.Block, out.Loaded, nil
}

func (c *Conn) FindBlocks(ctx context.Context, q world.BlockQuery) ([]world.Vec3, error) {
	var out []world.Vec3
	err := c.command(ctx, protocol.OpFindBlocks, q, &out)
	return out, err
}

func (c *Conn) Entities(ctx context.Context) ([]world.Entity, error) {
	var out []world.Entity
	err := c.command(ctx, protocol.OpEntities, nil, &out)
	return out, err
}

func (c *Conn) Inventory(ctx context.Context) ([]world.ItemStack, error) {
	var out []world.ItemStack
	err := c.command(ctx, protocol.OpInventory, nil, &out)
	return out, err
}

func (c *Conn) Dig(ctx context.Context, pos world.Vec3) error {
	return c.command(ctx, protocol.OpDig, protocol.PositionArgs{Position: pos}, nil)
}

func (c *Conn) Place(ctx context.Context, ref, face world.Vec3) error {
	return c.command(ctx, protocol.OpPlace, protocol.PlaceArgs{Reference: ref, Face: face}, nil)
}

func (c *Conn) Equip(ctx context.Context, item, destination string) error {
	return c.command(ctx, protocol.OpEquip, protocol.EquipArgs{Item: item, Destination: destination}, nil)
}

func (c *Conn) Toss(ctx context.Context, item string, count int) error {
	return c.command(ctx, protocol.OpToss, protocol.TossArgs{Item: item, Count: count}, nil)
}

func (c *Conn) ActivateItem(ctx context.Context) error {
	return c.command(ctx, protocol.OpActivateItem, nil, nil)
}

func (c *Conn) DeactivateItem(ctx context.Context) error {
	return c.command(ctx, protocol.OpDeactivateItem, nil, nil)
}

func (c *Conn) Attack(ctx context.Context, entityID int) error {
	return c.command(ctx, protocol.OpAttack, protocol.AttackArgs{EntityID: entityID}, nil)
}

func (c *Conn) Recipes(ctx context.Context, item string, count int, station *world.Vec3) ([]world.Recipe, error) {
	var out []world.Recipe
	err := c.command(ctx, protocol.OpRecipes, protocol.RecipesArgs{Item: item, Count: count, Station: station}, &out)
	return out, err
}

func (c *Conn) Craft(ctx context.Context, recipe world.Recipe, count int, station *world.Vec3) error {
	return c.command(ctx, protocol.OpCraft, protocol.CraftArgs{Recipe: recipe, Count: count, Station: station}, nil)
}

var (
	_ world.Dialer = (*Dialer)(nil)
	_ world.Conn   = (*Conn)(nil)
)
