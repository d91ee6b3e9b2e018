package session

import (
	"context"
	"sort"

	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/world"
)

func (h *Handle) Chat(ctx context.Context, message string) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	return c.Chat(ctx, message)
}

func (h *Handle) SetMovements(ctx context.Context, opts world.MovementOptions) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	return c.SetMovements(ctx, opts)
}

// SetGoal replaces the pathfinder goal. The last writer wins; behaviors and
// direct commands share the one goal slot.
func (h *Handle) SetGoal(ctx context.Context, goal world.Goal, continuous bool) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	return c.SetGoal(ctx, goal, continuous)
}

func (h *Handle) StopNavigation(ctx context.Context) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	return c.StopNavigation(ctx)
}

// BlockAt reports TargetUnavailable when the position is not loaded.
func (h *Handle) BlockAt(ctx context.Context, pos world.Vec3) (world.Block, error) {
	c, err := h.current()
	if err != nil {
		return world.Block{}, err
	}
	b, ok, err := c.BlockAt(ctx, pos)
	if err != nil {
		return world.Block{}, err
	}
	if !ok {
		return world.Block{}, fault.TargetUnavailable("block at %s is not loaded", pos)
	}
	return b, nil
}

func (h *Handle) FindBlocks(ctx context.Context, q world.BlockQuery) ([]world.Vec3, error) {
	c, err := h.current()
	if err != nil {
		return nil, err
	}
	return c.FindBlocks(ctx, q)
}

// FindBlock returns the nearest block of the given type within maxDistance.
func (h *Handle) FindBlock(ctx context.Context, name string, maxDistance float64) (world.Vec3, bool, error) {
	found, err := h.FindBlocks(ctx, world.BlockQuery{Name: name, MaxDistance: maxDistance, Count: 1})
	if err != nil || len(found) == 0 {
		return world.Vec3{}, false, err
	}
	return found[0], true, nil
}

func (h *Handle) Entities(ctx context.Context) ([]world.Entity, error) {
	c, err := h.current()
	if err != nil {
		return nil, err
	}
	return c.Entities(ctx)
}

// Entity looks up a single entity by id.
func (h *Handle) Entity(ctx context.Context, id int) (world.Entity, error) {
	all, err := h.Entities(ctx)
	if err != nil {
		return world.Entity{}, err
	}
	for _, e := range all {
		if e.ID == id {
			return e, nil
		}
	}
	return world.Entity{}, fault.TargetUnavailable("entity %d is gone", id)
}

// EntitiesNear returns entities within radius matching filter, nearest first.
// A nil filter matches everything.
func (h *Handle) EntitiesNear(ctx context.Context, radius float64, filter func(world.Entity) bool) ([]world.Entity, error) {
	pos, err := h.Position()
	if err != nil {
		return nil, err
	}
	all, err := h.Entities(ctx)
	if err != nil {
		return nil, err
	}
	var out []world.Entity
	for _, e := range all {
		if radius > 0 && pos.Distance(e.Position) > radius {
			continue
		}
		if filter != nil && !filter(e) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return pos.Distance(out[i].Position) < pos.Distance(out[j].Position)
	})
	return out, nil
}

// NearestEntity is EntitiesNear limited to one result.
func (h *Handle) NearestEntity(ctx context.Context, radius float64, filter func(world.Entity) bool) (world.Entity, bool, error) {
	near, err := h.EntitiesNear(ctx, radius, filter)
	if err != nil || len(near) == 0 {
		return world.Entity{}, false, err
	}
	return near[0], true, nil
}

// Player finds a player entity by username.
func (h *Handle) Player(ctx context.Context, username string) (world.Entity, error) {
	all, err := h.Entities(ctx)
	if err != nil {
		return world.Entity{}, err
	}
	for _, e := range all {
		if e.Type == world.EntityPlayer && e.Username == username {
			return e, nil
		}
	}
	return world.Entity{}, fault.TargetUnavailable("player %q not found or not visible", username)
}

func (h *Handle) Inventory(ctx context.Context) ([]world.ItemStack, error) {
	c, err := h.current()
	if err != nil {
		return nil, err
	}
	return c.Inventory(ctx)
}

func (h *Handle) Dig(ctx context.Context, pos world.Vec3) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	return c.Dig(ctx, pos)
}

func (h *Handle) Place(ctx context.Context, ref, face world.Vec3) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	return c.Place(ctx, ref, face)
}

// Equip puts item into the destination slot; hand when empty.
func (h *Handle) Equip(ctx context.Context, item, destination string) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	if destination == "" {
		destination = "hand"
	}
	return c.Equip(ctx, item, destination)
}

func (h *Handle) Toss(ctx context.Context, item string, count int) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	return c.Toss(ctx, item, count)
}

func (h *Handle) ActivateItem(ctx context.Context) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	return c.ActivateItem(ctx)
}

func (h *Handle) DeactivateItem(ctx context.Context) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	return c.DeactivateItem(ctx)
}

func (h *Handle) Attack(ctx context.Context, entityID int) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	return c.Attack(ctx, entityID)
}

func (h *Handle) Recipes(ctx context.Context, item string, count int, station *world.Vec3) ([]world.Recipe, error) {
	c, err := h.current()
	if err != nil {
		return nil, err
	}
	return c.Recipes(ctx, item, count, station)
}

func (h *Handle) Craft(ctx context.Context, recipe world.Recipe, count int, station *world.Vec3) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	return c.Craft(ctx, recipe, count, station)
}

// Options returns the options of the live or most recent session.
func (h *Handle) Options() Options {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.opts
}

// Players lists visible players other than the avatar itself.
func (h *Handle) Players(ctx context.Context) ([]world.Entity, error) {
	self := h.Snapshot().Username
	all, err := h.Entities(ctx)
	if err != nil {
		return nil, err
	}
	var out []world.Entity
	for _, e := range all {
		if e.Type == world.EntityPlayer && e.Username != self {
			out = append(out, e)
		}
	}
	return out, nil
}

// ResumeToken returns the live connection's resume token, if it has one.
func (h *Handle) ResumeToken() string {
	c, err := h.current()
	if err != nil {
		return ""
	}
	if r, ok := c.(world.Resumable); ok {
		return r.ResumeToken()
	}
	return ""
}
