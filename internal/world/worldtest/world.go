// Package worldtest provides an in-memory world.Conn for driving the session,
// action and behavior layers in tests without a game gateway.
package worldtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/world"
)

// Call is one command the fake received.
type Call struct {
	Op   string
	Args []any
}

// World is a deterministic fake game session. All methods are safe for
// concurrent use. Zero value is not usable; call New.
type World struct {
	mu sync.Mutex

	telemetry world.Telemetry
	blocks    map[world.Vec3]string
	entities  map[int]world.Entity
	inventory []world.ItemStack
	recipes   map[string]world.Recipe

	events chan world.Event
	closed bool
	calls  []Call

	// AutoArrive moves the avatar onto non-continuous goals and reports
	// goal_reached right away.
	AutoArrive bool
	// OnAttack runs after each Attack call with the target id.
	OnAttack func(w *World, entityID int)
	// MuteHealth stops ActivateItem from reporting a health update, so
	// callers waiting on one fall back to their timer.
	MuteHealth bool
}

func New() *World {
	pos := world.V(0, 64, 0)
	w := &World{
		telemetry: world.Telemetry{
			Username:        "pilot",
			Health:          20,
			Food:            20,
			Position:        &pos,
			Dimension:       "overworld",
			ExperienceLevel: 0,
			GameMode:        "survival",
			TimeOfDay:       1000,
			Weather:         "clear",
		},
		blocks:   map[world.Vec3]string{},
		entities: map[int]world.Entity{},
		recipes:  map[string]world.Recipe{},
		events:   make(chan world.Event, 64),
	}
	return w
}

func (w *World) reopen() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.events = make(chan world.Event, 64)
		w.closed = false
	}
}

// Emit pushes an event as if the world reported it.
func (w *World) Emit(ev world.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emitLocked(ev)
}

func (w *World) emitLocked(ev world.Event) {
	if w.closed {
		return
	}
	select {
	case w.events <- ev:
	default:
	}
}

// End simulates the server ending the session.
func (w *World) End(kind world.EventKind, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.emitLocked(world.Event{Kind: kind, Reason: reason})
	w.closed = true
	close(w.events)
}

func (w *World) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *World) SetTelemetry(fn func(t *world.Telemetry)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.telemetry)
}

func (w *World) SetPosition(p world.Vec3) {
	w.SetTelemetry(func(t *world.Telemetry) { t.Position = &p })
}

func (w *World) SetBlock(p world.Vec3, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if name == "" || name == "air" {
		delete(w.blocks, p)
		return
	}
	w.blocks[p] = name
}

func (w *World) Block(p world.Vec3) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blocks[p]
}

func (w *World) PutEntity(e world.Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entities[e.ID] = e
}

func (w *World) RemoveEntity(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entities, id)
}

func (w *World) SetInventory(items ...world.ItemStack) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inventory = append([]world.ItemStack(nil), items...)
}

// AddRecipe registers a recipe that is always craftable.
func (w *World) AddRecipe(r world.Recipe) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recipes[r.Result] = r
}

func (w *World) Calls() []Call {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Call(nil), w.calls...)
}

// CallsTo filters the recorded calls by op.
func (w *World) CallsTo(op string) []Call {
	var out []Call
	for _, c := range w.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (w *World) ResetCalls() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = nil
}

// record logs the call and reports whether the session is still open.
func (w *World) record(op string, args ...any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fault.ErrNotConnected
	}
	w.calls = append(w.calls, Call{Op: op, Args: args})
	return nil
}

func (w *World) Events() <-chan world.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.events
}

func (w *World) Telemetry() world.Telemetry {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := w.telemetry
	if t.Position != nil {
		p := *t.Position
		t.Position = &p
	}
	return t
}

func (w *World) Chat(ctx context.Context, message string) error {
	return w.record("chat", message)
}

func (w *World) SetMovements(ctx context.Context, opts world.MovementOptions) error {
	return w.record("set_movements", opts)
}

func (w *World) SetGoal(ctx context.Context, goal world.Goal, continuous bool) error {
	if err := w.record("set_goal", goal, continuous); err != nil {
		return err
	}
	if !w.AutoArrive || continuous || goal.Kind != world.GoalKindNear {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	p := goal.Target
	w.telemetry.Position = &p
	w.emitLocked(world.Event{Kind: world.EventGoalReached})
	return nil
}

func (w *World) StopNavigation(ctx context.Context) error {
	return w.record("stop_navigation")
}

func (w *World) BlockAt(ctx context.Context, pos world.Vec3) (world.Block, bool, error) {
	if err := w.record("block_at", pos); err != nil {
		return world.Block{}, false, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	name, ok := w.blocks[pos]
	if !ok {
		name = "air"
	}
	return world.Block{Name: name, Position: pos, Diggable: ok}, true, nil
}

func (w *World) FindBlocks(ctx context.Context, q world.BlockQuery) ([]world.Vec3, error) {
	if err := w.record("find_blocks", q); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	origin := world.Vec3{}
	if w.telemetry.Position != nil {
		origin = *w.telemetry.Position
	}
	var out []world.Vec3
	for p, name := range w.blocks {
		if name != q.Name {
			continue
		}
		if q.MaxDistance > 0 && origin.Distance(p) > q.MaxDistance {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return origin.Distance(out[i]) < origin.Distance(out[j])
	})
	if q.Count > 0 && len(out) > q.Count {
		out = out[:q.Count]
	}
	return out, nil
}

func (w *World) Entities(ctx context.Context) ([]world.Entity, error) {
	if err := w.record("entities"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]world.Entity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (w *World) Inventory(ctx context.Context) ([]world.ItemStack, error) {
	if err := w.record("inventory"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]world.ItemStack(nil), w.inventory...), nil
}

func (w *World) Dig(ctx context.Context, pos world.Vec3) error {
	if err := w.record("dig", pos); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	name, ok := w.blocks[pos]
	if !ok {
		return fault.TargetUnavailable("nothing to dig at %s", pos)
	}
	delete(w.blocks, pos)
	w.addItemLocked(name, 1)
	return nil
}

func (w *World) Place(ctx context.Context, ref world.Vec3, face world.Vec3) error {
	if err := w.record("place", ref, face); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	held := w.telemetry.HeldItem
	if held == "" {
		return fmt.Errorf("nothing in hand")
	}
	w.blocks[ref.Add(face)] = held
	w.addItemLocked(held, -1)
	return nil
}

func (w *World) Equip(ctx context.Context, item string, destination string) error {
	if err := w.record("equip", item, destination); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, it := range w.inventory {
		if it.Name == item && it.Count > 0 {
			w.telemetry.HeldItem = item
			return nil
		}
	}
	return fault.TargetUnavailable("no %s in inventory", item)
}

func (w *World) Toss(ctx context.Context, item string, count int) error {
	if err := w.record("toss", item, count); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.addItemLocked(item, -count)
	return nil
}

// ActivateItem eats the held item when it is food and reports a health update.
func (w *World) ActivateItem(ctx context.Context) error {
	if err := w.record("activate_item"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.telemetry.HeldItem == "" {
		return nil
	}
	w.addItemLocked(w.telemetry.HeldItem, -1)
	w.telemetry.Food += 6
	if w.telemetry.Food > 20 {
		w.telemetry.Food = 20
	}
	if !w.MuteHealth {
		w.emitLocked(world.Event{Kind: world.EventHealth})
	}
	return nil
}

func (w *World) DeactivateItem(ctx context.Context) error {
	return w.record("deactivate_item")
}

func (w *World) Attack(ctx context.Context, entityID int) error {
	if err := w.record("attack", entityID); err != nil {
		return err
	}
	if w.OnAttack != nil {
		w.OnAttack(w, entityID)
	}
	return nil
}

func (w *World) Recipes(ctx context.Context, item string, count int, station *world.Vec3) ([]world.Recipe, error) {
	if err := w.record("recipes", item, count, station); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.recipes[item]
	if !ok {
		return nil, nil
	}
	if r.RequiresTable && station == nil {
		return nil, nil
	}
	return []world.Recipe{r}, nil
}

func (w *World) Craft(ctx context.Context, recipe world.Recipe, count int, station *world.Vec3) error {
	if err := w.record("craft", recipe, count, station); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	n := recipe.ResultCount
	if n <= 0 {
		n = 1
	}
	w.addItemLocked(recipe.Result, n*count)
	return nil
}

func (w *World) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.events)
	}
	return nil
}

func (w *World) addItemLocked(name string, delta int) {
	for i := range w.inventory {
		if w.inventory[i].Name != name {
			continue
		}
		w.inventory[i].Count += delta
		if w.inventory[i].Count <= 0 {
			w.inventory = append(w.inventory[:i], w.inventory[i+1:]...)
			if w.telemetry.HeldItem == name {
				w.telemetry.HeldItem = ""
			}
		}
		return
	}
	if delta > 0 {
		w.inventory = append(w.inventory, world.ItemStack{Name: name, Count: delta, Slot: 36 + len(w.inventory)})
	}
}
