package behavior

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minepilot.ai/internal/world"
	"minepilot.ai/internal/world/worldtest"
)

func tickOnce(t *testing.T, env Env, def Definition, cfg configValue) error {
	t.Helper()
	return def.tick(context.Background(), env, cfg)
}

func builtin(t *testing.T, name string, overrides map[string]any) (Definition, configValue) {
	t.Helper()
	def, ok := DefaultRegistry().Get(name)
	require.True(t, ok)
	cfg, err := def.newConfig()
	require.NoError(t, err)
	require.Empty(t, cfg.patch(overrides))
	return def, cfg
}

func TestPatrolAdvancesWithoutMoving(t *testing.T) {
	env, w := newEnv(t)
	def, cfg := builtin(t, NamePatrol, map[string]any{
		"waypoints": []any{[]any{0, 64, 0}, []any{10, 64, 0}},
	})

	require.NoError(t, tickOnce(t, env, def, cfg))
	assert.Equal(t, float64(1), cfg.snapshot()["index"])
	assert.Empty(t, w.CallsTo("set_goal"))

	require.NoError(t, tickOnce(t, env, def, cfg))
	assert.Len(t, w.CallsTo("set_goal"), 1)
	assert.Equal(t, float64(1), cfg.snapshot()["index"])

	require.NoError(t, tickOnce(t, env, def, cfg))
	assert.Equal(t, float64(0), cfg.snapshot()["index"], "index wraps around")
	assert.Len(t, w.CallsTo("set_goal"), 1)
}

func TestPatrolWithoutWaypointsIsNoop(t *testing.T) {
	env, w := newEnv(t)
	def, cfg := builtin(t, NamePatrol, nil)
	require.NoError(t, tickOnce(t, env, def, cfg))
	assert.Empty(t, w.CallsTo("set_goal"))
}

func TestAutoEatWhenHungry(t *testing.T) {
	env, w := newEnv(t)
	w.SetTelemetry(func(tm *world.Telemetry) { tm.Food = 5 })
	w.SetInventory(
		world.ItemStack{Name: "dirt", Count: 10, Slot: 36},
		world.ItemStack{Name: "bread", Count: 2, Slot: 37},
		world.ItemStack{Name: "cooked_beef", Count: 1, Slot: 38},
	)
	def, cfg := builtin(t, NameAutoEat, nil)

	require.NoError(t, tickOnce(t, env, def, cfg))
	equips := w.CallsTo("equip")
	require.Len(t, equips, 1)
	assert.Equal(t, "cooked_beef", equips[0].Args[0])
	assert.Len(t, w.CallsTo("activate_item"), 1)
	assert.Len(t, w.CallsTo("deactivate_item"), 1)
	assert.Equal(t, float64(11), env.Session.Snapshot().Food)
}

func hungryEater(t *testing.T, fallback time.Duration) (Env, *worldtest.World, Definition, configValue) {
	t.Helper()
	env, w := newEnv(t)
	w.MuteHealth = true
	w.SetTelemetry(func(tm *world.Telemetry) { tm.Food = 2 })
	w.SetInventory(world.ItemStack{Name: "bread", Count: 5, Slot: 36})
	def := autoEat(time.Hour, fallback)
	cfg, err := def.newConfig()
	require.NoError(t, err)
	return env, w, def, cfg
}

func TestAutoEatGuardPreventsOverlap(t *testing.T) {
	env, w, def, cfg := hungryEater(t, 300*time.Millisecond)

	first := make(chan error, 1)
	go func() { first <- tickOnce(t, env, def, cfg) }()
	require.Eventually(t, func() bool { return len(w.CallsTo("activate_item")) == 1 },
		time.Second, 5*time.Millisecond)

	// Still hungry and the first attempt is waiting on its fallback.
	require.NoError(t, tickOnce(t, env, def, cfg))
	assert.Len(t, w.CallsTo("equip"), 1)
	assert.Len(t, w.CallsTo("activate_item"), 1)

	require.NoError(t, <-first)
	assert.Len(t, w.CallsTo("deactivate_item"), 1)
}

func TestAutoEatWakesOnHealthEvent(t *testing.T) {
	env, w, def, cfg := hungryEater(t, 10*time.Second)

	done := make(chan error, 1)
	go func() { done <- tickOnce(t, env, def, cfg) }()
	require.Eventually(t, func() bool { return len(w.CallsTo("activate_item")) == 1 },
		time.Second, 5*time.Millisecond)

	start := time.Now()
	w.Emit(world.Event{Kind: world.EventHealth})
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("eat tick did not wake on the health update")
	}
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, w.CallsTo("deactivate_item"), 1)
}

func TestAutoEatNotHungry(t *testing.T) {
	env, w := newEnv(t)
	w.SetInventory(world.ItemStack{Name: "bread", Count: 2, Slot: 36})
	def, cfg := builtin(t, NameAutoEat, nil)

	require.NoError(t, tickOnce(t, env, def, cfg))
	assert.Empty(t, w.CallsTo("inventory"))
	assert.Empty(t, w.CallsTo("equip"))
}

func TestGuardStrikesOrChases(t *testing.T) {
	env, w := newEnv(t)
	def, cfg := builtin(t, NameGuard, nil)

	require.NoError(t, tickOnce(t, env, def, cfg))
	assert.Empty(t, w.CallsTo("set_goal"))
	assert.Empty(t, w.CallsTo("attack"))

	w.PutEntity(world.Entity{ID: 3, Name: "cow", Type: world.EntityMob, Position: world.V(1, 64, 0)})
	w.PutEntity(world.Entity{ID: 4, Name: "zombie", Type: world.EntityHostile, Position: world.V(10, 64, 0)})
	require.NoError(t, tickOnce(t, env, def, cfg))
	goals := w.CallsTo("set_goal")
	require.Len(t, goals, 1)
	assert.Equal(t, world.GoalFollow(4, 2), goals[0].Args[0])

	w.PutEntity(world.Entity{ID: 4, Name: "zombie", Type: world.EntityHostile, Position: world.V(2, 64, 1)})
	require.NoError(t, tickOnce(t, env, def, cfg))
	attacks := w.CallsTo("attack")
	require.Len(t, attacks, 1)
	assert.Equal(t, 4, attacks[0].Args[0])
}

func TestGuardRespectsRadius(t *testing.T) {
	env, w := newEnv(t)
	def, cfg := builtin(t, NameGuard, map[string]any{"radius": 5})
	w.PutEntity(world.Entity{ID: 4, Name: "zombie", Type: world.EntityHostile, Position: world.V(10, 64, 0)})

	require.NoError(t, tickOnce(t, env, def, cfg))
	assert.Empty(t, w.CallsTo("set_goal"))
	assert.Empty(t, w.CallsTo("attack"))
}

func TestAutoFollow(t *testing.T) {
	env, w := newEnv(t)
	def, cfg := builtin(t, NameAutoFollow, map[string]any{"player": "steve"})

	require.NoError(t, tickOnce(t, env, def, cfg), "missing player is not a failure")

	w.PutEntity(world.Entity{ID: 8, Type: world.EntityPlayer, Username: "steve", Position: world.V(3, 64, 0)})
	require.NoError(t, tickOnce(t, env, def, cfg))
	assert.Empty(t, w.CallsTo("set_goal"), "within distance+1")

	w.PutEntity(world.Entity{ID: 8, Type: world.EntityPlayer, Username: "steve", Position: world.V(12, 64, 0)})
	require.NoError(t, tickOnce(t, env, def, cfg))
	goals := w.CallsTo("set_goal")
	require.Len(t, goals, 1)
	assert.Equal(t, world.GoalFollow(8, 3), goals[0].Args[0])
	assert.Equal(t, true, goals[0].Args[1])
}

func TestAutoCollectDigsOneBlockPerTick(t *testing.T) {
	env, w := newEnv(t)
	def, cfg := builtin(t, NameAutoCollect, map[string]any{"block_type": "oak_log"})
	w.SetBlock(world.V(12, 64, 0), "oak_log")
	w.SetBlock(world.V(14, 64, 0), "oak_log")

	require.NoError(t, tickOnce(t, env, def, cfg))
	assert.Len(t, w.CallsTo("dig"), 1)
	assert.Empty(t, w.Block(world.V(12, 64, 0)))
	assert.Equal(t, "oak_log", w.Block(world.V(14, 64, 0)))
}

func TestAutoCollectWithoutBlockType(t *testing.T) {
	env, w := newEnv(t)
	def, cfg := builtin(t, NameAutoCollect, nil)
	require.NoError(t, tickOnce(t, env, def, cfg))
	assert.Empty(t, w.CallsTo("find_blocks"))
}

func TestBuiltinTickFailsSoftWhenDisconnected(t *testing.T) {
	env, _ := newEnv(t)
	env.Session.Disconnect(context.Background())
	def, cfg := builtin(t, NameGuard, nil)
	assert.Error(t, tickOnce(t, env, def, cfg))
}
