package actions

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/session"
	"minepilot.ai/internal/world"
	"minepilot.ai/internal/world/worldtest"
)

func connected(t *testing.T, cfg Config) (*Facade, *worldtest.World, *session.Handle) {
	t.Helper()
	w := worldtest.New()
	w.AutoArrive = true
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := session.New(worldtest.NewDialer(w), logger)
	_, err := h.Connect(context.Background(), session.Options{
		DialOptions:  world.DialOptions{Host: "localhost", Port: 25565, Username: "pilot"},
		SpawnTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { h.Disconnect(context.Background()) })
	return New(h, cfg, logger), w, h
}

func TestNavigateAndWaitReached(t *testing.T) {
	f, w, _ := connected(t, Config{})
	out, err := f.NavigateAndWait(context.Background(), world.V(10, 64, 0), 1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, NavReached, out)
	assert.Len(t, w.CallsTo("set_goal"), 1)
}

func TestNavigateAndWaitTimeoutIsSoft(t *testing.T) {
	f, w, _ := connected(t, Config{})
	w.AutoArrive = false

	out, err := f.NavigateAndWait(context.Background(), world.V(10, 64, 0), 1, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, NavTimedOut, out)
}

func TestNavigateAndWaitPathStopped(t *testing.T) {
	f, w, _ := connected(t, Config{})
	w.AutoArrive = false
	time.AfterFunc(20*time.Millisecond, func() { w.Emit(world.Event{Kind: world.EventPathStopped}) })

	out, err := f.NavigateAndWait(context.Background(), world.V(10, 64, 0), 1, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, NavStopped, out)
}

func TestNavigateAndWaitSessionEnds(t *testing.T) {
	f, w, _ := connected(t, Config{})
	w.AutoArrive = false
	time.AfterFunc(20*time.Millisecond, func() { w.End(world.EventKicked, "bye") })

	_, err := f.NavigateAndWait(context.Background(), world.V(10, 64, 0), 1, 2*time.Second)
	assert.ErrorIs(t, err, fault.ErrNotConnected)
}

func TestCollectBlocksCountsFoundCandidates(t *testing.T) {
	f, w, _ := connected(t, Config{})
	w.SetBlock(world.V(2, 64, 0), "oak_log")
	w.SetBlock(world.V(10, 64, 0), "oak_log")
	w.SetBlock(world.V(20, 64, 5), "oak_log")
	w.SetBlock(world.V(3, 64, 3), "stone")

	msg, err := f.CollectBlocks(context.Background(), "oak_log", 5)
	require.NoError(t, err)
	assert.Equal(t, "Collected 3/3 oak_log", msg)
	assert.Len(t, w.CallsTo("dig"), 3)
	assert.Equal(t, "stone", w.Block(world.V(3, 64, 3)))
}

func TestCollectBlocksNoneFound(t *testing.T) {
	f, _, _ := connected(t, Config{})
	_, err := f.CollectBlocks(context.Background(), "diamond_ore", 5)
	assert.ErrorIs(t, err, fault.ErrTargetUnavailable)
}

func TestCollectBlocksRequiresSession(t *testing.T) {
	f, _, h := connected(t, Config{})
	h.Disconnect(context.Background())
	_, err := f.CollectBlocks(context.Background(), "oak_log", 1)
	assert.ErrorIs(t, err, fault.ErrNotConnected)
}

func TestAttackUntilDeadStopsWhenTargetGoes(t *testing.T) {
	f, w, _ := connected(t, Config{AttackInterval: 40 * time.Millisecond, AttackTimeout: 5 * time.Second})
	w.PutEntity(world.Entity{ID: 7, Name: "zombie", Type: world.EntityHostile, Position: world.V(2, 64, 0)})
	time.AfterFunc(120*time.Millisecond, func() { w.RemoveEntity(7) })

	res, err := f.AttackUntilDead(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, AttackKilled, res.Outcome)
	assert.Equal(t, "zombie", res.Target)
	assert.GreaterOrEqual(t, res.Hits, 1)
	assert.Less(t, res.Elapsed, 2*time.Second)
	assert.NotEmpty(t, w.CallsTo("stop_navigation"))
}

func TestAttackUntilDeadChasesDistantTarget(t *testing.T) {
	f, w, _ := connected(t, Config{AttackInterval: 10 * time.Millisecond, AttackTimeout: 80 * time.Millisecond})
	w.PutEntity(world.Entity{ID: 9, Name: "skeleton", Type: world.EntityHostile, Position: world.V(12, 64, 0)})

	res, err := f.AttackUntilDead(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, AttackTimedOut, res.Outcome)
	assert.Zero(t, res.Hits)

	goals := w.CallsTo("set_goal")
	require.Len(t, goals, 1, "chase goal is set once, not every cadence")
	assert.Equal(t, world.GoalKindFollow, goals[0].Args[0].(world.Goal).Kind)
	assert.Equal(t, true, goals[0].Args[1])
}

func TestAttackUnknownEntity(t *testing.T) {
	f, _, _ := connected(t, Config{})
	_, err := f.AttackUntilDead(context.Background(), 404)
	assert.ErrorIs(t, err, fault.ErrTargetUnavailable)
}

func TestCraftItemInInventoryGrid(t *testing.T) {
	f, w, _ := connected(t, Config{})
	w.AddRecipe(world.Recipe{ID: "planks", Result: "oak_planks", ResultCount: 4})

	msg, err := f.CraftItem(context.Background(), "oak_planks", 1)
	require.NoError(t, err)
	assert.Equal(t, "Crafted 1 oak_planks", msg)
	assert.Len(t, w.CallsTo("craft"), 1)
}

func TestCraftItemWalksToStation(t *testing.T) {
	f, w, _ := connected(t, Config{})
	w.AddRecipe(world.Recipe{ID: "pickaxe", Result: "wooden_pickaxe", ResultCount: 1, RequiresTable: true})
	w.SetBlock(world.V(10, 64, 0), "crafting_table")

	msg, err := f.CraftItem(context.Background(), "wooden_pickaxe", 1)
	require.NoError(t, err)
	assert.Contains(t, msg, "crafting_table")
	assert.Len(t, w.CallsTo("set_goal"), 1)
}

func TestCraftItemNoStation(t *testing.T) {
	f, w, _ := connected(t, Config{})
	w.AddRecipe(world.Recipe{ID: "pickaxe", Result: "wooden_pickaxe", ResultCount: 1, RequiresTable: true})

	_, err := f.CraftItem(context.Background(), "wooden_pickaxe", 1)
	assert.ErrorIs(t, err, fault.ErrNoStationNearby)
	assert.Contains(t, err.Error(), "32 blocks")
}

func TestCraftItemNoRecipe(t *testing.T) {
	f, w, _ := connected(t, Config{})
	w.SetBlock(world.V(2, 64, 0), "crafting_table")

	_, err := f.CraftItem(context.Background(), "netherite_sword", 1)
	assert.ErrorIs(t, err, fault.ErrNoRecipe)
}

func TestDigAtAirFails(t *testing.T) {
	f, _, _ := connected(t, Config{})
	_, err := f.DigAt(context.Background(), world.V(1, 64, 1))
	assert.ErrorIs(t, err, fault.ErrTargetUnavailable)
}

func TestDigAtWalksAndDigs(t *testing.T) {
	f, w, _ := connected(t, Config{})
	w.SetBlock(world.V(15, 64, 0), "stone")

	msg, err := f.DigAt(context.Background(), world.V(15.4, 64.2, 0.9))
	require.NoError(t, err)
	assert.Equal(t, "Dug stone at (15, 64, 0)", msg)
	assert.Empty(t, w.Block(world.V(15, 64, 0)))
}

func TestPlaceAtAgainstSupport(t *testing.T) {
	f, w, _ := connected(t, Config{})
	w.SetInventory(world.ItemStack{Name: "dirt", Count: 3, Slot: 36})
	w.SetBlock(world.V(1, 63, 0), "grass_block")

	msg, err := f.PlaceAt(context.Background(), world.V(1, 64, 0), "dirt")
	require.NoError(t, err)
	assert.Equal(t, "Placed dirt at (1, 64, 0)", msg)
	assert.Equal(t, "dirt", w.Block(world.V(1, 64, 0)))
}

func TestPlaceAtWithoutSupport(t *testing.T) {
	f, w, _ := connected(t, Config{})
	w.SetInventory(world.ItemStack{Name: "dirt", Count: 3, Slot: 36})

	_, err := f.PlaceAt(context.Background(), world.V(1, 70, 0), "dirt")
	assert.ErrorIs(t, err, fault.ErrTargetUnavailable)
}

func TestTossItemClampsToInventory(t *testing.T) {
	f, w, _ := connected(t, Config{})
	w.SetInventory(world.ItemStack{Name: "cobblestone", Count: 5, Slot: 36})

	msg, err := f.TossItem(context.Background(), "cobblestone", 64)
	require.NoError(t, err)
	assert.Equal(t, "Tossed 5 cobblestone", msg)

	_, err = f.TossItem(context.Background(), "cobblestone", 1)
	assert.ErrorIs(t, err, fault.ErrTargetUnavailable)
}

func TestWorldInfoListsOtherPlayers(t *testing.T) {
	f, w, _ := connected(t, Config{})
	w.PutEntity(world.Entity{ID: 1, Type: world.EntityPlayer, Username: "pilot"})
	w.PutEntity(world.Entity{ID: 2, Type: world.EntityPlayer, Username: "steve"})

	info, err := f.WorldInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"steve"}, info.Players)
	assert.Equal(t, "overworld", info.Dimension)
	assert.Equal(t, "clear", info.Weather)
}
