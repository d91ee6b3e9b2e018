package behavior

import (
	"context"
	"sync/atomic"
	"time"

	"minepilot.ai/internal/world"
)

type EatConfig struct {
	Threshold float64 `json:"threshold"`
}

// foods in order of preference.
var foods = []string{
	"golden_carrot", "cooked_beef", "cooked_porkchop", "cooked_mutton",
	"cooked_salmon", "cooked_chicken", "cooked_cod", "baked_potato", "bread",
	"pumpkin_pie", "apple", "carrot", "melon_slice", "sweet_berries",
	"beef", "porkchop", "mutton", "chicken", "potato",
}

func autoEat(interval, fallback time.Duration) Definition {
	var eating atomic.Bool
	return Define(NameAutoEat, "Eat when food drops below threshold.", interval,
		EatConfig{Threshold: 14},
		func(ctx context.Context, env Env, cfg *Config[EatConfig]) error {
			c := cfg.Get()
			if env.Session.Snapshot().Food >= c.Threshold {
				return nil
			}
			if !eating.CompareAndSwap(false, true) {
				return nil
			}
			defer eating.Store(false)

			inv, err := env.Session.Inventory(ctx)
			if err != nil {
				return err
			}
			food, ok := pickFood(inv)
			if !ok {
				env.Logger.Debug("hungry but nothing to eat")
				return nil
			}
			if err := env.Session.Equip(ctx, food, "hand"); err != nil {
				return err
			}

			health, cancel := env.Session.Subscribe(world.EventHealth)
			defer cancel()
			if err := env.Session.ActivateItem(ctx); err != nil {
				return err
			}
			wait := time.NewTimer(fallback)
			defer wait.Stop()
			select {
			case <-health:
			case <-wait.C:
			case <-ctx.Done():
			}
			if err := env.Session.DeactivateItem(ctx); err != nil {
				return err
			}
			env.Logger.Info("ate", "item", food, "food", env.Session.Snapshot().Food)
			return nil
		})
}

func pickFood(inv []world.ItemStack) (string, bool) {
	have := map[string]bool{}
	for _, it := range inv {
		if it.Count > 0 {
			have[it.Name] = true
		}
	}
	for _, f := range foods {
		if have[f] {
			return f, true
		}
	}
	return "", false
}
