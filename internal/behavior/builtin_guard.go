package behavior

import (
	"context"
	"time"

	"minepilot.ai/internal/world"
)

type GuardConfig struct {
	Radius float64 `json:"radius"`
}

const guardStrikeRange = 3.5

func guard(interval time.Duration) Definition {
	return Define(NameGuard, "Attack the nearest hostile mob within radius.", interval,
		GuardConfig{Radius: 16},
		func(ctx context.Context, env Env, cfg *Config[GuardConfig]) error {
			c := cfg.Get()
			target, ok, err := env.Session.NearestEntity(ctx, c.Radius, func(e world.Entity) bool {
				return e.Type == world.EntityHostile
			})
			if err != nil || !ok {
				return err
			}
			here, err := env.Session.Position()
			if err != nil {
				return err
			}
			if here.Distance(target.Position) <= guardStrikeRange {
				return env.Session.Attack(ctx, target.ID)
			}
			return env.Session.SetGoal(ctx, world.GoalFollow(target.ID, 2), true)
		})
}
