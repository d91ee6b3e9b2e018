package behavior

import (
	"context"
	"errors"
	"time"

	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/world"
)

type FollowConfig struct {
	Player   string  `json:"player"`
	Distance float64 `json:"distance"`
}

func autoFollow(interval time.Duration) Definition {
	return Define(NameAutoFollow, "Keep close to a player.", interval,
		FollowConfig{Distance: 3},
		func(ctx context.Context, env Env, cfg *Config[FollowConfig]) error {
			c := cfg.Get()
			if c.Player == "" {
				env.Logger.Debug("no player configured")
				return nil
			}
			p, err := env.Session.Player(ctx, c.Player)
			if errors.Is(err, fault.ErrTargetUnavailable) {
				env.Logger.Debug("player not visible", "player", c.Player)
				return nil
			}
			if err != nil {
				return err
			}
			here, err := env.Session.Position()
			if err != nil {
				return err
			}
			if here.Distance(p.Position) <= c.Distance+1 {
				return nil
			}
			return env.Session.SetGoal(ctx, world.GoalFollow(p.ID, c.Distance), true)
		})
}
