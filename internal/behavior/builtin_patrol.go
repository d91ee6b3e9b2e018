package behavior

import (
	"context"
	"time"

	"minepilot.ai/internal/world"
)

type PatrolConfig struct {
	Waypoints []world.Vec3 `json:"waypoints"`
	Index     int          `json:"index"`
}

const patrolArrival = 3

// patrol walks the waypoints in order, wrapping around. A tick that finds
// the avatar at the current waypoint only advances the index.
func patrol(interval, navTimeout time.Duration) Definition {
	return Define(NamePatrol, "Walk between waypoints in a loop.", interval,
		PatrolConfig{Waypoints: []world.Vec3{}},
		func(ctx context.Context, env Env, cfg *Config[PatrolConfig]) error {
			c := cfg.Get()
			n := len(c.Waypoints)
			if n == 0 {
				env.Logger.Debug("no waypoints configured")
				return nil
			}
			idx := ((c.Index % n) + n) % n
			wp := c.Waypoints[idx]

			here, err := env.Session.Position()
			if err != nil {
				return err
			}
			if here.Distance(wp) <= patrolArrival {
				cfg.Update(func(c *PatrolConfig) {
					if len(c.Waypoints) > 0 {
						c.Index = (idx + 1) % len(c.Waypoints)
					}
				})
				return nil
			}
			outcome, err := env.Actions.NavigateAndWait(ctx, wp, 1, navTimeout)
			if err != nil {
				return err
			}
			env.Logger.Debug("patrol leg", "waypoint", idx, "outcome", outcome)
			return nil
		})
}
