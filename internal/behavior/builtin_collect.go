package behavior

import (
	"context"
	"time"
)

type CollectConfig struct {
	BlockType string  `json:"block_type"`
	Radius    float64 `json:"radius"`
}

// autoCollect digs at most one block per tick.
func autoCollect(interval, navTimeout time.Duration) Definition {
	return Define(NameAutoCollect, "Collect the nearest block of a type, one per tick.", interval,
		CollectConfig{Radius: 32},
		func(ctx context.Context, env Env, cfg *Config[CollectConfig]) error {
			c := cfg.Get()
			if c.BlockType == "" {
				env.Logger.Debug("no block_type configured")
				return nil
			}
			pos, ok, err := env.Session.FindBlock(ctx, c.BlockType, c.Radius)
			if err != nil || !ok {
				return err
			}
			here, err := env.Session.Position()
			if err != nil {
				return err
			}
			reach := env.Actions.Config().Reach
			if here.Distance(pos) > reach {
				if _, err := env.Actions.NavigateAndWait(ctx, pos, reach-1, navTimeout); err != nil {
					return err
				}
			}
			b, err := env.Session.BlockAt(ctx, pos)
			if err != nil {
				return err
			}
			if b.Name != c.BlockType {
				return nil
			}
			if err := env.Session.Dig(ctx, pos); err != nil {
				return err
			}
			env.Logger.Debug("collected", "block", c.BlockType, "position", pos)
			return nil
		})
}
