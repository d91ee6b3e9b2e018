package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/world"
)

type AttackOutcome string

const (
	AttackKilled   AttackOutcome = "killed"
	AttackTimedOut AttackOutcome = "timed_out"
)

type AttackResult struct {
	Outcome AttackOutcome `json:"outcome"`
	Target  string        `json:"target"`
	Hits    int           `json:"hits"`
	Elapsed time.Duration `json:"elapsed"`
}

func (r AttackResult) String() string {
	if r.Outcome == AttackKilled {
		return fmt.Sprintf("%s is dead or gone after %d hits (%s)", r.Target, r.Hits, r.Elapsed.Round(time.Millisecond))
	}
	return fmt.Sprintf("Gave up on %s after %s (%d hits)", r.Target, r.Elapsed.Round(time.Second), r.Hits)
}

// AttackUntilDead chases and strikes the entity until it is no longer in the
// world or the safety timeout elapses. The target is checked immediately and
// then once per attack interval.
func (f *Facade) AttackUntilDead(ctx context.Context, entityID int) (AttackResult, error) {
	target, err := f.h.Entity(ctx, entityID)
	if err != nil {
		return AttackResult{}, err
	}
	res := AttackResult{Target: target.DisplayName()}
	start := time.Now()

	fightCtx, cancel := context.WithTimeout(ctx, f.cfg.AttackTimeout)
	defer cancel()
	defer func() {
		// The fight context may already be done; stopping must still reach the world.
		if err := f.h.StopNavigation(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, fault.ErrNotConnected) {
			f.log.Debug("stop chase", "err", err)
		}
	}()

	ticker := time.NewTicker(f.cfg.AttackInterval)
	defer ticker.Stop()
	chasing := false
	for {
		done, err := f.attackStep(fightCtx, entityID, &chasing, &res)
		if err != nil {
			return AttackResult{}, err
		}
		if done {
			res.Outcome = AttackKilled
			res.Elapsed = time.Since(start)
			return res, nil
		}
		select {
		case <-fightCtx.Done():
			if ctx.Err() != nil {
				return AttackResult{}, ctx.Err()
			}
			res.Outcome = AttackTimedOut
			res.Elapsed = time.Since(start)
			f.log.Info("attack safety timeout", "target", res.Target, "hits", res.Hits)
			return res, nil
		case <-ticker.C:
		}
	}
}

// attackStep reports done when the target can no longer be resolved.
func (f *Facade) attackStep(ctx context.Context, entityID int, chasing *bool, res *AttackResult) (bool, error) {
	e, err := f.h.Entity(ctx, entityID)
	switch {
	case errors.Is(err, fault.ErrTargetUnavailable):
		return true, nil
	case err != nil:
		return false, err
	}
	here, err := f.h.Position()
	if err != nil {
		return false, err
	}
	if here.Distance(e.Position) > f.cfg.MeleeRange {
		if !*chasing {
			if err := f.h.SetGoal(ctx, world.GoalFollow(entityID, f.cfg.MeleeRange-1), true); err != nil {
				return false, err
			}
			*chasing = true
		}
		return false, nil
	}
	if *chasing {
		if err := f.h.StopNavigation(ctx); err != nil {
			return false, err
		}
		*chasing = false
	}
	if err := f.h.Attack(ctx, entityID); err != nil {
		if errors.Is(err, fault.ErrTargetUnavailable) {
			return true, nil
		}
		return false, err
	}
	res.Hits++
	return false, nil
}
