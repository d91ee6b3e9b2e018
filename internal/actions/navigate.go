package actions

import (
	"context"
	"fmt"
	"time"

	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/world"
)

type NavOutcome string

const (
	NavReached  NavOutcome = "reached"
	NavStopped  NavOutcome = "stopped"
	NavTimedOut NavOutcome = "timed_out"
)

// NavigateAndWait sets a goal near target and blocks until the pathfinder
// reports arrival, gives up, or timeout elapses. A timeout is not an error:
// callers re-check the position and carry on. A non-positive timeout uses
// the configured default.
func (f *Facade) NavigateAndWait(ctx context.Context, target world.Vec3, rng float64, timeout time.Duration) (NavOutcome, error) {
	if timeout <= 0 {
		timeout = f.cfg.NavTimeout
	}
	events, cancel := f.h.Subscribe(world.EventGoalReached, world.EventPathStopped)
	defer cancel()

	if err := f.h.SetGoal(ctx, world.GoalNear(target, rng), false); err != nil {
		return "", err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
			f.log.Debug("navigation timed out", "target", target, "timeout", timeout)
			return NavTimedOut, nil
		case ev := <-events:
			switch ev.Kind {
			case world.EventGoalReached:
				return NavReached, nil
			case world.EventPathStopped:
				return NavStopped, nil
			case world.EventEnded, world.EventKicked:
				return "", fault.ErrNotConnected
			}
		}
	}
}

// GoTo walks to pos and reports where the avatar ended up.
func (f *Facade) GoTo(ctx context.Context, pos world.Vec3, rng float64) (string, error) {
	if rng <= 0 {
		rng = 1
	}
	outcome, err := f.NavigateAndWait(ctx, pos, rng, 0)
	if err != nil {
		return "", err
	}
	now, err := f.h.Position()
	if err != nil {
		return "", err
	}
	switch outcome {
	case NavReached:
		return fmt.Sprintf("Arrived near %s, now at %s", pos, now.Floored()), nil
	case NavStopped:
		return fmt.Sprintf("Path to %s stopped, now at %s", pos, now.Floored()), nil
	default:
		return fmt.Sprintf("Navigation to %s timed out, now at %s", pos, now.Floored()), nil
	}
}

// approach walks into reach of pos unless already there. Timeouts and
// stopped paths fall through; the caller re-resolves afterwards.
func (f *Facade) approach(ctx context.Context, pos world.Vec3, reach float64) error {
	here, err := f.h.Position()
	if err != nil {
		return err
	}
	if here.Distance(pos) <= reach {
		return nil
	}
	outcome, err := f.NavigateAndWait(ctx, pos, reach-1, 0)
	if err != nil {
		return err
	}
	if outcome != NavReached {
		f.log.Debug("approach incomplete", "target", pos, "outcome", outcome)
	}
	return nil
}

func (f *Facade) Follow(ctx context.Context, player string, distance float64) (string, error) {
	if distance <= 0 {
		distance = 3
	}
	target, err := f.h.Player(ctx, player)
	if err != nil {
		return "", err
	}
	if err := f.h.SetGoal(ctx, world.GoalFollow(target.ID, distance), true); err != nil {
		return "", err
	}
	return fmt.Sprintf("Following %s at %g blocks", player, distance), nil
}

func (f *Facade) StopMoving(ctx context.Context) (string, error) {
	if err := f.h.StopNavigation(ctx); err != nil {
		return "", err
	}
	return "Stopped moving", nil
}
