package actions

import (
	"context"
	"errors"
	"fmt"

	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/world"
)

// DigAt walks to the block and digs it if it is still there on arrival.
func (f *Facade) DigAt(ctx context.Context, pos world.Vec3) (string, error) {
	pos = pos.Floored()
	b, err := f.h.BlockAt(ctx, pos)
	if err != nil {
		return "", err
	}
	if b.IsAir() {
		return "", fault.TargetUnavailable("no block at %s", pos)
	}
	if err := f.approach(ctx, pos, f.cfg.Reach); err != nil {
		return "", err
	}
	b, err = f.h.BlockAt(ctx, pos)
	if err != nil {
		return "", err
	}
	if b.IsAir() {
		return "", fault.TargetUnavailable("block at %s disappeared", pos)
	}
	if err := f.h.Dig(ctx, pos); err != nil {
		return "", err
	}
	return fmt.Sprintf("Dug %s at %s", b.Name, pos), nil
}

// PlaceAt puts item (or whatever is held) into the empty cell at pos,
// against the first solid neighbour.
func (f *Facade) PlaceAt(ctx context.Context, pos world.Vec3, item string) (string, error) {
	pos = pos.Floored()
	if item != "" {
		if err := f.h.Equip(ctx, item, "hand"); err != nil {
			return "", err
		}
	}
	if err := f.approach(ctx, pos, f.cfg.Reach); err != nil {
		return "", err
	}
	b, err := f.h.BlockAt(ctx, pos)
	if err != nil {
		return "", err
	}
	if !b.IsAir() {
		return "", fault.TargetUnavailable("%s is occupied by %s", pos, b.Name)
	}
	for _, face := range world.Faces {
		ref := pos.Add(face)
		nb, err := f.h.BlockAt(ctx, ref)
		if err != nil {
			if errors.Is(err, fault.ErrNotConnected) {
				return "", err
			}
			continue
		}
		if nb.IsAir() {
			continue
		}
		if err := f.h.Place(ctx, ref, pos.Sub(ref)); err != nil {
			return "", err
		}
		placed := item
		if placed == "" {
			placed = "block"
		}
		return fmt.Sprintf("Placed %s at %s", placed, pos), nil
	}
	return "", fault.TargetUnavailable("no solid block next to %s to place against", pos)
}

// CollectBlocks digs up to count blocks of blockType. Candidates are resolved
// once; a block that fails is logged and skipped. The result counts against
// the candidates actually found, not the number requested.
func (f *Facade) CollectBlocks(ctx context.Context, blockType string, count int) (string, error) {
	if count <= 0 {
		count = 1
	}
	found, err := f.h.FindBlocks(ctx, world.BlockQuery{Name: blockType, MaxDistance: f.cfg.CollectRadius, Count: count})
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", fault.TargetUnavailable("no %s found within %g blocks", blockType, f.cfg.CollectRadius)
	}

	collected := 0
	for _, pos := range found {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := f.collectOne(ctx, pos, blockType); err != nil {
			if errors.Is(err, fault.ErrNotConnected) {
				return "", err
			}
			f.log.Warn("collect block failed", "block", blockType, "position", pos, "err", err)
			continue
		}
		collected++
	}
	return fmt.Sprintf("Collected %d/%d %s", collected, len(found), blockType), nil
}

func (f *Facade) collectOne(ctx context.Context, pos world.Vec3, blockType string) error {
	if err := f.approach(ctx, pos, f.cfg.Reach); err != nil {
		return err
	}
	b, err := f.h.BlockAt(ctx, pos)
	if err != nil {
		return err
	}
	if b.Name != blockType {
		return fault.TargetUnavailable("%s at %s is now %s", blockType, pos, b.Name)
	}
	return f.h.Dig(ctx, pos)
}

// FindBlocks lists positions of blockType within radius, nearest first.
func (f *Facade) FindBlocks(ctx context.Context, blockType string, radius float64, count int) ([]world.Vec3, error) {
	if radius <= 0 {
		radius = f.cfg.CollectRadius
	}
	if count <= 0 {
		count = 10
	}
	found, err := f.h.FindBlocks(ctx, world.BlockQuery{Name: blockType, MaxDistance: radius, Count: count})
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []world.Vec3{}
	}
	return found, nil
}
