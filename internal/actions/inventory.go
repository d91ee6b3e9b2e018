package actions

import (
	"context"
	"fmt"

	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/session"
	"minepilot.ai/internal/world"
)

func (f *Facade) Chat(ctx context.Context, message string) (string, error) {
	if message == "" {
		return "", fault.BadRequest("message is empty")
	}
	if err := f.h.Chat(ctx, message); err != nil {
		return "", err
	}
	return fmt.Sprintf("Said: %s", message), nil
}

func (f *Facade) ListInventory(ctx context.Context) ([]world.ItemStack, error) {
	return f.h.Inventory(ctx)
}

func (f *Facade) EquipItem(ctx context.Context, item, destination string) (string, error) {
	if destination == "" {
		destination = "hand"
	}
	if err := f.h.Equip(ctx, item, destination); err != nil {
		return "", err
	}
	return fmt.Sprintf("Equipped %s to %s", item, destination), nil
}

// TossItem drops up to count of item; it drops what there is when the
// inventory holds fewer.
func (f *Facade) TossItem(ctx context.Context, item string, count int) (string, error) {
	inv, err := f.h.Inventory(ctx)
	if err != nil {
		return "", err
	}
	have := 0
	for _, st := range inv {
		if st.Name == item {
			have += st.Count
		}
	}
	if have == 0 {
		return "", fault.TargetUnavailable("no %s in inventory", item)
	}
	if count <= 0 || count > have {
		count = have
	}
	if err := f.h.Toss(ctx, item, count); err != nil {
		return "", err
	}
	return fmt.Sprintf("Tossed %d %s", count, item), nil
}

func (f *Facade) NearbyEntities(ctx context.Context, radius float64) ([]world.Entity, error) {
	if radius <= 0 {
		radius = 32
	}
	return f.h.EntitiesNear(ctx, radius, nil)
}

type WorldInfo struct {
	TimeOfDay int      `json:"time_of_day"`
	Weather   string   `json:"weather"`
	Dimension string   `json:"dimension"`
	Players   []string `json:"players"`
}

func (f *Facade) WorldInfo(ctx context.Context) (WorldInfo, error) {
	st := f.h.Snapshot()
	if st.Status != session.StatusConnected {
		return WorldInfo{}, fault.ErrNotConnected
	}
	players, err := f.h.Players(ctx)
	if err != nil {
		return WorldInfo{}, err
	}
	info := WorldInfo{TimeOfDay: st.TimeOfDay, Weather: st.Weather, Players: []string{}}
	if st.Dimension != nil {
		info.Dimension = *st.Dimension
	}
	for _, p := range players {
		info.Players = append(info.Players, p.Username)
	}
	return info, nil
}
