package actions

import (
	"context"
	"fmt"

	"minepilot.ai/internal/fault"
)

const craftingStation = "crafting_table"

// CraftItem crafts from the inventory grid when possible, otherwise walks to
// the nearest crafting table and tries again there.
func (f *Facade) CraftItem(ctx context.Context, item string, count int) (string, error) {
	if count <= 0 {
		count = 1
	}
	recipes, err := f.h.Recipes(ctx, item, count, nil)
	if err != nil {
		return "", err
	}
	if len(recipes) > 0 {
		if err := f.h.Craft(ctx, recipes[0], count, nil); err != nil {
			return "", err
		}
		return fmt.Sprintf("Crafted %d %s", count, item), nil
	}

	station, ok, err := f.h.FindBlock(ctx, craftingStation, f.cfg.StationRadius)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fault.New(fault.CodeNoStationNearby,
			"%s needs a %s and none is within %g blocks", item, craftingStation, f.cfg.StationRadius)
	}
	if err := f.approach(ctx, station, f.cfg.Reach); err != nil {
		return "", err
	}
	recipes, err = f.h.Recipes(ctx, item, count, &station)
	if err != nil {
		return "", err
	}
	if len(recipes) == 0 {
		return "", fault.New(fault.CodeNoRecipe,
			"no recipe for %d %s (unknown item or missing materials)", count, item)
	}
	if err := f.h.Craft(ctx, recipes[0], count, &station); err != nil {
		return "", err
	}
	return fmt.Sprintf("Crafted %d %s at %s", count, item, craftingStation), nil
}
