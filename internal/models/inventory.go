package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"BloodLink/pkg/errors"
	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/logger"
	"BloodLink/pkg/notification"
	"BloodLink/pkg/util"

	"github.com/spf13/cast"
	"go.uber.org/zap"
)

func (r *Repo) ListInventory() ([]flatstore.Row, error) {
	return r.store.Load(InventoryTable)
}

type InventoryForm struct {
	BloodGroup     string      `json:"blood_group"`
	Component      string      `json:"component"`
	BloodGroupID   interface{} `json:"blood_group_id"`
	ComponentID    interface{} `json:"component_id"`
	UnitsAvailable interface{} `json:"units_available"`
}

// UpdateInventory sets units_available on the row matching all four key
// fields.
func (r *Repo) UpdateInventory(ctx context.Context, f InventoryForm) (flatstore.Row, error) {
	key := flatstore.Row{
		"blood_group":    strings.TrimSpace(f.BloodGroup),
		"component":      strings.TrimSpace(f.Component),
		"blood_group_id": strings.TrimSpace(cast.ToString(f.BloodGroupID)),
		"component_id":   strings.TrimSpace(cast.ToString(f.ComponentID)),
	}
	for _, field := range InventoryTable.Key {
		if key[field] == "" {
			return nil, errors.Validation("%s is required", field)
		}
	}
	if f.UnitsAvailable == nil {
		return nil, errors.Validation("units_available is required")
	}
	units, err := util.ParseUnits(f.UnitsAvailable)
	if err != nil || units < 0 {
		return nil, errors.Validation("units_available must be a non-negative integer")
	}

	want := InventoryTable.KeyOf(key)
	var updated flatstore.Row
	err = r.store.Update(InventoryTable, func(rows []flatstore.Row) ([]flatstore.Row, error) {
		for i, row := range rows {
			if !strings.EqualFold(InventoryTable.KeyOf(row), want) {
				continue
			}
			rows[i]["units_available"] = strconv.Itoa(units)
			updated = rows[i].Clone()
			return rows, nil
		}
		return nil, errors.NotFound("inventory entry %s/%s not found", key["blood_group"], key["component"])
	})
	if err != nil {
		return nil, err
	}
	r.checkLowStock(ctx, updated["blood_group"], updated["component"], units)
	return updated, nil
}

// consume takes units out of the first row matching (bloodGroup, component),
// clamping at zero. It reports whether a row was found and what is left.
func (r *Repo) consume(ctx context.Context, bloodGroup, component string, units int) (bool, int) {
	if units < 0 {
		units = 0
	}
	found, left := false, 0
	err := r.store.Update(InventoryTable, func(rows []flatstore.Row) ([]flatstore.Row, error) {
		for i, row := range rows {
			if !equalFold(row["blood_group"], bloodGroup) || !equalFold(row["component"], component) {
				continue
			}
			left = Decrement(flatstore.IntOr(row, "units_available", 0), units)
			rows[i]["units_available"] = strconv.Itoa(left)
			found = true
			return rows, nil
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("decrement inventory",
			zap.String("blood_group", bloodGroup), zap.String("component", component), zap.Error(err))
		return false, 0
	}
	if !found {
		logger.Warn("no inventory row to decrement",
			zap.String("blood_group", bloodGroup), zap.String("component", component))
		return false, 0
	}
	r.checkLowStock(ctx, bloodGroup, component, left)
	return true, left
}

// Decrement subtracts used from available without going below zero.
func Decrement(available, used int) int {
	if used >= available {
		return 0
	}
	return available - used
}

func (r *Repo) checkLowStock(ctx context.Context, bloodGroup, component string, units int) {
	limit := r.threshold(component)
	if units >= limit {
		return
	}
	e := notification.Entry{
		Type:       notification.TypeLowStock,
		Message:    fmt.Sprintf("Low stock: %s (%s) has %d units left, below threshold %d", component, bloodGroup, units, limit),
		BloodGroup: bloodGroup,
		Component:  component,
	}
	r.notify(ctx, notification.ScopeLowStock, e, r.caps.LowStock)
	r.notify(ctx, notification.ScopeGlobal, e, r.caps.Global)
}

// LowStockCount counts inventory rows currently under their threshold.
func (r *Repo) LowStockCount() (int, error) {
	rows, err := r.store.Load(InventoryTable)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, row := range rows {
		if flatstore.IntOr(row, "units_available", 0) < r.threshold(row["component"]) {
			n++
		}
	}
	return n, nil
}
