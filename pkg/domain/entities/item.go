package entities

import "github.com/shopspring/decimal"

// ItemID identifies a relief supply item
type ItemID string

// WarehouseID identifies a warehouse or distribution point
type WarehouseID string

// EventID identifies the disaster event a needs list is raised against
type EventID string

// NeedsListID identifies a needs list
type NeedsListID string

// CeilUnits rounds a quantity up to whole units
func CeilUnits(q decimal.Decimal) decimal.Decimal {
	return q.Ceil()
}

// ClipZero returns q, or zero when q is negative
func ClipZero(q decimal.Decimal) decimal.Decimal {
	if q.IsNegative() {
		return decimal.Zero
	}
	return q
}
