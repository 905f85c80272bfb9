package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vsinha/needslist/pkg/domain/entities"
)

// CalculationRequest is the calculator input contract
type CalculationRequest struct {
	EventID      entities.EventID
	WarehouseIDs []entities.WarehouseID
	Phase        entities.Phase
	AsOf         time.Time

	// ItemIDs restricts the calculation; empty means every item stocked at
	// a scope warehouse
	ItemIDs []entities.ItemID

	Stock        []entities.StockRow
	Inbound      []entities.InboundRecord
	Fulfillments []entities.FulfillmentRecord

	// Snapshot sync times; zero means the source does not report one
	InboundSyncedAt     time.Time
	FulfillmentSyncedAt time.Time
}

// Validate checks the request scope
func (r *CalculationRequest) Validate() error {
	if r.EventID == "" {
		return entities.NewValidationError("event_id", "cannot be empty")
	}
	if len(r.WarehouseIDs) == 0 {
		return entities.NewValidationError("warehouse_ids", "at least one warehouse is required")
	}
	seen := make(map[entities.WarehouseID]bool, len(r.WarehouseIDs))
	for _, w := range r.WarehouseIDs {
		if w == "" {
			return entities.NewValidationError("warehouse_ids", "warehouse id cannot be empty")
		}
		if seen[w] {
			return entities.NewValidationError("warehouse_ids", "duplicate warehouse "+string(w))
		}
		seen[w] = true
	}
	if r.AsOf.IsZero() {
		return entities.NewValidationError("as_of", "cannot be empty")
	}
	return nil
}

// Line is one calculated (warehouse, item) line with its allocation
type Line = entities.NeedsListItem

// CalculationResult is the calculator and allocator output
type CalculationResult struct {
	EventID        entities.EventID
	WarehouseIDs   []entities.WarehouseID
	Phase          entities.Phase
	AsOf           time.Time
	Parameters     entities.PhaseParameters
	Lines          []Line
	Warnings       []string
	EstimatedCost  decimal.Decimal
	SelectedMethod entities.Method
	Approval       *entities.ApprovalRequirement
}

// TotalGap sums the gap of every line
func (r *CalculationResult) TotalGap() decimal.Decimal {
	total := decimal.Zero
	for i := range r.Lines {
		total = total.Add(r.Lines[i].GapQty)
	}
	return total
}

// CountBySeverity tallies lines per severity
func (r *CalculationResult) CountBySeverity() map[entities.Severity]int {
	counts := make(map[entities.Severity]int)
	for i := range r.Lines {
		counts[r.Lines[i].Severity]++
	}
	return counts
}
