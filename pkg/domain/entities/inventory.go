package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InboundKind identifies the replenishment channel of an inbound record
type InboundKind string

const (
	InboundTransfer    InboundKind = "TRANSFER"
	InboundDonation    InboundKind = "DONATION"
	InboundProcurement InboundKind = "PROCUREMENT"
)

// ParseInboundKind parses an inbound kind case-insensitively
func ParseInboundKind(s string) (InboundKind, error) {
	switch InboundKind(strings.ToUpper(strings.TrimSpace(s))) {
	case InboundTransfer:
		return InboundTransfer, nil
	case InboundDonation:
		return InboundDonation, nil
	case InboundProcurement:
		return InboundProcurement, nil
	default:
		return "", fmt.Errorf("invalid inbound kind: %s (expected TRANSFER, DONATION or PROCUREMENT)", s)
	}
}

// StockRow is one warehouse's position in one item at snapshot time
type StockRow struct {
	WarehouseID      WarehouseID
	ItemID           ItemID
	AvailableQty     decimal.Decimal
	ReservedQty      decimal.Decimal
	MinimumThreshold decimal.Decimal
	BaselineBurnRate *decimal.Decimal // units/hour, nil when not configured
	ManualBurnRate   *decimal.Decimal // operator supplied rate, overrides history
	UnitCost         *decimal.Decimal
	LastSyncedAt     time.Time
}

// NewStockRow creates a validated StockRow
func NewStockRow(warehouseID WarehouseID, itemID ItemID, available, reserved, minimum decimal.Decimal, lastSynced time.Time) (*StockRow, error) {
	row := &StockRow{
		WarehouseID:      warehouseID,
		ItemID:           itemID,
		AvailableQty:     available,
		ReservedQty:      reserved,
		MinimumThreshold: minimum,
		LastSyncedAt:     lastSynced,
	}
	if err := row.Validate(); err != nil {
		return nil, err
	}
	return row, nil
}

// Validate checks the row for malformed ids or quantities
func (r *StockRow) Validate() error {
	if r.WarehouseID == "" {
		return fmt.Errorf("warehouse id cannot be empty")
	}
	if r.ItemID == "" {
		return fmt.Errorf("item id cannot be empty")
	}
	if r.AvailableQty.IsNegative() {
		return fmt.Errorf("available quantity cannot be negative, got %s", r.AvailableQty)
	}
	if r.ReservedQty.IsNegative() {
		return fmt.Errorf("reserved quantity cannot be negative, got %s", r.ReservedQty)
	}
	if r.MinimumThreshold.IsNegative() {
		return fmt.Errorf("minimum threshold cannot be negative, got %s", r.MinimumThreshold)
	}
	if r.BaselineBurnRate != nil && r.BaselineBurnRate.IsNegative() {
		return fmt.Errorf("baseline burn rate cannot be negative, got %s", r.BaselineBurnRate)
	}
	if r.ManualBurnRate != nil && r.ManualBurnRate.IsNegative() {
		return fmt.Errorf("manual burn rate cannot be negative, got %s", r.ManualBurnRate)
	}
	return nil
}

// TransferSurplus is the quantity the warehouse can give away without
// dropping below its own minimum threshold
func (r *StockRow) TransferSurplus() decimal.Decimal {
	return ClipZero(r.AvailableQty.Sub(r.MinimumThreshold))
}

// InboundRecord is a replenishment movement headed to a warehouse
type InboundRecord struct {
	Kind        InboundKind
	Reference   string
	WarehouseID WarehouseID // destination, empty for un-targeted donations
	ItemID      ItemID
	Quantity    decimal.Decimal
	Status      string
}

// Validate checks the record for malformed ids or quantities
func (r *InboundRecord) Validate() error {
	if r.ItemID == "" {
		return fmt.Errorf("item id cannot be empty")
	}
	if r.Quantity.IsNegative() {
		return fmt.Errorf("quantity cannot be negative, got %s", r.Quantity)
	}
	if r.Kind != InboundDonation && r.WarehouseID == "" {
		return fmt.Errorf("%s record %s has no destination warehouse", r.Kind, r.Reference)
	}
	return nil
}

// FulfillmentRecord is a historical issue of stock against a relief request
type FulfillmentRecord struct {
	WarehouseID WarehouseID
	ItemID      ItemID
	Quantity    decimal.Decimal
	Status      string
	FulfilledAt time.Time
}

// Validate checks the record for malformed ids or quantities
func (r *FulfillmentRecord) Validate() error {
	if r.WarehouseID == "" {
		return fmt.Errorf("warehouse id cannot be empty")
	}
	if r.ItemID == "" {
		return fmt.Errorf("item id cannot be empty")
	}
	if r.Quantity.IsNegative() {
		return fmt.Errorf("quantity cannot be negative, got %s", r.Quantity)
	}
	if r.FulfilledAt.IsZero() {
		return fmt.Errorf("fulfilled_at cannot be empty")
	}
	return nil
}
