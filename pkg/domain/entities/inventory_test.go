package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestStockRow_Validation(t *testing.T) {
	synced := time.Now()

	validRow, err := NewStockRow("WH_KINGSTON", "WATER_5L", decimal.NewFromInt(500), decimal.NewFromInt(20), decimal.NewFromInt(100), synced)
	if err != nil {
		t.Fatalf("Expected valid stock row creation to succeed: %v", err)
	}
	if !validRow.AvailableQty.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected available 500, got %s", validRow.AvailableQty)
	}

	testCases := []struct {
		name        string
		warehouse   WarehouseID
		item        ItemID
		available   int64
		reserved    int64
		minimum     int64
		expectError string
	}{
		{"empty warehouse", "", "WATER_5L", 10, 0, 0, "warehouse id cannot be empty"},
		{"empty item", "WH_KINGSTON", "", 10, 0, 0, "item id cannot be empty"},
		{"negative available", "WH_KINGSTON", "WATER_5L", -5, 0, 0, "available quantity cannot be negative, got -5"},
		{"negative reserved", "WH_KINGSTON", "WATER_5L", 5, -1, 0, "reserved quantity cannot be negative, got -1"},
		{"negative minimum", "WH_KINGSTON", "WATER_5L", 5, 0, -2, "minimum threshold cannot be negative, got -2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewStockRow(tc.warehouse, tc.item,
				decimal.NewFromInt(tc.available), decimal.NewFromInt(tc.reserved), decimal.NewFromInt(tc.minimum), synced)
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestStockRow_TransferSurplus(t *testing.T) {
	testCases := []struct {
		name      string
		available int64
		minimum   int64
		expected  int64
	}{
		{"above threshold", 900, 100, 800},
		{"at threshold", 100, 100, 0},
		{"below threshold never negative", 40, 100, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			row := StockRow{AvailableQty: decimal.NewFromInt(tc.available), MinimumThreshold: decimal.NewFromInt(tc.minimum)}
			if got := row.TransferSurplus(); !got.Equal(decimal.NewFromInt(tc.expected)) {
				t.Errorf("Expected surplus %d, got %s", tc.expected, got)
			}
		})
	}
}

func TestInboundRecord_Validation(t *testing.T) {
	donation := InboundRecord{Kind: InboundDonation, ItemID: "TARP", Quantity: decimal.NewFromInt(10), Status: "CONFIRMED"}
	if err := donation.Validate(); err != nil {
		t.Errorf("Expected un-targeted donation to be valid, got %v", err)
	}

	transfer := InboundRecord{Kind: InboundTransfer, Reference: "TR-1", ItemID: "TARP", Quantity: decimal.NewFromInt(10)}
	if err := transfer.Validate(); err == nil {
		t.Error("Expected transfer without destination to be rejected")
	}

	negative := InboundRecord{Kind: InboundProcurement, WarehouseID: "WH", ItemID: "TARP", Quantity: decimal.NewFromInt(-1)}
	if err := negative.Validate(); err == nil {
		t.Error("Expected negative quantity to be rejected")
	}
}

func TestParseInboundKind(t *testing.T) {
	kind, err := ParseInboundKind(" donation ")
	if err != nil {
		t.Fatalf("Expected donation to parse: %v", err)
	}
	if kind != InboundDonation {
		t.Errorf("Expected %s, got %s", InboundDonation, kind)
	}
	if _, err := ParseInboundKind("gift"); err == nil {
		t.Error("Expected unknown kind to fail")
	}
}
