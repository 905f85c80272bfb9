package csv

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/needslist/pkg/application/dto"
	"github.com/vsinha/needslist/pkg/domain/entities"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoader_LoadSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, InventoryFile, `warehouse_id,item_id,available_qty,reserved_qty,minimum_threshold,baseline_burn_rate,manual_burn_rate,unit_cost,last_synced_at
WH-A,WATER,200,10,50,,,2.50,2025-09-01T11:00:00Z
WH-B,WATER,900,,100,12.5,,,2025-09-01T11:30:00Z
`)
	writeFile(t, dir, InboundFile, `kind,reference,warehouse_id,item_id,quantity,status
TRANSFER,T-1,WH-A,WATER,300,DISPATCHED
DONATION,D-1,,WATER,1000,CONFIRMED
`)
	writeFile(t, dir, FulfillmentsFile, `warehouse_id,item_id,quantity,status,fulfilled_at
WH-A,WATER,300,COMPLETED,2025-09-01T08:00:00Z
`)

	snapshot, err := NewLoader().LoadSnapshot(dir)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(snapshot.Stock) != 2 {
		t.Fatalf("Expected 2 stock rows, got %d", len(snapshot.Stock))
	}
	row := snapshot.Stock[0]
	if !row.AvailableQty.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected available 200, got %s", row.AvailableQty)
	}
	if row.UnitCost == nil || !row.UnitCost.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("Expected unit cost 2.5, got %v", row.UnitCost)
	}
	if row.BaselineBurnRate != nil {
		t.Errorf("Expected no baseline burn rate, got %v", row.BaselineBurnRate)
	}
	if !row.LastSyncedAt.Equal(time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected last sync 11:00Z, got %v", row.LastSyncedAt)
	}
	if !snapshot.Stock[1].ReservedQty.IsZero() {
		t.Errorf("Expected blank reserved to default to 0, got %s", snapshot.Stock[1].ReservedQty)
	}

	if len(snapshot.Inbound) != 2 {
		t.Fatalf("Expected 2 inbound records, got %d", len(snapshot.Inbound))
	}
	if snapshot.Inbound[1].Kind != entities.InboundDonation || snapshot.Inbound[1].WarehouseID != "" {
		t.Errorf("Expected un-targeted donation, got %+v", snapshot.Inbound[1])
	}
	if len(snapshot.Fulfillments) != 1 {
		t.Fatalf("Expected 1 fulfillment, got %d", len(snapshot.Fulfillments))
	}

	var req dto.CalculationRequest
	snapshot.ApplyTo(&req)
	if len(req.Stock) != 2 || len(req.Inbound) != 2 || len(req.Fulfillments) != 1 {
		t.Errorf("Expected snapshot copied into request, got %d/%d/%d", len(req.Stock), len(req.Inbound), len(req.Fulfillments))
	}
}

func TestLoader_LoadSnapshot_OptionalFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, InventoryFile, `warehouse_id,item_id,available_qty,reserved_qty,minimum_threshold,baseline_burn_rate,manual_burn_rate,unit_cost,last_synced_at
WH-A,WATER,200,0,0,,,,
`)

	snapshot, err := NewLoader().LoadSnapshot(dir)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(snapshot.Inbound) != 0 || len(snapshot.Fulfillments) != 0 {
		t.Errorf("Expected no inbound or fulfillments, got %d/%d", len(snapshot.Inbound), len(snapshot.Fulfillments))
	}
	if !snapshot.Stock[0].LastSyncedAt.IsZero() {
		t.Errorf("Expected zero sync time for blank column")
	}

	if _, err := NewLoader().LoadSnapshot(t.TempDir()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected missing inventory to fail with ErrNotExist, got %v", err)
	}
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		load    func(l *Loader, path string) error
		wantErr string
	}{
		{
			name:    "inventory header mismatch",
			file:    InventoryFile,
			content: "warehouse,item,qty\nWH-A,WATER,1\n",
			load:    func(l *Loader, p string) error { _, err := l.LoadInventory(p); return err },
			wantErr: "header mismatch",
		},
		{
			name:    "inventory header only",
			file:    InventoryFile,
			content: strings.Join(inventoryHeader, ",") + "\n",
			load:    func(l *Loader, p string) error { _, err := l.LoadInventory(p); return err },
			wantErr: "at least one data row",
		},
		{
			name:    "negative available",
			file:    InventoryFile,
			content: strings.Join(inventoryHeader, ",") + "\nWH-A,WATER,-5,0,0,,,,\n",
			load:    func(l *Loader, p string) error { _, err := l.LoadInventory(p); return err },
			wantErr: "row 2",
		},
		{
			name:    "bad quantity",
			file:    InboundFile,
			content: strings.Join(inboundHeader, ",") + "\nTRANSFER,T-1,WH-A,WATER,lots,DISPATCHED\n",
			load:    func(l *Loader, p string) error { _, err := l.LoadInbound(p); return err },
			wantErr: "invalid quantity",
		},
		{
			name:    "unknown kind",
			file:    InboundFile,
			content: strings.Join(inboundHeader, ",") + "\nGIFT,G-1,WH-A,WATER,5,SENT\n",
			load:    func(l *Loader, p string) error { _, err := l.LoadInbound(p); return err },
			wantErr: "row 2",
		},
		{
			name:    "bad timestamp",
			file:    FulfillmentsFile,
			content: strings.Join(fulfillmentHeader, ",") + "\nWH-A,WATER,5,COMPLETED,yesterday\n",
			load:    func(l *Loader, p string) error { _, err := l.LoadFulfillments(p); return err },
			wantErr: "expected RFC3339",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			err := tt.load(NewLoader(), path)
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
