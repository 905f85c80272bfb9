package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/needslist/pkg/application/dto"
	"github.com/vsinha/needslist/pkg/domain/entities"
)

// Snapshot file names inside a snapshot directory
const (
	InventoryFile    = "inventory.csv"
	InboundFile      = "inbound.csv"
	FulfillmentsFile = "fulfillments.csv"
)

var (
	inventoryHeader   = []string{"warehouse_id", "item_id", "available_qty", "reserved_qty", "minimum_threshold", "baseline_burn_rate", "manual_burn_rate", "unit_cost", "last_synced_at"}
	inboundHeader     = []string{"kind", "reference", "warehouse_id", "item_id", "quantity", "status"}
	fulfillmentHeader = []string{"warehouse_id", "item_id", "quantity", "status", "fulfilled_at"}
)

// Snapshot is the calculator input read from one directory
type Snapshot struct {
	Stock        []entities.StockRow
	Inbound      []entities.InboundRecord
	Fulfillments []entities.FulfillmentRecord
}

// ApplyTo copies the snapshot records into a calculation request
func (s *Snapshot) ApplyTo(req *dto.CalculationRequest) {
	req.Stock = s.Stock
	req.Inbound = s.Inbound
	req.Fulfillments = s.Fulfillments
}

// Loader handles loading stock snapshots from CSV files
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadSnapshot reads inventory.csv (required) plus inbound.csv and
// fulfillments.csv (optional) from dir
func (l *Loader) LoadSnapshot(dir string) (*Snapshot, error) {
	stock, err := l.LoadInventory(filepath.Join(dir, InventoryFile))
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{Stock: stock}

	inbound, err := l.LoadInbound(filepath.Join(dir, InboundFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		snapshot.Inbound = inbound
	}

	fulfillments, err := l.LoadFulfillments(filepath.Join(dir, FulfillmentsFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		snapshot.Fulfillments = fulfillments
	}

	return snapshot, nil
}

// LoadInventory loads stock rows from a CSV file
func (l *Loader) LoadInventory(filename string) ([]entities.StockRow, error) {
	records, err := readRecords(filename, "inventory", inventoryHeader, true)
	if err != nil {
		return nil, err
	}

	rows := make([]entities.StockRow, 0, len(records))
	for i, record := range records {
		row, err := parseStockRow(record)
		if err != nil {
			return nil, fmt.Errorf("inventory CSV row %d: %w", i+2, err)
		}
		rows = append(rows, *row)
	}
	return rows, nil
}

// LoadInbound loads inbound movements from a CSV file
func (l *Loader) LoadInbound(filename string) ([]entities.InboundRecord, error) {
	records, err := readRecords(filename, "inbound", inboundHeader, false)
	if err != nil {
		return nil, err
	}

	inbound := make([]entities.InboundRecord, 0, len(records))
	for i, record := range records {
		rec, err := parseInbound(record)
		if err != nil {
			return nil, fmt.Errorf("inbound CSV row %d: %w", i+2, err)
		}
		inbound = append(inbound, rec)
	}
	return inbound, nil
}

// LoadFulfillments loads fulfillment history from a CSV file
func (l *Loader) LoadFulfillments(filename string) ([]entities.FulfillmentRecord, error) {
	records, err := readRecords(filename, "fulfillments", fulfillmentHeader, false)
	if err != nil {
		return nil, err
	}

	fulfillments := make([]entities.FulfillmentRecord, 0, len(records))
	for i, record := range records {
		rec, err := parseFulfillment(record)
		if err != nil {
			return nil, fmt.Errorf("fulfillments CSV row %d: %w", i+2, err)
		}
		fulfillments = append(fulfillments, rec)
	}
	return fulfillments, nil
}

// readRecords opens filename, validates its header and returns the data rows
func readRecords(filename, name string, expectedHeader []string, requireRows bool) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", name, filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", name, err)
	}

	if len(records) == 0 || (requireRows && len(records) < 2) {
		return nil, fmt.Errorf("%s CSV must have header and at least one data row", name)
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return nil, fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", name, expectedHeader, header)
	}

	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", name, i+2, len(expectedHeader), len(record))
		}
	}
	return records[1:], nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func parseStockRow(record []string) (*entities.StockRow, error) {
	available, err := parseQuantity("available_qty", record[2])
	if err != nil {
		return nil, err
	}
	reserved, err := parseOptionalQuantity("reserved_qty", record[3])
	if err != nil {
		return nil, err
	}
	minimum, err := parseOptionalQuantity("minimum_threshold", record[4])
	if err != nil {
		return nil, err
	}
	synced, err := parseOptionalTime("last_synced_at", record[8])
	if err != nil {
		return nil, err
	}

	row, err := entities.NewStockRow(
		entities.WarehouseID(strings.TrimSpace(record[0])),
		entities.ItemID(strings.TrimSpace(record[1])),
		available,
		reserved,
		minimum,
		synced,
	)
	if err != nil {
		return nil, err
	}

	if row.BaselineBurnRate, err = parseOptionalDecimal("baseline_burn_rate", record[5]); err != nil {
		return nil, err
	}
	if row.ManualBurnRate, err = parseOptionalDecimal("manual_burn_rate", record[6]); err != nil {
		return nil, err
	}
	if row.UnitCost, err = parseOptionalDecimal("unit_cost", record[7]); err != nil {
		return nil, err
	}
	return row, nil
}

func parseInbound(record []string) (entities.InboundRecord, error) {
	kind, err := entities.ParseInboundKind(record[0])
	if err != nil {
		return entities.InboundRecord{}, err
	}
	quantity, err := parseQuantity("quantity", record[4])
	if err != nil {
		return entities.InboundRecord{}, err
	}

	rec := entities.InboundRecord{
		Kind:        kind,
		Reference:   strings.TrimSpace(record[1]),
		WarehouseID: entities.WarehouseID(strings.TrimSpace(record[2])),
		ItemID:      entities.ItemID(strings.TrimSpace(record[3])),
		Quantity:    quantity,
		Status:      strings.TrimSpace(record[5]),
	}
	if err := rec.Validate(); err != nil {
		return entities.InboundRecord{}, err
	}
	return rec, nil
}

func parseFulfillment(record []string) (entities.FulfillmentRecord, error) {
	quantity, err := parseQuantity("quantity", record[2])
	if err != nil {
		return entities.FulfillmentRecord{}, err
	}
	fulfilledAt, err := time.Parse(time.RFC3339, strings.TrimSpace(record[4]))
	if err != nil {
		return entities.FulfillmentRecord{}, fmt.Errorf("invalid fulfilled_at format: %s (expected RFC3339)", record[4])
	}

	rec := entities.FulfillmentRecord{
		WarehouseID: entities.WarehouseID(strings.TrimSpace(record[0])),
		ItemID:      entities.ItemID(strings.TrimSpace(record[1])),
		Quantity:    quantity,
		Status:      strings.TrimSpace(record[3]),
		FulfilledAt: fulfilledAt,
	}
	if err := rec.Validate(); err != nil {
		return entities.FulfillmentRecord{}, err
	}
	return rec, nil
}

func parseQuantity(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %s", field, s)
	}
	return d, nil
}

func parseOptionalQuantity(field, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return parseQuantity(field, s)
}

func parseOptionalDecimal(field, s string) (*decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := parseQuantity(field, s)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%s cannot be negative, got %s", field, d)
	}
	return &d, nil
}

func parseOptionalTime(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format: %s (expected RFC3339)", field, s)
	}
	return t, nil
}
