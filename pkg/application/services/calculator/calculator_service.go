package calculator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vsinha/needslist/pkg/application/dto"
	"github.com/vsinha/needslist/pkg/domain/entities"
)

// Item-level warning codes
const (
	WarnBurnRateEstimated = "burn_rate_estimated"
	WarnBurnRateMissing   = "burn_rate_missing"
	WarnNoStockRecord     = "no_stock_record"
	WarnStaleData         = "stale_data"
)

const (
	burnRatePlaces = 4
	hoursPlaces    = 2
)

// Config holds the tables the calculator reads
type Config struct {
	Phases    entities.PhaseTable
	Freshness entities.FreshnessThresholds
	Inbound   entities.InboundPolicy
}

// DefaultConfig returns the standard phase, freshness and inbound tables
func DefaultConfig() Config {
	return Config{
		Phases:    entities.DefaultPhaseTable(),
		Freshness: entities.DefaultFreshnessThresholds(),
		Inbound:   entities.DefaultInboundPolicy(),
	}
}

// CalculatorService computes burn rate, required quantity, gap and severity
// per (warehouse, item). It holds no state between calls.
type CalculatorService struct {
	config Config
	logger zerolog.Logger
}

// NewCalculatorService creates a calculator with the given tables
func NewCalculatorService(config Config, logger zerolog.Logger) *CalculatorService {
	return &CalculatorService{
		config: config,
		logger: logger.With().Str("component", "calculator").Logger(),
	}
}

// Config returns the tables the service was built with
func (s *CalculatorService) Config() Config {
	return s.config
}

// snapshot indexes the request inputs by scope key
type snapshot struct {
	stock     map[entities.ScopeKey]*entities.StockRow
	inbound   map[entities.ScopeKey]decimal.Decimal
	fulfilled map[entities.ScopeKey]decimal.Decimal
	warnings  []string
}

// Calculate produces one line per (scope warehouse, item) with its gap. A
// malformed input row is skipped with a warning; it never aborts the rest.
func (s *CalculatorService) Calculate(ctx context.Context, req *dto.CalculationRequest) (*dto.CalculationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	params, err := s.config.Phases.Lookup(req.Phase)
	if err != nil {
		return nil, err
	}

	snap := s.index(req, params)

	result := &dto.CalculationResult{
		EventID:      req.EventID,
		WarehouseIDs: append([]entities.WarehouseID(nil), req.WarehouseIDs...),
		Phase:        req.Phase,
		AsOf:         req.AsOf,
		Parameters:   params,
		Warnings:     snap.warnings,
	}

	for _, key := range s.scopeKeys(req, snap) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := s.calculateLine(key, req, snap, params)
		for _, w := range line.Warnings {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s@%s: %s", key.ItemID, key.WarehouseID, w))
		}
		result.Lines = append(result.Lines, line)
	}

	s.logger.Debug().
		Str("event_id", string(req.EventID)).
		Str("phase", string(req.Phase)).
		Int("lines", len(result.Lines)).
		Int("warnings", len(result.Warnings)).
		Msg("calculated needs")

	return result, nil
}

// index validates and buckets the snapshot rows
func (s *CalculatorService) index(req *dto.CalculationRequest, params entities.PhaseParameters) *snapshot {
	snap := &snapshot{
		stock:     make(map[entities.ScopeKey]*entities.StockRow),
		inbound:   make(map[entities.ScopeKey]decimal.Decimal),
		fulfilled: make(map[entities.ScopeKey]decimal.Decimal),
	}

	for i := range req.Stock {
		row := &req.Stock[i]
		if err := row.Validate(); err != nil {
			snap.warnings = append(snap.warnings, fmt.Sprintf("stock row %d skipped: %v", i+1, err))
			continue
		}
		key := entities.ScopeKey{WarehouseID: row.WarehouseID, ItemID: row.ItemID}
		if _, dup := snap.stock[key]; dup {
			snap.warnings = append(snap.warnings, fmt.Sprintf("stock row %d skipped: duplicate %s@%s", i+1, row.ItemID, row.WarehouseID))
			continue
		}
		snap.stock[key] = row
	}

	for i := range req.Inbound {
		rec := req.Inbound[i]
		if err := rec.Validate(); err != nil {
			snap.warnings = append(snap.warnings, fmt.Sprintf("inbound record %d skipped: %v", i+1, err))
			continue
		}
		if !s.config.Inbound.CountsAsInbound(rec) {
			continue
		}
		key := entities.ScopeKey{WarehouseID: rec.WarehouseID, ItemID: rec.ItemID}
		snap.inbound[key] = snap.inbound[key].Add(rec.Quantity)
	}

	windowStart := req.AsOf.Add(-hoursDuration(params.DemandWindowHours))
	for i := range req.Fulfillments {
		rec := req.Fulfillments[i]
		if err := rec.Validate(); err != nil {
			snap.warnings = append(snap.warnings, fmt.Sprintf("fulfillment record %d skipped: %v", i+1, err))
			continue
		}
		if !s.config.Inbound.QualifiesAsDemand(rec) {
			continue
		}
		if !rec.FulfilledAt.After(windowStart) || rec.FulfilledAt.After(req.AsOf) {
			continue
		}
		key := entities.ScopeKey{WarehouseID: rec.WarehouseID, ItemID: rec.ItemID}
		snap.fulfilled[key] = snap.fulfilled[key].Add(rec.Quantity)
	}

	return snap
}

// scopeKeys lists the (warehouse, item) cells to calculate in a stable order
func (s *CalculatorService) scopeKeys(req *dto.CalculationRequest, snap *snapshot) []entities.ScopeKey {
	var keys []entities.ScopeKey
	for _, wh := range req.WarehouseIDs {
		if len(req.ItemIDs) > 0 {
			for _, item := range req.ItemIDs {
				keys = append(keys, entities.ScopeKey{WarehouseID: wh, ItemID: item})
			}
			continue
		}
		var stocked []entities.ScopeKey
		for key := range snap.stock {
			if key.WarehouseID == wh {
				stocked = append(stocked, key)
			}
		}
		sort.Slice(stocked, func(i, j int) bool { return stocked[i].ItemID < stocked[j].ItemID })
		keys = append(keys, stocked...)
	}
	return keys
}

func (s *CalculatorService) calculateLine(
	key entities.ScopeKey,
	req *dto.CalculationRequest,
	snap *snapshot,
	params entities.PhaseParameters,
) entities.NeedsListItem {
	line := entities.NeedsListItem{
		ItemID:            key.ItemID,
		WarehouseID:       key.WarehouseID,
		AvailableQty:      decimal.Zero,
		ReservedQty:       decimal.Zero,
		InboundQty:        snap.inbound[key],
		FulfillmentStatus: entities.FulfillmentPending,
	}

	row, hasRow := snap.stock[key]
	var lastSync time.Time
	if hasRow {
		lastSync = row.LastSyncedAt
		line.AvailableQty = row.AvailableQty
		line.ReservedQty = row.ReservedQty
		if row.UnitCost != nil {
			cost := *row.UnitCost
			line.UnitCost = &cost
		}
	} else {
		line.Warnings = append(line.Warnings, WarnNoStockRecord)
	}

	line.Freshness = s.freshness(lastSync, req)
	if line.Freshness == entities.FreshnessLow {
		line.Warnings = append(line.Warnings, WarnStaleData)
	}

	s.applyBurnRate(&line, row, snap.fulfilled[key], params)

	if line.BurnRate.IsPositive() {
		tts := line.AvailableQty.DivRound(line.BurnRate, hoursPlaces)
		line.TimeToStockout = &tts
	}
	line.Severity = entities.SeverityFor(line.TimeToStockout)

	planning := decimal.NewFromInt(int64(params.PlanningWindowHours))
	line.RequiredQty = entities.CeilUnits(line.BurnRate.Mul(planning).Mul(params.SafetyFactor))

	raw := line.RequiredQty.Sub(line.AvailableQty.Add(line.InboundQty))
	if raw.IsPositive() {
		line.GapQty = entities.CeilUnits(raw)
		line.SurplusQty = decimal.Zero
	} else {
		line.GapQty = decimal.Zero
		line.SurplusQty = raw.Neg()
	}
	line.ResidualAfterA = line.GapQty
	line.ResidualAfterB = line.GapQty
	line.HorizonAQty = decimal.Zero
	line.HorizonBQty = decimal.Zero
	line.HorizonCQty = decimal.Zero
	line.FulfilledQty = decimal.Zero

	return line
}

// applyBurnRate sets the rate and its source tag. Fresh data with no
// qualifying fulfillments means no current demand; stale data with no
// history falls back to the configured baseline.
func (s *CalculatorService) applyBurnRate(line *entities.NeedsListItem, row *entities.StockRow, fulfilled decimal.Decimal, params entities.PhaseParameters) {
	if row != nil && row.ManualBurnRate != nil {
		line.BurnRate = row.ManualBurnRate.Round(burnRatePlaces)
		line.BurnRateSource = entities.BurnRateManual
		return
	}

	if fulfilled.IsPositive() {
		window := decimal.NewFromInt(int64(params.DemandWindowHours))
		line.BurnRate = fulfilled.DivRound(window, burnRatePlaces)
		line.BurnRateSource = entities.BurnRateCalculated
		return
	}

	if !line.Freshness.IsStale() {
		line.BurnRate = decimal.Zero
		line.BurnRateSource = entities.BurnRateCalculated
		line.NoCurrentDemand = true
		return
	}

	line.BurnRateSource = entities.BurnRateEstimated
	if row != nil && row.BaselineBurnRate != nil {
		line.BurnRate = row.BaselineBurnRate.Round(burnRatePlaces)
		line.Warnings = append(line.Warnings, WarnBurnRateEstimated)
		s.logger.Debug().
			Str("item_id", string(line.ItemID)).
			Str("warehouse_id", string(line.WarehouseID)).
			Str("freshness", string(line.Freshness)).
			Msg("falling back to baseline burn rate")
		return
	}
	line.BurnRate = decimal.Zero
	line.Warnings = append(line.Warnings, WarnBurnRateMissing)
	s.logger.Warn().
		Str("item_id", string(line.ItemID)).
		Str("warehouse_id", string(line.WarehouseID)).
		Msg("no demand history and no baseline burn rate")
}

// freshness takes the most stale of the contributing sources
func (s *CalculatorService) freshness(lastSync time.Time, req *dto.CalculationRequest) entities.Freshness {
	classes := []entities.Freshness{s.config.Freshness.Classify(lastSync, req.AsOf)}
	if !req.InboundSyncedAt.IsZero() {
		classes = append(classes, s.config.Freshness.Classify(req.InboundSyncedAt, req.AsOf))
	}
	if !req.FulfillmentSyncedAt.IsZero() {
		classes = append(classes, s.config.Freshness.Classify(req.FulfillmentSyncedAt, req.AsOf))
	}
	return entities.WorstFreshness(classes...)
}

func hoursDuration(hours int) time.Duration {
	return time.Duration(hours) * time.Hour
}
