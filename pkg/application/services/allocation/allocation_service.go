package allocation

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vsinha/needslist/pkg/application/dto"
	"github.com/vsinha/needslist/pkg/domain/entities"
)

// Summary reports how much of the total gap each horizon covered
type Summary struct {
	TotalGap     decimal.Decimal
	HorizonA     decimal.Decimal
	HorizonB     decimal.Decimal
	HorizonC     decimal.Decimal
	LinesWithGap int
}

// CoverageRatio is the share of the gap covered without procurement
func (s Summary) CoverageRatio() float64 {
	if s.TotalGap.IsZero() {
		return 0.0
	}
	ratio, _ := s.HorizonA.Add(s.HorizonB).Div(s.TotalGap).Float64()
	return ratio
}

// AllocatorService waterfalls each line's gap across transfers (A),
// donations (B) and procurement (C)
type AllocatorService struct {
	policy entities.InboundPolicy
	logger zerolog.Logger
}

// NewAllocatorService creates an allocator that reads the donation pipeline
// through the given inbound policy
func NewAllocatorService(policy entities.InboundPolicy, logger zerolog.Logger) *AllocatorService {
	return &AllocatorService{
		policy: policy,
		logger: logger.With().Str("component", "allocator").Logger(),
	}
}

// Allocate fills the horizon fields of every line in result. Pools are
// shared across lines, so lines are served in urgency order.
func (s *AllocatorService) Allocate(ctx context.Context, result *dto.CalculationResult, req *dto.CalculationRequest) (Summary, error) {
	transfers := s.buildTransferPool(result, req)
	donations := s.buildDonationPool(req)

	summary := Summary{TotalGap: decimal.Zero, HorizonA: decimal.Zero, HorizonB: decimal.Zero, HorizonC: decimal.Zero}
	for _, idx := range priorityOrder(result.Lines) {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		line := &result.Lines[idx]
		if !line.GapQty.IsPositive() {
			continue
		}
		s.allocateLine(line, transfers, donations)
		if err := VerifyLine(line); err != nil {
			return Summary{}, err
		}

		summary.LinesWithGap++
		summary.TotalGap = summary.TotalGap.Add(line.GapQty)
		summary.HorizonA = summary.HorizonA.Add(line.HorizonAQty)
		summary.HorizonB = summary.HorizonB.Add(line.HorizonBQty)
		summary.HorizonC = summary.HorizonC.Add(line.HorizonCQty)
	}

	s.logger.Debug().
		Str("event_id", string(result.EventID)).
		Int("lines_with_gap", summary.LinesWithGap).
		Str("total_gap", summary.TotalGap.String()).
		Str("horizon_a", summary.HorizonA.String()).
		Str("horizon_b", summary.HorizonB.String()).
		Str("horizon_c", summary.HorizonC.String()).
		Int("transfer_sources", transfers.Size()).
		Str("transfer_consumed", transfers.GetTotalConsumed().String()).
		Str("transfer_remaining", transfers.GetTotalRemaining().String()).
		Int("donation_sources", donations.Size()).
		Str("donation_consumed", donations.GetTotalConsumed().String()).
		Str("donation_remaining", donations.GetTotalRemaining().String()).
		Msg("allocated gaps")

	return summary, nil
}

func (s *AllocatorService) allocateLine(line *entities.NeedsListItem, transfers, donations SupplyPool) {
	remaining := line.GapQty
	line.HorizonASources = nil

	// Horizon A: other warehouses' surplus above their minimum threshold
	line.HorizonAQty = decimal.Zero
	for _, source := range transfers.Sources(line.ItemID) {
		if !remaining.IsPositive() {
			break
		}
		if source == line.WarehouseID {
			continue
		}
		taken := transfers.Take(line.ItemID, source, remaining)
		if !taken.IsPositive() {
			continue
		}
		line.HorizonASources = append(line.HorizonASources, entities.TransferLeg{SourceWarehouseID: source, Quantity: taken})
		line.HorizonAQty = line.HorizonAQty.Add(taken)
		remaining = remaining.Sub(taken)
	}
	line.ResidualAfterA = remaining

	// Horizon B: confirmed donation pipeline, targeted first
	line.HorizonBQty = decimal.Zero
	for _, destination := range []entities.WarehouseID{line.WarehouseID, ""} {
		taken := donations.Take(line.ItemID, destination, remaining)
		line.HorizonBQty = line.HorizonBQty.Add(taken)
		remaining = remaining.Sub(taken)
	}
	line.ResidualAfterB = remaining

	// Horizon C: whatever is left goes to procurement
	line.HorizonCQty = remaining
}

// buildTransferPool registers the surplus of every warehouse that has no gap
// of its own for the item
func (s *AllocatorService) buildTransferPool(result *dto.CalculationResult, req *dto.CalculationRequest) SupplyPool {
	short := make(map[entities.ScopeKey]bool)
	for i := range result.Lines {
		if result.Lines[i].GapQty.IsPositive() {
			short[result.Lines[i].Key()] = true
		}
	}

	pool := NewSupplyPool()
	seen := make(map[entities.ScopeKey]bool)
	for i := range req.Stock {
		row := &req.Stock[i]
		if row.Validate() != nil {
			continue
		}
		key := entities.ScopeKey{WarehouseID: row.WarehouseID, ItemID: row.ItemID}
		if short[key] || seen[key] {
			continue
		}
		seen[key] = true
		pool.Add(row.ItemID, row.WarehouseID, row.TransferSurplus())
	}
	return pool
}

func (s *AllocatorService) buildDonationPool(req *dto.CalculationRequest) SupplyPool {
	pool := NewSupplyPool()
	for i := range req.Inbound {
		rec := req.Inbound[i]
		if rec.Validate() != nil || !s.policy.InDonationPipeline(rec) {
			continue
		}
		pool.Add(rec.ItemID, rec.WarehouseID, rec.Quantity)
	}
	return pool
}

// VerifyLine checks that the horizons add up to the gap exactly and that
// each residual is consistent with the horizon before it
func VerifyLine(line *entities.NeedsListItem) error {
	sum := line.HorizonAQty.Add(line.HorizonBQty).Add(line.HorizonCQty)
	if !sum.Equal(line.GapQty) {
		return fmt.Errorf("allocation for %s@%s does not match gap: A+B+C=%s, gap=%s",
			line.ItemID, line.WarehouseID, sum, line.GapQty)
	}
	if !line.GapQty.Sub(line.HorizonAQty).Equal(line.ResidualAfterA) {
		return fmt.Errorf("allocation for %s@%s has inconsistent residual after A", line.ItemID, line.WarehouseID)
	}
	if !line.ResidualAfterA.Sub(line.HorizonBQty).Equal(line.ResidualAfterB) {
		return fmt.Errorf("allocation for %s@%s has inconsistent residual after B", line.ItemID, line.WarehouseID)
	}
	return nil
}

// priorityOrder returns line indices most urgent first
func priorityOrder(lines []entities.NeedsListItem) []int {
	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		la, lb := &lines[order[a]], &lines[order[b]]
		if la.Severity != lb.Severity {
			return la.Severity < lb.Severity
		}
		switch {
		case la.TimeToStockout != nil && lb.TimeToStockout == nil:
			return true
		case la.TimeToStockout == nil && lb.TimeToStockout != nil:
			return false
		case la.TimeToStockout != nil && !la.TimeToStockout.Equal(*lb.TimeToStockout):
			return la.TimeToStockout.LessThan(*lb.TimeToStockout)
		}
		if la.WarehouseID != lb.WarehouseID {
			return la.WarehouseID < lb.WarehouseID
		}
		return la.ItemID < lb.ItemID
	})
	return order
}
