package approval

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vsinha/needslist/pkg/domain/entities"
)

// Warning codes attached to a resolved requirement
const (
	WarnCostMissing = "approval_cost_missing"
)

// TierLabelTransfer is the label used when procurement tiers are bypassed
const TierLabelTransfer = "TRANSFER"

// DefaultTable is the table key used when a phase has no table of its own
const DefaultTable = "default"

// Tier is one approval band. MaxCost nil marks the open-ended top tier.
type Tier struct {
	Label   string           `yaml:"label"`
	MaxCost *decimal.Decimal `yaml:"max_cost"`
	Role    string           `yaml:"role"`
}

// Config holds the approval authority tables
type Config struct {
	TransferRole string            `yaml:"transfer_role"`
	RoleRanking  []string          `yaml:"role_ranking"` // lowest authority first
	Tables       map[string][]Tier `yaml:"tables"`       // keyed by phase name or "default"
}

func maxCost(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// DefaultConfig returns the baseline and emergency approval tables
func DefaultConfig() Config {
	return Config{
		TransferRole: "LOGISTICS_MANAGER",
		RoleRanking: []string{
			"LOGISTICS_OFFICER",
			"LOGISTICS_MANAGER",
			"SENIOR_DIRECTOR",
			"DEPUTY_DIRECTOR_GENERAL",
			"DIRECTOR_GENERAL",
		},
		Tables: map[string][]Tier{
			DefaultTable: {
				{Label: "TIER_1", MaxCost: maxCost("500000"), Role: "LOGISTICS_MANAGER"},
				{Label: "TIER_2", MaxCost: maxCost("2000000"), Role: "SENIOR_DIRECTOR"},
				{Label: "TIER_3", MaxCost: maxCost("10000000"), Role: "DEPUTY_DIRECTOR_GENERAL"},
				{Label: "TIER_4", Role: "DIRECTOR_GENERAL"},
			},
			string(entities.PhaseSurge): {
				{Label: "TIER_1", MaxCost: maxCost("1000000"), Role: "LOGISTICS_MANAGER"},
				{Label: "TIER_2", MaxCost: maxCost("5000000"), Role: "SENIOR_DIRECTOR"},
				{Label: "TIER_3", Role: "DIRECTOR_GENERAL"},
			},
		},
	}
}

// Validate checks that every table is non-empty, ascending and open-ended
// only at the top
func (c Config) Validate() error {
	if c.TransferRole == "" {
		return fmt.Errorf("approval: transfer role cannot be empty")
	}
	if _, ok := c.Tables[DefaultTable]; !ok {
		return fmt.Errorf("approval: a %q tier table is required", DefaultTable)
	}
	for name, tiers := range c.Tables {
		if len(tiers) == 0 {
			return fmt.Errorf("approval: table %s has no tiers", name)
		}
		for i, tier := range tiers {
			if tier.Label == "" || tier.Role == "" {
				return fmt.Errorf("approval: table %s tier %d needs a label and a role", name, i+1)
			}
			last := i == len(tiers)-1
			if tier.MaxCost == nil && !last {
				return fmt.Errorf("approval: table %s tier %s is open-ended but not the top tier", name, tier.Label)
			}
			if i > 0 && tier.MaxCost != nil && !tier.MaxCost.GreaterThan(*tiers[i-1].MaxCost) {
				return fmt.Errorf("approval: table %s thresholds must ascend (tier %s)", name, tier.Label)
			}
		}
	}
	return nil
}

// Input is what the resolver needs to pick an approver
type Input struct {
	Phase     entities.Phase
	Method    entities.Method
	Cost      decimal.Decimal
	CostKnown bool
}

// ApprovalService resolves the approver role and tier for a needs list
type ApprovalService struct {
	config Config
	logger zerolog.Logger
}

// NewApprovalService creates a resolver over the given tables
func NewApprovalService(config Config, logger zerolog.Logger) *ApprovalService {
	return &ApprovalService{
		config: config,
		logger: logger.With().Str("component", "approval").Logger(),
	}
}

// Resolve maps cost, method and phase to a required approver. Transfers
// bypass procurement tiers. Missing or invalid cost resolves one tier above
// what the known cost would reach.
func (s *ApprovalService) Resolve(in Input) entities.ApprovalRequirement {
	if in.Method == entities.MethodTransfer {
		return entities.ApprovalRequirement{
			Method: entities.MethodTransfer,
			Tier:   TierLabelTransfer,
			Role:   s.config.TransferRole,
			Cost:   decimal.Zero,
		}
	}

	tiers := s.tableFor(in.Phase)
	cost := in.Cost
	var warnings []string
	if cost.IsNegative() {
		cost = decimal.Zero
		in.CostKnown = false
	}

	idx := tierIndex(tiers, cost)
	if !in.CostKnown {
		if idx < len(tiers)-1 {
			idx++
		}
		warnings = append(warnings, WarnCostMissing)
		s.logger.Warn().
			Str("phase", string(in.Phase)).
			Str("known_cost", cost.String()).
			Str("tier", tiers[idx].Label).
			Msg("cost data incomplete, resolving to next higher approval tier")
	}

	return entities.ApprovalRequirement{
		Method:    in.Method,
		Tier:      tiers[idx].Label,
		TierIndex: idx,
		Role:      tiers[idx].Role,
		Cost:      cost,
		Warnings:  warnings,
	}
}

// ResolveForLines derives method and cost from allocated lines and resolves
func (s *ApprovalService) ResolveForLines(phase entities.Phase, lines []entities.NeedsListItem) entities.ApprovalRequirement {
	cost, known := EstimateCost(lines)
	return s.Resolve(Input{
		Phase:     phase,
		Method:    SelectMethod(lines),
		Cost:      cost,
		CostKnown: known,
	})
}

// Satisfies reports whether the actor holds the required role or any role
// ranked above it
func (s *ApprovalService) Satisfies(actor entities.Actor, req entities.ApprovalRequirement) bool {
	required := s.rank(req.Role)
	for _, role := range actor.Roles {
		if role == req.Role {
			return true
		}
		if required >= 0 {
			if r := s.rank(role); r >= required {
				return true
			}
		}
	}
	return false
}

func (s *ApprovalService) rank(role string) int {
	for i, r := range s.config.RoleRanking {
		if r == role {
			return i
		}
	}
	return -1
}

func (s *ApprovalService) tableFor(phase entities.Phase) []Tier {
	if tiers, ok := s.config.Tables[string(phase)]; ok && len(tiers) > 0 {
		return tiers
	}
	return s.config.Tables[DefaultTable]
}

// tierIndex returns the first tier whose ceiling covers cost
func tierIndex(tiers []Tier, cost decimal.Decimal) int {
	for i, tier := range tiers {
		if tier.MaxCost == nil || cost.LessThanOrEqual(*tier.MaxCost) {
			return i
		}
	}
	return len(tiers) - 1
}

// SelectMethod picks the highest horizon any line relies on
func SelectMethod(lines []entities.NeedsListItem) entities.Method {
	method := entities.MethodTransfer
	for i := range lines {
		switch {
		case lines[i].EffectiveProcurementQty().IsPositive():
			return entities.MethodProcurement
		case lines[i].HorizonBQty.IsPositive():
			method = entities.MethodDonation
		}
	}
	return method
}

// EstimateCost sums procurement cost; known is false when any line needing
// procurement has no usable unit cost
func EstimateCost(lines []entities.NeedsListItem) (decimal.Decimal, bool) {
	total := decimal.Zero
	known := true
	for i := range lines {
		cost, ok := lines[i].ProcurementCost()
		if !ok {
			known = false
			continue
		}
		total = total.Add(cost)
	}
	return total, known
}
