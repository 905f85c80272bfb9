package entities

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Phase is the operational phase of a disaster event
type Phase string

const (
	PhaseSurge      Phase = "SURGE"
	PhaseStabilized Phase = "STABILIZED"
	PhaseBaseline   Phase = "BASELINE"
)

// ParsePhase parses a phase name case-insensitively
func ParsePhase(s string) (Phase, error) {
	switch Phase(strings.ToUpper(strings.TrimSpace(s))) {
	case PhaseSurge:
		return PhaseSurge, nil
	case PhaseStabilized:
		return PhaseStabilized, nil
	case PhaseBaseline:
		return PhaseBaseline, nil
	default:
		return "", NewValidationError("phase", fmt.Sprintf("unknown phase %q (expected SURGE, STABILIZED or BASELINE)", s))
	}
}

// PhaseParameters holds the planning windows for a phase
type PhaseParameters struct {
	DemandWindowHours   int             `yaml:"demand_window_hours" json:"demand_window_hours"`
	PlanningWindowHours int             `yaml:"planning_window_hours" json:"planning_window_hours"`
	SafetyFactor        decimal.Decimal `yaml:"safety_factor" json:"safety_factor"`
}

// DefaultSafetyFactor applies when a phase does not configure its own
var DefaultSafetyFactor = decimal.RequireFromString("1.25")

// PhaseTable maps phases to their parameters
type PhaseTable map[Phase]PhaseParameters

// DefaultPhaseTable returns the standard phase parameters
func DefaultPhaseTable() PhaseTable {
	return PhaseTable{
		PhaseSurge:      {DemandWindowHours: 6, PlanningWindowHours: 72, SafetyFactor: DefaultSafetyFactor},
		PhaseStabilized: {DemandWindowHours: 72, PlanningWindowHours: 168, SafetyFactor: DefaultSafetyFactor},
		PhaseBaseline:   {DemandWindowHours: 720, PlanningWindowHours: 720, SafetyFactor: DefaultSafetyFactor},
	}
}

// Lookup returns the parameters for a phase
func (t PhaseTable) Lookup(phase Phase) (PhaseParameters, error) {
	params, ok := t[phase]
	if !ok {
		return PhaseParameters{}, NewValidationError("phase", fmt.Sprintf("no parameters configured for phase %q", phase))
	}
	if params.SafetyFactor.IsZero() {
		params.SafetyFactor = DefaultSafetyFactor
	}
	return params, nil
}

// Validate checks that every configured window is positive
func (t PhaseTable) Validate() error {
	for phase, params := range t {
		if params.DemandWindowHours <= 0 {
			return fmt.Errorf("phase %s: demand window must be positive, got %d", phase, params.DemandWindowHours)
		}
		if params.PlanningWindowHours <= 0 {
			return fmt.Errorf("phase %s: planning window must be positive, got %d", phase, params.PlanningWindowHours)
		}
		if params.SafetyFactor.IsNegative() {
			return fmt.Errorf("phase %s: safety factor cannot be negative, got %s", phase, params.SafetyFactor)
		}
	}
	return nil
}
