package entities

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFreshnessThresholds_Classify(t *testing.T) {
	asOf := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	thresholds := DefaultFreshnessThresholds()

	testCases := []struct {
		name     string
		lastSync time.Time
		expected Freshness
	}{
		{"just synced", asOf.Add(-10 * time.Minute), FreshnessHigh},
		{"just under two hours", asOf.Add(-119 * time.Minute), FreshnessHigh},
		{"exactly two hours", asOf.Add(-2 * time.Hour), FreshnessMedium},
		{"six hours", asOf.Add(-6 * time.Hour), FreshnessMedium},
		{"over six hours", asOf.Add(-6*time.Hour - time.Minute), FreshnessLow},
		{"never synced", time.Time{}, FreshnessLow},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := thresholds.Classify(tc.lastSync, asOf); got != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestWorstFreshness(t *testing.T) {
	if got := WorstFreshness(FreshnessHigh, FreshnessLow, FreshnessMedium); got != FreshnessLow {
		t.Errorf("Expected LOW, got %s", got)
	}
	if got := WorstFreshness(); got != FreshnessHigh {
		t.Errorf("Expected HIGH for no inputs, got %s", got)
	}
}

func TestSeverityFor(t *testing.T) {
	hours := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	testCases := []struct {
		name     string
		tts      *decimal.Decimal
		expected Severity
	}{
		{"four hours", hours("4.0"), SeverityCritical},
		{"just under eight", hours("7.99"), SeverityCritical},
		{"eight hours", hours("8"), SeverityWarning},
		{"twenty four hours", hours("24"), SeverityWatch},
		{"seventy two hours", hours("72"), SeverityWatch},
		{"beyond seventy two", hours("72.5"), SeverityOK},
		{"never stocks out", nil, SeverityOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SeverityFor(tc.tts); got != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestSeverity_TextRoundTrip(t *testing.T) {
	var s Severity
	if err := s.UnmarshalText([]byte("WATCH")); err != nil {
		t.Fatalf("Expected WATCH to decode: %v", err)
	}
	if s != SeverityWatch {
		t.Errorf("Expected WATCH, got %s", s)
	}
	if err := s.UnmarshalText([]byte("SEVERE")); err == nil {
		t.Error("Expected unknown severity to fail")
	}
}

func TestPhaseTable_Lookup(t *testing.T) {
	table := DefaultPhaseTable()

	surge, err := table.Lookup(PhaseSurge)
	if err != nil {
		t.Fatalf("Expected SURGE lookup to succeed: %v", err)
	}
	if surge.DemandWindowHours != 6 || surge.PlanningWindowHours != 72 {
		t.Errorf("Expected SURGE 6h/72h, got %dh/%dh", surge.DemandWindowHours, surge.PlanningWindowHours)
	}
	if !surge.SafetyFactor.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("Expected safety factor 1.25, got %s", surge.SafetyFactor)
	}

	table[PhaseBaseline] = PhaseParameters{DemandWindowHours: 24, PlanningWindowHours: 24}
	baseline, err := table.Lookup(PhaseBaseline)
	if err != nil {
		t.Fatalf("Expected BASELINE lookup to succeed: %v", err)
	}
	if !baseline.SafetyFactor.Equal(DefaultSafetyFactor) {
		t.Errorf("Expected default safety factor when unset, got %s", baseline.SafetyFactor)
	}

	_, err = table.Lookup("RECOVERY")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("Expected ValidationError for unknown phase, got %v", err)
	}
}

func TestParsePhase(t *testing.T) {
	phase, err := ParsePhase("surge")
	if err != nil || phase != PhaseSurge {
		t.Errorf("Expected SURGE, got %s (%v)", phase, err)
	}
	if _, err := ParsePhase("aftermath"); err == nil {
		t.Error("Expected unknown phase to fail")
	}
}

func TestStatus_Classes(t *testing.T) {
	terminal := map[Status]bool{
		StatusRejected: true, StatusCancelled: true, StatusCompleted: true, StatusSuperseded: true,
	}
	for _, s := range AllStatuses {
		if s.IsTerminal() != terminal[s] {
			t.Errorf("Expected IsTerminal(%s) = %t", s, terminal[s])
		}
		if s.IsEditable() != (s == StatusDraft) {
			t.Errorf("Expected only DRAFT to be editable, got %s editable=%t", s, s.IsEditable())
		}
	}
	if len(ActiveStatuses()) != len(AllStatuses)-len(terminal) {
		t.Errorf("Expected %d active statuses, got %d", len(AllStatuses)-len(terminal), len(ActiveStatuses()))
	}
	if Status("RETURNED").IsValid() {
		t.Error("Expected RETURNED not to be a distinct status")
	}
}

func TestScope_Overlap(t *testing.T) {
	a := Scope{EventID: "EV1", Keys: []ScopeKey{{"WH1", "WATER"}, {"WH1", "TARP"}, {"WH2", "WATER"}}}
	b := Scope{EventID: "EV1", Keys: []ScopeKey{{"WH2", "WATER"}, {"WH1", "WATER"}, {"WH3", "RICE"}}}

	shared := a.Overlap(b)
	if len(shared) != 2 {
		t.Fatalf("Expected 2 shared keys, got %d", len(shared))
	}
	if shared[0] != (ScopeKey{"WH1", "WATER"}) || shared[1] != (ScopeKey{"WH2", "WATER"}) {
		t.Errorf("Expected sorted overlap, got %v", shared)
	}

	other := Scope{EventID: "EV2", Keys: a.Keys}
	if len(a.Overlap(other)) != 0 {
		t.Error("Expected no overlap across events")
	}
}

func TestNeedsList_CloneIsDeep(t *testing.T) {
	cost := decimal.NewFromInt(12)
	original := &NeedsList{
		ID:    "NL1",
		Items: []NeedsListItem{{ItemID: "WATER", WarehouseID: "WH1", UnitCost: &cost, HorizonASources: []TransferLeg{{SourceWarehouseID: "WH2", Quantity: decimal.NewFromInt(5)}}}},
	}

	clone := original.Clone()
	clone.Items[0].HorizonASources[0].SourceWarehouseID = "WH9"
	*clone.Items[0].UnitCost = decimal.NewFromInt(99)
	clone.Items[0].Override = &LineOverride{Quantity: decimal.NewFromInt(1)}

	if original.Items[0].SourceWarehouse() != "WH2" {
		t.Errorf("Expected original source WH2, got %s", original.Items[0].SourceWarehouse())
	}
	if !original.Items[0].UnitCost.Equal(cost) {
		t.Errorf("Expected original unit cost 12, got %s", original.Items[0].UnitCost)
	}
	if original.Items[0].Override != nil {
		t.Error("Expected original override to remain nil")
	}
}
