package entities

import "time"

// Freshness is the confidence class of input data based on its sync age
type Freshness string

const (
	FreshnessHigh   Freshness = "HIGH"
	FreshnessMedium Freshness = "MEDIUM"
	FreshnessLow    Freshness = "LOW"
)

// FreshnessThresholds bound the HIGH and MEDIUM classes
type FreshnessThresholds struct {
	HighMax   time.Duration
	MediumMax time.Duration
}

// DefaultFreshnessThresholds returns HIGH < 2h, MEDIUM 2-6h, LOW > 6h
func DefaultFreshnessThresholds() FreshnessThresholds {
	return FreshnessThresholds{
		HighMax:   2 * time.Hour,
		MediumMax: 6 * time.Hour,
	}
}

// Classify maps the age of lastSync at asOf to a freshness class.
// A zero lastSync is treated as unknown and therefore LOW.
func (t FreshnessThresholds) Classify(lastSync, asOf time.Time) Freshness {
	if lastSync.IsZero() {
		return FreshnessLow
	}
	age := asOf.Sub(lastSync)
	switch {
	case age < t.HighMax:
		return FreshnessHigh
	case age <= t.MediumMax:
		return FreshnessMedium
	default:
		return FreshnessLow
	}
}

func (f Freshness) rank() int {
	switch f {
	case FreshnessHigh:
		return 0
	case FreshnessMedium:
		return 1
	default:
		return 2
	}
}

// IsStale reports whether the data is older than the HIGH window
func (f Freshness) IsStale() bool {
	return f != FreshnessHigh
}

// WorstFreshness returns the most stale of the given classes
func WorstFreshness(values ...Freshness) Freshness {
	worst := FreshnessHigh
	for _, v := range values {
		if v.rank() > worst.rank() {
			worst = v
		}
	}
	return worst
}
