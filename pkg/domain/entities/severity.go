package entities

import "github.com/shopspring/decimal"

// Severity ranks how urgently an item needs replenishment
type Severity int

const (
	SeverityCritical Severity = iota
	SeverityWarning
	SeverityWatch
	SeverityOK
)

var (
	criticalBelowHours = decimal.NewFromInt(8)
	warningBelowHours  = decimal.NewFromInt(24)
	watchUpToHours     = decimal.NewFromInt(72)
)

// String method for Severity enum
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityWarning:
		return "WARNING"
	case SeverityWatch:
		return "WATCH"
	case SeverityOK:
		return "OK"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the severity by name
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "CRITICAL":
		*s = SeverityCritical
	case "WARNING":
		*s = SeverityWarning
	case "WATCH":
		*s = SeverityWatch
	case "OK":
		*s = SeverityOK
	default:
		return NewValidationError("severity", "unknown severity "+string(text))
	}
	return nil
}

// SeverityFor classifies a time-to-stockout in hours. A nil value means the
// item never stocks out at the current burn rate.
func SeverityFor(timeToStockout *decimal.Decimal) Severity {
	if timeToStockout == nil {
		return SeverityOK
	}
	tts := *timeToStockout
	switch {
	case tts.LessThan(criticalBelowHours):
		return SeverityCritical
	case tts.LessThan(warningBelowHours):
		return SeverityWarning
	case tts.LessThanOrEqual(watchUpToHours):
		return SeverityWatch
	default:
		return SeverityOK
	}
}
