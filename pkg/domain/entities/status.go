package entities

// Status is the lifecycle state of a needs list
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusSubmitted     Status = "SUBMITTED"
	StatusUnderReview   Status = "UNDER_REVIEW"
	StatusApproved      Status = "APPROVED"
	StatusRejected      Status = "REJECTED"
	StatusEscalated     Status = "ESCALATED"
	StatusInPreparation Status = "IN_PREPARATION"
	StatusDispatched    Status = "DISPATCHED"
	StatusReceived      Status = "RECEIVED"
	StatusCompleted     Status = "COMPLETED"
	StatusCancelled     Status = "CANCELLED"
	StatusSuperseded    Status = "SUPERSEDED"
)

// AllStatuses lists every status in pipeline order
var AllStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusEscalated,
	StatusApproved,
	StatusInPreparation,
	StatusDispatched,
	StatusReceived,
	StatusCompleted,
	StatusRejected,
	StatusCancelled,
	StatusSuperseded,
}

// IsTerminal reports whether the status freezes the list for good
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusCompleted, StatusSuperseded:
		return true
	default:
		return false
	}
}

// IsActive reports whether the list still occupies its scope
func (s Status) IsActive() bool {
	return !s.IsTerminal()
}

// IsEditable reports whether line quantities may still change
func (s Status) IsEditable() bool {
	return s == StatusDraft
}

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ActiveStatuses returns every non-terminal status
func ActiveStatuses() []Status {
	var active []Status
	for _, s := range AllStatuses {
		if s.IsActive() {
			active = append(active, s)
		}
	}
	return active
}
