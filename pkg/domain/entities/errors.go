package entities

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed scope, quantity or reason
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// IllegalTransitionError reports an operation invoked outside its allowed
// from-statuses
type IllegalTransitionError struct {
	Operation string
	From      Status
	Allowed   []Status
}

func (e *IllegalTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("illegal transition: %s not allowed from %s (allowed from: %s)",
		e.Operation, e.From, strings.Join(allowed, ", "))
}

// PermissionDeniedError reports a missing permission or approver role
type PermissionDeniedError struct {
	ActorID    string
	Permission string
	Detail     string
}

func (e *PermissionDeniedError) Error() string {
	msg := fmt.Sprintf("permission denied: actor %s lacks %s", e.ActorID, e.Permission)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// SeparationOfDutiesError reports the submitter acting on their own list
type SeparationOfDutiesError struct {
	Operation string
	ActorID   string
}

func (e *SeparationOfDutiesError) Error() string {
	return fmt.Sprintf("separation of duties: %s cannot be performed by the submitter %s", e.Operation, e.ActorID)
}

// Conflict describes an active needs list whose scope overlaps a request
type Conflict struct {
	NeedsListID      NeedsListID `json:"needs_list_id"`
	Status           Status      `json:"status"`
	CreatedBy        string      `json:"created_by"`
	SubmittedBy      string      `json:"submitted_by,omitempty"`
	OverlappingItems []ScopeKey  `json:"overlapping_items"`
}

// ConflictError reports a duplicate active scope or a stale version
type ConflictError struct {
	NeedsListID     NeedsListID
	Conflicts       []Conflict
	ExpectedVersion int64
	CurrentVersion  int64
	Stale           bool
}

// NewStaleVersionError creates a ConflictError for an optimistic lock miss
func NewStaleVersionError(id NeedsListID, expected, current int64) *ConflictError {
	return &ConflictError{NeedsListID: id, ExpectedVersion: expected, CurrentVersion: current, Stale: true}
}

func (e *ConflictError) Error() string {
	if e.Stale {
		return fmt.Sprintf("conflict: needs list %s was modified (expected version %d, current %d)",
			e.NeedsListID, e.ExpectedVersion, e.CurrentVersion)
	}
	ids := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		ids[i] = fmt.Sprintf("%s(%s)", c.NeedsListID, c.Status)
	}
	return fmt.Sprintf("conflict: active needs lists already cover this scope: %s", strings.Join(ids, ", "))
}

// NotFoundError reports a missing needs list
type NotFoundError struct {
	NeedsListID NeedsListID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("needs list not found: %s", e.NeedsListID)
}
