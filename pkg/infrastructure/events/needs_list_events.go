package events

import (
	"github.com/vsinha/needslist/pkg/domain/entities"
)

const (
	NeedsListCreatedEvent      = "needs_list.created"
	NeedsListTransitionedEvent = "needs_list.transitioned"
	LineOverriddenEvent        = "needs_list.line_overridden"
	ReviewCommentedEvent       = "needs_list.review_commented"
	ScopeConflictEvent         = "needs_list.scope_conflict"
	OperationDeniedEvent       = "needs_list.operation_denied"
)

// AllEventTypes lists every event the engine publishes
var AllEventTypes = []string{
	NeedsListCreatedEvent,
	NeedsListTransitionedEvent,
	LineOverriddenEvent,
	ReviewCommentedEvent,
	ScopeConflictEvent,
	OperationDeniedEvent,
}

type NeedsListCreated struct {
	NeedsListID entities.NeedsListID   `json:"needs_list_id"`
	EventID     entities.EventID       `json:"event_id"`
	Phase       entities.Phase         `json:"phase"`
	Lines       int                    `json:"lines"`
	Actor       string                 `json:"actor"`
	Supersedes  []entities.NeedsListID `json:"supersedes,omitempty"`
}

type NeedsListTransitioned struct {
	NeedsListID entities.NeedsListID `json:"needs_list_id"`
	Operation   string               `json:"operation"`
	From        entities.Status      `json:"from"`
	To          entities.Status      `json:"to"`
	Actor       string               `json:"actor"`
	Reason      string               `json:"reason,omitempty"`
}

type LineOverridden struct {
	NeedsListID entities.NeedsListID `json:"needs_list_id"`
	Key         entities.ScopeKey    `json:"key"`
	OldQty      string               `json:"old_qty"`
	NewQty      string               `json:"new_qty"`
	Actor       string               `json:"actor"`
}

type ReviewCommented struct {
	NeedsListID entities.NeedsListID   `json:"needs_list_id"`
	Comment     entities.ReviewComment `json:"comment"`
}

type ScopeConflict struct {
	EventID   entities.EventID    `json:"event_id"`
	Conflicts []entities.Conflict `json:"conflicts"`
	Actor     string              `json:"actor"`
}

type OperationDenied struct {
	NeedsListID entities.NeedsListID `json:"needs_list_id"`
	Operation   string               `json:"operation"`
	Actor       string               `json:"actor"`
	Reason      string               `json:"reason"`
}
