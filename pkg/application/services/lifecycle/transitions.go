package lifecycle

import (
	"fmt"

	"github.com/vsinha/needslist/pkg/domain/entities"
)

// Operation names one lifecycle call
type Operation string

const (
	OpSubmit           Operation = "submit"
	OpReviewStart      Operation = "review_start"
	OpReviewComments   Operation = "review_comments"
	OpApprove          Operation = "approve"
	OpReject           Operation = "reject"
	OpReturn           Operation = "return"
	OpEscalate         Operation = "escalate"
	OpStartPreparation Operation = "start_preparation"
	OpMarkDispatched   Operation = "mark_dispatched"
	OpMarkReceived     Operation = "mark_received"
	OpMarkCompleted    Operation = "mark_completed"
	OpCancel           Operation = "cancel"
	OpEditLines        Operation = "edit_lines"
	OpSupersede        Operation = "supersede"
)

// Edge is one permitted (from, operation) pair. An edge whose To equals
// From mutates the list without changing its status.
type Edge struct {
	From       entities.Status
	Operation  Operation
	To         entities.Status
	Permission string // empty for internal operations

	ReasonRequired     bool
	SeparateSubmitter  bool // actor must differ from the submitter
	ApprovalTierNeeded bool // actor must satisfy the resolved approval tier
}

// DefaultEdges returns the needs list workflow
func DefaultEdges() []Edge {
	return []Edge{
		{From: entities.StatusDraft, Operation: OpSubmit, To: entities.StatusSubmitted, Permission: entities.PermSubmit},
		{From: entities.StatusDraft, Operation: OpEditLines, To: entities.StatusDraft, Permission: entities.PermEditLines},
		{From: entities.StatusDraft, Operation: OpSupersede, To: entities.StatusSuperseded},

		{From: entities.StatusSubmitted, Operation: OpReviewStart, To: entities.StatusUnderReview, Permission: entities.PermReviewStart, SeparateSubmitter: true},

		{From: entities.StatusUnderReview, Operation: OpReviewComments, To: entities.StatusUnderReview, Permission: entities.PermReviewComments},
		{From: entities.StatusUnderReview, Operation: OpApprove, To: entities.StatusApproved, Permission: entities.PermApprove, SeparateSubmitter: true, ApprovalTierNeeded: true},
		{From: entities.StatusUnderReview, Operation: OpReject, To: entities.StatusRejected, Permission: entities.PermReject, ReasonRequired: true},
		{From: entities.StatusUnderReview, Operation: OpReturn, To: entities.StatusDraft, Permission: entities.PermReturn, ReasonRequired: true},
		{From: entities.StatusUnderReview, Operation: OpEscalate, To: entities.StatusEscalated, Permission: entities.PermEscalate, ReasonRequired: true},

		{From: entities.StatusEscalated, Operation: OpApprove, To: entities.StatusApproved, Permission: entities.PermApprove, SeparateSubmitter: true, ApprovalTierNeeded: true},
		{From: entities.StatusEscalated, Operation: OpReject, To: entities.StatusRejected, Permission: entities.PermReject, ReasonRequired: true},

		{From: entities.StatusApproved, Operation: OpStartPreparation, To: entities.StatusInPreparation, Permission: entities.PermExecute},
		{From: entities.StatusApproved, Operation: OpCancel, To: entities.StatusCancelled, Permission: entities.PermCancel, ReasonRequired: true},
		{From: entities.StatusInPreparation, Operation: OpMarkDispatched, To: entities.StatusDispatched, Permission: entities.PermExecute},
		{From: entities.StatusInPreparation, Operation: OpCancel, To: entities.StatusCancelled, Permission: entities.PermCancel, ReasonRequired: true},
		{From: entities.StatusDispatched, Operation: OpMarkReceived, To: entities.StatusReceived, Permission: entities.PermExecute},
		{From: entities.StatusReceived, Operation: OpMarkCompleted, To: entities.StatusCompleted, Permission: entities.PermExecute},
	}
}

// Table indexes edges by (from, operation). Unknown pairs are illegal.
type Table struct {
	edges   []Edge
	index   map[string]Edge
	allowed map[Operation][]entities.Status
}

// NewTable builds a table, rejecting duplicate edges and edges out of a
// terminal status
func NewTable(edges []Edge) (*Table, error) {
	t := &Table{
		index:   make(map[string]Edge, len(edges)),
		allowed: make(map[Operation][]entities.Status),
	}
	for _, e := range edges {
		if !e.From.IsValid() || !e.To.IsValid() {
			return nil, fmt.Errorf("edge %s: unknown status %s -> %s", e.Operation, e.From, e.To)
		}
		if e.From.IsTerminal() {
			return nil, fmt.Errorf("edge %s: terminal status %s has no outgoing edges", e.Operation, e.From)
		}
		k := key(e.From, e.Operation)
		if _, exists := t.index[k]; exists {
			return nil, fmt.Errorf("duplicate edge: %s -> %s", e.From, e.Operation)
		}
		t.index[k] = e
		t.edges = append(t.edges, e)
		t.allowed[e.Operation] = append(t.allowed[e.Operation], e.From)
	}
	return t, nil
}

var defaultTable = mustTable(DefaultEdges())

func mustTable(edges []Edge) *Table {
	t, err := NewTable(edges)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultTable returns the shared table built from DefaultEdges
func DefaultTable() *Table {
	return defaultTable
}

// Lookup returns the edge for op out of from or an IllegalTransitionError
func (t *Table) Lookup(op Operation, from entities.Status) (Edge, error) {
	e, ok := t.index[key(from, op)]
	if !ok {
		return Edge{}, &entities.IllegalTransitionError{
			Operation: string(op),
			From:      from,
			Allowed:   append([]entities.Status(nil), t.allowed[op]...),
		}
	}
	return e, nil
}

// Available lists the caller-facing operations permitted out of a status,
// in table order
func (t *Table) Available(from entities.Status) []Operation {
	var ops []Operation
	for _, e := range t.edges {
		if e.From == from && e.Permission != "" {
			ops = append(ops, e.Operation)
		}
	}
	return ops
}

func key(from entities.Status, op Operation) string {
	return string(from) + "|" + string(op)
}
