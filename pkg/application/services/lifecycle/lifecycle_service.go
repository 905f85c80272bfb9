package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vsinha/needslist/pkg/application/services/approval"
	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/domain/repositories"
	"github.com/vsinha/needslist/pkg/infrastructure/events"
)

// Command identifies the list, the caller and the version the caller last
// read. Reason is mandatory for reject, return, escalate and cancel.
type Command struct {
	NeedsListID entities.NeedsListID
	Actor       entities.Actor
	Version     int64
	Reason      string
}

func (c Command) validate() error {
	if c.NeedsListID == "" {
		return entities.NewValidationError("needs_list_id", "cannot be empty")
	}
	if c.Actor.ID == "" {
		return entities.NewValidationError("actor", "cannot be empty")
	}
	if c.Version < 1 {
		return entities.NewValidationError("version", "the version last read is required")
	}
	return nil
}

// LineEdit overrides the requested quantity of one line. An empty Reason
// falls back to the command reason; one of them must be set.
type LineEdit struct {
	WarehouseID entities.WarehouseID
	ItemID      entities.ItemID
	Quantity    decimal.Decimal
	Reason      string
}

// Receipt is a quantity received against one line
type Receipt struct {
	WarehouseID entities.WarehouseID
	ItemID      entities.ItemID
	Quantity    decimal.Decimal
}

// Comment is a reviewer note. Leave the key empty for a list-level note.
type Comment struct {
	WarehouseID entities.WarehouseID
	ItemID      entities.ItemID
	Text        string
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces the wall clock used to stamp transitions
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTable replaces the default transition table
func WithTable(t *Table) Option {
	return func(s *Service) { s.table = t }
}

// Service runs lifecycle operations against the persistence port. Each
// operation is one read, one guarded mutation and one versioned write.
type Service struct {
	store     repositories.Store
	approvals *approval.ApprovalService
	publisher events.Publisher
	table     *Table
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService creates a lifecycle service. A nil publisher discards events.
func NewService(
	store repositories.Store,
	approvals *approval.ApprovalService,
	publisher events.Publisher,
	logger zerolog.Logger,
	opts ...Option,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &Service{
		store:     store,
		approvals: approvals,
		publisher: publisher,
		table:     DefaultTable(),
		now:       time.Now,
		logger:    logger.With().Str("component", "lifecycle").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// mutation edits the cloned list and returns any audit entries beyond the
// status change
type mutation func(list *entities.NeedsList, cmd Command, now time.Time) ([]entities.AuditEntry, error)

// Get returns the current state of a list
func (s *Service) Get(ctx context.Context, id entities.NeedsListID) (*entities.NeedsList, error) {
	return s.store.Get(ctx, id)
}

// ChangesSince returns the audit entries of a list appended after sequence,
// for callers polling for externally visible changes
func (s *Service) ChangesSince(ctx context.Context, id entities.NeedsListID, sequence int64) ([]entities.AuditEntry, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, repositories.AuditFilter{NeedsListID: id, AfterSequence: sequence})
}

// Submit sends a draft for review
func (s *Service) Submit(ctx context.Context, cmd Command) (*entities.NeedsList, error) {
	return s.execute(ctx, OpSubmit, cmd, func(list *entities.NeedsList, cmd Command, now time.Time) ([]entities.AuditEntry, error) {
		if len(list.Items) == 0 {
			return nil, entities.NewValidationError("items", "cannot submit a needs list without lines")
		}
		list.SubmittedBy = cmd.Actor.ID
		list.SubmittedAt = &now
		s.resolveApproval(list)
		return nil, nil
	})
}

// StartReview moves a submitted list under review
func (s *Service) StartReview(ctx context.Context, cmd Command) (*entities.NeedsList, error) {
	return s.execute(ctx, OpReviewStart, cmd, func(list *entities.NeedsList, cmd Command, now time.Time) ([]entities.AuditEntry, error) {
		list.ReviewedBy = cmd.Actor.ID
		list.ReviewedAt = &now
		return nil, nil
	})
}

// AddReviewComment records a list-level or line-level reviewer note
func (s *Service) AddReviewComment(ctx context.Context, cmd Command, comment Comment) (*entities.NeedsList, error) {
	return s.execute(ctx, OpReviewComments, cmd, func(list *entities.NeedsList, cmd Command, now time.Time) ([]entities.AuditEntry, error) {
		text := strings.TrimSpace(comment.Text)
		if text == "" {
			text = strings.TrimSpace(cmd.Reason)
		}
		if text == "" {
			return nil, entities.NewValidationError("comment", "cannot be empty")
		}
		if comment.ItemID != "" || comment.WarehouseID != "" {
			item, ok := list.FindItem(entities.ScopeKey{WarehouseID: comment.WarehouseID, ItemID: comment.ItemID})
			if !ok {
				return nil, entities.NewValidationError("item", fmt.Sprintf("no line %s@%s", comment.ItemID, comment.WarehouseID))
			}
			item.ReviewComment = text
		}
		list.ReviewComments = append(list.ReviewComments, entities.ReviewComment{
			ItemID:      comment.ItemID,
			WarehouseID: comment.WarehouseID,
			Comment:     text,
			Actor:       cmd.Actor.ID,
			At:          now,
		})
		return []entities.AuditEntry{{
			NeedsListID: list.ID,
			ItemID:      comment.ItemID,
			WarehouseID: comment.WarehouseID,
			Action:      entities.AuditReviewComment,
			Field:       "review_comment",
			NewValue:    text,
			Actor:       cmd.Actor.ID,
			At:          now,
		}}, nil
	})
}

// Approve approves a list under review or escalated. The approver must
// satisfy the resolved tier and must not be the submitter.
func (s *Service) Approve(ctx context.Context, cmd Command) (*entities.NeedsList, error) {
	return s.execute(ctx, OpApprove, cmd, func(list *entities.NeedsList, cmd Command, now time.Time) ([]entities.AuditEntry, error) {
		list.ApprovedBy = cmd.Actor.ID
		list.ApprovedAt = &now
		return nil, nil
	})
}

// Reject closes a list under review or escalated
func (s *Service) Reject(ctx context.Context, cmd Command) (*entities.NeedsList, error) {
	return s.execute(ctx, OpReject, cmd, func(list *entities.NeedsList, cmd Command, now time.Time) ([]entities.AuditEntry, error) {
		list.RejectedBy = cmd.Actor.ID
		list.RejectedAt = &now
		list.RejectionReason = cmd.Reason
		return nil, nil
	})
}

// Return sends a list under review back to DRAFT for rework
func (s *Service) Return(ctx context.Context, cmd Command) (*entities.NeedsList, error) {
	return s.execute(ctx, OpReturn, cmd, func(list *entities.NeedsList, cmd Command, now time.Time) ([]entities.AuditEntry, error) {
		list.ReturnReason = cmd.Reason
		return nil, nil
	})
}

// Escalate hands a list under review to a higher authority
func (s *Service) Escalate(ctx context.Context, cmd Command) (*entities.NeedsList, error) {
	return s.execute(ctx, OpEscalate, cmd, func(list *entities.NeedsList, cmd Command, now time.Time) ([]entities.AuditEntry, error) {
		list.EscalatedBy = cmd.Actor.ID
		list.EscalatedAt = &now
		list.EscalationReason = cmd.Reason
		return nil, nil
	})
}

// StartPreparation begins picking an approved list
func (s *Service) StartPreparation(ctx context.Context, cmd Command) (*entities.NeedsList, error) {
	return s.execute(ctx, OpStartPreparation, cmd, func(list *entities.NeedsList, _ Command, now time.Time) ([]entities.AuditEntry, error) {
		list.PreparationStartedAt = &now
		return nil, nil
	})
}

// MarkDispatched records that the prepared goods left
func (s *Service) MarkDispatched(ctx context.Context, cmd Command) (*entities.NeedsList, error) {
	return s.execute(ctx, OpMarkDispatched, cmd, func(list *entities.NeedsList, _ Command, now time.Time) ([]entities.AuditEntry, error) {
		list.DispatchedAt = &now
		return nil, nil
	})
}

// MarkReceived records arrival, optionally with per-line received
// quantities. Receipts are recorded as details of the status entry.
func (s *Service) MarkReceived(ctx context.Context, cmd Command, receipts ...Receipt) (*entities.NeedsList, error) {
	return s.execute(ctx, OpMarkReceived, cmd, func(list *entities.NeedsList, cmd Command, now time.Time) ([]entities.AuditEntry, error) {
		list.ReceivedAt = &now
		entries := make([]entities.AuditEntry, 0, len(receipts))
		for _, r := range receipts {
			if r.Quantity.IsNegative() {
				return nil, entities.NewValidationError("quantity", fmt.Sprintf("received quantity for %s@%s cannot be negative", r.ItemID, r.WarehouseID))
			}
			item, ok := list.FindItem(entities.ScopeKey{WarehouseID: r.WarehouseID, ItemID: r.ItemID})
			if !ok {
				return nil, entities.NewValidationError("item", fmt.Sprintf("no line %s@%s", r.ItemID, r.WarehouseID))
			}
			old := item.FulfilledQty
			item.FulfilledQty = old.Add(r.Quantity)
			item.FulfillmentStatus = fulfillmentStatus(item)
			entries = append(entries, entities.AuditEntry{
				ItemID:      r.ItemID,
				WarehouseID: r.WarehouseID,
				Field:       "fulfilled_qty",
				OldValue:    old.String(),
				NewValue:    item.FulfilledQty.String(),
			})
		}
		return entries, nil
	})
}

func fulfillmentStatus(item *entities.NeedsListItem) entities.FulfillmentStatus {
	switch {
	case item.FulfilledQty.GreaterThanOrEqual(item.EffectiveQty()):
		return entities.FulfillmentFulfilled
	case item.FulfilledQty.IsPositive():
		return entities.FulfillmentPartial
	default:
		return entities.FulfillmentPending
	}
}

// MarkCompleted closes a received list
func (s *Service) MarkCompleted(ctx context.Context, cmd Command) (*entities.NeedsList, error) {
	return s.execute(ctx, OpMarkCompleted, cmd, func(list *entities.NeedsList, _ Command, now time.Time) ([]entities.AuditEntry, error) {
		list.CompletedAt = &now
		return nil, nil
	})
}

// Cancel abandons an approved list before dispatch
func (s *Service) Cancel(ctx context.Context, cmd Command) (*entities.NeedsList, error) {
	return s.execute(ctx, OpCancel, cmd, func(list *entities.NeedsList, cmd Command, now time.Time) ([]entities.AuditEntry, error) {
		list.CancelledBy = cmd.Actor.ID
		list.CancelledAt = &now
		list.CancelReason = cmd.Reason
		return nil, nil
	})
}

// EditLines overrides line quantities of a draft. Each change writes its own
// QUANTITY_OVERRIDE entry and the approval requirement is resolved again.
func (s *Service) EditLines(ctx context.Context, cmd Command, edits []LineEdit) (*entities.NeedsList, error) {
	return s.execute(ctx, OpEditLines, cmd, func(list *entities.NeedsList, cmd Command, now time.Time) ([]entities.AuditEntry, error) {
		if len(edits) == 0 {
			return nil, entities.NewValidationError("lines", "at least one line edit is required")
		}
		entries := make([]entities.AuditEntry, 0, len(edits))
		for _, edit := range edits {
			reason := strings.TrimSpace(edit.Reason)
			if reason == "" {
				reason = strings.TrimSpace(cmd.Reason)
			}
			if reason == "" {
				return nil, entities.NewValidationError("reason", fmt.Sprintf("override of %s@%s needs a reason", edit.ItemID, edit.WarehouseID))
			}
			if edit.Quantity.IsNegative() {
				return nil, entities.NewValidationError("quantity", fmt.Sprintf("override of %s@%s cannot be negative", edit.ItemID, edit.WarehouseID))
			}
			item, ok := list.FindItem(entities.ScopeKey{WarehouseID: edit.WarehouseID, ItemID: edit.ItemID})
			if !ok {
				return nil, entities.NewValidationError("item", fmt.Sprintf("no line %s@%s", edit.ItemID, edit.WarehouseID))
			}
			old := item.EffectiveQty()
			item.Override = &entities.LineOverride{Quantity: edit.Quantity, Reason: reason, Actor: cmd.Actor.ID, At: now}
			entries = append(entries, entities.AuditEntry{
				NeedsListID: list.ID,
				ItemID:      edit.ItemID,
				WarehouseID: edit.WarehouseID,
				Action:      entities.AuditQuantityOverride,
				Field:       "quantity",
				OldValue:    old.String(),
				NewValue:    edit.Quantity.String(),
				Reason:      reason,
				Actor:       cmd.Actor.ID,
				At:          now,
			})
		}
		list.Approval = nil
		s.resolveApproval(list)
		return entries, nil
	})
}

// resolveApproval fills the approval requirement, method and cost when the
// list does not carry one yet
func (s *Service) resolveApproval(list *entities.NeedsList) {
	if list.Approval != nil {
		return
	}
	req := s.approvals.ResolveForLines(list.Phase, list.Items)
	cost, _ := approval.EstimateCost(list.Items)
	list.Approval = &req
	list.SelectedMethod = req.Method
	list.EstimatedCost = cost
}

func (s *Service) execute(ctx context.Context, op Operation, cmd Command, mutate mutation) (*entities.NeedsList, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	current, err := s.store.Get(ctx, cmd.NeedsListID)
	if err != nil {
		return nil, err
	}

	edge, err := s.table.Lookup(op, current.Status)
	if err != nil {
		s.deny(current, op, cmd, err)
		return nil, err
	}
	if cmd.Version != current.Version {
		return nil, entities.NewStaleVersionError(current.ID, cmd.Version, current.Version)
	}
	if err := s.authorize(current, edge, cmd); err != nil {
		s.deny(current, op, cmd, err)
		return nil, err
	}

	now := s.now().UTC()
	next := current.Clone()
	entries, err := mutate(next, cmd, now)
	if err != nil {
		return nil, err
	}
	if edge.To != edge.From {
		// a transition writes exactly one entry; line changes ride along
		next.Status = edge.To
		status := statusEntry(next.ID, op, edge.From, edge.To, cmd.Actor.ID, cmd.Reason, now)
		status.Details = lineDetails(entries)
		entries = []entities.AuditEntry{status}
	}
	next.Version = current.Version + 1
	next.UpdatedAt = now

	if err := s.store.Update(ctx, next, current.Version, entries); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("needs_list_id", string(next.ID)).
		Str("operation", string(op)).
		Str("from", string(edge.From)).
		Str("to", string(next.Status)).
		Str("actor", cmd.Actor.ID).
		Int64("version", next.Version).
		Msg("needs list updated")

	s.publishAll(next, op, edge, cmd, entries, now)
	return next, nil
}

// authorize checks separation of duties first so that a submitter is refused
// regardless of the permissions they hold
func (s *Service) authorize(list *entities.NeedsList, edge Edge, cmd Command) error {
	if edge.SeparateSubmitter && list.SubmittedBy != "" && list.SubmittedBy == cmd.Actor.ID {
		return &entities.SeparationOfDutiesError{Operation: string(edge.Operation), ActorID: cmd.Actor.ID}
	}
	if !cmd.Actor.Can(edge.Permission) {
		return &entities.PermissionDeniedError{ActorID: cmd.Actor.ID, Permission: edge.Permission}
	}
	if edge.ReasonRequired && strings.TrimSpace(cmd.Reason) == "" {
		return entities.NewValidationError("reason", fmt.Sprintf("%s requires a reason", edge.Operation))
	}
	if edge.ApprovalTierNeeded {
		req := list.Approval
		if req == nil {
			resolved := s.approvals.ResolveForLines(list.Phase, list.Items)
			req = &resolved
		}
		if !s.approvals.Satisfies(cmd.Actor, *req) {
			return &entities.PermissionDeniedError{
				ActorID:    cmd.Actor.ID,
				Permission: edge.Permission,
				Detail:     fmt.Sprintf("approval tier %s requires role %s", req.Tier, req.Role),
			}
		}
	}
	return nil
}

func (s *Service) deny(list *entities.NeedsList, op Operation, cmd Command, err error) {
	reason := denialReason(err)
	if reason == "" {
		return
	}
	s.logger.Warn().
		Err(err).
		Str("needs_list_id", string(list.ID)).
		Str("operation", string(op)).
		Str("status", string(list.Status)).
		Str("actor", cmd.Actor.ID).
		Msg("operation denied")

	s.publish(events.NewEvent(events.OperationDeniedEvent, string(list.ID), events.OperationDenied{
		NeedsListID: list.ID,
		Operation:   string(op),
		Actor:       cmd.Actor.ID,
		Reason:      reason,
	}, s.now().UTC()))
}

func denialReason(err error) string {
	var (
		illegal *entities.IllegalTransitionError
		sod     *entities.SeparationOfDutiesError
		denied  *entities.PermissionDeniedError
	)
	switch {
	case errors.As(err, &illegal):
		return "illegal_transition"
	case errors.As(err, &sod):
		return "separation_of_duties"
	case errors.As(err, &denied) && denied.Detail != "":
		return "approval_tier"
	case errors.As(err, &denied):
		return "permission"
	default:
		return ""
	}
}

func (s *Service) publishAll(list *entities.NeedsList, op Operation, edge Edge, cmd Command, entries []entities.AuditEntry, now time.Time) {
	stream := string(list.ID)
	if edge.To != edge.From {
		s.publish(events.NewEvent(events.NeedsListTransitionedEvent, stream, events.NeedsListTransitioned{
			NeedsListID: list.ID,
			Operation:   string(op),
			From:        edge.From,
			To:          edge.To,
			Actor:       cmd.Actor.ID,
			Reason:      cmd.Reason,
		}, now))
	}
	for _, e := range entries {
		switch e.Action {
		case entities.AuditQuantityOverride:
			s.publish(events.NewEvent(events.LineOverriddenEvent, stream, events.LineOverridden{
				NeedsListID: list.ID,
				Key:         entities.ScopeKey{WarehouseID: e.WarehouseID, ItemID: e.ItemID},
				OldQty:      e.OldValue,
				NewQty:      e.NewValue,
				Actor:       e.Actor,
			}, now))
		case entities.AuditReviewComment:
			s.publish(events.NewEvent(events.ReviewCommentedEvent, stream, events.ReviewCommented{
				NeedsListID: list.ID,
				Comment: entities.ReviewComment{
					ItemID:      e.ItemID,
					WarehouseID: e.WarehouseID,
					Comment:     e.NewValue,
					Actor:       e.Actor,
					At:          e.At,
				},
			}, now))
		}
	}
}

// publish never fails the operation; the write is already committed
func (s *Service) publish(event events.Event) {
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Error().Err(err).Str("event_type", event.Type()).Msg("failed to publish lifecycle event")
	}
}

func lineDetails(changes []entities.AuditEntry) []entities.AuditDetail {
	if len(changes) == 0 {
		return nil
	}
	details := make([]entities.AuditDetail, len(changes))
	for i, c := range changes {
		details[i] = entities.AuditDetail{
			WarehouseID: c.WarehouseID,
			ItemID:      c.ItemID,
			Field:       c.Field,
			OldValue:    c.OldValue,
			NewValue:    c.NewValue,
		}
	}
	return details
}

func statusEntry(id entities.NeedsListID, op Operation, from, to entities.Status, actor, reason string, at time.Time) entities.AuditEntry {
	return entities.AuditEntry{
		NeedsListID: id,
		Action:      entities.AuditStatusChange,
		Field:       "status",
		OldValue:    string(from),
		NewValue:    string(to),
		ReasonCode:  string(op),
		Reason:      reason,
		Actor:       actor,
		At:          at,
	}
}

// Supersede marks a draft as replaced by a newer list. It returns the
// updated copy and its status entry for the caller to write atomically with
// the replacement's creation.
func Supersede(current *entities.NeedsList, by entities.NeedsListID, actor string, at time.Time) (*entities.NeedsList, entities.AuditEntry, error) {
	edge, err := DefaultTable().Lookup(OpSupersede, current.Status)
	if err != nil {
		return nil, entities.AuditEntry{}, err
	}
	next := current.Clone()
	next.Status = edge.To
	next.SupersededBy = &by
	next.Version = current.Version + 1
	next.UpdatedAt = at
	entry := statusEntry(next.ID, OpSupersede, edge.From, edge.To, actor, fmt.Sprintf("superseded by %s", by), at)
	return next, entry, nil
}
