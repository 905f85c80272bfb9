package planning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vsinha/needslist/pkg/application/dto"
	"github.com/vsinha/needslist/pkg/application/services/allocation"
	"github.com/vsinha/needslist/pkg/application/services/approval"
	"github.com/vsinha/needslist/pkg/application/services/calculator"
	"github.com/vsinha/needslist/pkg/application/services/guard"
	"github.com/vsinha/needslist/pkg/application/services/lifecycle"
	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/domain/repositories"
	"github.com/vsinha/needslist/pkg/infrastructure/events"
)

// DefaultBatchConcurrency bounds CalculateBatch
const DefaultBatchConcurrency = 4

// Request asks for a new draft, or for an existing draft to be refreshed in
// place when RecalculateID is set
type Request struct {
	Calculation *dto.CalculationRequest
	Actor       entities.Actor

	// Acknowledge supersedes conflicting DRAFT lists in the same write.
	// Conflicts with lists past DRAFT are never acknowledged away.
	Acknowledge bool

	RecalculateID      entities.NeedsListID
	RecalculateVersion int64 // 0 means the version read during recalculation
}

// Plan is the calculator and allocator output for one request
type Plan struct {
	Result     *dto.CalculationResult
	Allocation allocation.Summary
}

// Outcome is the stored draft plus how it was reached
type Outcome struct {
	List         *entities.NeedsList
	Plan         Plan
	Superseded   []entities.NeedsListID
	Recalculated bool
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces the wall clock used to stamp drafts
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator replaces the uuid generator for new lists
func WithIDGenerator(newID func() entities.NeedsListID) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// WithBatchConcurrency bounds how many calculations CalculateBatch runs at once
func WithBatchConcurrency(n int) Option {
	return func(o *Orchestrator) { o.batchLimit = n }
}

// Orchestrator coordinates the calculator, allocator, approval resolver and
// scope guard to produce and store draft needs lists
type Orchestrator struct {
	calculator *calculator.CalculatorService
	allocator  *allocation.AllocatorService
	approvals  *approval.ApprovalService
	guard      *guard.Guard
	store      repositories.Store
	publisher  events.Publisher

	now        func() time.Time
	newID      func() entities.NeedsListID
	batchLimit int
	logger     zerolog.Logger
}

// NewOrchestrator creates a planning orchestrator. A nil publisher discards
// events.
func NewOrchestrator(
	calc *calculator.CalculatorService,
	alloc *allocation.AllocatorService,
	approvals *approval.ApprovalService,
	store repositories.Store,
	publisher events.Publisher,
	logger zerolog.Logger,
	opts ...Option,
) *Orchestrator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	o := &Orchestrator{
		calculator: calc,
		allocator:  alloc,
		approvals:  approvals,
		guard:      guard.NewGuard(store, logger),
		store:      store,
		publisher:  publisher,
		now:        time.Now,
		newID:      func() entities.NeedsListID { return entities.NeedsListID(uuid.NewString()) },
		batchLimit: DefaultBatchConcurrency,
		logger:     logger.With().Str("component", "planning").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Calculate runs the calculator and allocator and resolves the approval
// requirement. Nothing is stored.
func (o *Orchestrator) Calculate(ctx context.Context, req *dto.CalculationRequest) (*Plan, error) {
	if req == nil {
		return nil, entities.NewValidationError("calculation", "request cannot be empty")
	}
	result, err := o.calculator.Calculate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate gaps: %w", err)
	}
	summary, err := o.allocator.Allocate(ctx, result, req)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate gaps: %w", err)
	}

	requirement := o.approvals.ResolveForLines(result.Phase, result.Lines)
	cost, _ := approval.EstimateCost(result.Lines)
	result.Approval = &requirement
	result.SelectedMethod = requirement.Method
	result.EstimatedCost = cost
	result.Warnings = append(result.Warnings, requirement.Warnings...)

	return &Plan{Result: result, Allocation: summary}, nil
}

// CalculateBatch calculates independent scopes concurrently. Results keep
// the order of reqs; the first failure cancels the rest.
func (o *Orchestrator) CalculateBatch(ctx context.Context, reqs []*dto.CalculationRequest) ([]*Plan, error) {
	plans := make([]*Plan, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	if o.batchLimit > 0 {
		g.SetLimit(o.batchLimit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			plan, err := o.Calculate(gctx, req)
			if err != nil {
				return fmt.Errorf("scope %d: %w", i, err)
			}
			plans[i] = plan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

// Generate calculates a scope and stores the result as a DRAFT. Overlapping
// active lists are returned as a *entities.ConflictError unless every one of
// them is a DRAFT and the request acknowledges replacing them.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Outcome, error) {
	if req.Actor.ID == "" {
		return nil, entities.NewValidationError("actor", "cannot be empty")
	}
	if req.RecalculateID != "" {
		return o.recalculate(ctx, req)
	}
	if !req.Actor.Can(entities.PermCreate) {
		return nil, o.denied(req, entities.PermCreate)
	}

	plan, err := o.Calculate(ctx, req.Calculation)
	if err != nil {
		return nil, err
	}
	now := o.now().UTC()
	list, err := o.buildDraft(plan.Result, req.Actor.ID, now)
	if err != nil {
		return nil, err
	}

	conflicts, err := o.guard.Check(ctx, list.Scope(), "")
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 && (!req.Acknowledge || len(guard.Blocking(conflicts)) > 0) {
		return nil, o.conflict(req, list.EventID, conflicts)
	}

	entries := []entities.AuditEntry{{
		NeedsListID: list.ID,
		Action:      entities.AuditCreated,
		Field:       "status",
		NewValue:    string(entities.StatusDraft),
		Actor:       req.Actor.ID,
		At:          now,
	}}
	var (
		replacements []repositories.Replacement
		superseded   []entities.NeedsListID
	)
	for _, c := range conflicts {
		current, err := o.store.Get(ctx, c.NeedsListID)
		if err != nil {
			return nil, fmt.Errorf("failed to load conflicting draft %s: %w", c.NeedsListID, err)
		}
		next, entry, err := lifecycle.Supersede(current, list.ID, req.Actor.ID, now)
		if err != nil {
			return nil, err
		}
		replacements = append(replacements, repositories.Replacement{List: next, ExpectedVersion: current.Version})
		superseded = append(superseded, current.ID)
		entries = append(entries, entry, entities.AuditEntry{
			NeedsListID: list.ID,
			Action:      entities.AuditSuperseded,
			Field:       "supersedes",
			NewValue:    string(current.ID),
			Actor:       req.Actor.ID,
			At:          now,
		})
	}

	if err := o.store.Create(ctx, list, replacements, entries); err != nil {
		var conflict *entities.ConflictError
		if errors.As(err, &conflict) && !conflict.Stale {
			o.publishConflict(req, list.EventID, conflict.Conflicts)
		}
		return nil, err
	}

	o.logger.Info().
		Str("needs_list_id", string(list.ID)).
		Str("event_id", string(list.EventID)).
		Str("phase", string(list.Phase)).
		Int("lines", len(list.Items)).
		Int("superseded", len(superseded)).
		Str("actor", req.Actor.ID).
		Msg("draft needs list created")

	o.publish(events.NewEvent(events.NeedsListCreatedEvent, string(list.ID), events.NeedsListCreated{
		NeedsListID: list.ID,
		EventID:     list.EventID,
		Phase:       list.Phase,
		Lines:       len(list.Items),
		Actor:       req.Actor.ID,
		Supersedes:  superseded,
	}, now))

	return &Outcome{List: list, Plan: *plan, Superseded: superseded}, nil
}

// recalculate refreshes an existing draft from a new snapshot, keeping its
// id. Line overrides are dropped with the old lines.
func (o *Orchestrator) recalculate(ctx context.Context, req Request) (*Outcome, error) {
	current, err := o.store.Get(ctx, req.RecalculateID)
	if err != nil {
		return nil, err
	}
	if _, err := lifecycle.DefaultTable().Lookup(lifecycle.OpEditLines, current.Status); err != nil {
		return nil, err
	}
	if !req.Actor.Can(entities.PermEditLines) {
		return nil, o.denied(req, entities.PermEditLines)
	}
	expected := current.Version
	if req.RecalculateVersion != 0 {
		if req.RecalculateVersion != current.Version {
			return nil, entities.NewStaleVersionError(current.ID, req.RecalculateVersion, current.Version)
		}
		expected = req.RecalculateVersion
	}
	if req.Calculation != nil && req.Calculation.EventID != current.EventID {
		return nil, entities.NewValidationError("event_id", fmt.Sprintf("needs list %s belongs to event %s", current.ID, current.EventID))
	}

	plan, err := o.Calculate(ctx, req.Calculation)
	if err != nil {
		return nil, err
	}
	now := o.now().UTC()
	fresh, err := o.buildDraft(plan.Result, current.CreatedBy, now)
	if err != nil {
		return nil, err
	}

	conflicts, err := o.guard.Check(ctx, fresh.Scope(), current.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, o.conflict(req, current.EventID, conflicts)
	}

	next := current.Clone()
	next.WarehouseIDs = fresh.WarehouseIDs
	next.Phase = fresh.Phase
	next.AsOf = fresh.AsOf
	next.Items = fresh.Items
	next.Warnings = fresh.Warnings
	next.EstimatedCost = fresh.EstimatedCost
	next.SelectedMethod = fresh.SelectedMethod
	next.Approval = fresh.Approval
	next.Version = expected + 1
	next.UpdatedAt = now

	entry := entities.AuditEntry{
		NeedsListID: next.ID,
		Action:      entities.AuditRecalculated,
		Field:       "gap_qty",
		OldValue:    current.TotalGap().String(),
		NewValue:    next.TotalGap().String(),
		Reason:      fmt.Sprintf("recalculated as of %s", next.AsOf.Format(time.RFC3339)),
		Actor:       req.Actor.ID,
		At:          now,
	}
	if err := o.store.Update(ctx, next, expected, []entities.AuditEntry{entry}); err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("needs_list_id", string(next.ID)).
		Str("old_gap", entry.OldValue).
		Str("new_gap", entry.NewValue).
		Int64("version", next.Version).
		Str("actor", req.Actor.ID).
		Msg("draft needs list recalculated")

	return &Outcome{List: next, Plan: *plan, Recalculated: true}, nil
}

// buildDraft turns the lines with a gap into a version-1 DRAFT
func (o *Orchestrator) buildDraft(result *dto.CalculationResult, createdBy string, now time.Time) (*entities.NeedsList, error) {
	list := &entities.NeedsList{
		ID:             o.newID(),
		EventID:        result.EventID,
		WarehouseIDs:   append([]entities.WarehouseID(nil), result.WarehouseIDs...),
		Phase:          result.Phase,
		Status:         entities.StatusDraft,
		AsOf:           result.AsOf,
		Version:        1,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
		EstimatedCost:  result.EstimatedCost,
		SelectedMethod: result.SelectedMethod,
		Approval:       result.Approval,
		Warnings:       append([]string(nil), result.Warnings...),
	}
	for _, line := range result.Lines {
		if !line.GapQty.IsPositive() {
			continue
		}
		line.FulfillmentStatus = entities.FulfillmentPending
		list.Items = append(list.Items, line)
	}
	if len(list.Items) == 0 {
		return nil, entities.NewValidationError("items", "no line in scope has a gap")
	}
	return list, nil
}

func (o *Orchestrator) denied(req Request, permission string) error {
	o.logger.Warn().
		Str("actor", req.Actor.ID).
		Str("permission", permission).
		Msg("operation denied")
	o.publish(events.NewEvent(events.OperationDeniedEvent, string(req.RecalculateID), events.OperationDenied{
		NeedsListID: req.RecalculateID,
		Operation:   "generate",
		Actor:       req.Actor.ID,
		Reason:      "permission",
	}, o.now().UTC()))
	return &entities.PermissionDeniedError{ActorID: req.Actor.ID, Permission: permission}
}

func (o *Orchestrator) conflict(req Request, eventID entities.EventID, conflicts []entities.Conflict) error {
	o.publishConflict(req, eventID, conflicts)
	return &entities.ConflictError{Conflicts: conflicts}
}

func (o *Orchestrator) publishConflict(req Request, eventID entities.EventID, conflicts []entities.Conflict) {
	o.logger.Warn().
		Str("event_id", string(eventID)).
		Int("conflicts", len(conflicts)).
		Bool("acknowledged", req.Acknowledge).
		Str("actor", req.Actor.ID).
		Msg("scope already covered by active needs lists")
	o.publish(events.NewEvent(events.ScopeConflictEvent, string(eventID), events.ScopeConflict{
		EventID:   eventID,
		Conflicts: conflicts,
		Actor:     req.Actor.ID,
	}, o.now().UTC()))
}

func (o *Orchestrator) publish(event events.Event) {
	if err := o.publisher.Publish(event); err != nil {
		o.logger.Error().Err(err).Str("event_type", event.Type()).Msg("failed to publish planning event")
	}
}
