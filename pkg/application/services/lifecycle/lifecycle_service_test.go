package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vsinha/needslist/pkg/application/services/approval"
	fixtures "github.com/vsinha/needslist/pkg/application/services/testing"
	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/domain/repositories"
	"github.com/vsinha/needslist/pkg/infrastructure/events"
	"github.com/vsinha/needslist/pkg/infrastructure/repositories/memory"
	storefix "github.com/vsinha/needslist/pkg/infrastructure/testing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	store *memory.NeedsListStore
	bus   *events.InMemoryEventStore
	svc   *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewNeedsListStore()
	bus := events.NewInMemoryEventStore(zerolog.Nop())
	approvals := approval.NewApprovalService(approval.DefaultConfig(), zerolog.Nop())
	svc := NewService(store, approvals, bus, zerolog.Nop(), WithClock(func() time.Time { return fixtures.AsOf }))
	return &harness{store: store, bus: bus, svc: svc}
}

// seedDraft stores a SURGE draft whose procurement costs unitCost per unit
func (h *harness) seedDraft(t *testing.T, id, unitCost string) *entities.NeedsList {
	t.Helper()
	list := storefix.BuildDraftList(id, string(fixtures.EventID), "officer-1",
		storefix.Key(string(fixtures.WarehouseA), string(fixtures.ItemWater)),
		storefix.Key(string(fixtures.WarehouseA), string(fixtures.ItemTarp)))
	for i := range list.Items {
		list.Items[i].UnitCost = fixtures.QtyPtr(unitCost)
	}
	created := storefix.BuildEntry(id, entities.AuditCreated, "officer-1")
	require.NoError(t, h.store.Create(context.Background(), list, nil, []entities.AuditEntry{created}))
	return list
}

func (h *harness) audit(t *testing.T, id entities.NeedsListID, action entities.AuditAction) []entities.AuditEntry {
	t.Helper()
	entries, err := h.store.ListAudit(context.Background(), repositories.AuditFilter{NeedsListID: id, Actions: []entities.AuditAction{action}})
	require.NoError(t, err)
	return entries
}

func (h *harness) eventsOfType(t *testing.T, eventType string) []events.Event {
	t.Helper()
	all, err := h.bus.ReadAllEvents(0)
	require.NoError(t, err)
	var out []events.Event
	for _, e := range all {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func cmd(list *entities.NeedsList, actor entities.Actor, reason string) Command {
	return Command{NeedsListID: list.ID, Actor: actor, Version: list.Version, Reason: reason}
}

func TestLifecycle_FullPipeline(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	list := h.seedDraft(t, "nl-1", "2")
	officer, manager := fixtures.Officer("officer-1"), fixtures.Manager("manager-1")

	list, err := h.svc.Submit(ctx, cmd(list, officer, ""))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusSubmitted, list.Status)
	assert.Equal(t, "officer-1", list.SubmittedBy)
	require.NotNil(t, list.Approval)
	assert.Equal(t, "TIER_1", list.Approval.Tier)
	assert.True(t, list.EstimatedCost.Equal(fixtures.Qty("400")))

	list, err = h.svc.StartReview(ctx, cmd(list, manager, ""))
	require.NoError(t, err)
	assert.Equal(t, "manager-1", list.ReviewedBy)

	list, err = h.svc.AddReviewComment(ctx, cmd(list, manager, ""), Comment{
		WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemTarp, Text: "confirm tarp size",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusUnderReview, list.Status)
	tarp, _ := list.FindItem(entities.ScopeKey{WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemTarp})
	assert.Equal(t, "confirm tarp size", tarp.ReviewComment)

	list, err = h.svc.Approve(ctx, cmd(list, manager, ""))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusApproved, list.Status)
	require.NotNil(t, list.ApprovedAt)
	assert.Equal(t, fixtures.AsOf, *list.ApprovedAt)

	list, err = h.svc.StartPreparation(ctx, cmd(list, officer, ""))
	require.NoError(t, err)
	list, err = h.svc.MarkDispatched(ctx, cmd(list, officer, ""))
	require.NoError(t, err)
	list, err = h.svc.MarkReceived(ctx, cmd(list, officer, ""), Receipt{
		WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemWater, Quantity: fixtures.Qty("60"),
	}, Receipt{
		WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemTarp, Quantity: fixtures.Qty("100"),
	})
	require.NoError(t, err)
	water, _ := list.FindItem(entities.ScopeKey{WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemWater})
	tarp, _ = list.FindItem(entities.ScopeKey{WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemTarp})
	assert.Equal(t, entities.FulfillmentPartial, water.FulfillmentStatus)
	assert.Equal(t, entities.FulfillmentFulfilled, tarp.FulfillmentStatus)

	list, err = h.svc.MarkCompleted(ctx, cmd(list, officer, ""))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCompleted, list.Status)
	assert.Equal(t, int64(9), list.Version)

	assert.Len(t, h.audit(t, list.ID, entities.AuditStatusChange), 7)
	assert.Len(t, h.audit(t, list.ID, entities.AuditReviewComment), 1)
	assert.Len(t, h.eventsOfType(t, events.NeedsListTransitionedEvent), 7)
	assert.Len(t, h.eventsOfType(t, events.ReviewCommentedEvent), 1)
}

func TestLifecycle_IllegalTransitionLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	list := h.seedDraft(t, "nl-1", "2")

	_, err := h.svc.Approve(ctx, cmd(list, fixtures.Director("dg"), ""))
	var illegal *entities.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, entities.StatusDraft, illegal.From)
	assert.ElementsMatch(t, []entities.Status{entities.StatusUnderReview, entities.StatusEscalated}, illegal.Allowed)

	stored, err := h.store.Get(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusDraft, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
	assert.Empty(t, h.audit(t, list.ID, entities.AuditStatusChange))

	denied := h.eventsOfType(t, events.OperationDeniedEvent)
	require.Len(t, denied, 1)
	assert.Equal(t, "illegal_transition", denied[0].Data().(events.OperationDenied).Reason)
}

func TestLifecycle_SeparationOfDuties(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	list := h.seedDraft(t, "nl-1", "2")
	director := fixtures.Director("dg")

	list, err := h.svc.Submit(ctx, cmd(list, director, ""))
	require.NoError(t, err)

	var sod *entities.SeparationOfDutiesError
	_, err = h.svc.StartReview(ctx, cmd(list, director, ""))
	require.ErrorAs(t, err, &sod)
	assert.Equal(t, string(OpReviewStart), sod.Operation)

	list, err = h.svc.StartReview(ctx, cmd(list, fixtures.Manager("manager-1"), ""))
	require.NoError(t, err)

	_, err = h.svc.Approve(ctx, cmd(list, director, ""))
	require.ErrorAs(t, err, &sod, "holding every permission and the top role does not matter")

	stored, err := h.store.Get(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusUnderReview, stored.Status)
}

func TestLifecycle_PermissionDenied(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	list := h.seedDraft(t, "nl-1", "2")

	list, err := h.svc.Submit(ctx, cmd(list, fixtures.Officer("officer-1"), ""))
	require.NoError(t, err)

	_, err = h.svc.StartReview(ctx, cmd(list, fixtures.Officer("officer-2"), ""))
	var denied *entities.PermissionDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, entities.PermReviewStart, denied.Permission)

	_, err = h.svc.Submit(ctx, cmd(list, fixtures.NewActor("nobody", nil), ""))
	var illegal *entities.IllegalTransitionError
	assert.ErrorAs(t, err, &illegal, "status is checked before permissions")
}

func TestLifecycle_ApproverMustSatisfyTier(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	list := h.seedDraft(t, "nl-1", "20000") // 2 lines x 100 units x 20000 = 4,000,000
	manager := fixtures.Manager("manager-1")

	list, err := h.svc.Submit(ctx, cmd(list, fixtures.Officer("officer-1"), ""))
	require.NoError(t, err)
	assert.Equal(t, "SENIOR_DIRECTOR", list.Approval.Role)
	list, err = h.svc.StartReview(ctx, cmd(list, manager, ""))
	require.NoError(t, err)

	_, err = h.svc.Approve(ctx, cmd(list, manager, ""))
	var denied *entities.PermissionDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Contains(t, denied.Detail, "SENIOR_DIRECTOR")

	list, err = h.svc.Escalate(ctx, cmd(list, manager, "above my authority"))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusEscalated, list.Status)
	assert.Equal(t, "above my authority", list.EscalationReason)

	list, err = h.svc.Approve(ctx, cmd(list, fixtures.Director("dg"), ""))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusApproved, list.Status)
	assert.Equal(t, "dg", list.ApprovedBy)
}

func TestLifecycle_ReasonRequired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	list := h.seedDraft(t, "nl-1", "2")
	manager := fixtures.Manager("manager-1")

	list, err := h.svc.Submit(ctx, cmd(list, fixtures.Officer("officer-1"), ""))
	require.NoError(t, err)
	list, err = h.svc.StartReview(ctx, cmd(list, manager, ""))
	require.NoError(t, err)

	var verr *entities.ValidationError
	_, err = h.svc.Reject(ctx, cmd(list, manager, "  "))
	assert.ErrorAs(t, err, &verr)
	_, err = h.svc.Escalate(ctx, cmd(list, manager, ""))
	assert.ErrorAs(t, err, &verr)
	_, err = h.svc.Return(ctx, cmd(list, manager, ""))
	assert.ErrorAs(t, err, &verr)

	list, err = h.svc.Return(ctx, cmd(list, manager, "split tarps by size"))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusDraft, list.Status)
	assert.Equal(t, "split tarps by size", list.ReturnReason)

	entries := h.audit(t, list.ID, entities.AuditStatusChange)
	last := entries[len(entries)-1]
	assert.Equal(t, string(entities.StatusUnderReview), last.OldValue)
	assert.Equal(t, string(entities.StatusDraft), last.NewValue)
	assert.Equal(t, "split tarps by size", last.Reason)
	assert.Equal(t, "manager-1", last.Actor)
}

func TestLifecycle_TerminalStatusFreezesList(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	list := h.seedDraft(t, "nl-1", "2")
	manager := fixtures.Manager("manager-1")

	list, err := h.svc.Submit(ctx, cmd(list, fixtures.Officer("officer-1"), ""))
	require.NoError(t, err)
	list, err = h.svc.StartReview(ctx, cmd(list, manager, ""))
	require.NoError(t, err)
	list, err = h.svc.Approve(ctx, cmd(list, manager, ""))
	require.NoError(t, err)

	var verr *entities.ValidationError
	_, err = h.svc.Cancel(ctx, cmd(list, manager, ""))
	require.ErrorAs(t, err, &verr)
	list, err = h.svc.Cancel(ctx, cmd(list, manager, "event stood down"))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCancelled, list.Status)

	c := cmd(list, fixtures.Director("dg"), "any reason")
	attempts := map[string]func() error{
		"submit":     func() error { _, err := h.svc.Submit(ctx, c); return err },
		"approve":    func() error { _, err := h.svc.Approve(ctx, c); return err },
		"cancel":     func() error { _, err := h.svc.Cancel(ctx, c); return err },
		"dispatch":   func() error { _, err := h.svc.MarkDispatched(ctx, c); return err },
		"comment":    func() error { _, err := h.svc.AddReviewComment(ctx, c, Comment{Text: "late"}); return err },
		"edit lines": func() error {
			_, err := h.svc.EditLines(ctx, c, []LineEdit{{WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemWater, Quantity: fixtures.Qty("1")}})
			return err
		},
	}
	for name, attempt := range attempts {
		t.Run(name, func(t *testing.T) {
			var illegal *entities.IllegalTransitionError
			assert.ErrorAs(t, attempt(), &illegal)
		})
	}

	stored, err := h.store.Get(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, list.Version, stored.Version)
}

func TestLifecycle_EditLines(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	list := h.seedDraft(t, "nl-1", "2")
	officer := fixtures.Officer("officer-1")

	_, err := h.svc.EditLines(ctx, cmd(list, officer, ""), []LineEdit{
		{WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemWater, Quantity: fixtures.Qty("80")},
	})
	var verr *entities.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reason", verr.Field)

	_, err = h.svc.EditLines(ctx, cmd(list, officer, "x"), []LineEdit{
		{WarehouseID: fixtures.WarehouseB, ItemID: fixtures.ItemWater, Quantity: fixtures.Qty("80")},
	})
	require.ErrorAs(t, err, &verr)

	list, err = h.svc.EditLines(ctx, cmd(list, officer, "shared reason"), []LineEdit{
		{WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemWater, Quantity: fixtures.Qty("80"), Reason: "partial local purchase"},
		{WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemTarp, Quantity: fixtures.Qty("150")},
	})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusDraft, list.Status)
	assert.Equal(t, int64(2), list.Version)

	water, _ := list.FindItem(entities.ScopeKey{WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemWater})
	require.NotNil(t, water.Override)
	assert.Equal(t, "partial local purchase", water.Override.Reason)
	assert.True(t, water.GapQty.Equal(fixtures.Qty("100")), "pre-override gap is kept")
	assert.True(t, list.EstimatedCost.Equal(fixtures.Qty("460")), "(80+150) x 2")

	overrides := h.audit(t, list.ID, entities.AuditQuantityOverride)
	require.Len(t, overrides, 2)
	assert.Equal(t, "100", overrides[0].OldValue)
	assert.Equal(t, "80", overrides[0].NewValue)
	assert.Equal(t, "shared reason", overrides[1].Reason)
	assert.Empty(t, h.audit(t, list.ID, entities.AuditStatusChange))
	assert.Len(t, h.eventsOfType(t, events.LineOverriddenEvent), 2)
}

func TestLifecycle_StaleVersion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	list := h.seedDraft(t, "nl-1", "2")
	officer := fixtures.Officer("officer-1")

	stale := cmd(list, officer, "")
	_, err := h.svc.Submit(ctx, stale)
	require.NoError(t, err)

	_, err = h.svc.EditLines(ctx, Command{NeedsListID: list.ID, Actor: officer, Version: stale.Version, Reason: "late"}, []LineEdit{
		{WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemWater, Quantity: fixtures.Qty("1")},
	})
	var conflict *entities.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.True(t, conflict.Stale)
	assert.Equal(t, int64(2), conflict.CurrentVersion)

	_, err = h.svc.Submit(ctx, Command{NeedsListID: list.ID, Actor: officer})
	var verr *entities.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = h.svc.Submit(ctx, Command{NeedsListID: "missing", Actor: officer, Version: 1})
	var notFound *entities.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestLifecycle_ConcurrentEditLines(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	list := h.seedDraft(t, "nl-1", "2")

	const writers = 2
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.EditLines(ctx, cmd(list, fixtures.Officer("officer-1"), "recount"), []LineEdit{
				{WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemWater, Quantity: fixtures.Qty("5")},
			})
		}(i)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		var conflict *entities.ConflictError
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorAs(t, err, &conflict):
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
	assert.Len(t, h.audit(t, list.ID, entities.AuditQuantityOverride), 1)
}

func TestLifecycle_ChangesSince(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	list := h.seedDraft(t, "nl-1", "2")

	created := h.audit(t, list.ID, entities.AuditCreated)
	require.Len(t, created, 1)

	changes, err := h.svc.ChangesSince(ctx, list.ID, created[0].Sequence)
	require.NoError(t, err)
	assert.Empty(t, changes)

	_, err = h.svc.Submit(ctx, cmd(list, fixtures.Officer("officer-1"), ""))
	require.NoError(t, err)

	changes, err = h.svc.ChangesSince(ctx, list.ID, created[0].Sequence)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, entities.AuditStatusChange, changes[0].Action)
	assert.Equal(t, string(entities.StatusSubmitted), changes[0].NewValue)

	_, err = h.svc.ChangesSince(ctx, "missing", 0)
	var notFound *entities.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSupersede(t *testing.T) {
	draft := storefix.BuildDraftList("nl-1", "EV-1", "alice", storefix.Key("WH-A", "WATER"))

	next, entry, err := Supersede(draft, "nl-2", "bob", fixtures.AsOf)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusSuperseded, next.Status)
	require.NotNil(t, next.SupersededBy)
	assert.Equal(t, entities.NeedsListID("nl-2"), *next.SupersededBy)
	assert.Equal(t, int64(2), next.Version)
	assert.Equal(t, entities.AuditStatusChange, entry.Action)
	assert.Equal(t, entities.StatusDraft, draft.Status, "input is not mutated")

	submitted := storefix.Advance(draft, entities.StatusSubmitted)
	_, _, err = Supersede(submitted, "nl-2", "bob", fixtures.AsOf)
	var illegal *entities.IllegalTransitionError
	assert.ErrorAs(t, err, &illegal)
}

func TestLifecycle_MarkReceivedWritesOneEntry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	list := h.seedDraft(t, "nl-1", "2")
	officer, manager := fixtures.Officer("officer-1"), fixtures.Manager("manager-1")

	var err error
	for _, step := range []struct {
		run   func(context.Context, Command) (*entities.NeedsList, error)
		actor entities.Actor
	}{
		{h.svc.Submit, officer},
		{h.svc.StartReview, manager},
		{h.svc.Approve, manager},
		{h.svc.StartPreparation, officer},
		{h.svc.MarkDispatched, officer},
	} {
		list, err = step.run(ctx, cmd(list, step.actor, ""))
		require.NoError(t, err)
	}

	before, err := h.store.ListAudit(ctx, repositories.AuditFilter{NeedsListID: list.ID})
	require.NoError(t, err)

	list, err = h.svc.MarkReceived(ctx, cmd(list, officer, ""), Receipt{
		WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemWater, Quantity: fixtures.Qty("60"),
	}, Receipt{
		WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemTarp, Quantity: fixtures.Qty("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusReceived, list.Status)

	after, err := h.store.ListAudit(ctx, repositories.AuditFilter{NeedsListID: list.ID})
	require.NoError(t, err)
	require.Len(t, after, len(before)+1, "one transition, one entry")

	entry := after[len(after)-1]
	assert.Equal(t, entities.AuditStatusChange, entry.Action)
	assert.Equal(t, string(entities.StatusReceived), entry.NewValue)
	assert.Equal(t, []entities.AuditDetail{
		{WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemWater, Field: "fulfilled_qty", OldValue: "0", NewValue: "60"},
		{WarehouseID: fixtures.WarehouseA, ItemID: fixtures.ItemTarp, Field: "fulfilled_qty", OldValue: "0", NewValue: "100"},
	}, entry.Details)
}

func TestLifecycle_IllegalTransitionReportedBeforeStaleVersion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	list := h.seedDraft(t, "nl-1", "2")

	stale := cmd(list, fixtures.Manager("manager-1"), "")
	stale.Version = 7
	_, err := h.svc.Approve(ctx, stale)

	var illegal *entities.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, entities.StatusDraft, illegal.From)
}

func TestLifecycle_ApproveFromEscalated(t *testing.T) {
	ctx := context.Background()
	submitter := fixtures.Director("dg-submitter")

	tests := []struct {
		name     string
		approver entities.Actor
		wantErr  interface{}
	}{
		{"submitter refused", submitter, new(*entities.SeparationOfDutiesError)},
		{"tier not satisfied", fixtures.Manager("manager-2"), new(*entities.PermissionDeniedError)},
		{"senior role approves", fixtures.Director("dg"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			list := h.seedDraft(t, "nl-1", "20000")
			manager := fixtures.Manager("manager-1")

			list, err := h.svc.Submit(ctx, cmd(list, submitter, ""))
			require.NoError(t, err)
			list, err = h.svc.StartReview(ctx, cmd(list, manager, ""))
			require.NoError(t, err)
			list, err = h.svc.Escalate(ctx, cmd(list, manager, "above my authority"))
			require.NoError(t, err)

			approved, err := h.svc.Approve(ctx, cmd(list, tt.approver, ""))
			if tt.wantErr != nil {
				require.ErrorAs(t, err, tt.wantErr)
				stored, getErr := h.store.Get(ctx, list.ID)
				require.NoError(t, getErr)
				assert.Equal(t, entities.StatusEscalated, stored.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, entities.StatusApproved, approved.Status)
			assert.Equal(t, tt.approver.ID, approved.ApprovedBy)
		})
	}
}
