// Package storetest holds the behavioural contract every repositories.Store
// adapter must satisfy.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/domain/repositories"
	fixtures "github.com/vsinha/needslist/pkg/infrastructure/testing"
)

// Factory returns a fresh, empty store
type Factory func(t *testing.T) repositories.Store

// Run executes the contract against stores produced by newStore
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store repositories.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"GetMissing", testGetMissing},
		{"CreateRejectsOverlappingActiveScope", testCreateRejectsOverlap},
		{"CreateAllowsDisjointScope", testCreateAllowsDisjoint},
		{"UpdateRejectsStaleVersion", testUpdateStaleVersion},
		{"UpdateRejectsOverlap", testUpdateRejectsOverlap},
		{"TerminalListReleasesScope", testTerminalReleasesScope},
		{"CreateWithReplacement", testCreateWithReplacement},
		{"CreateWithStaleReplacementWritesNothing", testStaleReplacement},
		{"ListFilter", testListFilter},
		{"AuditSequencing", testAuditSequencing},
		{"ConcurrentUpdatesSingleWinner", testConcurrentUpdates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			t.Cleanup(func() { _ = store.Close() })
			tt.fn(t, store)
		})
	}
}

var listOpts = cmp.Options{cmpopts.EquateEmpty()}

func testCreateAndGet(t *testing.T, store repositories.Store) {
	ctx := context.Background()
	list := fixtures.BuildDraftList("NL-1", "EV-1", "officer", fixtures.Key("WH-A", "WATER"), fixtures.Key("WH-A", "TARP"))
	require.NoError(t, store.Create(ctx, list, nil, []entities.AuditEntry{fixtures.BuildEntry("NL-1", entities.AuditCreated, "officer")}))

	got, err := store.Get(ctx, "NL-1")
	require.NoError(t, err)
	if diff := cmp.Diff(list, got, listOpts); diff != "" {
		t.Errorf("stored list mismatch (-want +got):\n%s", diff)
	}

	got.Status = entities.StatusCancelled
	again, err := store.Get(ctx, "NL-1")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusDraft, again.Status, "returned lists must not alias stored state")
}

func testGetMissing(t *testing.T, store repositories.Store) {
	_, err := store.Get(context.Background(), "missing")
	var nf *entities.NotFoundError
	require.True(t, errors.As(err, &nf), "expected NotFoundError, got %v", err)
	assert.Equal(t, entities.NeedsListID("missing"), nf.NeedsListID)
}

func testCreateRejectsOverlap(t *testing.T, store repositories.Store) {
	ctx := context.Background()
	first := fixtures.BuildDraftList("NL-1", "EV-1", "officer", fixtures.Key("WH-A", "WATER"), fixtures.Key("WH-A", "TARP"))
	require.NoError(t, store.Create(ctx, first, nil, nil))

	second := fixtures.BuildDraftList("NL-2", "EV-1", "officer2", fixtures.Key("WH-A", "WATER"), fixtures.Key("WH-B", "WATER"))
	err := store.Create(ctx, second, nil, []entities.AuditEntry{fixtures.BuildEntry("NL-2", entities.AuditCreated, "officer2")})

	var ce *entities.ConflictError
	require.True(t, errors.As(err, &ce), "expected ConflictError, got %v", err)
	require.Len(t, ce.Conflicts, 1)
	assert.Equal(t, entities.NeedsListID("NL-1"), ce.Conflicts[0].NeedsListID)
	assert.Equal(t, []entities.ScopeKey{fixtures.Key("WH-A", "WATER")}, ce.Conflicts[0].OverlappingItems)

	_, err = store.Get(ctx, "NL-2")
	assert.Error(t, err, "rejected create must not be stored")
	entries, err := store.ListAudit(ctx, repositories.AuditFilter{NeedsListID: "NL-2"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func testCreateAllowsDisjoint(t *testing.T, store repositories.Store) {
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, fixtures.BuildDraftList("NL-1", "EV-1", "officer", fixtures.Key("WH-A", "WATER")), nil, nil))
	require.NoError(t, store.Create(ctx, fixtures.BuildDraftList("NL-2", "EV-1", "officer", fixtures.Key("WH-A", "TARP")), nil, nil))
	require.NoError(t, store.Create(ctx, fixtures.BuildDraftList("NL-3", "EV-2", "officer", fixtures.Key("WH-A", "WATER")), nil, nil))
}

func testUpdateStaleVersion(t *testing.T, store repositories.Store) {
	ctx := context.Background()
	list := fixtures.BuildDraftList("NL-1", "EV-1", "officer", fixtures.Key("WH-A", "WATER"))
	require.NoError(t, store.Create(ctx, list, nil, nil))

	submitted := fixtures.Advance(list, entities.StatusSubmitted)
	require.NoError(t, store.Update(ctx, submitted, 1, []entities.AuditEntry{fixtures.BuildEntry("NL-1", entities.AuditStatusChange, "officer")}))

	cancelled := fixtures.Advance(list, entities.StatusCancelled)
	err := store.Update(ctx, cancelled, 1, []entities.AuditEntry{fixtures.BuildEntry("NL-1", entities.AuditStatusChange, "other")})

	var ce *entities.ConflictError
	require.True(t, errors.As(err, &ce), "expected ConflictError, got %v", err)
	assert.True(t, ce.Stale)
	assert.Equal(t, int64(1), ce.ExpectedVersion)
	assert.Equal(t, int64(2), ce.CurrentVersion)

	got, err := store.Get(ctx, "NL-1")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusSubmitted, got.Status)
	entries, err := store.ListAudit(ctx, repositories.AuditFilter{NeedsListID: "NL-1"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	missing := fixtures.BuildDraftList("NL-404", "EV-1", "officer", fixtures.Key("WH-Z", "WATER"))
	var nf *entities.NotFoundError
	assert.True(t, errors.As(store.Update(ctx, missing, 1, nil), &nf))
}

func testUpdateRejectsOverlap(t *testing.T, store repositories.Store) {
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, fixtures.BuildDraftList("NL-1", "EV-1", "officer", fixtures.Key("WH-A", "WATER")), nil, nil))
	second := fixtures.BuildDraftList("NL-2", "EV-1", "officer", fixtures.Key("WH-A", "TARP"))
	require.NoError(t, store.Create(ctx, second, nil, nil))

	grown := fixtures.Advance(second, entities.StatusDraft)
	grown.Items = append(grown.Items, fixtures.BuildDraftList("x", "EV-1", "officer", fixtures.Key("WH-A", "WATER")).Items...)
	err := store.Update(ctx, grown, 1, nil)

	var ce *entities.ConflictError
	require.True(t, errors.As(err, &ce), "expected ConflictError, got %v", err)
	assert.False(t, ce.Stale)

	got, err := store.Get(ctx, "NL-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Len(t, got.Items, 1)
}

func testTerminalReleasesScope(t *testing.T, store repositories.Store) {
	ctx := context.Background()
	first := fixtures.BuildDraftList("NL-1", "EV-1", "officer", fixtures.Key("WH-A", "WATER"))
	require.NoError(t, store.Create(ctx, first, nil, nil))
	require.NoError(t, store.Update(ctx, fixtures.Advance(first, entities.StatusCancelled), 1, nil))

	require.NoError(t, store.Create(ctx, fixtures.BuildDraftList("NL-2", "EV-1", "officer", fixtures.Key("WH-A", "WATER")), nil, nil))
}

func testCreateWithReplacement(t *testing.T, store repositories.Store) {
	ctx := context.Background()
	old := fixtures.BuildDraftList("NL-1", "EV-1", "officer", fixtures.Key("WH-A", "WATER"))
	require.NoError(t, store.Create(ctx, old, nil, nil))

	superseded := fixtures.Advance(old, entities.StatusSuperseded)
	next := entities.NeedsListID("NL-2")
	superseded.SupersededBy = &next
	replacement := fixtures.BuildDraftList("NL-2", "EV-1", "officer", fixtures.Key("WH-A", "WATER"), fixtures.Key("WH-A", "TARP"))

	entries := []entities.AuditEntry{
		fixtures.BuildEntry("NL-1", entities.AuditSuperseded, "officer"),
		fixtures.BuildEntry("NL-2", entities.AuditCreated, "officer"),
	}
	require.NoError(t, store.Create(ctx, replacement, []repositories.Replacement{{List: superseded, ExpectedVersion: 1}}, entries))

	got, err := store.Get(ctx, "NL-1")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusSuperseded, got.Status)
	require.NotNil(t, got.SupersededBy)
	assert.Equal(t, next, *got.SupersededBy)

	active, err := store.List(ctx, repositories.ListFilter{EventID: "EV-1", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, next, active[0].ID)
}

func testStaleReplacement(t *testing.T, store repositories.Store) {
	ctx := context.Background()
	old := fixtures.BuildDraftList("NL-1", "EV-1", "officer", fixtures.Key("WH-A", "WATER"))
	require.NoError(t, store.Create(ctx, old, nil, nil))

	superseded := fixtures.Advance(old, entities.StatusSuperseded)
	replacement := fixtures.BuildDraftList("NL-2", "EV-1", "officer", fixtures.Key("WH-A", "WATER"))
	err := store.Create(ctx, replacement, []repositories.Replacement{{List: superseded, ExpectedVersion: 7}}, nil)

	var ce *entities.ConflictError
	require.True(t, errors.As(err, &ce), "expected ConflictError, got %v", err)
	assert.True(t, ce.Stale)

	got, err := store.Get(ctx, "NL-1")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusDraft, got.Status)
	_, err = store.Get(ctx, "NL-2")
	assert.Error(t, err)
}

func testListFilter(t *testing.T, store repositories.Store) {
	ctx := context.Background()
	a := fixtures.BuildDraftList("NL-1", "EV-1", "officer", fixtures.Key("WH-A", "WATER"))
	require.NoError(t, store.Create(ctx, a, nil, nil))
	require.NoError(t, store.Create(ctx, fixtures.BuildDraftList("NL-2", "EV-1", "officer", fixtures.Key("WH-B", "WATER")), nil, nil))
	require.NoError(t, store.Create(ctx, fixtures.BuildDraftList("NL-3", "EV-2", "officer", fixtures.Key("WH-A", "WATER")), nil, nil))
	require.NoError(t, store.Update(ctx, fixtures.Advance(a, entities.StatusCancelled), 1, nil))

	ids := func(lists []*entities.NeedsList) []entities.NeedsListID {
		out := make([]entities.NeedsListID, len(lists))
		for i, l := range lists {
			out[i] = l.ID
		}
		return out
	}

	tests := []struct {
		name   string
		filter repositories.ListFilter
		want   []entities.NeedsListID
	}{
		{"all", repositories.ListFilter{}, []entities.NeedsListID{"NL-1", "NL-2", "NL-3"}},
		{"event", repositories.ListFilter{EventID: "EV-1"}, []entities.NeedsListID{"NL-1", "NL-2"}},
		{"active", repositories.ListFilter{EventID: "EV-1", ActiveOnly: true}, []entities.NeedsListID{"NL-2"}},
		{"warehouse", repositories.ListFilter{WarehouseIDs: []entities.WarehouseID{"WH-A"}}, []entities.NeedsListID{"NL-1", "NL-3"}},
		{"status", repositories.ListFilter{Statuses: []entities.Status{entities.StatusCancelled}}, []entities.NeedsListID{"NL-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func testAuditSequencing(t *testing.T, store repositories.Store) {
	ctx := context.Background()
	list := fixtures.BuildDraftList("NL-1", "EV-1", "officer", fixtures.Key("WH-A", "WATER"))
	require.NoError(t, store.Create(ctx, list, nil, []entities.AuditEntry{fixtures.BuildEntry("NL-1", entities.AuditCreated, "officer")}))
	require.NoError(t, store.Update(ctx, fixtures.Advance(list, entities.StatusSubmitted), 1,
		[]entities.AuditEntry{fixtures.BuildEntry("NL-1", entities.AuditStatusChange, "officer")}))
	require.NoError(t, store.AppendAudit(ctx, fixtures.BuildEntry("NL-1", entities.AuditReviewComment, "reviewer")))

	all, err := store.ListAudit(ctx, repositories.AuditFilter{NeedsListID: "NL-1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].Sequence, all[i-1].Sequence)
	}
	for _, e := range all {
		assert.NotEmpty(t, e.ID)
	}

	after, err := store.ListAudit(ctx, repositories.AuditFilter{AfterSequence: all[0].Sequence})
	require.NoError(t, err)
	assert.Len(t, after, 2)

	changes, err := store.ListAudit(ctx, repositories.AuditFilter{Actions: []entities.AuditAction{entities.AuditStatusChange}})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "officer", changes[0].Actor)

	var nf *entities.NotFoundError
	assert.True(t, errors.As(store.AppendAudit(ctx, fixtures.BuildEntry("NL-404", entities.AuditReviewComment, "x")), &nf))
}

func testConcurrentUpdates(t *testing.T, store repositories.Store) {
	ctx := context.Background()
	list := fixtures.BuildDraftList("NL-1", "EV-1", "officer", fixtures.Key("WH-A", "WATER"))
	require.NoError(t, store.Create(ctx, list, nil, nil))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update(ctx, fixtures.Advance(list, entities.StatusSubmitted), 1,
				[]entities.AuditEntry{fixtures.BuildEntry("NL-1", entities.AuditStatusChange, "officer")})
			mu.Lock()
			defer mu.Unlock()
			var ce *entities.ConflictError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &ce):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, conflicts)
	entries, err := store.ListAudit(ctx, repositories.AuditFilter{NeedsListID: "NL-1"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
