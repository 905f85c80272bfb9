package guard

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/infrastructure/repositories/memory"
	fixtures "github.com/vsinha/needslist/pkg/infrastructure/testing"
)

func seed(t *testing.T, store *memory.NeedsListStore, lists ...*entities.NeedsList) {
	t.Helper()
	for _, list := range lists {
		require.NoError(t, store.Create(context.Background(), list, nil, nil))
	}
}

func TestCheck_ReportsOverlappingActiveLists(t *testing.T) {
	ctx := context.Background()
	store := memory.NewNeedsListStore()

	draft := fixtures.BuildDraftList("nl-1", "EV-1", "alice", fixtures.Key("WH-A", "WATER"), fixtures.Key("WH-A", "TARP"))
	submitted := fixtures.BuildDraftList("nl-2", "EV-1", "bob", fixtures.Key("WH-B", "WATER"))
	submitted.Status = entities.StatusSubmitted
	submitted.SubmittedBy = "bob"
	otherEvent := fixtures.BuildDraftList("nl-3", "EV-2", "carol", fixtures.Key("WH-A", "WATER"))
	seed(t, store, draft, submitted, otherEvent)

	g := NewGuard(store, zerolog.Nop())
	scope := entities.Scope{EventID: "EV-1", Keys: []entities.ScopeKey{
		fixtures.Key("WH-A", "WATER"),
		fixtures.Key("WH-B", "WATER"),
		fixtures.Key("WH-C", "WATER"),
	}}

	conflicts, err := g.Check(ctx, scope, "")
	require.NoError(t, err)
	require.Len(t, conflicts, 2)

	assert.Equal(t, entities.NeedsListID("nl-1"), conflicts[0].NeedsListID)
	assert.Equal(t, entities.StatusDraft, conflicts[0].Status)
	assert.Equal(t, "alice", conflicts[0].CreatedBy)
	assert.Equal(t, []entities.ScopeKey{fixtures.Key("WH-A", "WATER")}, conflicts[0].OverlappingItems)

	assert.Equal(t, entities.NeedsListID("nl-2"), conflicts[1].NeedsListID)
	assert.Equal(t, "bob", conflicts[1].SubmittedBy)

	blocking := Blocking(conflicts)
	require.Len(t, blocking, 1)
	assert.Equal(t, entities.NeedsListID("nl-2"), blocking[0].NeedsListID)
}

func TestCheck_ExcludesRecalculatedDraft(t *testing.T) {
	store := memory.NewNeedsListStore()
	seed(t, store, fixtures.BuildDraftList("nl-1", "EV-1", "alice", fixtures.Key("WH-A", "WATER")))

	g := NewGuard(store, zerolog.Nop())
	scope := entities.Scope{EventID: "EV-1", Keys: []entities.ScopeKey{fixtures.Key("WH-A", "WATER")}}

	conflicts, err := g.Check(context.Background(), scope, "nl-1")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestCheck_IgnoresTerminalLists(t *testing.T) {
	ctx := context.Background()
	store := memory.NewNeedsListStore()
	list := fixtures.BuildDraftList("nl-1", "EV-1", "alice", fixtures.Key("WH-A", "WATER"))
	seed(t, store, list)
	require.NoError(t, store.Update(ctx, fixtures.Advance(list, entities.StatusCancelled), 1, nil))

	g := NewGuard(store, zerolog.Nop())
	conflicts, err := g.Check(ctx, entities.Scope{EventID: "EV-1", Keys: []entities.ScopeKey{fixtures.Key("WH-A", "WATER")}}, "")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestCheck_RejectsEmptyScope(t *testing.T) {
	g := NewGuard(memory.NewNeedsListStore(), zerolog.Nop())

	_, err := g.Check(context.Background(), entities.Scope{Keys: []entities.ScopeKey{fixtures.Key("WH-A", "WATER")}}, "")
	var verr *entities.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = g.Check(context.Background(), entities.Scope{EventID: "EV-1"}, "")
	assert.ErrorAs(t, err, &verr)
}
