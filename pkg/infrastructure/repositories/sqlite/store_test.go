package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/domain/repositories"
	"github.com/vsinha/needslist/pkg/infrastructure/repositories/storetest"
	fixtures "github.com/vsinha/needslist/pkg/infrastructure/testing"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path, DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	return store
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repositories.Store {
		return openTestStore(t, filepath.Join(t.TempDir(), "needslist.db"))
	})
}

func TestStore_PartialIndexRejectsDuplicateActiveScope(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "needslist.db"))
	defer store.Close()

	require.NoError(t, store.Create(ctx, fixtures.BuildDraftList("NL-1", "EV-1", "officer", fixtures.Key("WH-A", "WATER")), nil, nil))

	conn, err := store.db.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.ExecContext(ctx, `PRAGMA foreign_keys = OFF`)
	require.NoError(t, err)

	// bypass the pre-check: the index alone must refuse a second active row
	_, err = conn.ExecContext(ctx,
		`INSERT INTO needs_list_scope (needs_list_id, event_id, warehouse_id, item_id, active) VALUES (?, ?, ?, ?, 1)`,
		"NL-shadow", "EV-1", "WH-A", "WATER")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE constraint failed")

	_, err = conn.ExecContext(ctx,
		`INSERT INTO needs_list_scope (needs_list_id, event_id, warehouse_id, item_id, active) VALUES (?, ?, ?, ?, 0)`,
		"NL-shadow", "EV-1", "WH-A", "WATER")
	assert.NoError(t, err, "inactive rows may repeat a key")
}

func TestStore_ReopenKeepsSequence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "needslist.db")

	store := openTestStore(t, path)
	require.NoError(t, store.Create(ctx, fixtures.BuildDraftList("NL-1", "EV-1", "officer", fixtures.Key("WH-A", "WATER")), nil,
		[]entities.AuditEntry{fixtures.BuildEntry("NL-1", entities.AuditCreated, "officer")}))
	require.NoError(t, store.Close())

	reopened := openTestStore(t, path)
	defer reopened.Close()
	require.NoError(t, reopened.AppendAudit(ctx, fixtures.BuildEntry("NL-1", entities.AuditReviewComment, "reviewer")))

	entries, err := reopened.ListAudit(ctx, repositories.AuditFilter{NeedsListID: "NL-1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Greater(t, entries[1].Sequence, entries[0].Sequence)
}
