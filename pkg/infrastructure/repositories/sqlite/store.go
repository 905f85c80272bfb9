// Package sqlite is the relational needs list adapter. Lists are stored as
// JSON documents next to a scope table whose partial unique index enforces
// one active list per (event, warehouse, item).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go driver

	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/domain/repositories"
)

// Config defines SQLite operational parameters
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 8,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS needs_lists (
	id         TEXT PRIMARY KEY,
	event_id   TEXT NOT NULL,
	status     TEXT NOT NULL,
	version    INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	data       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_needs_lists_event ON needs_lists(event_id);

CREATE TABLE IF NOT EXISTS needs_list_scope (
	needs_list_id TEXT NOT NULL REFERENCES needs_lists(id),
	event_id      TEXT NOT NULL,
	warehouse_id  TEXT NOT NULL,
	item_id       TEXT NOT NULL,
	active        INTEGER NOT NULL,
	PRIMARY KEY (needs_list_id, warehouse_id, item_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_needs_list_scope_active
	ON needs_list_scope(event_id, warehouse_id, item_id)
	WHERE active = 1;

CREATE TABLE IF NOT EXISTS audit_entries (
	sequence      INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	needs_list_id TEXT NOT NULL REFERENCES needs_lists(id),
	action        TEXT NOT NULL,
	at            TEXT NOT NULL,
	data          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_entries_list ON audit_entries(needs_list_id, sequence);
`

// Store implements repositories.Store on SQLite
type Store struct {
	db     *sql.DB
	mu     sync.Mutex // serializes writers; readers use the pool
	logger zerolog.Logger
}

var _ repositories.Store = (*Store)(nil)

// Open opens (and migrates) the database at dbPath with WAL enabled on every
// pooled connection
func Open(dbPath string, cfg Config, logger zerolog.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate failed: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "sqlite_store").Logger(),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, list *entities.NeedsList, replacements []repositories.Replacement, entries []entities.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range replacements {
			if err := updateList(ctx, tx, r.List, r.ExpectedVersion); err != nil {
				return err
			}
		}

		if err := checkScope(ctx, tx, list); err != nil {
			return err
		}
		data, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("encode needs list: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO needs_lists (id, event_id, status, version, created_at, data) VALUES (?, ?, ?, ?, ?, ?)`,
			string(list.ID), string(list.EventID), string(list.Status), list.Version, formatTime(list.CreatedAt), string(data))
		if err != nil {
			return translate(list.ID, fmt.Errorf("insert needs list: %w", err))
		}
		if err := writeScope(ctx, tx, list); err != nil {
			return err
		}
		return appendAudit(ctx, tx, entries)
	})
}

func (s *Store) Get(ctx context.Context, id entities.NeedsListID) (*entities.NeedsList, error) {
	return getList(ctx, s.db, id)
}

func (s *Store) Update(ctx context.Context, list *entities.NeedsList, expectedVersion int64, entries []entities.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateList(ctx, tx, list, expectedVersion); err != nil {
			return err
		}
		return appendAudit(ctx, tx, entries)
	})
}

func (s *Store) List(ctx context.Context, filter repositories.ListFilter) ([]*entities.NeedsList, error) {
	query := `SELECT data FROM needs_lists`
	var args []interface{}
	if filter.EventID != "" {
		query += ` WHERE event_id = ?`
		args = append(args, string(filter.EventID))
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query needs lists: %w", err)
	}
	defer rows.Close()

	var result []*entities.NeedsList
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan needs list: %w", err)
		}
		var list entities.NeedsList
		if err := json.Unmarshal([]byte(data), &list); err != nil {
			return nil, fmt.Errorf("decode needs list: %w", err)
		}
		if filter.Matches(&list) {
			result = append(result, &list)
		}
	}
	return result, rows.Err()
}

func (s *Store) AppendAudit(ctx context.Context, entries ...entities.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		return appendAudit(ctx, tx, entries)
	})
}

func (s *Store) ListAudit(ctx context.Context, filter repositories.AuditFilter) ([]entities.AuditEntry, error) {
	query := `SELECT sequence, data FROM audit_entries WHERE sequence > ?`
	args := []interface{}{filter.AfterSequence}
	if filter.NeedsListID != "" {
		query += ` AND needs_list_id = ?`
		args = append(args, string(filter.NeedsListID))
	}
	if len(filter.Actions) > 0 {
		placeholders := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			placeholders[i] = "?"
			args = append(args, string(a))
		}
		query += ` AND action IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY sequence`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var result []entities.AuditEntry
	for rows.Next() {
		var (
			sequence int64
			data     string
		)
		if err := rows.Scan(&sequence, &data); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		var entry entities.AuditEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		entry.Sequence = sequence
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getList(ctx context.Context, q queryer, id entities.NeedsListID) (*entities.NeedsList, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM needs_lists WHERE id = ?`, string(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &entities.NotFoundError{NeedsListID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get needs list %s: %w", id, err)
	}
	var list entities.NeedsList
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("decode needs list %s: %w", id, err)
	}
	return &list, nil
}

// updateList compares and swaps the stored version and rewrites the scope rows
func updateList(ctx context.Context, tx *sql.Tx, list *entities.NeedsList, expectedVersion int64) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode needs list: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE needs_lists SET status = ?, version = ?, data = ? WHERE id = ? AND version = ?`,
		string(list.Status), list.Version, string(data), string(list.ID), expectedVersion)
	if err != nil {
		return fmt.Errorf("update needs list: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update needs list: %w", err)
	}
	if n == 0 {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM needs_lists WHERE id = ?`, string(list.ID)).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return &entities.NotFoundError{NeedsListID: list.ID}
		}
		if err != nil {
			return fmt.Errorf("read needs list version: %w", err)
		}
		return entities.NewStaleVersionError(list.ID, expectedVersion, current)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM needs_list_scope WHERE needs_list_id = ?`, string(list.ID)); err != nil {
		return fmt.Errorf("clear scope: %w", err)
	}
	if err := checkScope(ctx, tx, list); err != nil {
		return err
	}
	return writeScope(ctx, tx, list)
}

// checkScope reports the active lists overlapping an active candidate
func checkScope(ctx context.Context, tx *sql.Tx, list *entities.NeedsList) error {
	if !list.Status.IsActive() {
		return nil
	}
	scope := list.Scope()
	seen := make(map[entities.NeedsListID]bool)
	var conflicts []entities.Conflict

	for _, key := range scope.Keys {
		rows, err := tx.QueryContext(ctx,
			`SELECT needs_list_id FROM needs_list_scope
			 WHERE active = 1 AND event_id = ? AND warehouse_id = ? AND item_id = ? AND needs_list_id <> ?`,
			string(list.EventID), string(key.WarehouseID), string(key.ItemID), string(list.ID))
		if err != nil {
			return fmt.Errorf("query scope: %w", err)
		}
		var ids []entities.NeedsListID
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan scope: %w", err)
			}
			ids = append(ids, entities.NeedsListID(id))
		}
		rows.Close()

		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			other, err := getList(ctx, tx, id)
			if err != nil {
				return err
			}
			if c, ok := other.ConflictWith(scope); ok {
				conflicts = append(conflicts, c)
			}
		}
	}

	if len(conflicts) > 0 {
		return &entities.ConflictError{NeedsListID: list.ID, Conflicts: conflicts}
	}
	return nil
}

func writeScope(ctx context.Context, tx *sql.Tx, list *entities.NeedsList) error {
	active := 0
	if list.Status.IsActive() {
		active = 1
	}
	seen := make(map[entities.ScopeKey]bool)
	for _, key := range list.Scope().Keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		_, err := tx.ExecContext(ctx,
			`INSERT INTO needs_list_scope (needs_list_id, event_id, warehouse_id, item_id, active) VALUES (?, ?, ?, ?, ?)`,
			string(list.ID), string(list.EventID), string(key.WarehouseID), string(key.ItemID), active)
		if err != nil {
			return translate(list.ID, fmt.Errorf("insert scope: %w", err))
		}
	}
	return nil
}

func appendAudit(ctx context.Context, tx *sql.Tx, entries []entities.AuditEntry) error {
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.Sequence = 0
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode audit entry: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO audit_entries (id, needs_list_id, action, at, data) VALUES (?, ?, ?, ?, ?)`,
			e.ID, string(e.NeedsListID), string(e.Action), formatTime(e.At), string(data))
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return &entities.NotFoundError{NeedsListID: e.NeedsListID}
			}
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}
	return nil
}

// translate maps a unique-index violation that slipped past checkScope to a
// conflict error
func translate(id entities.NeedsListID, err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &entities.ConflictError{NeedsListID: id}
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
