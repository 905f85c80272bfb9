// Package file persists needs lists and their audit trail as a single JSON
// document, replaced atomically on every write.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/domain/repositories"
	"github.com/vsinha/needslist/pkg/infrastructure/repositories/memory"
)

// lockRetryDelay is how often a blocked caller retries the lock file
const lockRetryDelay = 20 * time.Millisecond

// Store is the flat-file adapter. Every operation takes a lock on a sidecar
// file, reloads the document and runs against that state, so several
// processes sharing one path see each other's writes and version checks.
// Writes hold the lock exclusively until the document has been replaced.
type Store struct {
	mu     sync.Mutex // one lock holder per Store; flock.Flock is not reentrant
	path   string
	lock   *flock.Flock
	logger zerolog.Logger
}

var _ repositories.Store = (*Store)(nil)

// Open prepares the store at path and checks that an existing document can
// be decoded
func Open(path string, logger zerolog.Logger) (*Store, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.With().Str("component", "file_store").Str("path", path).Logger(),
	}

	var snapshot memory.Snapshot
	err := s.withLock(context.Background(), false, func() error {
		var err error
		snapshot, err = s.load()
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("lists", len(snapshot.Lists)).Int64("sequence", snapshot.Sequence).Msg("store opened")
	return s, nil
}

func (s *Store) Create(ctx context.Context, list *entities.NeedsList, replacements []repositories.Replacement, entries []entities.AuditEntry) error {
	return s.write(ctx, func(state *memory.NeedsListStore) error {
		return state.Create(ctx, list, replacements, entries)
	})
}

func (s *Store) Get(ctx context.Context, id entities.NeedsListID) (*entities.NeedsList, error) {
	var list *entities.NeedsList
	err := s.read(ctx, func(state *memory.NeedsListStore) error {
		var err error
		list, err = state.Get(ctx, id)
		return err
	})
	return list, err
}

func (s *Store) Update(ctx context.Context, list *entities.NeedsList, expectedVersion int64, entries []entities.AuditEntry) error {
	return s.write(ctx, func(state *memory.NeedsListStore) error {
		return state.Update(ctx, list, expectedVersion, entries)
	})
}

func (s *Store) List(ctx context.Context, filter repositories.ListFilter) ([]*entities.NeedsList, error) {
	var lists []*entities.NeedsList
	err := s.read(ctx, func(state *memory.NeedsListStore) error {
		var err error
		lists, err = state.List(ctx, filter)
		return err
	})
	return lists, err
}

func (s *Store) AppendAudit(ctx context.Context, entries ...entities.AuditEntry) error {
	return s.write(ctx, func(state *memory.NeedsListStore) error {
		return state.AppendAudit(ctx, entries...)
	})
}

func (s *Store) ListAudit(ctx context.Context, filter repositories.AuditFilter) ([]entities.AuditEntry, error) {
	var entries []entities.AuditEntry
	err := s.read(ctx, func(state *memory.NeedsListStore) error {
		var err error
		entries, err = state.ListAudit(ctx, filter)
		return err
	})
	return entries, err
}

// Close releases the lock file handle
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Close()
}

// read runs fn against the document under a shared lock
func (s *Store) read(ctx context.Context, fn func(*memory.NeedsListStore) error) error {
	return s.withLock(ctx, false, func() error {
		snapshot, err := s.load()
		if err != nil {
			return err
		}
		return fn(memory.NewNeedsListStoreFromSnapshot(snapshot, nil))
	})
}

// write runs fn against the document under an exclusive lock. The document
// is replaced before the lock is released.
func (s *Store) write(ctx context.Context, fn func(*memory.NeedsListStore) error) error {
	return s.withLock(ctx, true, func() error {
		snapshot, err := s.load()
		if err != nil {
			return err
		}
		return fn(memory.NewNeedsListStoreFromSnapshot(snapshot, s.persist))
	})
}

func (s *Store) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var locked bool
	var err error
	if exclusive {
		locked, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = s.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("lock store file: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock store file: %s not acquired", s.lock.Path())
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn().Err(err).Msg("unlock store file")
		}
	}()
	return fn()
}

// load reads the document; a missing or empty file is an empty store
func (s *Store) load() (memory.Snapshot, error) {
	var snapshot memory.Snapshot
	// #nosec G304 -- the path comes from operator configuration
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return snapshot, fmt.Errorf("read store file: %w", err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return snapshot, fmt.Errorf("decode store file %s: %w", s.path, err)
		}
	}
	return snapshot, nil
}

func (s *Store) persist(snapshot memory.Snapshot) error {
	pendingFile, err := renameio.NewPendingFile(s.path)
	if err != nil {
		return fmt.Errorf("create pending store file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			s.logger.Debug().Err(err).Msg("cleanup pending store file")
		}
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace store file: %w", err)
	}
	return nil
}
