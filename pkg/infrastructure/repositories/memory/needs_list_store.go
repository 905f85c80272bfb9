package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/domain/repositories"
)

// Snapshot is the complete store state, used by adapters that persist the
// in-memory state elsewhere
type Snapshot struct {
	Lists    []*entities.NeedsList `json:"lists"`
	Audit    []entities.AuditEntry `json:"audit"`
	Sequence int64                 `json:"sequence"`
}

// CommitFunc receives the state a write would produce. Returning an error
// aborts the write and leaves the store unchanged.
type CommitFunc func(Snapshot) error

// NeedsListStore provides in-memory needs list and audit storage. All
// reads and writes copy the aggregate so callers never alias stored state.
type NeedsListStore struct {
	mu       sync.RWMutex
	lists    map[entities.NeedsListID]*entities.NeedsList
	order    []entities.NeedsListID
	audit    []entities.AuditEntry
	sequence int64
	commit   CommitFunc
}

// NewNeedsListStore creates an empty in-memory store
func NewNeedsListStore() *NeedsListStore {
	return &NeedsListStore{
		lists: make(map[entities.NeedsListID]*entities.NeedsList),
	}
}

// NewNeedsListStoreFromSnapshot restores state and calls commit before every
// write is applied
func NewNeedsListStoreFromSnapshot(snapshot Snapshot, commit CommitFunc) *NeedsListStore {
	s := NewNeedsListStore()
	for _, list := range snapshot.Lists {
		s.lists[list.ID] = list.Clone()
		s.order = append(s.order, list.ID)
	}
	s.audit = append(s.audit, snapshot.Audit...)
	s.sequence = snapshot.Sequence
	s.commit = commit
	return s
}

// Verify interface compliance
var _ repositories.Store = (*NeedsListStore)(nil)

func (s *NeedsListStore) Create(ctx context.Context, list *entities.NeedsList, replacements []repositories.Replacement, entries []entities.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lists[list.ID]; exists {
		return fmt.Errorf("needs list %s already exists", list.ID)
	}

	changed := make(map[entities.NeedsListID]*entities.NeedsList, len(replacements)+1)
	for _, r := range replacements {
		current, ok := s.lists[r.List.ID]
		if !ok {
			return &entities.NotFoundError{NeedsListID: r.List.ID}
		}
		if current.Version != r.ExpectedVersion {
			return entities.NewStaleVersionError(r.List.ID, r.ExpectedVersion, current.Version)
		}
		changed[r.List.ID] = r.List.Clone()
	}
	changed[list.ID] = list.Clone()

	if err := s.checkScope(changed[list.ID], changed); err != nil {
		return err
	}
	for _, r := range replacements {
		if err := s.checkScope(changed[r.List.ID], changed); err != nil {
			return err
		}
	}

	return s.apply(changed, []entities.NeedsListID{list.ID}, entries)
}

func (s *NeedsListStore) Get(ctx context.Context, id entities.NeedsListID) (*entities.NeedsList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.lists[id]
	if !ok {
		return nil, &entities.NotFoundError{NeedsListID: id}
	}
	return list.Clone(), nil
}

func (s *NeedsListStore) Update(ctx context.Context, list *entities.NeedsList, expectedVersion int64, entries []entities.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.lists[list.ID]
	if !ok {
		return &entities.NotFoundError{NeedsListID: list.ID}
	}
	if current.Version != expectedVersion {
		return entities.NewStaleVersionError(list.ID, expectedVersion, current.Version)
	}

	changed := map[entities.NeedsListID]*entities.NeedsList{list.ID: list.Clone()}
	if err := s.checkScope(changed[list.ID], changed); err != nil {
		return err
	}
	return s.apply(changed, nil, entries)
}

func (s *NeedsListStore) List(ctx context.Context, filter repositories.ListFilter) ([]*entities.NeedsList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*entities.NeedsList
	for _, id := range s.order {
		list := s.lists[id]
		if filter.Matches(list) {
			result = append(result, list.Clone())
		}
	}
	return result, nil
}

func (s *NeedsListStore) AppendAudit(ctx context.Context, entries ...entities.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if _, ok := s.lists[e.NeedsListID]; !ok {
			return &entities.NotFoundError{NeedsListID: e.NeedsListID}
		}
	}
	return s.apply(nil, nil, entries)
}

func (s *NeedsListStore) ListAudit(ctx context.Context, filter repositories.AuditFilter) ([]entities.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []entities.AuditEntry
	for _, e := range s.audit {
		if filter.Matches(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *NeedsListStore) Close() error {
	return nil
}

// checkScope rejects candidate when another active list, as it will be after
// the pending changes, covers any of its keys.
func (s *NeedsListStore) checkScope(candidate *entities.NeedsList, changed map[entities.NeedsListID]*entities.NeedsList) error {
	if !candidate.Status.IsActive() {
		return nil
	}
	scope := candidate.Scope()
	var conflicts []entities.Conflict

	check := func(other *entities.NeedsList) {
		if other.ID == candidate.ID {
			return
		}
		if c, ok := other.ConflictWith(scope); ok {
			conflicts = append(conflicts, c)
		}
	}
	for _, id := range s.order {
		if pending, ok := changed[id]; ok {
			check(pending)
			continue
		}
		check(s.lists[id])
	}
	for id, pending := range changed {
		if _, stored := s.lists[id]; !stored {
			check(pending)
		}
	}

	if len(conflicts) > 0 {
		return &entities.ConflictError{NeedsListID: candidate.ID, Conflicts: conflicts}
	}
	return nil
}

// apply assigns audit sequences, runs the commit hook and installs the
// changes. Must be called with the write lock held.
func (s *NeedsListStore) apply(changed map[entities.NeedsListID]*entities.NeedsList, created []entities.NeedsListID, entries []entities.AuditEntry) error {
	sequence := s.sequence
	stamped := make([]entities.AuditEntry, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		sequence++
		e.Sequence = sequence
		stamped[i] = e
	}

	if s.commit != nil {
		if err := s.commit(s.snapshotWith(changed, created, stamped, sequence)); err != nil {
			return fmt.Errorf("commit store state: %w", err)
		}
	}

	for id, list := range changed {
		s.lists[id] = list
	}
	s.order = append(s.order, created...)
	s.audit = append(s.audit, stamped...)
	s.sequence = sequence
	return nil
}

func (s *NeedsListStore) snapshotWith(changed map[entities.NeedsListID]*entities.NeedsList, created []entities.NeedsListID, entries []entities.AuditEntry, sequence int64) Snapshot {
	order := append(append([]entities.NeedsListID(nil), s.order...), created...)
	snapshot := Snapshot{
		Lists:    make([]*entities.NeedsList, 0, len(order)),
		Audit:    append(append([]entities.AuditEntry(nil), s.audit...), entries...),
		Sequence: sequence,
	}
	for _, id := range order {
		if list, ok := changed[id]; ok {
			snapshot.Lists = append(snapshot.Lists, list)
			continue
		}
		snapshot.Lists = append(snapshot.Lists, s.lists[id])
	}
	return snapshot
}
