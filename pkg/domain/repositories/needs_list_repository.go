package repositories

import (
	"context"

	"github.com/vsinha/needslist/pkg/domain/entities"
)

// ListFilter narrows a List query. Zero-valued fields do not filter.
type ListFilter struct {
	EventID      entities.EventID
	WarehouseIDs []entities.WarehouseID // match lists covering any of these
	Statuses     []entities.Status
	ActiveOnly   bool
}

// Matches reports whether a needs list satisfies the filter
func (f ListFilter) Matches(list *entities.NeedsList) bool {
	if f.EventID != "" && list.EventID != f.EventID {
		return false
	}
	if f.ActiveOnly && !list.Status.IsActive() {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if list.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.WarehouseIDs) > 0 {
		want := make(map[entities.WarehouseID]bool, len(f.WarehouseIDs))
		for _, w := range f.WarehouseIDs {
			want[w] = true
		}
		for _, w := range list.WarehouseIDs {
			if want[w] {
				return true
			}
		}
		return false
	}
	return true
}

// Replacement is an existing list rewritten in the same atomic write as a
// Create, used to supersede drafts the new list replaces
type Replacement struct {
	List            *entities.NeedsList
	ExpectedVersion int64
}

// NeedsListRepository is the storage-agnostic persistence port. Adapters
// must enforce that at most one active list covers any (event, warehouse,
// item) key and must compare versions atomically with the write.
type NeedsListRepository interface {
	// Create inserts a new list together with its audit entries. Replacements
	// are applied in the same atomic write. Returns *entities.ConflictError
	// when an active list already covers part of the scope.
	Create(ctx context.Context, list *entities.NeedsList, replacements []Replacement, entries []entities.AuditEntry) error

	// Get returns a copy of the stored list or *entities.NotFoundError.
	Get(ctx context.Context, id entities.NeedsListID) (*entities.NeedsList, error)

	// Update replaces the stored list when its version still equals
	// expectedVersion and appends entries atomically. The caller sets
	// list.Version to the new value.
	Update(ctx context.Context, list *entities.NeedsList, expectedVersion int64, entries []entities.AuditEntry) error

	// List returns copies of the lists matching filter ordered by creation time.
	List(ctx context.Context, filter ListFilter) ([]*entities.NeedsList, error)
}
