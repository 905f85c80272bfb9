package repositories

import (
	"context"

	"github.com/vsinha/needslist/pkg/domain/entities"
)

// AuditFilter narrows an audit query
type AuditFilter struct {
	NeedsListID   entities.NeedsListID
	AfterSequence int64
	Actions       []entities.AuditAction
}

// Matches reports whether an entry satisfies the filter
func (f AuditFilter) Matches(entry entities.AuditEntry) bool {
	if f.NeedsListID != "" && entry.NeedsListID != f.NeedsListID {
		return false
	}
	if entry.Sequence <= f.AfterSequence {
		return false
	}
	if len(f.Actions) == 0 {
		return true
	}
	for _, a := range f.Actions {
		if entry.Action == a {
			return true
		}
	}
	return false
}

// AuditRepository is the append-only audit ledger. Entries are never updated
// or deleted.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entries ...entities.AuditEntry) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]entities.AuditEntry, error)
}

// Store combines both ports; every adapter implements it
type Store interface {
	NeedsListRepository
	AuditRepository
	Close() error
}
