package guard

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/domain/repositories"
)

// Guard finds active needs lists that already cover part of a scope
type Guard struct {
	lists  repositories.NeedsListRepository
	logger zerolog.Logger
}

// NewGuard creates a guard reading from the given repository
func NewGuard(lists repositories.NeedsListRepository, logger zerolog.Logger) *Guard {
	return &Guard{
		lists:  lists,
		logger: logger.With().Str("component", "scope_guard").Logger(),
	}
}

// Check returns every active list overlapping scope, excluding exclude (the
// draft being recalculated, if any). The read is advisory; the store enforces
// uniqueness again at write time.
func (g *Guard) Check(ctx context.Context, scope entities.Scope, exclude entities.NeedsListID) ([]entities.Conflict, error) {
	if scope.EventID == "" {
		return nil, entities.NewValidationError("event_id", "scope needs an event")
	}
	if len(scope.Keys) == 0 {
		return nil, entities.NewValidationError("scope", "scope needs at least one (warehouse, item) key")
	}

	candidates, err := g.lists.List(ctx, repositories.ListFilter{
		EventID:      scope.EventID,
		WarehouseIDs: scope.Warehouses(),
		ActiveOnly:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active needs lists: %w", err)
	}

	var conflicts []entities.Conflict
	for _, list := range candidates {
		if list.ID == exclude {
			continue
		}
		if c, ok := list.ConflictWith(scope); ok {
			conflicts = append(conflicts, c)
		}
	}

	if len(conflicts) > 0 {
		g.logger.Debug().
			Str("event_id", string(scope.EventID)).
			Int("conflicts", len(conflicts)).
			Msg("scope overlaps active needs lists")
	}
	return conflicts, nil
}

// Blocking returns the conflicts that cannot be acknowledged away: only
// DRAFT lists may be superseded by a new generation
func Blocking(conflicts []entities.Conflict) []entities.Conflict {
	var blocking []entities.Conflict
	for _, c := range conflicts {
		if !c.Status.IsEditable() {
			blocking = append(blocking, c)
		}
	}
	return blocking
}
