package testing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/needslist/pkg/domain/entities"
)

// FixedTime is the reference clock used by store fixtures
var FixedTime = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

// Key builds a scope key
func Key(warehouse, item string) entities.ScopeKey {
	return entities.ScopeKey{WarehouseID: entities.WarehouseID(warehouse), ItemID: entities.ItemID(item)}
}

// BuildDraftList builds a version-1 DRAFT list covering keys, one line per
// key with a gap of 100 units procured
func BuildDraftList(id, event, createdBy string, keys ...entities.ScopeKey) *entities.NeedsList {
	list := &entities.NeedsList{
		ID:             entities.NeedsListID(id),
		EventID:        entities.EventID(event),
		Phase:          entities.PhaseSurge,
		Status:         entities.StatusDraft,
		AsOf:           FixedTime,
		Version:        1,
		CreatedBy:      createdBy,
		CreatedAt:      FixedTime,
		UpdatedAt:      FixedTime,
		SelectedMethod: entities.MethodProcurement,
		EstimatedCost:  decimal.Zero,
	}
	seen := make(map[entities.WarehouseID]bool)
	for _, k := range keys {
		if !seen[k.WarehouseID] {
			seen[k.WarehouseID] = true
			list.WarehouseIDs = append(list.WarehouseIDs, k.WarehouseID)
		}
		gap := decimal.NewFromInt(100)
		list.Items = append(list.Items, entities.NeedsListItem{
			ItemID:            k.ItemID,
			WarehouseID:       k.WarehouseID,
			AvailableQty:      decimal.NewFromInt(50),
			BurnRate:          decimal.NewFromInt(10),
			BurnRateSource:    entities.BurnRateCalculated,
			Freshness:         entities.FreshnessHigh,
			RequiredQty:       decimal.NewFromInt(150),
			GapQty:            gap,
			Severity:          entities.SeverityCritical,
			HorizonCQty:       gap,
			ResidualAfterA:    gap,
			ResidualAfterB:    gap,
			FulfillmentStatus: entities.FulfillmentPending,
		})
	}
	return list
}

// BuildEntry builds an audit entry for a list
func BuildEntry(listID string, action entities.AuditAction, actor string) entities.AuditEntry {
	return entities.AuditEntry{
		NeedsListID: entities.NeedsListID(listID),
		Action:      action,
		Actor:       actor,
		At:          FixedTime,
	}
}

// Advance returns a copy of list moved to status with the version bumped
func Advance(list *entities.NeedsList, status entities.Status) *entities.NeedsList {
	next := list.Clone()
	next.Status = status
	next.Version = list.Version + 1
	next.UpdatedAt = next.UpdatedAt.Add(time.Minute)
	return next
}
