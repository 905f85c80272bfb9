package allocation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vsinha/needslist/pkg/domain/entities"
)

// PoolEntry tracks how much of one supply remains during an allocation pass
type PoolEntry struct {
	Initial   decimal.Decimal
	Remaining decimal.Decimal
}

// Consumed returns how much has been drawn from the entry
func (e *PoolEntry) Consumed() decimal.Decimal {
	return e.Initial.Sub(e.Remaining)
}

// SupplyPool holds remaining supply keyed by item and warehouse. An empty
// warehouse denotes supply that is not tied to a destination.
type SupplyPool map[string]*PoolEntry

// NewSupplyPool creates a new empty supply pool
func NewSupplyPool() SupplyPool {
	return make(SupplyPool)
}

// Add increases the supply for an item at a warehouse
func (p SupplyPool) Add(itemID entities.ItemID, warehouseID entities.WarehouseID, qty decimal.Decimal) {
	if !qty.IsPositive() {
		return
	}
	key := p.makeKey(itemID, warehouseID)
	entry, ok := p[key]
	if !ok {
		entry = &PoolEntry{Initial: decimal.Zero, Remaining: decimal.Zero}
		p[key] = entry
	}
	entry.Initial = entry.Initial.Add(qty)
	entry.Remaining = entry.Remaining.Add(qty)
}

// Get retrieves the pool entry for an item at a warehouse
func (p SupplyPool) Get(itemID entities.ItemID, warehouseID entities.WarehouseID) *PoolEntry {
	return p[p.makeKey(itemID, warehouseID)]
}

// Take draws up to qty from an entry and returns the amount drawn
func (p SupplyPool) Take(itemID entities.ItemID, warehouseID entities.WarehouseID, qty decimal.Decimal) decimal.Decimal {
	entry := p.Get(itemID, warehouseID)
	if entry == nil || !qty.IsPositive() || !entry.Remaining.IsPositive() {
		return decimal.Zero
	}
	taken := decimal.Min(qty, entry.Remaining)
	entry.Remaining = entry.Remaining.Sub(taken)
	return taken
}

// Sources returns the warehouses holding remaining supply of an item,
// largest remaining first, ties broken by warehouse id
func (p SupplyPool) Sources(itemID entities.ItemID) []entities.WarehouseID {
	type source struct {
		warehouse entities.WarehouseID
		remaining decimal.Decimal
	}
	var sources []source
	for key, entry := range p {
		item, warehouse, ok := p.parseKey(key)
		if !ok || item != itemID || !entry.Remaining.IsPositive() {
			continue
		}
		sources = append(sources, source{warehouse: warehouse, remaining: entry.Remaining})
	}
	sort.Slice(sources, func(i, j int) bool {
		if !sources[i].remaining.Equal(sources[j].remaining) {
			return sources[i].remaining.GreaterThan(sources[j].remaining)
		}
		return sources[i].warehouse < sources[j].warehouse
	})
	out := make([]entities.WarehouseID, len(sources))
	for i, s := range sources {
		out[i] = s.warehouse
	}
	return out
}

// Size returns the number of entries stored
func (p SupplyPool) Size() int {
	return len(p)
}

// GetTotalRemaining returns the remaining supply across all entries
func (p SupplyPool) GetTotalRemaining() decimal.Decimal {
	total := decimal.Zero
	for _, entry := range p {
		total = total.Add(entry.Remaining)
	}
	return total
}

// GetTotalConsumed returns the supply drawn across all entries
func (p SupplyPool) GetTotalConsumed() decimal.Decimal {
	total := decimal.Zero
	for _, entry := range p {
		total = total.Add(entry.Consumed())
	}
	return total
}

// makeKey creates a consistent key for item and warehouse
func (p SupplyPool) makeKey(itemID entities.ItemID, warehouseID entities.WarehouseID) string {
	return fmt.Sprintf("%s|%s", itemID, warehouseID)
}

// parseKey extracts item and warehouse from a key
func (p SupplyPool) parseKey(key string) (entities.ItemID, entities.WarehouseID, bool) {
	item, warehouse, found := strings.Cut(key, "|")
	if !found {
		return "", "", false
	}
	return entities.ItemID(item), entities.WarehouseID(warehouse), true
}
