package testing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/needslist/pkg/application/dto"
	"github.com/vsinha/needslist/pkg/domain/entities"
)

// AsOf is the reference "now" for every scenario
var AsOf = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

// Scenario identifiers
const (
	EventID     entities.EventID     = "EV-HURRICANE"
	WarehouseA  entities.WarehouseID = "WH-KINGSTON"
	WarehouseB  entities.WarehouseID = "WH-MONTEGO"
	WarehouseC  entities.WarehouseID = "WH-MANDEVILLE"
	ItemWater   entities.ItemID      = "WATER-5L"
	ItemTarp    entities.ItemID      = "TARP-4x6"
	ItemBlanket entities.ItemID      = "BLANKET"
)

// Qty parses a decimal literal and panics on error
func Qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// QtyPtr is Qty returning a pointer
func QtyPtr(s string) *decimal.Decimal {
	d := Qty(s)
	return &d
}

// mustCreateStockRow is a helper for tests - panics on validation error
func mustCreateStockRow(wh entities.WarehouseID, item entities.ItemID, available, minimum string, synced time.Time) entities.StockRow {
	row, err := entities.NewStockRow(wh, item, Qty(available), decimal.Zero, Qty(minimum), synced)
	if err != nil {
		panic(err)
	}
	return *row
}

// BuildSurgeScenario builds a single-warehouse SURGE request:
//
//	WATER at Kingston: 500 available, 300 fulfilled in the last 6h (50/hr),
//	500 strict inbound (200 dispatched transfer + 300 in-transit donation),
//	required 50 x 72 x 1.25 = 4500, gap 3500.
//	Montego holds 800 surplus above its minimum; 1000 confirmed donations
//	wait in the pipeline. The waterfall therefore yields A 800, B 1000, C 1700.
func BuildSurgeScenario() *dto.CalculationRequest {
	water := mustCreateStockRow(WarehouseA, ItemWater, "500", "0", AsOf.Add(-time.Hour))
	water.UnitCost = QtyPtr("2.00")

	return &dto.CalculationRequest{
		EventID:      EventID,
		WarehouseIDs: []entities.WarehouseID{WarehouseA},
		Phase:        entities.PhaseSurge,
		AsOf:         AsOf,
		Stock: []entities.StockRow{
			water,
			mustCreateStockRow(WarehouseB, ItemWater, "900", "100", AsOf.Add(-30*time.Minute)),
		},
		Inbound: []entities.InboundRecord{
			{Kind: entities.InboundTransfer, Reference: "TR-1", WarehouseID: WarehouseA, ItemID: ItemWater, Quantity: Qty("200"), Status: "DISPATCHED"},
			{Kind: entities.InboundDonation, Reference: "DN-1", WarehouseID: WarehouseA, ItemID: ItemWater, Quantity: Qty("300"), Status: "IN_TRANSIT"},
			{Kind: entities.InboundDonation, Reference: "DN-2", WarehouseID: WarehouseA, ItemID: ItemWater, Quantity: Qty("700"), Status: "PLEDGED"},
			{Kind: entities.InboundProcurement, Reference: "PO-1", WarehouseID: WarehouseA, ItemID: ItemWater, Quantity: Qty("400"), Status: "ORDERED"},
			{Kind: entities.InboundTransfer, Reference: "TR-2", WarehouseID: WarehouseA, ItemID: ItemWater, Quantity: Qty("250"), Status: "REQUESTED"},
			{Kind: entities.InboundDonation, Reference: "DN-3", ItemID: ItemWater, Quantity: Qty("1000"), Status: "CONFIRMED"},
		},
		Fulfillments: []entities.FulfillmentRecord{
			{WarehouseID: WarehouseA, ItemID: ItemWater, Quantity: Qty("100"), Status: "COMPLETED", FulfilledAt: AsOf.Add(-5 * time.Hour)},
			{WarehouseID: WarehouseA, ItemID: ItemWater, Quantity: Qty("200"), Status: "COMPLETED", FulfilledAt: AsOf.Add(-2 * time.Hour)},
			{WarehouseID: WarehouseA, ItemID: ItemWater, Quantity: Qty("900"), Status: "REJECTED", FulfilledAt: AsOf.Add(-time.Hour)},
			{WarehouseID: WarehouseA, ItemID: ItemWater, Quantity: Qty("400"), Status: "COMPLETED", FulfilledAt: AsOf.Add(-7 * time.Hour)},
		},
	}
}

// BuildMultiWarehouseScenario builds a two-warehouse STABILIZED request with
// three items, including a stale item with a baseline and one with no data
func BuildMultiWarehouseScenario() *dto.CalculationRequest {
	tarp := mustCreateStockRow(WarehouseA, ItemTarp, "40", "5", AsOf.Add(-10*time.Hour))
	tarp.BaselineBurnRate = QtyPtr("1.5")
	tarp.UnitCost = QtyPtr("12.00")

	blanket := mustCreateStockRow(WarehouseB, ItemBlanket, "100", "10", AsOf.Add(-3*time.Hour))
	blanket.UnitCost = QtyPtr("8.00")

	water := mustCreateStockRow(WarehouseB, ItemWater, "2000", "200", AsOf.Add(-time.Hour))
	water.ManualBurnRate = QtyPtr("4")

	return &dto.CalculationRequest{
		EventID:      EventID,
		WarehouseIDs: []entities.WarehouseID{WarehouseA, WarehouseB},
		Phase:        entities.PhaseStabilized,
		AsOf:         AsOf,
		Stock: []entities.StockRow{
			tarp,
			blanket,
			water,
			mustCreateStockRow(WarehouseC, ItemBlanket, "600", "100", AsOf.Add(-time.Hour)),
		},
		Fulfillments: []entities.FulfillmentRecord{
			{WarehouseID: WarehouseB, ItemID: ItemBlanket, Quantity: Qty("720"), Status: "COMPLETED", FulfilledAt: AsOf.Add(-24 * time.Hour)},
		},
	}
}

// Permissions every lifecycle actor in the scenarios may hold
var AllPermissions = []string{
	entities.PermCreate,
	entities.PermSubmit,
	entities.PermReviewStart,
	entities.PermReviewComments,
	entities.PermApprove,
	entities.PermReject,
	entities.PermReturn,
	entities.PermEscalate,
	entities.PermExecute,
	entities.PermCancel,
	entities.PermEditLines,
}

// NewActor builds an actor with roles and permissions
func NewActor(id string, roles []string, permissions ...string) entities.Actor {
	return entities.Actor{
		ID:          id,
		Permissions: entities.NewPermissionSet(permissions...),
		Roles:       roles,
	}
}

// Officer can create, submit and edit drafts
func Officer(id string) entities.Actor {
	return NewActor(id, []string{"LOGISTICS_OFFICER"},
		entities.PermCreate, entities.PermSubmit, entities.PermEditLines, entities.PermExecute, entities.PermCancel)
}

// Manager holds every permission and the LOGISTICS_MANAGER role
func Manager(id string) entities.Actor {
	return NewActor(id, []string{"LOGISTICS_MANAGER"}, AllPermissions...)
}

// Director holds every permission and the DIRECTOR_GENERAL role
func Director(id string) entities.Actor {
	return NewActor(id, []string{"DIRECTOR_GENERAL"}, AllPermissions...)
}
