package entities

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// BurnRateSource tags where an item's burn rate came from
type BurnRateSource string

const (
	BurnRateCalculated BurnRateSource = "CALCULATED"
	BurnRateBaseline   BurnRateSource = "BASELINE"
	BurnRateManual     BurnRateSource = "MANUAL"
	BurnRateEstimated  BurnRateSource = "ESTIMATED"
)

// Method is a replenishment horizon
type Method string

const (
	MethodTransfer    Method = "A"
	MethodDonation    Method = "B"
	MethodProcurement Method = "C"
)

// FulfillmentStatus tracks receipt of an approved line
type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "PENDING"
	FulfillmentPartial   FulfillmentStatus = "PARTIAL"
	FulfillmentFulfilled FulfillmentStatus = "FULFILLED"
)

// ScopeKey is one (warehouse, item) cell of a needs list scope
type ScopeKey struct {
	WarehouseID WarehouseID `json:"warehouse_id"`
	ItemID      ItemID      `json:"item_id"`
}

// Scope is the (event, warehouse, item) coverage of a needs list
type Scope struct {
	EventID EventID
	Keys    []ScopeKey
}

// Overlap returns the keys present in both scopes, sorted
func (s Scope) Overlap(other Scope) []ScopeKey {
	if s.EventID != other.EventID {
		return nil
	}
	mine := make(map[ScopeKey]bool, len(s.Keys))
	for _, k := range s.Keys {
		mine[k] = true
	}
	var shared []ScopeKey
	seen := make(map[ScopeKey]bool)
	for _, k := range other.Keys {
		if mine[k] && !seen[k] {
			shared = append(shared, k)
			seen[k] = true
		}
	}
	sortScopeKeys(shared)
	return shared
}

// Warehouses returns the distinct warehouses of the scope
func (s Scope) Warehouses() []WarehouseID {
	seen := make(map[WarehouseID]bool)
	var out []WarehouseID
	for _, k := range s.Keys {
		if !seen[k.WarehouseID] {
			seen[k.WarehouseID] = true
			out = append(out, k.WarehouseID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortScopeKeys(keys []ScopeKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].WarehouseID != keys[j].WarehouseID {
			return keys[i].WarehouseID < keys[j].WarehouseID
		}
		return keys[i].ItemID < keys[j].ItemID
	})
}

// TransferLeg is a Horizon A allocation from one source warehouse
type TransferLeg struct {
	SourceWarehouseID WarehouseID     `json:"source_warehouse_id"`
	Quantity          decimal.Decimal `json:"quantity"`
}

// LineOverride records a manual quantity adjustment made in DRAFT
type LineOverride struct {
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason"`
	Actor    string          `json:"actor"`
	At       time.Time       `json:"at"`
}

// ReviewComment is a reviewer note on the list or one of its lines
type ReviewComment struct {
	ItemID      ItemID      `json:"item_id,omitempty"`
	WarehouseID WarehouseID `json:"warehouse_id,omitempty"`
	Comment     string      `json:"comment"`
	Actor       string      `json:"actor"`
	At          time.Time   `json:"at"`
}

// ApprovalRequirement is the resolved approver role for a list
type ApprovalRequirement struct {
	Method    Method          `json:"method"`
	Tier      string          `json:"tier"`
	TierIndex int             `json:"tier_index"`
	Role      string          `json:"role"`
	Cost      decimal.Decimal `json:"cost"`
	Warnings  []string        `json:"warnings,omitempty"`
}

// NeedsListItem is one (warehouse, item) line of a needs list
type NeedsListItem struct {
	ItemID          ItemID           `json:"item_id"`
	WarehouseID     WarehouseID      `json:"warehouse_id"`
	AvailableQty    decimal.Decimal  `json:"available_qty"`
	ReservedQty     decimal.Decimal  `json:"reserved_qty"`
	InboundQty      decimal.Decimal  `json:"inbound_qty"`
	BurnRate        decimal.Decimal  `json:"burn_rate"`
	BurnRateSource  BurnRateSource   `json:"burn_rate_source"`
	NoCurrentDemand bool             `json:"no_current_demand"`
	Freshness       Freshness        `json:"freshness"`
	RequiredQty     decimal.Decimal  `json:"required_qty"`
	GapQty          decimal.Decimal  `json:"gap_qty"`
	SurplusQty      decimal.Decimal  `json:"surplus_qty"`
	Severity        Severity         `json:"severity"`
	TimeToStockout  *decimal.Decimal `json:"time_to_stockout"` // hours, nil = never
	UnitCost        *decimal.Decimal `json:"unit_cost,omitempty"`

	HorizonAQty     decimal.Decimal `json:"horizon_a_qty"`
	HorizonASources []TransferLeg   `json:"horizon_a_sources,omitempty"`
	ResidualAfterA  decimal.Decimal `json:"residual_after_a"`
	HorizonBQty     decimal.Decimal `json:"horizon_b_qty"`
	ResidualAfterB  decimal.Decimal `json:"residual_after_b"`
	HorizonCQty     decimal.Decimal `json:"horizon_c_qty"`

	Override          *LineOverride     `json:"override,omitempty"`
	ReviewComment     string            `json:"review_comment,omitempty"`
	FulfilledQty      decimal.Decimal   `json:"fulfilled_qty"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillment_status"`
	Warnings          []string          `json:"warnings,omitempty"`
}

// Key returns the scope key of the line
func (i *NeedsListItem) Key() ScopeKey {
	return ScopeKey{WarehouseID: i.WarehouseID, ItemID: i.ItemID}
}

// SourceWarehouse returns the primary Horizon A source, if any
func (i *NeedsListItem) SourceWarehouse() WarehouseID {
	if len(i.HorizonASources) == 0 {
		return ""
	}
	return i.HorizonASources[0].SourceWarehouseID
}

// EffectiveQty is the quantity requested after any override
func (i *NeedsListItem) EffectiveQty() decimal.Decimal {
	if i.Override != nil {
		return i.Override.Quantity
	}
	return i.GapQty
}

// EffectiveProcurementQty is Horizon C adjusted by any override. Transfers
// and donations stay as allocated; procurement absorbs the difference.
func (i *NeedsListItem) EffectiveProcurementQty() decimal.Decimal {
	if i.Override == nil {
		return i.HorizonCQty
	}
	return ClipZero(i.HorizonCQty.Add(i.Override.Quantity.Sub(i.GapQty)))
}

// ProcurementCost is the effective Horizon C cost; ok is false when the unit
// cost is unknown for a line that needs procurement
func (i *NeedsListItem) ProcurementCost() (cost decimal.Decimal, ok bool) {
	qty := i.EffectiveProcurementQty()
	if !qty.IsPositive() {
		return decimal.Zero, true
	}
	if i.UnitCost == nil || i.UnitCost.IsNegative() {
		return decimal.Zero, false
	}
	return qty.Mul(*i.UnitCost), true
}

// NeedsList is the replenishment request aggregate
type NeedsList struct {
	ID           NeedsListID   `json:"id"`
	EventID      EventID       `json:"event_id"`
	WarehouseIDs []WarehouseID `json:"warehouse_ids"`
	Phase        Phase         `json:"phase"`
	Status       Status        `json:"status"`
	AsOf         time.Time     `json:"as_of"`
	Version      int64         `json:"version"`

	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SubmittedBy string     `json:"submitted_by,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ApprovedBy  string     `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedBy  string     `json:"rejected_by,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	EscalatedBy string     `json:"escalated_by,omitempty"`
	EscalatedAt *time.Time `json:"escalated_at,omitempty"`
	CancelledBy string     `json:"cancelled_by,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	PreparationStartedAt *time.Time `json:"preparation_started_at,omitempty"`
	DispatchedAt         *time.Time `json:"dispatched_at,omitempty"`
	ReceivedAt           *time.Time `json:"received_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`

	RejectionReason  string `json:"rejection_reason,omitempty"`
	EscalationReason string `json:"escalation_reason,omitempty"`
	ReturnReason     string `json:"return_reason,omitempty"`
	CancelReason     string `json:"cancel_reason,omitempty"`

	// SupersededBy is a weak reference resolved by id lookup only
	SupersededBy *NeedsListID `json:"superseded_by,omitempty"`

	EstimatedCost  decimal.Decimal      `json:"estimated_cost"`
	SelectedMethod Method               `json:"selected_method"`
	Approval       *ApprovalRequirement `json:"approval,omitempty"`

	Items          []NeedsListItem `json:"items"`
	ReviewComments []ReviewComment `json:"review_comments,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
}

// Scope returns the (event, warehouse, item) coverage of the list
func (n *NeedsList) Scope() Scope {
	keys := make([]ScopeKey, 0, len(n.Items))
	for i := range n.Items {
		keys = append(keys, n.Items[i].Key())
	}
	sortScopeKeys(keys)
	return Scope{EventID: n.EventID, Keys: keys}
}

// FindItem returns the line for a (warehouse, item) key
func (n *NeedsList) FindItem(key ScopeKey) (*NeedsListItem, bool) {
	for i := range n.Items {
		if n.Items[i].Key() == key {
			return &n.Items[i], true
		}
	}
	return nil, false
}

// TotalGap sums the pre-override gap across lines
func (n *NeedsList) TotalGap() decimal.Decimal {
	total := decimal.Zero
	for i := range n.Items {
		total = total.Add(n.Items[i].GapQty)
	}
	return total
}

// Clone returns a deep copy so callers can mutate without aliasing stored state
func (n *NeedsList) Clone() *NeedsList {
	if n == nil {
		return nil
	}
	c := *n
	c.WarehouseIDs = append([]WarehouseID(nil), n.WarehouseIDs...)
	c.Warnings = append([]string(nil), n.Warnings...)
	c.ReviewComments = append([]ReviewComment(nil), n.ReviewComments...)
	c.SubmittedAt = cloneTime(n.SubmittedAt)
	c.ReviewedAt = cloneTime(n.ReviewedAt)
	c.ApprovedAt = cloneTime(n.ApprovedAt)
	c.RejectedAt = cloneTime(n.RejectedAt)
	c.EscalatedAt = cloneTime(n.EscalatedAt)
	c.CancelledAt = cloneTime(n.CancelledAt)
	c.PreparationStartedAt = cloneTime(n.PreparationStartedAt)
	c.DispatchedAt = cloneTime(n.DispatchedAt)
	c.ReceivedAt = cloneTime(n.ReceivedAt)
	c.CompletedAt = cloneTime(n.CompletedAt)
	if n.SupersededBy != nil {
		id := *n.SupersededBy
		c.SupersededBy = &id
	}
	if n.Approval != nil {
		a := *n.Approval
		a.Warnings = append([]string(nil), n.Approval.Warnings...)
		c.Approval = &a
	}
	if n.Items != nil {
		c.Items = make([]NeedsListItem, len(n.Items))
		for i := range n.Items {
			c.Items[i] = n.Items[i].clone()
		}
	}
	return &c
}

func (i NeedsListItem) clone() NeedsListItem {
	c := i
	c.HorizonASources = append([]TransferLeg(nil), i.HorizonASources...)
	c.Warnings = append([]string(nil), i.Warnings...)
	if i.TimeToStockout != nil {
		v := *i.TimeToStockout
		c.TimeToStockout = &v
	}
	if i.UnitCost != nil {
		v := *i.UnitCost
		c.UnitCost = &v
	}
	if i.Override != nil {
		o := *i.Override
		c.Override = &o
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ConflictWith reports how this list blocks a scope: it must be active and
// share at least one (warehouse, item) key in the same event
func (n *NeedsList) ConflictWith(scope Scope) (Conflict, bool) {
	if !n.Status.IsActive() {
		return Conflict{}, false
	}
	shared := n.Scope().Overlap(scope)
	if len(shared) == 0 {
		return Conflict{}, false
	}
	return Conflict{
		NeedsListID:      n.ID,
		Status:           n.Status,
		CreatedBy:        n.CreatedBy,
		SubmittedBy:      n.SubmittedBy,
		OverlappingItems: shared,
	}, true
}
