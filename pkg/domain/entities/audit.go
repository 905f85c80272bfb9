package entities

import "time"

// AuditAction classifies an audit entry
type AuditAction string

const (
	AuditCreated          AuditAction = "CREATED"
	AuditStatusChange     AuditAction = "STATUS_CHANGE"
	AuditQuantityOverride AuditAction = "QUANTITY_OVERRIDE"
	AuditReviewComment    AuditAction = "REVIEW_COMMENT"
	AuditRecalculated     AuditAction = "RECALCULATED"
	AuditSuperseded       AuditAction = "SUPERSEDED"
)

// AuditEntry is an immutable ledger record. Sequence is assigned by the
// store on append and increases monotonically across all lists.
type AuditEntry struct {
	ID          string      `json:"id"`
	Sequence    int64       `json:"sequence"`
	NeedsListID NeedsListID `json:"needs_list_id"`
	ItemID      ItemID      `json:"item_id,omitempty"`
	WarehouseID WarehouseID `json:"warehouse_id,omitempty"`
	Action      AuditAction `json:"action"`
	Field       string      `json:"field,omitempty"`
	OldValue    string      `json:"old_value,omitempty"`
	NewValue    string      `json:"new_value,omitempty"`
	ReasonCode  string      `json:"reason_code,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	Actor       string      `json:"actor"`
	At          time.Time   `json:"at"`

	// Details lists the line changes made by the same transition
	Details []AuditDetail `json:"details,omitempty"`
}

// AuditDetail is one line-level field change carried by an entry
type AuditDetail struct {
	WarehouseID WarehouseID `json:"warehouse_id"`
	ItemID      ItemID      `json:"item_id"`
	Field       string      `json:"field"`
	OldValue    string      `json:"old_value"`
	NewValue    string      `json:"new_value"`
}
