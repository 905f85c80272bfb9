package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/needslist/pkg/application/dto"
	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/infrastructure/repositories/csv"
)

// GrantAll expands to every needs list permission
const GrantAll = "all"

var allPermissions = []string{
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

// ActorConfig is the caller identity passed on the command line. Grants may
// omit the "needs_list." prefix.
type ActorConfig struct {
	ID     string
	Roles  []string
	Grants []string
}

// Actor resolves the identity into an entities.Actor
func (c ActorConfig) Actor() (entities.Actor, error) {
	if c.ID == "" {
		return entities.Actor{}, fmt.Errorf("--actor is required")
	}
	var permissions []string
	for _, g := range c.Grants {
		g = strings.TrimSpace(g)
		switch {
		case g == "":
		case g == GrantAll:
			permissions = append(permissions, allPermissions...)
		case strings.HasPrefix(g, entities.PermissionPrefix):
			permissions = append(permissions, g)
		default:
			permissions = append(permissions, entities.PermissionPrefix+g)
		}
	}
	return entities.Actor{
		ID:          c.ID,
		Roles:       c.Roles,
		Permissions: entities.NewPermissionSet(permissions...),
	}, nil
}

// ScopeConfig selects the snapshot and the (event, warehouses, phase) scope
// of a calculation
type ScopeConfig struct {
	SnapshotDir string
	EventID     string
	Warehouses  []string
	Phase       string
	AsOf        string // RFC 3339; empty means now
	Items       []string
}

// Request loads the snapshot and builds the calculation request
func (c ScopeConfig) Request(now time.Time) (*dto.CalculationRequest, error) {
	if c.SnapshotDir == "" {
		return nil, fmt.Errorf("--snapshot is required")
	}
	phase, err := entities.ParsePhase(c.Phase)
	if err != nil {
		return nil, err
	}
	asOf := now
	if c.AsOf != "" {
		asOf, err = time.Parse(time.RFC3339, c.AsOf)
		if err != nil {
			return nil, fmt.Errorf("invalid --as-of %q: %w", c.AsOf, err)
		}
	}

	snapshot, err := csv.NewLoader().LoadSnapshot(c.SnapshotDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	req := &dto.CalculationRequest{
		EventID: entities.EventID(c.EventID),
		Phase:   phase,
		AsOf:    asOf,
	}
	for _, w := range c.Warehouses {
		req.WarehouseIDs = append(req.WarehouseIDs, entities.WarehouseID(w))
	}
	for _, i := range c.Items {
		req.ItemIDs = append(req.ItemIDs, entities.ItemID(i))
	}
	snapshot.ApplyTo(req)
	return req, nil
}

// lineQuantity is a parsed WAREHOUSE:ITEM=QTY argument
type lineQuantity struct {
	key      entities.ScopeKey
	quantity decimal.Decimal
}

func parseLineQuantity(s string) (lineQuantity, error) {
	keyPart, qtyPart, ok := strings.Cut(s, "=")
	if !ok {
		return lineQuantity{}, fmt.Errorf("invalid line %q: expected WAREHOUSE:ITEM=QTY", s)
	}
	key, err := parseKey(keyPart)
	if err != nil {
		return lineQuantity{}, err
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(qtyPart))
	if err != nil {
		return lineQuantity{}, fmt.Errorf("invalid quantity in %q: %w", s, err)
	}
	return lineQuantity{key: key, quantity: qty}, nil
}

func parseKey(s string) (entities.ScopeKey, error) {
	warehouse, item, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || warehouse == "" || item == "" {
		return entities.ScopeKey{}, fmt.Errorf("invalid line key %q: expected WAREHOUSE:ITEM", s)
	}
	return entities.ScopeKey{WarehouseID: entities.WarehouseID(warehouse), ItemID: entities.ItemID(item)}, nil
}
