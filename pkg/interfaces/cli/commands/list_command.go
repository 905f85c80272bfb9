package commands

import (
	"context"
	"io"
	"strings"

	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/domain/repositories"
	"github.com/vsinha/needslist/pkg/interfaces/cli/output"
)

// ListConfig holds configuration for the list command. A non-empty ID shows
// that list in full instead of the summary table.
type ListConfig struct {
	ID         string
	EventID    string
	Warehouses []string
	Statuses   []string
	ActiveOnly bool
	Output     output.Config
}

// ListCommand shows stored needs lists
type ListCommand struct {
	app    *App
	config ListConfig
}

// NewListCommand creates a list command
func NewListCommand(app *App, config ListConfig) *ListCommand {
	return &ListCommand{app: app, config: config}
}

// Execute renders the matching lists to w
func (c *ListCommand) Execute(ctx context.Context, w io.Writer) error {
	if c.config.ID != "" {
		list, err := c.app.Lifecycle.Get(ctx, entities.NeedsListID(c.config.ID))
		if err != nil {
			return err
		}
		return output.NeedsList(w, list, c.config.Output)
	}

	filter := repositories.ListFilter{
		EventID:    entities.EventID(c.config.EventID),
		ActiveOnly: c.config.ActiveOnly,
	}
	for _, wh := range c.config.Warehouses {
		filter.WarehouseIDs = append(filter.WarehouseIDs, entities.WarehouseID(wh))
	}
	for _, s := range c.config.Statuses {
		status := entities.Status(strings.ToUpper(s))
		if !status.IsValid() {
			return entities.NewValidationError("status", "unknown status "+s)
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	lists, err := c.app.Store.List(ctx, filter)
	if err != nil {
		return err
	}
	return output.NeedsLists(w, lists, c.config.Output)
}
