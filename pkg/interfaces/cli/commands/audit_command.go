package commands

import (
	"context"
	"io"

	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/interfaces/cli/output"
)

// AuditConfig holds configuration for the audit command
type AuditConfig struct {
	ID     string
	After  int64 // only entries with a greater sequence
	Output output.Config
}

// AuditCommand shows the audit trail of one list
type AuditCommand struct {
	app    *App
	config AuditConfig
}

// NewAuditCommand creates an audit command
func NewAuditCommand(app *App, config AuditConfig) *AuditCommand {
	return &AuditCommand{app: app, config: config}
}

// Execute renders the entries recorded after config.After to w
func (c *AuditCommand) Execute(ctx context.Context, w io.Writer) error {
	entries, err := c.app.Lifecycle.ChangesSince(ctx, entities.NeedsListID(c.config.ID), c.config.After)
	if err != nil {
		return err
	}
	return output.Audit(w, entries, c.config.Output)
}
