package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vsinha/needslist/pkg/application/services/planning"
	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/interfaces/cli/output"
)

// GenerateConfig holds configuration for the generate command
type GenerateConfig struct {
	Scope       ScopeConfig
	Actor       ActorConfig
	Acknowledge bool

	// Recalculate refreshes an existing DRAFT in place
	Recalculate        string
	RecalculateVersion int64

	Output output.Config
}

// GenerateCommand stores a DRAFT needs list for a scope
type GenerateCommand struct {
	app    *App
	config GenerateConfig
	now    func() time.Time
}

// NewGenerateCommand creates a generate command
func NewGenerateCommand(app *App, config GenerateConfig) *GenerateCommand {
	return &GenerateCommand{app: app, config: config, now: time.Now}
}

// Execute generates the draft. A scope conflict renders the conflicting
// lists before the error is returned.
func (c *GenerateCommand) Execute(ctx context.Context, w io.Writer) error {
	actor, err := c.config.Actor.Actor()
	if err != nil {
		return err
	}
	calc, err := c.config.Scope.Request(c.now())
	if err != nil {
		return err
	}

	outcome, err := c.app.Planning.Generate(ctx, planning.Request{
		Calculation:        calc,
		Actor:              actor,
		Acknowledge:        c.config.Acknowledge,
		RecalculateID:      entities.NeedsListID(c.config.Recalculate),
		RecalculateVersion: c.config.RecalculateVersion,
	})
	if err != nil {
		var conflict *entities.ConflictError
		if errors.As(err, &conflict) && len(conflict.Conflicts) > 0 {
			if renderErr := output.Conflicts(w, conflict.Conflicts, c.config.Output); renderErr != nil {
				return renderErr
			}
		}
		return err
	}

	if c.config.Output.Verbose && c.config.Output.Format == output.FormatText {
		switch {
		case outcome.Recalculated:
			fmt.Fprintf(w, "Recalculated %s\n", outcome.List.ID)
		case len(outcome.Superseded) > 0:
			fmt.Fprintf(w, "Created %s, superseding %v\n", outcome.List.ID, outcome.Superseded)
		default:
			fmt.Fprintf(w, "Created %s\n", outcome.List.ID)
		}
	}
	return output.NeedsList(w, outcome.List, c.config.Output)
}
