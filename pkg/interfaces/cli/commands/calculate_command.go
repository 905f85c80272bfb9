package commands

import (
	"context"
	"io"
	"time"

	"github.com/vsinha/needslist/pkg/interfaces/cli/output"
)

// CalculateConfig holds configuration for the calculate command
type CalculateConfig struct {
	Scope  ScopeConfig
	Output output.Config
}

// CalculateCommand previews a needs calculation without storing anything
type CalculateCommand struct {
	app    *App
	config CalculateConfig
	now    func() time.Time
}

// NewCalculateCommand creates a calculate command
func NewCalculateCommand(app *App, config CalculateConfig) *CalculateCommand {
	return &CalculateCommand{app: app, config: config, now: time.Now}
}

// Execute runs the calculation and renders the plan to w
func (c *CalculateCommand) Execute(ctx context.Context, w io.Writer) error {
	req, err := c.config.Scope.Request(c.now())
	if err != nil {
		return err
	}
	plan, err := c.app.Planning.Calculate(ctx, req)
	if err != nil {
		return err
	}
	return output.Calculation(w, plan, c.config.Output)
}
