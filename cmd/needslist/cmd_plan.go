package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vsinha/needslist/pkg/interfaces/cli/commands"
)

var (
	acknowledge        bool
	recalculateID      string
	recalculateVersion int64
)

// calculateCmd previews a calculation
var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Preview gaps and allocation for a scope",
	Long: `Calculate burn rate, required quantity, gap and severity for every
(warehouse, item) line in scope and allocate the gaps across the transfer,
donation and procurement horizons. Nothing is stored.`,
	Example: `  needslist calculate -s ./snapshot -e EVT-2025-01 -w WH-KINGSTON,WH-MONTEGO -p SURGE`,
	RunE:    runCalculate,
}

// generateCmd stores a draft
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a DRAFT needs list for a scope",
	Long: `Calculate and allocate a scope, then store the result as a DRAFT needs
list. Fails with the conflicting lists when an active list already covers
part of the scope. Pass --acknowledge to supersede conflicting drafts, or
--recalculate to refresh an existing draft in place.`,
	Example: `  needslist generate -s ./snapshot -e EVT-2025-01 -w WH-KINGSTON -a officer-1 --grant create
  needslist generate -s ./snapshot -e EVT-2025-01 -w WH-KINGSTON -a officer-1 --grant edit_lines --recalculate <id> --version 3`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().BoolVar(&acknowledge, "acknowledge", false, "Supersede conflicting DRAFT lists")
	generateCmd.Flags().StringVar(&recalculateID, "recalculate", "", "Refresh this DRAFT list in place")
	generateCmd.Flags().Int64Var(&recalculateVersion, "version", 0, "Expected version of the list being recalculated")
}

func runCalculate(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *commands.App) error {
		return commands.NewCalculateCommand(app, commands.CalculateConfig{
			Scope:  scope,
			Output: outputConfig(),
		}).Execute(ctx, cmd.OutOrStdout())
	})
}

func runGenerate(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *commands.App) error {
		return commands.NewGenerateCommand(app, commands.GenerateConfig{
			Scope:              scope,
			Actor:              actor,
			Acknowledge:        acknowledge,
			Recalculate:        recalculateID,
			RecalculateVersion: recalculateVersion,
			Output:             outputConfig(),
		}).Execute(ctx, cmd.OutOrStdout())
	})
}
