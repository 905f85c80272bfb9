package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vsinha/needslist/pkg/interfaces/cli/commands"
)

var (
	transition commands.TransitionConfig
	listFilter commands.ListConfig
	auditAfter int64
)

// transitionCmd applies one lifecycle operation
var transitionCmd = &cobra.Command{
	Use:   "transition <operation> <needs-list-id>",
	Short: "Apply a lifecycle operation to a needs list",
	Long: fmt.Sprintf(`Apply one lifecycle operation. --version must be the version last read;
a stale version fails without changing anything.

Operations: %s`, strings.Join(commands.OperationNames(), ", ")),
	Example: `  needslist transition submit <id> -a officer-1 --grant submit --version 1
  needslist transition approve <id> -a manager-1 --role LOGISTICS_MANAGER --grant approve --version 3
  needslist transition edit_lines <id> -a officer-1 --grant edit_lines --version 1 --line WH-A:WATER=50 --reason "local purchase"
  needslist transition mark_received <id> -a officer-1 --grant execute --version 6 --receipt WH-A:WATER=20`,
	Args: cobra.ExactArgs(2),
	RunE: runTransition,
}

// listCmd shows stored lists
var listCmd = &cobra.Command{
	Use:   "list [needs-list-id]",
	Short: "Show stored needs lists",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

// auditCmd shows an audit trail
var auditCmd = &cobra.Command{
	Use:   "audit <needs-list-id>",
	Short: "Show the audit trail of a needs list",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func init() {
	transitionCmd.Flags().Int64Var(&transition.Version, "version", 0, "Version last read (required)")
	transitionCmd.Flags().StringVarP(&transition.Reason, "reason", "r", "", "Reason; required for reject, return, escalate and cancel")
	transitionCmd.Flags().StringArrayVar(&transition.Edits, "line", nil, "Quantity override WAREHOUSE:ITEM=QTY (edit_lines)")
	transitionCmd.Flags().StringArrayVar(&transition.Receipts, "receipt", nil, "Received quantity WAREHOUSE:ITEM=QTY (mark_received)")
	transitionCmd.Flags().StringVar(&transition.Comment, "comment", "", "Review note (review_comments)")
	transitionCmd.Flags().StringVar(&transition.CommentLine, "comment-line", "", "Scope the review note to WAREHOUSE:ITEM")

	listCmd.Flags().StringVarP(&listFilter.EventID, "event", "e", "", "Filter by event id")
	listCmd.Flags().StringSliceVarP(&listFilter.Warehouses, "warehouse", "w", nil, "Filter by warehouse")
	listCmd.Flags().StringSliceVar(&listFilter.Statuses, "status", nil, "Filter by status")
	listCmd.Flags().BoolVar(&listFilter.ActiveOnly, "active", false, "Only lists that still hold their scope")

	auditCmd.Flags().Int64Var(&auditAfter, "after", 0, "Only entries after this sequence")
}

func runTransition(cmd *cobra.Command, args []string) error {
	config := transition
	config.Operation = args[0]
	config.ID = args[1]
	config.Actor = actor
	config.Output = outputConfig()

	return withApp(cmd, func(ctx context.Context, app *commands.App) error {
		return commands.NewTransitionCommand(app, config).Execute(ctx, cmd.OutOrStdout())
	})
}

func runList(cmd *cobra.Command, args []string) error {
	config := listFilter
	if len(args) == 1 {
		config.ID = args[0]
	}
	config.Output = outputConfig()

	return withApp(cmd, func(ctx context.Context, app *commands.App) error {
		return commands.NewListCommand(app, config).Execute(ctx, cmd.OutOrStdout())
	})
}

func runAudit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *commands.App) error {
		return commands.NewAuditCommand(app, commands.AuditConfig{
			ID:     args[0],
			After:  auditAfter,
			Output: outputConfig(),
		}).Execute(ctx, cmd.OutOrStdout())
	})
}
