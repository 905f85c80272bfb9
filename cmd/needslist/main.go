package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vsinha/needslist/pkg/interfaces/cli/commands"
	"github.com/vsinha/needslist/pkg/interfaces/cli/output"
)

var (
	// Global flags
	configPath    string
	storageDriver string
	storagePath   string
	logLevel      string
	logConsole    bool
	format        string
	outputDir     string
	verbose       bool
	timeout       time.Duration
	metricsFile   string

	// Scope flags shared by calculate and generate
	scope commands.ScopeConfig

	// Actor flags shared by generate and transition
	actor commands.ActorConfig
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "needslist",
	Short: "Relief supply needs list engine",
	Long: `needslist calculates relief supply gaps per warehouse and item,
allocates them across transfers, donations and procurement, and moves the
resulting needs lists through review, approval and fulfillment.

Snapshots are read from a directory holding inventory.csv and, optionally,
inbound.csv and fulfillments.csv.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&storageDriver, "store", "", "Storage driver: memory, file, sqlite (overrides config)")
	rootCmd.PersistentFlags().StringVar(&storagePath, "store-path", "", "Storage file or database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Human readable logs")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", output.FormatText, "Output format: text, json, csv")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Write results to this directory instead of stdout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	for _, cmd := range []*cobra.Command{calculateCmd, generateCmd} {
		cmd.Flags().StringVarP(&scope.SnapshotDir, "snapshot", "s", "", "Snapshot directory (required)")
		cmd.Flags().StringVarP(&scope.EventID, "event", "e", "", "Event id (required)")
		cmd.Flags().StringSliceVarP(&scope.Warehouses, "warehouse", "w", nil, "Warehouse id; repeat or comma-separate")
		cmd.Flags().StringVarP(&scope.Phase, "phase", "p", "SURGE", "Event phase: SURGE, STABILIZED, BASELINE")
		cmd.Flags().StringVar(&scope.AsOf, "as-of", "", "Calculation time, RFC 3339 (default now)")
		cmd.Flags().StringSliceVar(&scope.Items, "item", nil, "Restrict to these item ids")
	}
	for _, cmd := range []*cobra.Command{generateCmd, transitionCmd} {
		cmd.Flags().StringVarP(&actor.ID, "actor", "a", "", "Acting user id (required)")
		cmd.Flags().StringSliceVar(&actor.Roles, "role", nil, "Actor role, e.g. LOGISTICS_MANAGER")
		cmd.Flags().StringSliceVar(&actor.Grants, "grant", nil, "Granted permission, e.g. submit or all")
	}

	rootCmd.AddCommand(calculateCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(transitionCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(auditCmd)
}

func outputConfig() output.Config {
	return output.Config{Format: format, OutputDir: outputDir, Verbose: verbose}
}

// withApp opens the engine for one command invocation
func withApp(cmd *cobra.Command, run func(ctx context.Context, app *commands.App) error) error {
	app, err := commands.OpenApp(commands.AppConfig{
		ConfigPath:    configPath,
		StorageDriver: storageDriver,
		StoragePath:   storagePath,
		LogLevel:      logLevel,
		LogConsole:    logConsole,
		MetricsFile:   metricsFile,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	runErr := run(ctx, app)
	if err := app.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
