package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/vsinha/needslist/pkg/application/services/allocation"
	"github.com/vsinha/needslist/pkg/application/services/approval"
	"github.com/vsinha/needslist/pkg/application/services/calculator"
	"github.com/vsinha/needslist/pkg/application/services/lifecycle"
	"github.com/vsinha/needslist/pkg/application/services/planning"
	"github.com/vsinha/needslist/pkg/domain/repositories"
	"github.com/vsinha/needslist/pkg/infrastructure/config"
	"github.com/vsinha/needslist/pkg/infrastructure/events"
	"github.com/vsinha/needslist/pkg/infrastructure/logging"
	"github.com/vsinha/needslist/pkg/infrastructure/metrics"
	"github.com/vsinha/needslist/pkg/infrastructure/repositories/file"
	"github.com/vsinha/needslist/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/needslist/pkg/infrastructure/repositories/sqlite"
)

// AppConfig selects the configuration file and the flag overrides applied
// on top of it
type AppConfig struct {
	ConfigPath    string
	StorageDriver string
	StoragePath   string
	LogLevel      string
	LogConsole    bool
	LogOutput     io.Writer // defaults to os.Stderr
	MetricsFile   string    // Prometheus textfile written on Close
}

// App wires the engine services over one store and one event bus
type App struct {
	Config    config.Config
	Store     repositories.Store
	Events    *events.InMemoryEventStore
	Lifecycle *lifecycle.Service
	Planning  *planning.Orchestrator
	Logger    zerolog.Logger

	metricsFile string
}

// OpenApp loads configuration and builds every service. Close releases the
// store.
func OpenApp(cfg AppConfig) (*App, error) {
	conf, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cfg.StorageDriver != "" && cfg.StorageDriver != conf.Storage.Driver {
		// another driver never inherits the configured path
		conf.Storage = config.StorageConfig{Driver: cfg.StorageDriver}
	}
	if cfg.StoragePath != "" {
		conf.Storage.Path = cfg.StoragePath
	}
	conf.Storage = conf.Storage.Resolved()
	if cfg.LogLevel != "" {
		conf.Logging.Level = cfg.LogLevel
	}
	if cfg.LogConsole {
		conf.Logging.Console = true
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	out := cfg.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := logging.New(logging.Config{
		Level:   conf.Logging.Level,
		Output:  out,
		Console: conf.Logging.Console,
	})

	store, err := openStore(conf.Storage, logger)
	if err != nil {
		return nil, err
	}

	bus := events.NewInMemoryEventStore(logger)
	if err := metrics.NewRecorder().Attach(bus); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("attach metrics recorder: %w", err)
	}

	approvals := approval.NewApprovalService(conf.Approval, logger)
	orchestrator := planning.NewOrchestrator(
		calculator.NewCalculatorService(conf.Calculator(), logger),
		allocation.NewAllocatorService(conf.Inbound, logger),
		approvals,
		store,
		bus,
		logger,
	)

	return &App{
		Config:    conf,
		Store:     store,
		Events:    bus,
		Lifecycle: lifecycle.NewService(store, approvals, bus, logger),
		Planning:  orchestrator,
		Logger:    logger,

		metricsFile: cfg.MetricsFile,
	}, nil
}

// Close writes the metrics textfile, if one was requested, and releases the
// store
func (a *App) Close() error {
	var errs []error
	if a.metricsFile != "" {
		if err := metrics.WriteTextfile(a.metricsFile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func openStore(cfg config.StorageConfig, logger zerolog.Logger) (repositories.Store, error) {
	switch cfg.Driver {
	case config.DriverFile:
		store, err := file.Open(cfg.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Path, sqlite.DefaultConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return memory.NewNeedsListStore(), nil
	}
}
