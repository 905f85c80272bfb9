// Package config loads engine configuration from a YAML file, an optional
// .env file and environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vsinha/needslist/pkg/application/services/approval"
	"github.com/vsinha/needslist/pkg/application/services/calculator"
	"github.com/vsinha/needslist/pkg/domain/entities"
)

// Storage drivers
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// DefaultStoragePath is where the file driver keeps lists when no path is
// configured, relative to the working directory.
const DefaultStoragePath = ".needslist/needslists.json"

// Environment overrides
const (
	EnvStorageDriver = "NEEDSLIST_STORAGE_DRIVER"
	EnvStoragePath   = "NEEDSLIST_STORAGE_PATH"
	EnvLogLevel      = "LOG_LEVEL"
)

type FreshnessConfig struct {
	HighMaxHours   float64 `yaml:"high_max_hours"`
	MediumMaxHours float64 `yaml:"medium_max_hours"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Config is the full engine configuration
type Config struct {
	Phases    entities.PhaseTable    `yaml:"phases"`
	Freshness FreshnessConfig        `yaml:"freshness"`
	Inbound   entities.InboundPolicy `yaml:"inbound"`
	Approval  approval.Config        `yaml:"approval"`
	Storage   StorageConfig          `yaml:"storage"`
	Logging   LoggingConfig          `yaml:"logging"`
}

// Default returns the built-in configuration: standard phase windows,
// 2h/6h freshness, the default approval tables and a file store under the
// working directory.
func Default() Config {
	return Config{
		Phases: entities.DefaultPhaseTable(),
		Freshness: FreshnessConfig{
			HighMaxHours:   2,
			MediumMaxHours: 6,
		},
		Inbound:  entities.DefaultInboundPolicy(),
		Approval: approval.DefaultConfig(),
		Storage:  StorageConfig{Driver: DriverFile},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads path (if non-empty) over the defaults, loads .env when present
// and applies environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	cfg.Storage = cfg.Storage.Resolved()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- the path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return decode(data, cfg)
}

// decode overlays YAML onto cfg, rejecting unknown keys.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// Resolved fills the file driver's default path. Other drivers must name
// their path explicitly.
func (s StorageConfig) Resolved() StorageConfig {
	if s.Driver == DriverFile && s.Path == "" {
		s.Path = DefaultStoragePath
	}
	return s
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvStorageDriver)); v != "" {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoragePath)); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate rejects configurations the engine cannot run with
func (c Config) Validate() error {
	if len(c.Phases) == 0 {
		return fmt.Errorf("config: at least one phase must be configured")
	}
	if err := c.Phases.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Freshness.HighMaxHours <= 0 {
		return fmt.Errorf("config: freshness high_max_hours must be positive, got %v", c.Freshness.HighMaxHours)
	}
	if c.Freshness.MediumMaxHours < c.Freshness.HighMaxHours {
		return fmt.Errorf("config: freshness medium_max_hours (%v) must not be below high_max_hours (%v)",
			c.Freshness.MediumMaxHours, c.Freshness.HighMaxHours)
	}
	if err := c.Approval.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverFile, DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("config: storage driver %s requires a path", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q (expected memory, file or sqlite)", c.Storage.Driver)
	}
	return nil
}

// FreshnessThresholds converts the hour-based settings to durations
func (c Config) FreshnessThresholds() entities.FreshnessThresholds {
	return entities.FreshnessThresholds{
		HighMax:   hours(c.Freshness.HighMaxHours),
		MediumMax: hours(c.Freshness.MediumMaxHours),
	}
}

// Calculator builds the calculator service configuration
func (c Config) Calculator() calculator.Config {
	return calculator.Config{
		Phases:    c.Phases,
		Freshness: c.FreshnessThresholds(),
		Inbound:   c.Inbound,
	}
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
