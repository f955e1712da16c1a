// Package config loads the YAML configuration of the acctsync binaries.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/metaDAOproject/acctsync/pkg/accountsync"
	"github.com/metaDAOproject/acctsync/pkg/keyed"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the top-level configuration file.
type Config struct {
	// FallbackTimeout is how long a local write waits for a confirming push.
	FallbackTimeout Duration `yaml:"fallback_timeout"`

	// StoreCapacity bounds the number of cached accounts.
	StoreCapacity int `yaml:"store_capacity"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFile, if set, receives JSON logs in addition to stderr.
	LogFile string `yaml:"log_file,omitempty"`

	// TraceFile, if set, receives the CBOR synchronization trace.
	TraceFile string `yaml:"trace_file,omitempty"`

	// SnapshotFile, if set, is loaded at startup and written at exit.
	SnapshotFile string `yaml:"snapshot_file,omitempty"`

	Simulation Simulation `yaml:"simulation"`
}

// Simulation configures the in-process ledger.
type Simulation struct {
	// FetchLatency delays every fetch.
	FetchLatency Duration `yaml:"fetch_latency"`

	// DropPushes starts the ledger with change notifications suppressed.
	DropPushes bool `yaml:"drop_pushes"`

	// Accounts are the initial balances by address.
	Accounts map[string]uint64 `yaml:"accounts,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		FallbackTimeout: Duration(accountsync.DefaultFallbackTimeout),
		StoreCapacity:   keyed.DefaultCapacity,
		LogLevel:        "info",
		Simulation: Simulation{
			FetchLatency: Duration(200 * time.Millisecond),
		},
	}
}

// Parse decodes YAML data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Message: err.Error(), Cause: err}
	}
	return cfg, nil
}

// Load reads the configuration file at path. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.FallbackTimeout <= 0 {
		return fmt.Errorf("%w: fallback_timeout must be positive", ErrInvalid)
	}
	if c.StoreCapacity <= 0 {
		return fmt.Errorf("%w: store_capacity must be positive", ErrInvalid)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Simulation.FetchLatency < 0 {
		return fmt.Errorf("%w: simulation.fetch_latency must not be negative", ErrInvalid)
	}
	return nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseLevel maps a log level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: unknown log level %q", ErrInvalid, s)
	}
}

// LoadError describes a configuration that could not be loaded.
type LoadError struct {
	// File is the path of the configuration file, if any.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	if e.File == "" {
		return "config: " + e.Message
	}
	return e.File + ": " + e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
