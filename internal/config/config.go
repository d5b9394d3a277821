// Package config provides configuration loading for patternd.
//
// Two layers of configuration exist. The service Config (this file) is
// loaded once at startup from YAML and PATTERND_* environment variables via
// koanf and controls where the store lives, logging, telemetry and the inbox
// watcher. The Engine config (engine.go) lives inside the pattern store as
// config.json and controls capacity, decay, thresholds and eviction
// protection. It can be changed at runtime and reloaded.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the service configuration for patternd.
type Config struct {
	Store     StoreConfig     `koanf:"store"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Inbox     InboxConfig     `koanf:"inbox"`
}

// StoreConfig locates the pattern store on disk.
type StoreConfig struct {
	// Path is the store root. A leading ~ expands to the home directory.
	Path string `koanf:"path"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool     `koanf:"enabled"`
	Endpoint    string   `koanf:"endpoint"`
	Protocol    string   `koanf:"protocol"`
	Insecure    bool     `koanf:"insecure"`
	ServiceName string   `koanf:"service_name"`
	Shutdown    Duration `koanf:"shutdown"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// TextfilePath, when set, receives a Prometheus text exposition of the
	// store metrics after each command.
	TextfilePath string `koanf:"textfile_path"`
}

// InboxConfig controls the observation bundle watcher.
type InboxConfig struct {
	Dir            string   `koanf:"dir"`
	EvolveOnIngest bool     `koanf:"evolve_on_ingest"`
	Settle         Duration `koanf:"settle"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the service configuration.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path is required"))
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			errs = append(errs, fmt.Errorf("telemetry.protocol must be grpc or http/protobuf, got %q", c.Telemetry.Protocol))
		}
	}

	if c.Inbox.Settle < 0 {
		errs = append(errs, errors.New("inbox.settle must not be negative"))
	}

	return errors.Join(errs...)
}

// StorePath returns the store root with ~ expanded.
func (c *Config) StorePath() (string, error) {
	return ExpandHome(c.Store.Path)
}

// InboxDir returns the inbox directory with ~ expanded. When unset the
// inbox lives under the store root.
func (c *Config) InboxDir() (string, error) {
	if c.Inbox.Dir == "" {
		root, err := c.StorePath()
		if err != nil {
			return "", err
		}
		return filepath.Join(root, "inbox"), nil
	}
	return ExpandHome(c.Inbox.Dir)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Store.Path == "" {
		cfg.Store.Path = "~/.local/share/patternd"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "patternd"
	}
	if cfg.Telemetry.Shutdown == 0 {
		cfg.Telemetry.Shutdown = Duration(5 * time.Second)
	}

	if cfg.Inbox.Settle == 0 {
		cfg.Inbox.Settle = Duration(250 * time.Millisecond)
	}
}
