// Package config loads application configuration from ~/.mci/mci.json with
// MCI_-prefixed environment variable overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Config holds the application configuration
type Config struct {
	// SchemaPath is the default tool schema file, overridable per command.
	SchemaPath string `mapstructure:"schema_path" json:"schema_path"`

	// Watch enables hot-reloading of the schema file.
	Watch bool `mapstructure:"watch" json:"watch"`

	// DataDir is where logs and state live. Defaults to ~/.mci.
	DataDir string `mapstructure:"data_dir" json:"data_dir"`

	Logging LoggingConfig `mapstructure:"logging" json:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `mapstructure:"level" json:"level"`
	File      string `mapstructure:"file" json:"file"`
	Pretty    bool   `mapstructure:"pretty" json:"pretty"`
	Redaction bool   `mapstructure:"redaction" json:"redaction"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Listen  string `mapstructure:"listen" json:"listen"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		SchemaPath: "./mci.json",
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}

	if c.SchemaPath != "" {
		switch strings.ToLower(filepath.Ext(c.SchemaPath)) {
		case ".json", ".yaml", ".yml":
		default:
			return fmt.Errorf("schema path %q must end in .json, .yaml, or .yml", c.SchemaPath)
		}
	}

	return nil
}
