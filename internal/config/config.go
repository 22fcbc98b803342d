// Package config defines the topicbus configuration and loads it from TOML or
// YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete application configuration.
type Config struct {
	Log     LogConfig     `toml:"log" yaml:"log"`
	Bus     BusConfig     `toml:"bus" yaml:"bus"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`
	Tracing TracingConfig `toml:"tracing" yaml:"tracing"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`

	// Format is text or json.
	Format string `toml:"format" yaml:"format"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	// MaxConcurrency bounds the handlers running at once for one async
	// publish. Zero or less means unbounded.
	MaxConcurrency int `toml:"max_concurrency" yaml:"max_concurrency"`

	// DefaultTimeout applies to subscriptions without their own timeout.
	DefaultTimeout Duration `toml:"default_timeout" yaml:"default_timeout"`

	// CopyPayloads gives every delivery a deep copy of the payload.
	CopyPayloads bool `toml:"copy_payloads" yaml:"copy_payloads"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled"`
	Namespace string `toml:"namespace" yaml:"namespace"`

	// Addr is the listen address for the /metrics endpoint, e.g. ":9090".
	// Empty means metrics are collected but not served.
	Addr string `toml:"addr" yaml:"addr"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled installs a tracer provider that writes spans to stdout.
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Bus: BusConfig{
			MaxConcurrency: 0,
			DefaultTimeout: Duration(5 * time.Second),
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "topicbus",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return &ValidationError{Field: "log.format", Message: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}

	if c.Bus.DefaultTimeout < 0 {
		return &ValidationError{Field: "bus.default_timeout", Message: "must not be negative"}
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return &ValidationError{Field: "metrics.namespace", Message: "required when metrics are enabled"}
	}

	return nil
}
