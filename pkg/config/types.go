// Package config provides configuration management for point-monitor.
//
// Configuration is loaded with the following precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file
// 3. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("poll interval: %v\n", cfg.Polling.Interval)
package config

import (
	"time"

	"github.com/ytpoint/point-monitor/pkg/points"
)

// Config represents the complete application configuration.
//
// Invariants:
// - All point rates must be >= 0
// - Polling.Interval must be > 0
// - Worker.Command must be non-empty
// - Server port range must be valid when the server is enabled.
type Config struct {
	// Points holds the rate multipliers for the calculator.
	Points points.Rates `yaml:"points"`

	// Polling controls the metrics refresh loop.
	Polling PollingConfig `yaml:"polling"`

	// Worker describes the platform scraping subprocess.
	Worker WorkerConfig `yaml:"worker"`

	// Currency controls paid-message amount normalization.
	Currency CurrencyConfig `yaml:"currency"`

	// Server configures the local viewer server.
	Server ServerConfig `yaml:"server"`

	// Logging settings.
	Logging LoggingConfig `yaml:"logging"`
}

// PollingConfig contains poll-loop settings.
type PollingConfig struct {
	// Interval between metric refresh ticks. A configuration constant,
	// never computed at runtime.
	Interval time.Duration `yaml:"interval"`
}

// WorkerConfig describes how to spawn and talk to the scraping worker.
type WorkerConfig struct {
	// Command is the worker executable.
	Command string `yaml:"command"`

	// Args are passed to the worker verbatim.
	Args []string `yaml:"args"`

	// CallTimeout bounds a single RPC call.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// Cookies is an optional cookie string forwarded to the worker at
	// session start for authenticated operations.
	Cookies string `yaml:"cookies"`
}

// CurrencyConfig contains amount-normalization settings.
type CurrencyConfig struct {
	// Fallback is the ISO 4217 code assumed when a paid-message amount
	// carries no recognizable currency marker.
	Fallback string `yaml:"fallback"`
}

// ServerConfig configures the viewer HTTP server.
type ServerConfig struct {
	// Enabled toggles the server entirely.
	Enabled bool `yaml:"enabled"`

	// Host to bind, loopback by default.
	Host string `yaml:"host"`

	// PortMin and PortMax bound the scan for a free port.
	PortMin int `yaml:"port_min"`
	PortMax int `yaml:"port_max"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path).
	Output string `yaml:"output"`

	// Log format (text, json).
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: this method is read-only and thread-safe.
func (c *Config) Validate() error {
	for _, rate := range []float64{
		c.Points.SuperchatRate,
		c.Points.ConcurrentRate,
		c.Points.LikeRate,
		c.Points.SubscriberRate,
		c.Points.ManualRate,
		c.Points.VisitorRate,
	} {
		if rate < 0 {
			return ErrNegativeRate
		}
	}

	if c.Polling.Interval <= 0 {
		return ErrInvalidPollInterval
	}

	if c.Worker.Command == "" {
		return ErrNoWorkerCommand
	}
	if c.Worker.CallTimeout <= 0 {
		return ErrInvalidCallTimeout
	}

	if c.Currency.Fallback == "" {
		return ErrNoFallbackCurrency
	}

	if c.Server.Enabled {
		if c.Server.PortMin <= 0 || c.Server.PortMax < c.Server.PortMin {
			return ErrInvalidPortRange
		}
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}
