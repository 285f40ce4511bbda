package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNegativeRate is returned when any point rate is < 0.
	ErrNegativeRate = errors.New("invalid point rate: must be >= 0")

	// ErrInvalidPollInterval is returned when the poll interval is <= 0.
	ErrInvalidPollInterval = errors.New("invalid poll interval: must be > 0")

	// ErrNoWorkerCommand is returned when no worker command is configured.
	ErrNoWorkerCommand = errors.New("no worker command specified")

	// ErrInvalidCallTimeout is returned when the RPC call timeout is <= 0.
	ErrInvalidCallTimeout = errors.New("invalid call timeout: must be > 0")

	// ErrNoFallbackCurrency is returned when no fallback currency is set.
	ErrNoFallbackCurrency = errors.New("no fallback currency specified")

	// ErrInvalidPortRange is returned when the viewer server port range
	// is empty or inverted.
	ErrInvalidPortRange = errors.New("invalid server port range")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when the config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when the config file has invalid YAML
	// syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")

	// ErrAlreadyWatching is returned when Start is called on a running
	// watcher.
	ErrAlreadyWatching = errors.New("config watcher already started")

	// ErrNotWatching is returned when Stop is called on a watcher that
	// was never started.
	ErrNotWatching = errors.New("config watcher not started")

	// ErrWatcherClosed is returned when operating on a closed watcher.
	ErrWatcherClosed = errors.New("config watcher is closed")
)
