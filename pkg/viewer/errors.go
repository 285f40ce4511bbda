package viewer

import "errors"

// Common errors returned by the viewer package.
var (
	// ErrNoFreePort is returned when no port in the configured range
	// can be bound.
	ErrNoFreePort = errors.New("no free port in configured range")

	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("viewer server already running")

	// ErrServerClosed is returned when operating on a closed server.
	ErrServerClosed = errors.New("viewer server is closed")
)
