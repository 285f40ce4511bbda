package rpc

import (
	"errors"
	"fmt"
)

// Common errors returned by the rpc package.
var (
	// ErrTimeout is returned when a call receives no response within the
	// configured call timeout.
	ErrTimeout = errors.New("rpc call timed out")

	// ErrTransportClosed is returned when the worker process has exited.
	// The current monitoring session must treat this as fatal.
	ErrTransportClosed = errors.New("rpc transport closed")

	// ErrInvalidConfig is returned when the transport configuration is
	// invalid (e.g. empty worker command).
	ErrInvalidConfig = errors.New("invalid transport configuration")
)

// RemoteError is an error string returned by the worker for a specific
// call. It is surfaced to that caller only and never stops the transport.
type RemoteError struct {
	// Method is the call that failed.
	Method string

	// Message is the worker-supplied error text.
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error from %s: %s", e.Method, e.Message)
}

// IsRemoteError reports whether err is a worker-supplied error and
// returns it if so.
func IsRemoteError(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
