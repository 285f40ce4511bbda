package monitor

import "errors"

// Common errors returned by the monitor package.
var (
	// ErrEmptyVideoID is returned when start is called with an empty
	// video URL or id. Rejected before any RPC is issued.
	ErrEmptyVideoID = errors.New("video id is empty")

	// ErrInvalidVideoURL is returned when no video id can be extracted
	// from the given input.
	ErrInvalidVideoURL = errors.New("cannot extract video id from input")

	// ErrAlreadyMonitoring is returned when start is called while a
	// session is active or starting. The existing session is never
	// silently replaced.
	ErrAlreadyMonitoring = errors.New("a monitoring session is already running")

	// ErrNotLive is returned when the target video is not currently a
	// live broadcast.
	ErrNotLive = errors.New("the video is not a live stream")

	// ErrStartCancelled is returned when a start attempt is cancelled
	// before reaching the active state.
	ErrStartCancelled = errors.New("monitoring start was cancelled")

	// ErrControllerClosed is returned when operating on a closed
	// controller.
	ErrControllerClosed = errors.New("controller is closed")
)
