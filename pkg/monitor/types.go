// Package monitor implements the monitoring controller: a single-session
// state machine that drives the platform worker, reconciles polled and
// pushed metrics, and feeds the point store.
//
// At most one session exists at a time. A session owns its transport,
// its raw-metric accumulator, and the set of superchat ids it has
// already accounted for; everything it produces flows through the
// store's single mutation path. Results from a session that has already
// been stopped are discarded, never applied.
package monitor

import (
	"context"
	"time"

	"github.com/ytpoint/point-monitor/pkg/platform"
	"github.com/ytpoint/point-monitor/pkg/points"
	"github.com/ytpoint/point-monitor/pkg/rpc"
)

// State is the controller's lifecycle state.
type State int

const (
	// StateIdle means no session exists.
	StateIdle State = iota

	// StateStarting means a start attempt is in flight.
	StateStarting

	// StateActive means a session is running: the poller and listener
	// are live.
	StateActive

	// StateStopping means a stop is in flight.
	StateStopping
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// TransportFactory spawns a fresh worker transport for one session.
type TransportFactory func() (rpc.Transport, error)

// ClientFactory builds a platform client over a spawned transport.
type ClientFactory func(rpc.Transport) platform.Client

// Config configures the controller.
type Config struct {
	// PollInterval is the fixed metrics-poll cadence. Defaults to 5s.
	PollInterval time.Duration

	// FallbackCurrency is the ISO code assumed for superchat amounts
	// whose currency marker is unrecognized. Defaults to "JPY".
	FallbackCurrency string

	// Cookies, when non-empty, is forwarded to the worker before init
	// so authenticated operations become available.
	Cookies string

	// NewTransport spawns the worker process for each session.
	NewTransport TransportFactory

	// NewClient wraps a transport in a typed client. Defaults to
	// platform.NewClient.
	NewClient ClientFactory
}

// Status is a point-in-time view of the controller for display surfaces.
type Status struct {
	State         State  `json:"state"`
	VideoID       string `json:"video_id,omitempty"`
	ChannelID     string `json:"channel_id,omitempty"`
	ChannelName   string `json:"channel_name,omitempty"`
	Title         string `json:"title,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// Controller is the session state machine and the command surface the
// UI layer talks to.
type Controller interface {
	// Start begins monitoring the broadcast named by videoURL (a full
	// watch URL, a short URL, or a bare video id).
	//
	// Fails with ErrEmptyVideoID or ErrInvalidVideoURL before any RPC,
	// with ErrAlreadyMonitoring when a session exists, with ErrNotLive
	// when the video is not broadcasting, and with ErrStartCancelled
	// when Stop arrives while the start is still in flight.
	Start(ctx context.Context, videoURL string) error

	// Stop ends the current session. A no-op when idle. Effective even
	// while a start attempt or a poll is in flight; late results from
	// the stopped session are discarded.
	Stop(ctx context.Context) error

	// State returns the current lifecycle state.
	State() State

	// Status returns the current state plus session identity.
	Status() Status

	// AddManualPoints adjusts the manual counter by delta. Permitted in
	// any state; may go negative.
	AddManualPoints(delta int64)

	// AddVisitorPoints adjusts the visitor counter by delta. Permitted
	// in any state; may go negative.
	AddVisitorPoints(delta int64)

	// Reset zeroes the manual and visitor counters. Raw metrics
	// accumulated by a running session are kept.
	Reset()

	// Points returns the current point breakdown.
	Points() points.PointState

	// ApplyRates installs a new rate configuration. Applied immediately
	// when idle; while a session runs it is deferred until the session
	// ends, so one computation always sees one fixed configuration.
	ApplyRates(rates points.Rates)

	// Close stops any running session and releases the controller.
	Close() error
}
