// Package rpc frames newline-delimited JSON requests, responses, and
// unsolicited push events over a worker subprocess's standard streams.
//
// Concurrent calls are legal and never serialized: each call gets a
// fresh id and responses are demultiplexed purely by id, so they may
// arrive in any order. Lines that are not valid JSON, or that carry no
// matching id, are logged and discarded. Push events (lines shaped as
// an event rather than a response) are delivered on a separate channel.
//
// Example usage:
//
//	t, err := rpc.Spawn(rpc.Config{Command: "platform-worker"}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
//
//	result, err := t.Call(ctx, "getLiveInfo", map[string]any{"videoId": id})
package rpc

import (
	"context"
	"encoding/json"
	"time"
)

// Request is one outbound RPC call, written as a single JSON line.
type Request struct {
	// ID is unique per in-flight call, monotonically issued.
	ID uint64 `json:"id"`

	// Method is the worker operation name.
	Method string `json:"method"`

	// Params carries the method arguments, omitted when nil.
	Params map[string]any `json:"params,omitempty"`
}

// Response is one inbound reply line. Exactly one of Result and Error
// is set, and ID must match an outstanding request.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// PushEvent is an unsolicited message from the worker, not correlated
// to any request. It may arrive at any time and in any volume.
type PushEvent struct {
	// Type discriminates the event payload (e.g. "superchat").
	Type string

	// Data is the raw event payload for the consumer to decode.
	Data json.RawMessage
}

// pushEnvelope is the wire shape of a push event line.
type pushEnvelope struct {
	Event *pushPayload `json:"event"`
}

type pushPayload struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Config holds transport configuration.
type Config struct {
	// Command is the worker executable to spawn.
	Command string

	// Args are passed to the worker verbatim.
	Args []string

	// CallTimeout bounds how long a single call waits for its response.
	// Defaults to 30 seconds.
	CallTimeout time.Duration

	// EventBuffer is the push-event channel depth. Defaults to 64.
	EventBuffer int
}

// Transport is a connected worker subprocess.
//
// The transport exclusively owns the child-process handle and the
// id-correlation table. Once the worker exits, every outstanding and
// future call fails with ErrTransportClosed; a transport is never
// reconnected, callers spawn a fresh one.
type Transport interface {
	// Call issues method with params and awaits the matching response.
	//
	// Returns:
	//   - The raw result payload on success
	//   - A *RemoteError if the worker answered with an error string
	//   - ErrTimeout if no response arrived within the call timeout
	//   - ErrTransportClosed if the worker exited
	//   - ctx.Err() if the context was cancelled first
	//
	// Thread-safety: safe for concurrent use; calls are not serialized.
	Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error)

	// Events returns the push-event channel. It is closed when the
	// transport shuts down.
	Events() <-chan PushEvent

	// Done is closed once the worker has exited and all pending calls
	// have been failed.
	Done() <-chan struct{}

	// Close terminates the worker process and releases resources.
	// Safe to call multiple times.
	Close() error
}
