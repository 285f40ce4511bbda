package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ytpoint/point-monitor/pkg/logger"
)

const (
	// defaultCallTimeout bounds a single call when Config.CallTimeout
	// is unset.
	defaultCallTimeout = 30 * time.Second

	// defaultEventBuffer is the push-event channel depth when
	// Config.EventBuffer is unset.
	defaultEventBuffer = 64

	// maxLineLength is the largest accepted response line (1MB). Longer
	// lines abort the scanner and close the transport.
	maxLineLength = 1024 * 1024
)

// callResult carries one demultiplexed response to its waiting caller.
type callResult struct {
	result json.RawMessage
	err    string
	closed bool
}

// transport implements Transport over a stdin writer and stdout reader.
// Process spawning lives in process.go; tests drive a transport over
// in-memory pipes.
type transport struct {
	config Config
	logger logger.Logger

	stdin   io.WriteCloser
	writeMu sync.Mutex

	nextID atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan callResult

	events chan PushEvent
	done   chan struct{}

	closeOnce sync.Once
	// stop terminates the worker process. Nil for pipe transports.
	stop func()
}

// newTransport wires a transport over raw streams and starts the read
// loop. stop, if non-nil, is invoked once on Close to terminate the
// worker.
func newTransport(cfg Config, stdin io.WriteCloser, stdout io.Reader, stop func(), log logger.Logger) *transport {
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.EventBuffer == 0 {
		cfg.EventBuffer = defaultEventBuffer
	}

	t := &transport{
		config:  cfg,
		logger:  log,
		stdin:   stdin,
		pending: make(map[uint64]chan callResult),
		events:  make(chan PushEvent, cfg.EventBuffer),
		done:    make(chan struct{}),
		stop:    stop,
	}

	go t.readLoop(stdout)

	return t
}

// Call implements Transport.Call.
func (t *transport) Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	select {
	case <-t.done:
		return nil, ErrTransportClosed
	default:
	}

	id := t.nextID.Add(1)
	req := Request{ID: id, Method: method, Params: params}

	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Register before writing so a fast response cannot race the table.
	ch := make(chan callResult, 1)
	t.pendingMu.Lock()
	t.pending[id] = ch
	t.pendingMu.Unlock()

	if err := t.writeLine(line); err != nil {
		t.discard(id)
		return nil, err
	}

	timer := time.NewTimer(t.config.CallTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.closed {
			return nil, ErrTransportClosed
		}
		if res.err != "" {
			return nil, &RemoteError{Method: method, Message: res.err}
		}
		return res.result, nil

	case <-timer.C:
		t.discard(id)
		return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, method, t.config.CallTimeout)

	case <-ctx.Done():
		t.discard(id)
		return nil, ctx.Err()

	case <-t.done:
		return nil, ErrTransportClosed
	}
}

// Events implements Transport.Events.
func (t *transport) Events() <-chan PushEvent {
	return t.events
}

// Done implements Transport.Done.
func (t *transport) Done() <-chan struct{} {
	return t.done
}

// Close implements Transport.Close.
func (t *transport) Close() error {
	t.shutdown()
	return nil
}

// writeLine writes one JSON line to the worker's input stream.
// Writes are serialized so concurrent calls never interleave bytes.
func (t *transport) writeLine(line []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.stdin.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: write failed: %v", ErrTransportClosed, err)
	}
	return nil
}

// discard removes an abandoned call from the correlation table. A late
// response for that id is then logged and dropped by the read loop.
func (t *transport) discard(id uint64) {
	t.pendingMu.Lock()
	delete(t.pending, id)
	t.pendingMu.Unlock()
}

// readLoop consumes the worker's output stream line by line until EOF
// or a read error, then shuts the transport down.
func (t *transport) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		t.dispatchLine(line)
	}

	if err := scanner.Err(); err != nil {
		t.logger.Warn("worker output stream failed", "error", err)
	}

	t.shutdown()

	// The read loop is the only sender, so it alone closes the channel
	// once no further dispatch is possible.
	close(t.events)
}

// dispatchLine routes one output line: push events to the event channel,
// responses to their waiting caller. Anything else is logged and
// discarded, never fatal.
func (t *transport) dispatchLine(line []byte) {
	// Push events carry an "event" object and no id.
	var push pushEnvelope
	if err := json.Unmarshal(line, &push); err == nil && push.Event != nil {
		t.dispatchEvent(PushEvent{Type: push.Event.Type, Data: push.Event.Data})
		return
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		t.logger.Warn("discarding invalid line from worker", "line", truncate(line))
		return
	}

	t.pendingMu.Lock()
	ch, ok := t.pending[resp.ID]
	if ok {
		delete(t.pending, resp.ID)
	}
	t.pendingMu.Unlock()

	if !ok {
		t.logger.Warn("discarding response with no matching call", "id", resp.ID)
		return
	}

	ch <- callResult{result: resp.Result, err: resp.Error}
}

// dispatchEvent delivers a push event without blocking the read loop.
func (t *transport) dispatchEvent(ev PushEvent) {
	select {
	case t.events <- ev:
	default:
		t.logger.Warn("push event channel full, dropping event", "type", ev.Type)
	}
}

// shutdown fails all outstanding calls with ErrTransportClosed and
// terminates the worker. Idempotent. The event channel is closed by the
// read loop, not here.
func (t *transport) shutdown() {
	t.closeOnce.Do(func() {
		close(t.done)

		if t.stop != nil {
			t.stop()
		}
		if err := t.stdin.Close(); err != nil {
			t.logger.Debug("failed to close worker input", "error", err)
		}

		t.pendingMu.Lock()
		for id, ch := range t.pending {
			delete(t.pending, id)
			// Buffered; never blocks.
			ch <- callResult{closed: true}
		}
		t.pendingMu.Unlock()

		t.logger.Info("rpc transport closed")
	})
}

// truncate shortens a line for log output.
func truncate(line []byte) string {
	const max = 256
	if len(line) <= max {
		return string(line)
	}
	return string(line[:max]) + "..."
}
