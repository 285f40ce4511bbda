// Package viewer serves display surfaces (browser overlays, OBS
// sources) over a local HTTP server: an embedded overlay page at / and
// a websocket fan-out of point updates at /ws.
//
// Every connected client receives the current snapshot immediately and
// then one message per store broadcast, each carrying the full
// points/metrics/config triple.
package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ytpoint/point-monitor/pkg/logger"
	"github.com/ytpoint/point-monitor/pkg/store"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating
	// the connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often ping frames are sent. Must be less
	// than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The server only binds loopback; overlays load from file:// or OBS.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// message is the JSON envelope sent to clients on every update.
type message struct {
	Event string       `json:"event"`
	Data  store.Update `json:"data"`
}

// hub manages websocket clients and forwards every store broadcast to
// all of them.
type hub struct {
	store  store.Store
	logger logger.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// wsClient represents one connected display surface.
//
// Sends and the close of the send channel are serialized through mu, so
// a broadcast can never race a disconnecting client onto a closed
// channel.
type wsClient struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// trySend enqueues data without blocking. Reports false when the client
// is closed or its buffer is full.
func (c *wsClient) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close shuts the send channel down. Idempotent.
func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func newHub(st store.Store, log logger.Logger) *hub {
	return &hub{
		store:   st,
		logger:  log,
		clients: make(map[*wsClient]struct{}),
	}
}

// run subscribes to the store and forwards each update until ctx is
// cancelled, then closes all active connections.
func (h *hub) run(ctx context.Context) {
	sub := h.store.Subscribe()
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case update, ok := <-sub.Updates():
			if !ok {
				h.closeAll()
				return
			}
			h.broadcast(update)
		}
	}
}

// ServeHTTP upgrades the connection and serves the client. The current
// snapshot is sent immediately so late surfaces have data right away.
// Blocks until the connection closes.
func (h *hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	if data, err := encode(h.store.Snapshot()); err == nil {
		c.trySend(data)
	}

	go c.writePump()
	c.readPump()
}

// count returns the number of currently connected clients.
func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("viewer connected", "clients", h.count())
}

func (h *hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	c.close()
}

func (h *hub) broadcast(update store.Update) {
	data, err := encode(update)
	if err != nil {
		h.logger.Error("failed to encode update", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.trySend(data) {
			// Client's outgoing buffer is full or it is gone already.
			// Disconnect it.
			h.unregister(c)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.close()
	}
}

func encode(update store.Update) ([]byte, error) {
	return json.Marshal(message{
		Event: "points-update",
		Data:  update,
	})
}

// writePump drains the client's send channel onto the websocket
// connection and sends periodic ping frames. Runs in its own goroutine
// per client.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames to process control messages and detect
// disconnects. Blocks until the connection closes.
func (c *wsClient) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
