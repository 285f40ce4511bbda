package viewer

import (
	"context"
	_ "embed"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ytpoint/point-monitor/pkg/logger"
	"github.com/ytpoint/point-monitor/pkg/store"
)

//go:embed viewer.html
var viewerPage []byte

// Config configures the viewer server.
type Config struct {
	// Host is the interface to bind. Defaults to 127.0.0.1.
	Host string

	// PortMin and PortMax bound the port scan: the server binds the
	// first free port in [PortMin, PortMax].
	PortMin int
	PortMax int
}

// Server is the local HTTP endpoint display surfaces connect to.
type Server interface {
	// Start binds the first free port in the configured range and
	// begins serving. Returns ErrNoFreePort when the range is exhausted.
	Start(ctx context.Context) error

	// URL returns the base URL of the running server.
	URL() string

	// ClientCount returns the number of connected display surfaces.
	ClientCount() int

	// Close shuts the server down. Idempotent.
	Close() error
}

// server implements the Server interface.
type server struct {
	cfg    Config
	hub    *hub
	logger logger.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	port    int
	httpSrv *http.Server
	stopHub context.CancelFunc
}

// New creates a viewer server fed by st.
func New(cfg Config, st store.Store, log logger.Logger) (Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.PortMin <= 0 || cfg.PortMax < cfg.PortMin {
		return nil, fmt.Errorf("invalid port range %d-%d", cfg.PortMin, cfg.PortMax)
	}

	return &server{
		cfg:    cfg,
		hub:    newHub(st, log),
		logger: log,
	}, nil
}

// Start implements Server.Start.
func (s *server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.running {
		return ErrAlreadyRunning
	}

	ln, port, err := s.listen()
	if err != nil {
		return err
	}
	s.port = port

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(viewerPage) //nolint:errcheck
	})
	mux.Handle("/ws", s.hub)

	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	hubCtx, cancel := context.WithCancel(ctx)
	s.stopHub = cancel
	go s.hub.run(hubCtx)

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("viewer server failed", "error", err)
		}
	}()

	s.running = true
	s.logger.Info("viewer server started", "url", s.urlLocked())
	return nil
}

// listen binds the first free port in the configured range.
func (s *server) listen() (net.Listener, int, error) {
	for port := s.cfg.PortMin; port <= s.cfg.PortMax; port++ {
		addr := fmt.Sprintf("%s:%d", s.cfg.Host, port)
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, port, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: %d-%d", ErrNoFreePort, s.cfg.PortMin, s.cfg.PortMax)
}

// URL implements Server.URL.
func (s *server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.urlLocked()
}

func (s *server) urlLocked() string {
	if !s.running {
		return ""
	}
	return fmt.Sprintf("http://%s:%d", s.cfg.Host, s.port)
}

// ClientCount implements Server.ClientCount.
func (s *server) ClientCount() int {
	return s.hub.count()
}

// Close implements Server.Close.
func (s *server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if !s.running {
		return nil
	}
	s.running = false

	s.stopHub()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down viewer server: %w", err)
	}

	s.logger.Info("viewer server stopped")
	return nil
}
