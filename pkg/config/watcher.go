package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ytpoint/point-monitor/pkg/logger"
)

// Watcher watches a configuration file and emits reloaded configurations
// when it changes on disk.
type Watcher interface {
	// Start begins watching the config file. Returns ErrAlreadyWatching
	// if already started.
	Start(ctx context.Context) error

	// Stop stops watching. Returns ErrNotWatching if not started.
	Stop() error

	// Updates returns the channel of reloaded configurations. Each value
	// has already passed Validate.
	Updates() <-chan *Config

	// Close releases all resources. Idempotent.
	Close() error
}

// watcher implements the Watcher interface using fsnotify.
type watcher struct {
	fsw        *fsnotify.Watcher
	logger     logger.Logger
	configPath string
	debounce   time.Duration

	updates chan *Config

	mu       sync.Mutex
	running  bool
	closed   bool
	stopChan chan struct{}

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(configPath string, log logger.Logger) (Watcher, error) {
	if configPath == "" {
		return nil, ErrConfigNotFound
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &watcher{
		fsw:        fsw,
		logger:     log,
		configPath: configPath,
		debounce:   200 * time.Millisecond,
		updates:    make(chan *Config, 1),
		stopChan:   make(chan struct{}),
	}

	return w, nil
}

// Start implements Watcher.Start.
//
// The parent directory is watched rather than the file itself: editors
// commonly replace the file on save, which would otherwise drop the
// watch after the first write.
func (w *watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyWatching
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.configPath)
	if err := w.fsw.Add(dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Info("config watcher started", "path", w.configPath)

	go w.processEvents(ctx)

	return nil
}

// Stop implements Watcher.Stop.
func (w *watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.running {
		return ErrNotWatching
	}

	close(w.stopChan)
	w.running = false

	w.logger.Info("config watcher stopped")
	return nil
}

// Updates implements Watcher.Updates.
func (w *watcher) Updates() <-chan *Config {
	return w.updates
}

// Close implements Watcher.Close.
func (w *watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.running {
		close(w.stopChan)
		w.running = false
	}

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	close(w.updates)

	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	return nil
}

// processEvents handles events from fsnotify.
func (w *watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopChan:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

// handleEvent debounces write and create events on the config file.
func (w *watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, w.reload)
}

// reload re-reads the config file and pushes the result.
//
// A file that fails to load or validate is logged and skipped; the
// previously delivered configuration stays in effect.
func (w *watcher) reload() {
	cfg, err := LoadFromFile(w.configPath)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous configuration",
			"path", w.configPath,
			"error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.running {
		return
	}

	select {
	case w.updates <- cfg:
		w.logger.Info("configuration reloaded", "path", w.configPath)
	default:
		// Consumer has not drained the previous reload; the newest
		// config wins, so replace it.
		select {
		case <-w.updates:
		default:
		}
		w.updates <- cfg
	}
}
