package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ytpoint/point-monitor/pkg/logger"
	"github.com/ytpoint/point-monitor/pkg/platform"
	"github.com/ytpoint/point-monitor/pkg/points"
	"github.com/ytpoint/point-monitor/pkg/rpc"
	"github.com/ytpoint/point-monitor/pkg/store"
)

// consecutiveFailureWarning is the number of poll failures in a row
// that surfaces a session-level warning. The session keeps running.
const consecutiveFailureWarning = 3

// controller implements the Controller interface.
type controller struct {
	cfg    Config
	store  store.Store
	logger logger.Logger

	mu           sync.Mutex
	state        State
	sess         *session
	nextSession  uint64
	pendingRates *points.Rates
	closed       bool
}

// session is one monitoring run, from start to stop/cancel/failure.
// It owns its transport, its raw-metric accumulator, and the superchat
// ids already accounted for.
type session struct {
	id uint64

	videoID       string
	channelID     string
	channelName   string
	title         string
	authenticated bool

	transport rpc.Transport
	client    platform.Client

	// ctx governs the poller and listener; cancel ends them.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metricsMu sync.Mutex
	metrics   points.RawMetrics
	seen      map[string]struct{}
}

// New creates a controller writing into st.
func New(cfg Config, st store.Store, log logger.Logger) (Controller, error) {
	if cfg.NewTransport == nil {
		return nil, fmt.Errorf("monitor: transport factory is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.FallbackCurrency == "" {
		cfg.FallbackCurrency = "JPY"
	}
	if cfg.NewClient == nil {
		cfg.NewClient = func(t rpc.Transport) platform.Client {
			return platform.NewClient(t, log)
		}
	}

	return &controller{
		cfg:    cfg,
		store:  st,
		logger: log,
		state:  StateIdle,
	}, nil
}

// Start implements Controller.Start.
func (c *controller) Start(ctx context.Context, videoURL string) error {
	videoID, err := ExtractVideoID(videoURL)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyMonitoring
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	c.nextSession++
	sess := &session{
		id:      c.nextSession,
		videoID: videoID,
		ctx:     sessCtx,
		cancel:  cancel,
		seen:    make(map[string]struct{}),
	}
	c.state = StateStarting
	c.sess = sess
	c.mu.Unlock()

	c.logger.Info("starting monitoring", "video_id", videoID)

	// The start sequence runs without holding the controller lock; a
	// concurrent Stop cancels sess.ctx and detaches the session, and
	// the checks below discard the partial result.
	startCtx, cancelStart := context.WithCancel(ctx)
	defer cancelStart()
	release := context.AfterFunc(sess.ctx, cancelStart)
	defer release()

	if err := c.startSession(startCtx, sess, videoID); err != nil {
		c.abortStart(sess)
		if sess.ctx.Err() != nil {
			return ErrStartCancelled
		}
		return err
	}

	c.mu.Lock()
	if c.sess != sess || c.state != StateStarting {
		c.mu.Unlock()
		// Cancelled between the last RPC and activation.
		_ = sess.transport.Close()
		return ErrStartCancelled
	}
	c.state = StateActive
	c.store.SetMetrics(sess.snapshotMetrics())
	c.mu.Unlock()

	sess.wg.Add(2)
	go c.pollLoop(sess)
	go c.listenLoop(sess)

	c.logger.Info("monitoring started",
		"video_id", sess.videoID,
		"channel", sess.channelName,
		"authenticated", sess.authenticated)

	return nil
}

// startSession runs the worker handshake: spawn, cookies, init, live
// check, initial subscriber count, chat start.
func (c *controller) startSession(ctx context.Context, sess *session, videoID string) error {
	transport, err := c.cfg.NewTransport()
	if err != nil {
		return fmt.Errorf("failed to spawn worker: %w", err)
	}
	sess.transport = transport
	sess.client = c.cfg.NewClient(transport)

	if c.cfg.Cookies != "" {
		if err := sess.client.SetCookies(ctx, c.cfg.Cookies); err != nil {
			c.logger.Warn("failed to set cookies, continuing unauthenticated", "error", err)
		}
	}

	authenticated, err := sess.client.Init(ctx)
	if err != nil {
		return fmt.Errorf("worker init failed: %w", err)
	}
	sess.authenticated = authenticated

	info, err := sess.client.GetLiveInfo(ctx, videoID)
	if err != nil {
		return fmt.Errorf("failed to fetch live info: %w", err)
	}
	if !info.IsLive {
		return ErrNotLive
	}
	sess.channelID = info.ChannelID
	sess.channelName = info.ChannelName
	sess.title = info.Title

	subscribers, err := c.fetchSubscribers(ctx, sess)
	if err != nil {
		return fmt.Errorf("failed to fetch initial subscriber count: %w", err)
	}

	sess.metrics = points.RawMetrics{
		InitialSubscribers: subscribers,
		CurrentSubscribers: subscribers,
	}
	if info.ConcurrentViewers.OK {
		sess.metrics.ConcurrentViewers = info.ConcurrentViewers.Value
	}
	if info.LikeCount.OK {
		sess.metrics.LikeCount = info.LikeCount.Value
	}

	if err := sess.client.StartLiveChat(ctx, videoID); err != nil {
		return fmt.Errorf("failed to start live chat: %w", err)
	}

	return nil
}

// fetchSubscribers prefers the exact count when authenticated and falls
// back to the public count.
func (c *controller) fetchSubscribers(ctx context.Context, sess *session) (int64, error) {
	if sess.authenticated {
		count, err := sess.client.GetExactSubscriberCount(ctx)
		if err == nil {
			return count, nil
		}
		c.logger.Warn("exact subscriber count unavailable, falling back to public count",
			"error", err)
	}
	return sess.client.GetSubscriberCount(ctx, sess.channelID)
}

// abortStart tears down a session whose start sequence failed.
func (c *controller) abortStart(sess *session) {
	sess.cancel()
	if sess.transport != nil {
		_ = sess.transport.Close()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == sess {
		c.sess = nil
		c.state = StateIdle
		c.applyPendingRatesLocked()
	}
}

// Stop implements Controller.Stop.
func (c *controller) Stop(ctx context.Context) error {
	c.mu.Lock()

	switch c.state {
	case StateIdle, StateStopping:
		c.mu.Unlock()
		return nil

	case StateStarting:
		// Cancel: detach the session and cancel its context; the
		// in-flight Start observes the detachment and cleans up.
		sess := c.sess
		c.sess = nil
		c.state = StateIdle
		c.applyPendingRatesLocked()
		c.mu.Unlock()

		sess.cancel()
		c.logger.Info("monitoring start cancelled", "video_id", sess.videoID)
		return nil
	}

	sess := c.sess
	c.state = StateStopping
	c.mu.Unlock()

	sess.cancel()
	sess.wg.Wait()

	if err := sess.client.StopLiveChat(ctx); err != nil {
		c.logger.Warn("failed to stop live chat", "error", err)
	}
	if err := sess.transport.Close(); err != nil {
		c.logger.Warn("failed to close worker transport", "error", err)
	}

	c.mu.Lock()
	// The worker dying mid-stop lets sessionFailed detach this session
	// first, and a fresh Start may already own the controller; only
	// clear our own session.
	if c.sess == sess {
		c.sess = nil
		c.state = StateIdle
		c.applyPendingRatesLocked()
	}
	c.mu.Unlock()

	c.logger.Info("monitoring stopped", "video_id", sess.videoID)
	return nil
}

// sessionFailed ends a session after its worker transport died.
//
// Called from the listener goroutine, so it must not wait for the
// session's goroutines.
func (c *controller) sessionFailed(sess *session) {
	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return
	}
	c.sess = nil
	c.state = StateIdle
	c.applyPendingRatesLocked()
	c.mu.Unlock()

	sess.cancel()
	_ = sess.transport.Close()

	c.logger.Error("worker transport closed, session ended",
		"video_id", sess.videoID)
}

// pollLoop refreshes metrics on the configured interval until the
// session ends. Failed ticks are retried on the next tick.
func (c *controller) pollLoop(sess *session) {
	defer sess.wg.Done()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-sess.ctx.Done():
			return

		case <-ticker.C:
			if err := c.pollOnce(sess); err != nil {
				if sess.ctx.Err() != nil {
					return
				}
				failures++
				c.logger.Warn("metrics poll failed",
					"video_id", sess.videoID,
					"consecutive_failures", failures,
					"error", err)
				if failures == consecutiveFailureWarning {
					c.logger.Warn("metrics polling degraded, keeping session alive",
						"video_id", sess.videoID)
				}
				continue
			}
			failures = 0
		}
	}
}

// pollOnce runs one metrics-refresh cycle.
//
// Viewer and like counts are last-write-wins; a count the platform
// could not report keeps its last known value. The initial subscriber
// count is never overwritten.
//
// A failed subscriber fetch still applies the live-info values but
// reports the tick as failed, so persistent subscriber trouble reaches
// the consecutive-failure warning.
func (c *controller) pollOnce(sess *session) error {
	info, err := sess.client.GetLiveInfo(sess.ctx, sess.videoID)
	if err != nil {
		return err
	}

	subscribers, subErr := c.fetchSubscribers(sess.ctx, sess)

	sess.metricsMu.Lock()
	if info.ConcurrentViewers.OK {
		sess.metrics.ConcurrentViewers = info.ConcurrentViewers.Value
	}
	if info.LikeCount.OK {
		sess.metrics.LikeCount = info.LikeCount.Value
	}
	if subErr == nil {
		sess.metrics.CurrentSubscribers = subscribers
	}
	snapshot := sess.metrics
	sess.metricsMu.Unlock()

	c.applyMetrics(sess, snapshot)

	if subErr != nil {
		return fmt.Errorf("subscriber count unavailable, keeping last value: %w", subErr)
	}
	return nil
}

// listenLoop consumes unsolicited push events until the session ends.
// The transport closing its event channel means the worker died, which
// is fatal to the session but not to the process.
func (c *controller) listenLoop(sess *session) {
	defer sess.wg.Done()

	events := sess.transport.Events()
	for {
		select {
		case <-sess.ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				if sess.ctx.Err() == nil {
					c.sessionFailed(sess)
				}
				return
			}
			c.handleEvent(sess, ev)
		}
	}
}

// handleEvent accounts one push event. Duplicate superchat ids are
// ignored; first-seen amounts propagate to subscribers immediately
// rather than waiting for the next poll tick.
func (c *controller) handleEvent(sess *session, ev rpc.PushEvent) {
	if ev.Type != "superchat" {
		c.logger.Debug("ignoring push event", "type", ev.Type)
		return
	}

	sc, err := platform.DecodeSuperchat(ev.Data, c.cfg.FallbackCurrency)
	if err != nil {
		c.logger.Warn("malformed superchat event", "error", err)
		if sc.ID == "" {
			return
		}
	}

	sess.metricsMu.Lock()
	if _, dup := sess.seen[sc.ID]; dup {
		sess.metricsMu.Unlock()
		c.logger.Debug("duplicate superchat ignored", "id", sc.ID)
		return
	}
	sess.seen[sc.ID] = struct{}{}
	sess.metrics.SuperchatAmount += sc.Amount
	snapshot := sess.metrics
	sess.metricsMu.Unlock()

	c.logger.Info("superchat received",
		"author", sc.Author,
		"amount", sc.Amount,
		"currency", sc.Currency)

	c.applyMetrics(sess, snapshot)
}

// applyMetrics pushes a metrics snapshot to the store, unless the
// session has already moved past Active. Late results from a stopped
// session are discarded here.
func (c *controller) applyMetrics(sess *session, metrics points.RawMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != sess || c.state != StateActive {
		return
	}
	c.store.SetMetrics(metrics)
}

// State implements Controller.State.
func (c *controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status implements Controller.Status.
func (c *controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state}
	if c.sess != nil {
		st.VideoID = c.sess.videoID
		st.ChannelID = c.sess.channelID
		st.ChannelName = c.sess.channelName
		st.Title = c.sess.title
		st.Authenticated = c.sess.authenticated
	}
	return st
}

// AddManualPoints implements Controller.AddManualPoints.
func (c *controller) AddManualPoints(delta int64) {
	c.store.AddManual(delta)
}

// AddVisitorPoints implements Controller.AddVisitorPoints.
func (c *controller) AddVisitorPoints(delta int64) {
	c.store.AddVisitor(delta)
}

// Reset implements Controller.Reset.
func (c *controller) Reset() {
	c.store.Reset()
}

// Points implements Controller.Points.
func (c *controller) Points() points.PointState {
	return c.store.Snapshot().Points
}

// ApplyRates implements Controller.ApplyRates.
func (c *controller) ApplyRates(rates points.Rates) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		r := rates
		c.pendingRates = &r
		c.logger.Info("rate change deferred until session ends")
		return
	}
	c.store.SetRates(rates)
}

// applyPendingRatesLocked installs a rate change deferred during a
// session. Caller holds c.mu.
func (c *controller) applyPendingRatesLocked() {
	if c.pendingRates == nil {
		return
	}
	c.store.SetRates(*c.pendingRates)
	c.pendingRates = nil
	c.logger.Info("deferred rate change applied")
}

// Close implements Controller.Close.
func (c *controller) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Stop(ctx); err != nil {
		c.logger.Warn("failed to stop session during close", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// snapshotMetrics returns a copy of the session's accumulator.
func (s *session) snapshotMetrics() points.RawMetrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	return s.metrics
}
