package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytpoint/point-monitor/pkg/logger"
	"github.com/ytpoint/point-monitor/pkg/platform"
	"github.com/ytpoint/point-monitor/pkg/points"
	"github.com/ytpoint/point-monitor/pkg/rpc"
	"github.com/ytpoint/point-monitor/pkg/store"
)

// fakeTransport satisfies rpc.Transport for controller tests. Calls go
// through the fake client instead, so Call is never exercised here.
type fakeTransport struct {
	events    chan rpc.PushEvent
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan rpc.PushEvent, 16),
		done:   make(chan struct{}),
	}
}

func (t *fakeTransport) Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	return nil, fmt.Errorf("unexpected transport call: %s", method)
}

func (t *fakeTransport) Events() <-chan rpc.PushEvent { return t.events }
func (t *fakeTransport) Done() <-chan struct{}        { return t.done }

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

// pushSuperchat injects one push event the way the real transport would.
func (t *fakeTransport) pushSuperchat(tb testing.TB, id string, amount int64) {
	tb.Helper()
	data, err := json.Marshal(map[string]any{
		"id":        id,
		"author":    "Viewer",
		"amount":    amount,
		"currency":  "JPY",
		"message":   "hi",
		"timestamp": 1700000000000,
	})
	require.NoError(tb, err)
	t.events <- rpc.PushEvent{Type: "superchat", Data: data}
}

// fakeClient satisfies platform.Client with overridable behavior.
type fakeClient struct {
	initFn     func(ctx context.Context) (bool, error)
	liveInfoFn func(ctx context.Context, videoID string) (platform.LiveInfo, error)
	subsFn     func(ctx context.Context, channelID string) (int64, error)
	exactFn    func(ctx context.Context) (int64, error)
	stopChatFn func(ctx context.Context) error

	mu    sync.Mutex
	calls []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{}
}

func (f *fakeClient) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeClient) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) Init(ctx context.Context) (bool, error) {
	f.record("init")
	if f.initFn != nil {
		return f.initFn(ctx)
	}
	return false, nil
}

func (f *fakeClient) SetCookies(ctx context.Context, cookies string) error {
	f.record("setCookies")
	return nil
}

func (f *fakeClient) GetLiveInfo(ctx context.Context, videoID string) (platform.LiveInfo, error) {
	f.record("getLiveInfo")
	if f.liveInfoFn != nil {
		return f.liveInfoFn(ctx, videoID)
	}
	return platform.LiveInfo{
		VideoID:           videoID,
		ChannelID:         "UC123",
		ChannelName:       "Test Channel",
		Title:             "Test Stream",
		ConcurrentViewers: platform.Count{Value: 10, OK: true},
		LikeCount:         platform.Count{Value: 5, OK: true},
		IsLive:            true,
	}, nil
}

func (f *fakeClient) GetSubscriberCount(ctx context.Context, channelID string) (int64, error) {
	f.record("getSubscriberCount")
	if f.subsFn != nil {
		return f.subsFn(ctx, channelID)
	}
	return 1000, nil
}

func (f *fakeClient) GetExactSubscriberCount(ctx context.Context) (int64, error) {
	f.record("getExactSubscriberCount")
	if f.exactFn != nil {
		return f.exactFn(ctx)
	}
	return 0, platform.ErrAuthRequired
}

func (f *fakeClient) StartLiveChat(ctx context.Context, videoID string) error {
	f.record("startLiveChat")
	return nil
}

func (f *fakeClient) StopLiveChat(ctx context.Context) error {
	f.record("stopLiveChat")
	if f.stopChatFn != nil {
		return f.stopChatFn(ctx)
	}
	return nil
}

func (f *fakeClient) Ping(ctx context.Context) error {
	f.record("ping")
	return nil
}

func scenarioRates() points.Rates {
	return points.Rates{
		SuperchatRate:  1,
		ConcurrentRate: 1,
		LikeRate:       10,
		SubscriberRate: 50,
		ManualRate:     100,
		VisitorRate:    500,
	}
}

// newTestController wires a controller against fakes. The same fake
// transport backs every session the test starts.
func newTestController(t *testing.T, client *fakeClient) (Controller, store.Store, *fakeTransport) {
	t.Helper()

	ft := newFakeTransport()
	st := store.New(scenarioRates(), logger.Noop())

	ctrl, err := New(Config{
		PollInterval:     10 * time.Millisecond,
		FallbackCurrency: "JPY",
		NewTransport:     func() (rpc.Transport, error) { return ft, nil },
		NewClient:        func(rpc.Transport) platform.Client { return client },
	}, st, logger.Noop())
	require.NoError(t, err)

	t.Cleanup(func() { _ = ctrl.Close() })

	return ctrl, st, ft
}

func TestStart_EmptyVideoID(t *testing.T) {
	ctrl, _, _ := newTestController(t, newFakeClient())

	err := ctrl.Start(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyVideoID)
	assert.Equal(t, StateIdle, ctrl.State())
}

func TestStart_InvalidURL(t *testing.T) {
	ctrl, _, _ := newTestController(t, newFakeClient())

	err := ctrl.Start(context.Background(), "https://example.com/nope")
	assert.ErrorIs(t, err, ErrInvalidVideoURL)
	assert.Equal(t, StateIdle, ctrl.State())
}

func TestStop_IdleIsNoop(t *testing.T) {
	ctrl, st, _ := newTestController(t, newFakeClient())

	before := st.Snapshot()
	require.NoError(t, ctrl.Stop(context.Background()))
	assert.Equal(t, StateIdle, ctrl.State())
	assert.Equal(t, before, st.Snapshot())
}

func TestStart_Success(t *testing.T) {
	client := newFakeClient()
	ctrl, st, _ := newTestController(t, client)

	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))
	assert.Equal(t, StateActive, ctrl.State())

	snap := st.Snapshot()
	assert.Equal(t, int64(1000), snap.Metrics.InitialSubscribers)
	assert.Equal(t, int64(1000), snap.Metrics.CurrentSubscribers)
	assert.Equal(t, int64(10), snap.Metrics.ConcurrentViewers)
	assert.Equal(t, int64(5), snap.Metrics.LikeCount)

	status := ctrl.Status()
	assert.Equal(t, "dQw4w9WgXcQ", status.VideoID)
	assert.Equal(t, "UC123", status.ChannelID)

	// Handshake order: init, live check, subscriber count, then chat.
	calls := client.callNames()
	assert.Equal(t, []string{"init", "getLiveInfo", "getSubscriberCount", "startLiveChat"}, calls[:4])
}

func TestStart_AlreadyMonitoring(t *testing.T) {
	ctrl, _, _ := newTestController(t, newFakeClient())

	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))

	err := ctrl.Start(context.Background(), "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrAlreadyMonitoring)
	assert.Equal(t, StateActive, ctrl.State())
}

func TestStart_NotLive(t *testing.T) {
	client := newFakeClient()
	client.liveInfoFn = func(ctx context.Context, videoID string) (platform.LiveInfo, error) {
		return platform.LiveInfo{VideoID: videoID, IsLive: false}, nil
	}
	ctrl, _, _ := newTestController(t, client)

	err := ctrl.Start(context.Background(), "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrNotLive)
	assert.Equal(t, StateIdle, ctrl.State())
}

func TestStart_ExactCountWhenAuthenticated(t *testing.T) {
	client := newFakeClient()
	client.initFn = func(ctx context.Context) (bool, error) { return true, nil }
	client.exactFn = func(ctx context.Context) (int64, error) { return 5000, nil }
	ctrl, st, _ := newTestController(t, client)

	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))
	assert.Equal(t, int64(5000), st.Snapshot().Metrics.InitialSubscribers)
	assert.True(t, ctrl.Status().Authenticated)
}

func TestStart_ExactCountFallsBackToPublic(t *testing.T) {
	client := newFakeClient()
	client.initFn = func(ctx context.Context) (bool, error) { return true, nil }
	// exactFn default returns ErrAuthRequired, forcing the fallback.
	ctrl, st, _ := newTestController(t, client)

	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))
	assert.Equal(t, int64(1000), st.Snapshot().Metrics.InitialSubscribers)
	assert.Contains(t, client.callNames(), "getSubscriberCount")
}

func TestStart_CancelledByStop(t *testing.T) {
	release := make(chan struct{})
	client := newFakeClient()
	client.initFn = func(ctx context.Context) (bool, error) {
		select {
		case <-release:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	ctrl, _, _ := newTestController(t, client)

	startErr := make(chan error, 1)
	go func() {
		startErr <- ctrl.Start(context.Background(), "dQw4w9WgXcQ")
	}()

	require.Eventually(t, func() bool {
		return ctrl.State() == StateStarting
	}, time.Second, time.Millisecond)

	require.NoError(t, ctrl.Stop(context.Background()))

	select {
	case err := <-startErr:
		assert.ErrorIs(t, err, ErrStartCancelled)
	case <-time.After(time.Second):
		t.Fatal("start did not return after cancel")
	}
	assert.Equal(t, StateIdle, ctrl.State())
	close(release)
}

func TestSuperchat_AccumulatesAndDeduplicates(t *testing.T) {
	client := newFakeClient()
	ctrl, st, ft := newTestController(t, client)

	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))

	ft.pushSuperchat(t, "sc-1", 1000)
	require.Eventually(t, func() bool {
		return st.Snapshot().Metrics.SuperchatAmount == 1000
	}, time.Second, time.Millisecond)

	// Redelivery of the same id must not count twice.
	ft.pushSuperchat(t, "sc-1", 1000)
	ft.pushSuperchat(t, "sc-2", 500)
	require.Eventually(t, func() bool {
		return st.Snapshot().Metrics.SuperchatAmount == 1500
	}, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1500), st.Snapshot().Metrics.SuperchatAmount)
}

func TestSuperchat_PropagatesWithoutPolling(t *testing.T) {
	client := newFakeClient()
	ft := newFakeTransport()
	st := store.New(scenarioRates(), logger.Noop())

	// A poll interval far longer than the test proves the push path is
	// not riding on poll ticks.
	ctrl, err := New(Config{
		PollInterval: time.Hour,
		NewTransport: func() (rpc.Transport, error) { return ft, nil },
		NewClient:    func(rpc.Transport) platform.Client { return client },
	}, st, logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Close() })

	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))

	sub := st.Subscribe()
	defer sub.Cancel()

	ft.pushSuperchat(t, "sc-1", 1000)

	select {
	case update := <-sub.Updates():
		assert.Equal(t, int64(1000), update.Metrics.SuperchatAmount)
		assert.Equal(t, int64(1000), update.Points.Superchat)
	case <-time.After(time.Second):
		t.Fatal("superchat did not propagate")
	}
}

func TestPolling_LastWriteWinsAndInitialSubscribersFixed(t *testing.T) {
	var mu sync.Mutex
	viewers, subs := int64(10), int64(1000)

	client := newFakeClient()
	client.liveInfoFn = func(ctx context.Context, videoID string) (platform.LiveInfo, error) {
		mu.Lock()
		defer mu.Unlock()
		return platform.LiveInfo{
			VideoID:           videoID,
			ChannelID:         "UC123",
			ConcurrentViewers: platform.Count{Value: viewers, OK: true},
			LikeCount:         platform.Count{Value: 5, OK: true},
			IsLive:            true,
		}, nil
	}
	client.subsFn = func(ctx context.Context, channelID string) (int64, error) {
		mu.Lock()
		defer mu.Unlock()
		return subs, nil
	}

	ctrl, st, _ := newTestController(t, client)
	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))

	mu.Lock()
	viewers, subs = 60, 1200
	mu.Unlock()

	require.Eventually(t, func() bool {
		snap := st.Snapshot()
		return snap.Metrics.ConcurrentViewers == 60 && snap.Metrics.CurrentSubscribers == 1200
	}, time.Second, time.Millisecond)

	snap := st.Snapshot()
	assert.Equal(t, int64(1000), snap.Metrics.InitialSubscribers)
	assert.Equal(t, int64(1000), snap.Points.Concurrent)
	assert.Equal(t, int64((1200-1000)*50), snap.Points.Subscribers)
}

func TestPolling_UnavailableCountKeepsLastValue(t *testing.T) {
	var mu sync.Mutex
	available := true

	client := newFakeClient()
	client.liveInfoFn = func(ctx context.Context, videoID string) (platform.LiveInfo, error) {
		mu.Lock()
		defer mu.Unlock()
		info := platform.LiveInfo{VideoID: videoID, ChannelID: "UC123", IsLive: true}
		if available {
			info.ConcurrentViewers = platform.Count{Value: 60, OK: true}
			info.LikeCount = platform.Count{Value: 5, OK: true}
		}
		return info, nil
	}

	ctrl, st, _ := newTestController(t, client)
	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))

	require.Eventually(t, func() bool {
		return st.Snapshot().Metrics.ConcurrentViewers == 60
	}, time.Second, time.Millisecond)

	mu.Lock()
	available = false
	mu.Unlock()

	// Subsequent ticks report the count as unavailable; the last-known
	// value must survive.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(60), st.Snapshot().Metrics.ConcurrentViewers)
}

func TestPollOnce_SubscriberFailureIsTickFailure(t *testing.T) {
	var mu sync.Mutex
	viewers := int64(10)
	failSubs := false

	client := newFakeClient()
	client.liveInfoFn = func(ctx context.Context, videoID string) (platform.LiveInfo, error) {
		mu.Lock()
		defer mu.Unlock()
		return platform.LiveInfo{
			VideoID:           videoID,
			ChannelID:         "UC123",
			ConcurrentViewers: platform.Count{Value: viewers, OK: true},
			IsLive:            true,
		}, nil
	}
	client.subsFn = func(ctx context.Context, channelID string) (int64, error) {
		mu.Lock()
		defer mu.Unlock()
		if failSubs {
			return 0, fmt.Errorf("subscriber scrape failed")
		}
		return 1000, nil
	}

	ft := newFakeTransport()
	st := store.New(scenarioRates(), logger.Noop())
	ctrl, err := New(Config{
		PollInterval: time.Hour,
		NewTransport: func() (rpc.Transport, error) { return ft, nil },
		NewClient:    func(rpc.Transport) platform.Client { return client },
	}, st, logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Close() })

	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))

	c := ctrl.(*controller)
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	mu.Lock()
	viewers, failSubs = 60, true
	mu.Unlock()

	// The tick fails (so it counts toward the degraded-polling warning)
	// but applies what it did get, keeping the last subscriber value.
	require.Error(t, c.pollOnce(sess))

	snap := st.Snapshot()
	assert.Equal(t, int64(60), snap.Metrics.ConcurrentViewers)
	assert.Equal(t, int64(1000), snap.Metrics.CurrentSubscribers)
	assert.Equal(t, StateActive, ctrl.State())
}

func TestPolling_FailuresDoNotStopSession(t *testing.T) {
	var mu sync.Mutex
	failing := false

	client := newFakeClient()
	client.liveInfoFn = func(ctx context.Context, videoID string) (platform.LiveInfo, error) {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return platform.LiveInfo{}, fmt.Errorf("scrape failed")
		}
		return platform.LiveInfo{
			VideoID:           videoID,
			ChannelID:         "UC123",
			ConcurrentViewers: platform.Count{Value: 10, OK: true},
			IsLive:            true,
		}, nil
	}

	ctrl, st, _ := newTestController(t, client)
	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))

	mu.Lock()
	failing = true
	mu.Unlock()

	// Well past three consecutive failures.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, StateActive, ctrl.State())

	mu.Lock()
	failing = false
	mu.Unlock()

	require.Eventually(t, func() bool {
		return st.Snapshot().Metrics.ConcurrentViewers == 10
	}, time.Second, time.Millisecond)
}

func TestStop_EndsSession(t *testing.T) {
	client := newFakeClient()
	ctrl, st, _ := newTestController(t, client)

	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))
	require.NoError(t, ctrl.Stop(context.Background()))

	assert.Equal(t, StateIdle, ctrl.State())
	assert.Contains(t, client.callNames(), "stopLiveChat")

	// State survives the session; only a fresh start replaces metrics.
	snap := st.Snapshot()
	assert.Equal(t, int64(1000), snap.Metrics.InitialSubscribers)
}

func TestStop_DoesNotClobberSuccessorSession(t *testing.T) {
	block := make(chan struct{})
	client := newFakeClient()
	client.stopChatFn = func(ctx context.Context) error {
		<-block
		return nil
	}
	ctrl, st, _ := newTestController(t, client)

	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))

	c := ctrl.(*controller)
	c.mu.Lock()
	sessA := c.sess
	c.mu.Unlock()

	stopDone := make(chan error, 1)
	go func() { stopDone <- ctrl.Stop(context.Background()) }()

	require.Eventually(t, func() bool {
		return ctrl.State() == StateStopping
	}, time.Second, time.Millisecond)

	// The worker dies while the stop is parked in StopLiveChat: the
	// failure path detaches the session and returns to idle.
	c.sessionFailed(sessA)
	require.Equal(t, StateIdle, ctrl.State())

	// A fresh session starts before the old stop finishes.
	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))
	require.Equal(t, StateActive, ctrl.State())

	close(block)
	select {
	case err := <-stopDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stop did not return")
	}

	// The finished stop must not have torn down the successor session.
	assert.Equal(t, StateActive, ctrl.State())

	ctrl.AddManualPoints(1)
	assert.Equal(t, int64(1), st.Snapshot().Points.Manual)
}

func TestTransportDeath_EndsSession(t *testing.T) {
	ctrl, _, ft := newTestController(t, newFakeClient())

	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))

	// The real transport closes its event channel when the worker exits.
	close(ft.events)

	require.Eventually(t, func() bool {
		return ctrl.State() == StateIdle
	}, time.Second, time.Millisecond)
}

func TestCounters_WorkInAnyState(t *testing.T) {
	ctrl, st, _ := newTestController(t, newFakeClient())

	ctrl.AddManualPoints(1)
	ctrl.AddVisitorPoints(2)

	snap := st.Snapshot()
	assert.Equal(t, int64(1), snap.Points.Manual)
	assert.Equal(t, int64(2), snap.Points.Visitor)
	assert.Equal(t, int64(1*100+2*500), snap.Points.Total)

	ctrl.Reset()
	snap = st.Snapshot()
	assert.Equal(t, int64(0), snap.Points.Manual)
	assert.Equal(t, int64(0), snap.Points.Visitor)
	assert.Equal(t, int64(0), snap.Points.Total)
}

func TestApplyRates_DeferredWhileActive(t *testing.T) {
	ctrl, st, _ := newTestController(t, newFakeClient())

	require.NoError(t, ctrl.Start(context.Background(), "dQw4w9WgXcQ"))

	newRates := scenarioRates()
	newRates.ManualRate = 1
	ctrl.ApplyRates(newRates)

	// Unchanged while the session runs.
	assert.Equal(t, 100.0, st.Snapshot().Config.ManualRate)

	require.NoError(t, ctrl.Stop(context.Background()))
	assert.Equal(t, 1.0, st.Snapshot().Config.ManualRate)
}

func TestApplyRates_ImmediateWhenIdle(t *testing.T) {
	ctrl, st, _ := newTestController(t, newFakeClient())

	newRates := scenarioRates()
	newRates.ManualRate = 1
	ctrl.ApplyRates(newRates)

	assert.Equal(t, 1.0, st.Snapshot().Config.ManualRate)
}
