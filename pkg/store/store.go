package store

import (
	"sync"

	"github.com/ytpoint/point-monitor/pkg/logger"
	"github.com/ytpoint/point-monitor/pkg/points"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber
// that falls further behind loses intermediate updates; the next one it
// receives carries the complete state anyway.
const subscriberBuffer = 16

// Subscription is one registered update stream.
type Subscription struct {
	ch     chan Update
	cancel func()
	once   sync.Once
}

// Updates returns the stream channel. It is closed on Cancel.
func (s *Subscription) Updates() <-chan Update {
	return s.ch
}

// Cancel removes the subscription and closes its channel. Safe to call
// multiple times.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// pointStore implements the Store interface.
type pointStore struct {
	logger logger.Logger

	mu      sync.Mutex
	metrics points.RawMetrics
	rates   points.Rates
	manual  int64
	visitor int64
	state   points.PointState

	nextSubID   int
	subscribers map[int]chan Update
}

// New creates a store with the given initial rates.
func New(rates points.Rates, log logger.Logger) Store {
	s := &pointStore{
		logger:      log,
		rates:       rates,
		subscribers: make(map[int]chan Update),
	}
	s.state = points.Compute(s.metrics, s.manual, s.visitor, s.rates)
	return s
}

// Snapshot implements Store.Snapshot.
func (s *pointStore) Snapshot() Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Update{Points: s.state, Metrics: s.metrics, Config: s.rates}
}

// Subscribe implements Store.Subscribe.
func (s *pointStore) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++

	ch := make(chan Update, subscriberBuffer)
	s.subscribers[id] = ch

	return &Subscription{
		ch: ch,
		cancel: func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(ch)
			}
		},
	}
}

// SetMetrics implements Store.SetMetrics.
func (s *pointStore) SetMetrics(metrics points.RawMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = metrics
	s.recomputeAndBroadcastLocked()
}

// AddManual implements Store.AddManual.
func (s *pointStore) AddManual(delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.manual += delta
	s.recomputeAndBroadcastLocked()
}

// AddVisitor implements Store.AddVisitor.
func (s *pointStore) AddVisitor(delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visitor += delta
	s.recomputeAndBroadcastLocked()
}

// Reset implements Store.Reset.
func (s *pointStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.manual = 0
	s.visitor = 0
	s.recomputeAndBroadcastLocked()
}

// SetRates implements Store.SetRates.
func (s *pointStore) SetRates(rates points.Rates) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rates = rates
	s.recomputeAndBroadcastLocked()
}

// Counters implements Store.Counters.
func (s *pointStore) Counters() (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.manual, s.visitor
}

// recomputeAndBroadcastLocked derives the new state and delivers it to
// every subscriber. Recompute and broadcast happen under the same lock
// acquisition, so no subscriber ever observes a partially-applied
// mutation. Callers must hold s.mu.
func (s *pointStore) recomputeAndBroadcastLocked() {
	s.state = points.Compute(s.metrics, s.manual, s.visitor, s.rates)

	update := Update{Points: s.state, Metrics: s.metrics, Config: s.rates}

	for id, ch := range s.subscribers {
		select {
		case ch <- update:
		default:
			s.logger.Warn("subscriber lagging, dropping update", "subscriber", id)
		}
	}
}
