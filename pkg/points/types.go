// Package points converts raw broadcast metrics into a point breakdown.
//
// Compute is a pure function: it performs no I/O and keeps no state, so
// the same inputs always produce the same PointState. All mutable
// accumulation lives with the caller (the store and the active session).
package points

// RawMetrics holds the accumulated raw signals for one monitoring session.
type RawMetrics struct {
	// SuperchatAmount is the cumulative paid-message revenue in minor
	// currency units. Monotonic non-decreasing within a session.
	SuperchatAmount int64 `json:"superchat_amount"`

	// ConcurrentViewers is the latest observed concurrent viewer count.
	ConcurrentViewers int64 `json:"concurrent_viewers"`

	// LikeCount is the latest observed like count.
	LikeCount int64 `json:"like_count"`

	// InitialSubscribers is the subscriber count captured once at the
	// first successful poll of the session, never overwritten.
	InitialSubscribers int64 `json:"initial_subscribers"`

	// CurrentSubscribers is the latest observed subscriber count.
	CurrentSubscribers int64 `json:"current_subscribers"`
}

// Rates is the configured multiplier set converting raw metrics into points.
// All rates are >= 0 and fixed for the lifetime of one Compute call.
type Rates struct {
	// SuperchatRate converts minor currency units into points.
	SuperchatRate float64 `json:"superchat_rate" yaml:"superchat_rate"`

	// ConcurrentRate is carried for configuration completeness; viewer
	// points are a fixed step bonus, not a linear rate (see Compute).
	ConcurrentRate float64 `json:"concurrent_rate" yaml:"concurrent_rate"`

	// LikeRate converts likes into points.
	LikeRate float64 `json:"like_rate" yaml:"like_rate"`

	// SubscriberRate converts net new subscribers into points.
	SubscriberRate float64 `json:"subscriber_rate" yaml:"subscriber_rate"`

	// ManualRate converts manual counter increments into points.
	ManualRate float64 `json:"manual_rate" yaml:"manual_rate"`

	// VisitorRate converts visitor counter increments into points.
	VisitorRate float64 `json:"visitor_rate" yaml:"visitor_rate"`
}

// PointState is the derived point breakdown. Only Manual and Visitor are
// counters adjustable by UI actions; everything else is recomputed from
// RawMetrics and Rates on every update.
type PointState struct {
	Total       int64 `json:"total"`
	Superchat   int64 `json:"superchat"`
	Concurrent  int64 `json:"concurrent"`
	Likes       int64 `json:"likes"`
	Subscribers int64 `json:"subscribers"`
	Manual      int64 `json:"manual"`
	Visitor     int64 `json:"visitor"`
}
