// Package store holds the canonical point state and fans every change
// out to subscribers.
//
// All mutations are serialized through one mutex-guarded path: each
// accepted mutation recomputes the point breakdown and produces exactly
// one broadcast carrying the full (points, metrics, config) triple, so
// any subscriber can rebuild its view from the latest message alone.
package store

import "github.com/ytpoint/point-monitor/pkg/points"

// Update is one broadcast payload: the complete recomputed triple,
// never a delta.
type Update struct {
	Points  points.PointState `json:"points"`
	Metrics points.RawMetrics `json:"metrics"`
	Config  points.Rates      `json:"config"`
}

// Store owns the canonical PointState together with the RawMetrics and
// rates it was derived from.
type Store interface {
	// Snapshot returns the current triple for late subscribers.
	Snapshot() Update

	// Subscribe registers a new update stream. Every accepted mutation
	// after this call is delivered once, in the order it was computed.
	// Cancel the subscription when done.
	Subscribe() *Subscription

	// SetMetrics replaces the raw metrics, recomputes, and broadcasts.
	SetMetrics(metrics points.RawMetrics)

	// AddManual adjusts the manual counter by delta (may go negative),
	// recomputes, and broadcasts.
	AddManual(delta int64)

	// AddVisitor adjusts the visitor counter by delta (may go negative),
	// recomputes, and broadcasts.
	AddVisitor(delta int64)

	// Reset zeroes the manual and visitor counters, recomputes, and
	// broadcasts. Raw metrics are left untouched: reset affects the
	// displayed counters, not in-flight platform measurement. Idempotent.
	Reset()

	// SetRates replaces the rate configuration, recomputes, and
	// broadcasts.
	SetRates(rates points.Rates)

	// Counters returns the current manual and visitor counter values.
	Counters() (manual, visitor int64)
}
