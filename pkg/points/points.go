package points

import "math"

const (
	// ConcurrentViewerThreshold is the viewer count that must be exceeded
	// before the concurrent bonus is granted.
	ConcurrentViewerThreshold = 50

	// ConcurrentBonus is the flat point bonus granted while the viewer
	// count exceeds the threshold. No partial credit either side.
	ConcurrentBonus = 1000
)

// Compute derives a PointState from raw metrics, the manual and visitor
// counters, and the configured rates.
//
// Metric contributions are floored to integers independently. The Manual
// and Visitor fields of the result carry the raw counter values; their
// rate-weighted contributions appear only in Total. A transient
// subscriber decrease reported by the platform never yields negative
// subscriber points.
func Compute(metrics RawMetrics, manual, visitor int64, rates Rates) PointState {
	superchat := floorMul(metrics.SuperchatAmount, rates.SuperchatRate)

	var concurrent int64
	if metrics.ConcurrentViewers > ConcurrentViewerThreshold {
		concurrent = ConcurrentBonus
	}

	likes := floorMul(metrics.LikeCount, rates.LikeRate)

	newSubscribers := metrics.CurrentSubscribers - metrics.InitialSubscribers
	if newSubscribers < 0 {
		newSubscribers = 0
	}
	subscribers := floorMul(newSubscribers, rates.SubscriberRate)

	manualContribution := floorMul(manual, rates.ManualRate)
	visitorContribution := floorMul(visitor, rates.VisitorRate)

	return PointState{
		Total:       superchat + concurrent + likes + subscribers + manualContribution + visitorContribution,
		Superchat:   superchat,
		Concurrent:  concurrent,
		Likes:       likes,
		Subscribers: subscribers,
		Manual:      manual,
		Visitor:     visitor,
	}
}

// floorMul multiplies a raw count by a rate and floors the result.
// Floor (not truncation) keeps negative counter adjustments consistent
// with positive ones.
func floorMul(n int64, rate float64) int64 {
	return int64(math.Floor(float64(n) * rate))
}
