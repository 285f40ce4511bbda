// Package platform binds the scraping worker's RPC surface to typed Go
// operations.
//
// Everything the worker returns is loosely structured: numeric-looking
// fields may arrive as numbers, localized text ("1.2K", "12万",
// "1,234"), or be missing entirely. This package never assumes a
// pre-parsed number at that boundary; it probes an ordered list of
// extraction strategies and reports unavailable values explicitly via
// Count rather than guessing.
package platform

import (
	"context"
	"encoding/json"
)

// Count is a tagged parse result for a numeric upstream field: either a
// parsed value or explicitly unavailable. Never a silent zero.
type Count struct {
	// Value is the parsed count. Meaningless when OK is false.
	Value int64

	// OK reports whether the field was present and parseable.
	OK bool
}

// LiveInfo describes the monitored broadcast as last reported by the
// platform.
type LiveInfo struct {
	VideoID     string
	Title       string
	ChannelID   string
	ChannelName string

	// ConcurrentViewers and LikeCount keep their unavailability: a poll
	// that cannot read one of them must not zero the last known value.
	ConcurrentViewers Count
	LikeCount         Count

	IsLive bool
}

// Superchat is one normalized paid-message event.
type Superchat struct {
	// ID is unique per session; duplicates must be ignored by consumers.
	ID string

	Author string

	// Amount is in minor currency units. Malformed upstream amounts
	// degrade to zero rather than failing.
	Amount int64

	// Currency is the ISO 4217 code, resolved from the wire value or the
	// symbol prefix of a textual amount.
	Currency string

	Message string

	// Timestamp is epoch milliseconds.
	Timestamp int64
}

// Client is the typed view of the worker's RPC operations.
type Client interface {
	// Init initializes the worker's platform session.
	//
	// Returns whether the worker is authenticated (cookies accepted).
	Init(ctx context.Context) (authenticated bool, err error)

	// SetCookies forwards a cookie string for authenticated operations.
	SetCookies(ctx context.Context, cookies string) error

	// GetLiveInfo fetches the current broadcast state for videoID.
	GetLiveInfo(ctx context.Context, videoID string) (LiveInfo, error)

	// GetSubscriberCount fetches the public subscriber count.
	//
	// Returns ErrNotFound when the worker reports no usable count.
	GetSubscriberCount(ctx context.Context, channelID string) (int64, error)

	// GetExactSubscriberCount fetches the exact count for the
	// authenticated channel.
	//
	// Returns ErrAuthRequired when the worker is not authenticated.
	GetExactSubscriberCount(ctx context.Context) (int64, error)

	// StartLiveChat begins the worker's chat observation; push events
	// may start arriving afterwards.
	StartLiveChat(ctx context.Context, videoID string) error

	// StopLiveChat halts the worker's chat observation.
	StopLiveChat(ctx context.Context) error

	// Ping checks worker liveness.
	Ping(ctx context.Context) error
}

// superchatWire is the push-event payload shape. Amount may be a JSON
// number (already minor units) or a display string such as "¥1,000".
type superchatWire struct {
	ID        string     `json:"id"`
	Author    string     `json:"author"`
	Amount    flexAmount `json:"amount"`
	Currency  string     `json:"currency"`
	Message   string     `json:"message"`
	Timestamp int64      `json:"timestamp"`
}

// flexAmount accepts either wire form of a paid-message amount.
type flexAmount struct {
	minor  int64
	text   string
	isText bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *flexAmount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		a.text = s
		a.isText = true
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	a.minor = int64(n)
	return nil
}
