package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ytpoint/point-monitor/pkg/currency"
	"github.com/ytpoint/point-monitor/pkg/logger"
	"github.com/ytpoint/point-monitor/pkg/rpc"
)

// client implements the Client interface over an rpc.Transport.
type client struct {
	transport rpc.Transport
	logger    logger.Logger
}

// NewClient creates a typed platform client over an already connected
// transport. The transport's lifetime stays with its owner; this client
// never closes it.
func NewClient(t rpc.Transport, log logger.Logger) Client {
	return &client{
		transport: t,
		logger:    log,
	}
}

// Init implements Client.Init.
func (c *client) Init(ctx context.Context) (bool, error) {
	result, err := c.transport.Call(ctx, "init", nil)
	if err != nil {
		return false, err
	}

	var payload struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		// An init that succeeds without a recognizable payload counts as
		// unauthenticated, not as a failure.
		c.logger.Warn("init response had no authenticated flag")
		return false, nil
	}

	return payload.Authenticated, nil
}

// SetCookies implements Client.SetCookies.
func (c *client) SetCookies(ctx context.Context, cookies string) error {
	_, err := c.transport.Call(ctx, "setCookies", map[string]any{"cookies": cookies})
	return err
}

// GetLiveInfo implements Client.GetLiveInfo.
func (c *client) GetLiveInfo(ctx context.Context, videoID string) (LiveInfo, error) {
	result, err := c.transport.Call(ctx, "getLiveInfo", map[string]any{"videoId": videoID})
	if err != nil {
		return LiveInfo{}, err
	}

	return decodeLiveInfo(result)
}

// GetSubscriberCount implements Client.GetSubscriberCount.
func (c *client) GetSubscriberCount(ctx context.Context, channelID string) (int64, error) {
	result, err := c.transport.Call(ctx, "getSubscriberCount", map[string]any{"channelId": channelID})
	if err != nil {
		return 0, err
	}

	return decodeSubscriberCount(result)
}

// GetExactSubscriberCount implements Client.GetExactSubscriberCount.
func (c *client) GetExactSubscriberCount(ctx context.Context) (int64, error) {
	result, err := c.transport.Call(ctx, "getExactSubscriberCount", nil)
	if err != nil {
		if remote, ok := rpc.IsRemoteError(err); ok && isAuthError(remote.Message) {
			return 0, fmt.Errorf("%w: %s", ErrAuthRequired, remote.Message)
		}
		return 0, err
	}

	return decodeSubscriberCount(result)
}

// StartLiveChat implements Client.StartLiveChat.
func (c *client) StartLiveChat(ctx context.Context, videoID string) error {
	_, err := c.transport.Call(ctx, "startLiveChat", map[string]any{"videoId": videoID})
	return err
}

// StopLiveChat implements Client.StopLiveChat.
func (c *client) StopLiveChat(ctx context.Context) error {
	_, err := c.transport.Call(ctx, "stopLiveChat", nil)
	return err
}

// Ping implements Client.Ping.
func (c *client) Ping(ctx context.Context) error {
	_, err := c.transport.Call(ctx, "ping", nil)
	return err
}

// decodeLiveInfo normalizes the loosely-typed getLiveInfo result.
// String fields and counts are each probed over an ordered list of
// known locations.
func decodeLiveInfo(result json.RawMessage) (LiveInfo, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(result, &fields); err != nil {
		return LiveInfo{}, fmt.Errorf("failed to decode live info: %w", err)
	}

	return LiveInfo{
		VideoID:           firstString(fields, "videoId", "video_id"),
		Title:             firstString(fields, "title"),
		ChannelID:         firstString(fields, "channelId", "channel_id"),
		ChannelName:       firstString(fields, "channelName", "channel_name", "author"),
		ConcurrentViewers: firstCount(fields, "concurrentViewers", "viewCount", "viewers"),
		LikeCount:         firstCount(fields, "likeCount", "likes"),
		IsLive:            firstBool(fields, "isLive", "is_live"),
	}, nil
}

// decodeSubscriberCount extracts the count from a subscriber-count
// result, accepting numeric or localized text forms.
func decodeSubscriberCount(result json.RawMessage) (int64, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(result, &fields); err != nil {
		return 0, fmt.Errorf("failed to decode subscriber count: %w", err)
	}

	count := firstCount(fields, "count", "subscriberCount", "subscribers")
	if !count.OK {
		return 0, fmt.Errorf("%w: subscriber count", ErrNotFound)
	}

	return count.Value, nil
}

// isAuthError matches worker error strings that signal missing
// authentication.
func isAuthError(message string) bool {
	return strings.Contains(strings.ToLower(message), "auth")
}

// DecodeSuperchat normalizes a superchat push-event payload.
//
// Amounts arriving as display text are parsed by the currency rules;
// malformed amounts degrade to zero and the parse error is returned
// alongside the event so callers can log it. The event itself is still
// usable (its id still counts for deduplication).
func DecodeSuperchat(data json.RawMessage, fallbackCurrency string) (Superchat, error) {
	var wire superchatWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Superchat{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if wire.ID == "" {
		return Superchat{}, fmt.Errorf("%w: missing event id", ErrMalformedEvent)
	}

	event := Superchat{
		ID:        wire.ID,
		Author:    wire.Author,
		Currency:  wire.Currency,
		Message:   wire.Message,
		Timestamp: wire.Timestamp,
	}
	if event.Currency == "" {
		event.Currency = fallbackCurrency
	}

	if !wire.Amount.isText {
		if wire.Amount.minor < 0 {
			return event, fmt.Errorf("%w: negative amount %d", ErrMalformedEvent, wire.Amount.minor)
		}
		event.Amount = wire.Amount.minor
		return event, nil
	}

	// A currency already named on the wire wins over the configured
	// fallback when the amount text carries no recognizable symbol.
	fallback := fallbackCurrency
	if wire.Currency != "" {
		fallback = wire.Currency
	}

	amount, err := currency.Parse(wire.Amount.text, fallback)
	event.Currency = amount.Code
	event.Amount = amount.Minor
	if err != nil {
		// Zeroed amount, id preserved.
		return event, err
	}

	return event, nil
}
