package domain

import "time"

// EventType identifies a lifecycle notification kind.
type EventType string

const (
	EventMarketCreated  EventType = "market_created"
	EventMarketApproved EventType = "market_approved"
	EventMarketDeployed EventType = "market_deployed"
	EventMarketFailed   EventType = "market_failed"

	// EventHeartbeat is a synthetic placeholder delivered on per-user streams
	// in place of events targeted at a different user, so the transport never
	// appears dead.
	EventHeartbeat EventType = "heartbeat"
)

// Event is an ephemeral lifecycle notification. It is never persisted; it
// exists only in flight on the event bus. A nil UserID means the event is a
// broadcast visible to every subscriber; a non-nil UserID additionally routes
// the event to that user's stream.
type Event struct {
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    *int64         `json:"userId,omitempty"`
}
