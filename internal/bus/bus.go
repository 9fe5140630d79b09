// Package bus provides the in-process broadcast channel for market lifecycle
// events. Delivery is fan-out, at-most-once, and best-effort: there is no
// persistence and no replay, and a subscriber that cannot keep up has events
// dropped rather than being allowed to backpressure the publisher.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/DemolaJames/xo-market-api/internal/domain"
)

// subscriptionBuffer is the per-subscriber channel buffer. When it fills,
// further events for that subscriber are dropped.
const subscriptionBuffer = 64

// Bus multiplexes published events to every live subscription.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	logger *slog.Logger
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		logger: logger.With(slog.String("component", "bus")),
	}
}

// Subscription is an independent view of the event stream. Closing one
// subscription has no effect on others or on publishers.
type Subscription struct {
	// C receives every event published after the subscription was created.
	C <-chan domain.Event

	ch   chan domain.Event
	bus  *Bus
	once sync.Once
}

// Subscribe registers a new subscriber and returns its subscription. Events
// published before the call are never delivered.
func (b *Bus) Subscribe() *Subscription {
	ch := make(chan domain.Event, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, bus: b}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Close detaches the subscription from the bus and closes its channel. Safe to
// call multiple times.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// Publish stamps the event with the current time and hands it to every live
// subscriber. It never blocks: a subscriber whose buffer is full has the
// event dropped.
func (b *Bus) Publish(ev domain.Event) {
	ev.Timestamp = time.Now().UTC()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				slog.String("type", string(ev.Type)),
			)
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// ForUser projects an event onto a single user's stream. Broadcast events and
// events targeted at userID pass through unchanged; events targeted at a
// different user are replaced with a heartbeat placeholder so the transport
// does not appear dead.
func ForUser(ev domain.Event, userID int64) domain.Event {
	if ev.UserID == nil || *ev.UserID == userID {
		return ev
	}
	return domain.Event{
		Type:      domain.EventHeartbeat,
		Timestamp: time.Now().UTC(),
	}
}
