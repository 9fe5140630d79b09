package bus

import (
	"log/slog"
	"testing"
	"time"

	"github.com/DemolaJames/xo-market-api/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New(testLogger())

	s1 := b.Subscribe()
	defer s1.Close()
	s2 := b.Subscribe()
	defer s2.Close()

	b.Publish(domain.Event{Type: domain.EventMarketCreated})

	for i, sub := range []*Subscription{s1, s2} {
		select {
		case ev := <-sub.C:
			if ev.Type != domain.EventMarketCreated {
				t.Errorf("subscriber %d got type %q, want %q", i, ev.Type, domain.EventMarketCreated)
			}
			if ev.Timestamp.IsZero() {
				t.Errorf("subscriber %d: event not timestamped", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive event", i)
		}
	}
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	b := New(testLogger())

	b.Publish(domain.Event{Type: domain.EventMarketCreated})

	sub := b.Subscribe()
	defer sub.Close()

	select {
	case ev := <-sub.C:
		t.Fatalf("late subscriber received replayed event %q", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New(testLogger())

	sub := b.Subscribe() // never drained
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriptionBuffer*3; i++ {
			b.Publish(domain.Event{Type: domain.EventMarketCreated})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestCloseDetachesOnlyOneSubscriber(t *testing.T) {
	b := New(testLogger())

	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer s2.Close()

	s1.Close()
	s1.Close() // idempotent

	if got := b.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", got)
	}

	b.Publish(domain.Event{Type: domain.EventMarketApproved})

	select {
	case ev := <-s2.C:
		if ev.Type != domain.EventMarketApproved {
			t.Errorf("got type %q, want %q", ev.Type, domain.EventMarketApproved)
		}
	case <-time.After(time.Second):
		t.Fatal("surviving subscriber did not receive event")
	}
}

func TestForUser(t *testing.T) {
	target := int64(7)
	other := int64(9)

	tests := []struct {
		name     string
		event    domain.Event
		wantType domain.EventType
	}{
		{
			name:     "broadcast passes through",
			event:    domain.Event{Type: domain.EventMarketCreated},
			wantType: domain.EventMarketCreated,
		},
		{
			name:     "own event passes through",
			event:    domain.Event{Type: domain.EventMarketApproved, UserID: &target},
			wantType: domain.EventMarketApproved,
		},
		{
			name:     "foreign event becomes heartbeat",
			event:    domain.Event{Type: domain.EventMarketDeployed, UserID: &other},
			wantType: domain.EventHeartbeat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ForUser(tt.event, target)
			if got.Type != tt.wantType {
				t.Errorf("ForUser type = %q, want %q", got.Type, tt.wantType)
			}
			if tt.wantType == domain.EventHeartbeat && got.Timestamp.IsZero() {
				t.Error("heartbeat not timestamped")
			}
		})
	}
}
