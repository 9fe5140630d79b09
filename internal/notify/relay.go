package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DemolaJames/xo-market-api/internal/bus"
	"github.com/DemolaJames/xo-market-api/internal/domain"
)

// Relay consumes the event bus and turns market lifecycle events into
// operator notifications. Heartbeats are never relayed.
type Relay struct {
	notifier *Notifier
	logger   *slog.Logger
}

// NewRelay creates a Relay feeding the given Notifier.
func NewRelay(notifier *Notifier, logger *slog.Logger) *Relay {
	return &Relay{
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_relay")),
	}
}

// Run subscribes to the bus and relays events until ctx is cancelled or the
// bus shuts down.
func (r *Relay) Run(ctx context.Context, events *bus.Bus) error {
	sub := events.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if ev.Type == domain.EventHeartbeat {
				continue
			}
			title, message := format(ev)
			if err := r.notifier.Notify(ctx, ev.Type, title, message); err != nil {
				r.logger.WarnContext(ctx, "relay delivery failed",
					slog.String("event", string(ev.Type)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func format(ev domain.Event) (title, message string) {
	marketID := ev.Data["marketId"]
	name, _ := ev.Data["title"].(string)

	switch ev.Type {
	case domain.EventMarketCreated:
		return "Market proposed",
			fmt.Sprintf("Market %v %q proposed by %v", marketID, name, ev.Data["creator"])
	case domain.EventMarketApproved:
		return "Market approved",
			fmt.Sprintf("Market %v %q approved by %v", marketID, name, ev.Data["approvedBy"])
	case domain.EventMarketDeployed:
		return "Market live",
			fmt.Sprintf("Market %v %q deployed (tx %v)", marketID, name, ev.Data["txHash"])
	case domain.EventMarketFailed:
		return "Market deployment failed",
			fmt.Sprintf("Market %v %q failed: %v", marketID, name, ev.Data["error"])
	default:
		return string(ev.Type), fmt.Sprintf("Market %v %q", marketID, name)
	}
}
