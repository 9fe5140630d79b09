package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DemolaJames/xo-market-api/internal/bus"
	"github.com/DemolaJames/xo-market-api/internal/chain"
	"github.com/DemolaJames/xo-market-api/internal/domain"
)

const (
	// defaultListLimit is applied when a list query omits the limit.
	defaultListLimit = 50

	// createRateLimit caps market creations per wallet per window.
	createRateLimit  = 10
	createRateWindow = time.Minute

	// deployFailedReason is the user-facing reason on the market_failed
	// event; the underlying error is logged, not exposed.
	deployFailedReason = "error occurred while deploying market"
)

// MarketService is the market lifecycle engine. It owns every status
// transition: markets are created PENDING, approved (with rule validation and
// an atomic creator credit), then settled asynchronously to LIVE or FAILED.
// Each transition emits exactly one event on the bus.
type MarketService struct {
	markets domain.MarketStore
	users   domain.UserStore
	types   *MarketTypeService
	gateway chain.Gateway
	events  *bus.Bus
	limiter domain.RateLimiter // optional; nil disables creation rate limiting
	logger  *slog.Logger
}

// NewMarketService creates the lifecycle engine.
func NewMarketService(
	markets domain.MarketStore,
	users domain.UserStore,
	types *MarketTypeService,
	gateway chain.Gateway,
	events *bus.Bus,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets: markets,
		users:   users,
		types:   types,
		gateway: gateway,
		events:  events,
		logger:  logger.With(slog.String("component", "market_service")),
	}
}

// WithRateLimiter attaches a creation rate limiter. Without one, creation is
// unthrottled.
func (s *MarketService) WithRateLimiter(limiter domain.RateLimiter) *MarketService {
	s.limiter = limiter
	return s
}

// validateProposal checks the caller-supplied fields for a new market.
func validateProposal(p domain.MarketProposal) error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(p.Description) == "" {
		return fmt.Errorf("%w: description must not be empty", domain.ErrInvalidArgument)
	}
	if !p.Expiry.After(time.Now()) {
		return fmt.Errorf("%w: expiry must be in the future", domain.ErrInvalidArgument)
	}
	if p.ConvictionLevel < 0 || p.ConvictionLevel > 1 {
		return fmt.Errorf("%w: conviction level must be between 0 and 1", domain.ErrInvalidArgument)
	}
	return nil
}

// Create persists a new PENDING market for the given user and broadcasts a
// market_created event. The event is published before Create returns.
func (s *MarketService) Create(ctx context.Context, userID int64, p domain.MarketProposal) (domain.Market, error) {
	if err := validateProposal(p); err != nil {
		return domain.Market{}, err
	}

	creator, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: creator %d: %w", userID, err)
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "create:"+creator.WalletAddress, createRateLimit, createRateWindow)
		if err != nil {
			return domain.Market{}, fmt.Errorf("market_service: rate limiter: %w", err)
		}
		if !allowed {
			return domain.Market{}, domain.ErrRateLimited
		}
	}

	m, err := s.markets.Create(ctx, domain.Market{
		Title:           p.Title,
		Description:     p.Description,
		Expiry:          p.Expiry,
		ConvictionLevel: p.ConvictionLevel,
		CreatorID:       userID,
		MarketTypeID:    p.MarketTypeID,
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create: %w", err)
	}

	s.events.Publish(domain.Event{
		Type: domain.EventMarketCreated,
		Data: map[string]any{
			"marketId": m.ID,
			"title":    m.Title,
			"creator":  creator.WalletAddress,
		},
	})

	s.logger.InfoContext(ctx, "market created",
		slog.Int64("market_id", m.ID),
		slog.Int64("creator_id", userID),
	)
	return m, nil
}

// Approve validates the market against the given type's rules, then
// atomically transitions it PENDING -> APPROVED and credits the creator one
// conviction point. On success a market_approved event targeted at the
// creator is emitted and settlement is scheduled; Approve returns without
// waiting for settlement. On any failure nothing is written and no event is
// emitted.
func (s *MarketService) Approve(ctx context.Context, marketID, marketTypeID, approverID int64) (domain.Market, error) {
	m, err := s.markets.FindByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: market %d: %w", marketID, err)
	}
	if m.Status != domain.MarketStatusPending {
		return domain.Market{}, fmt.Errorf("market_service: market %d is %s: %w",
			marketID, m.Status, domain.ErrInvalidState)
	}

	if err := s.types.Validate(ctx, marketTypeID, m); err != nil {
		return domain.Market{}, err
	}

	approved, err := s.markets.ApproveAndCredit(ctx, marketID, marketTypeID, approverID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: approve market %d: %w", marketID, err)
	}

	approvedBy := ""
	if approver, err := s.users.FindByID(ctx, approverID); err == nil {
		approvedBy = approver.WalletAddress
	}

	creatorID := approved.CreatorID
	s.events.Publish(domain.Event{
		Type: domain.EventMarketApproved,
		Data: map[string]any{
			"marketId":   approved.ID,
			"title":      approved.Title,
			"approvedBy": approvedBy,
		},
		UserID: &creatorID,
	})

	// Settlement runs on its own goroutine; the approval response does not
	// wait for it.
	go s.settle(marketID)

	s.logger.InfoContext(ctx, "market approved",
		slog.Int64("market_id", marketID),
		slog.Int64("approver_id", approverID),
	)
	return approved, nil
}

// settle publishes an approved market to the settlement layer and reconciles
// the outcome. It re-reads persisted state rather than trusting any snapshot
// taken before the deploy, and converts every failure into a FAILED
// transition plus a market_failed event; nothing is re-raised to the
// approver, who already received a successful response.
func (s *MarketService) settle(marketID int64) {
	// Detached from the request context: in-flight settlement is never
	// cancelled once scheduled.
	ctx := context.Background()

	m, err := s.markets.FindByID(ctx, marketID)
	if err != nil {
		s.logger.Error("settlement: market vanished before deploy",
			slog.Int64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return
	}

	result, err := s.gateway.Deploy(ctx, m)
	if err != nil {
		s.logger.Error("settlement failed",
			slog.Int64("market_id", marketID),
			slog.String("error", err.Error()),
		)

		failed, changed, err := s.markets.MarkFailed(ctx, marketID)
		if err != nil {
			s.logger.Error("settlement: mark failed write error",
				slog.Int64("market_id", marketID),
				slog.String("error", err.Error()),
			)
			return
		}
		if !changed {
			return
		}

		creatorID := failed.CreatorID
		s.events.Publish(domain.Event{
			Type: domain.EventMarketFailed,
			Data: map[string]any{
				"marketId": failed.ID,
				"title":    failed.Title,
				"error":    deployFailedReason,
			},
			UserID: &creatorID,
		})
		return
	}

	live, changed, err := s.markets.MarkLive(ctx, marketID, result.TxHash, result.OnchainID)
	if err != nil {
		s.logger.Error("settlement: mark live write error",
			slog.Int64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return
	}
	// The mock gateway's delayed confirmation may have landed first; the
	// market is LIVE either way and the deployed event is still due.
	if !changed && live.Status != domain.MarketStatusLive {
		s.logger.Warn("settlement: market left approved state concurrently",
			slog.Int64("market_id", marketID),
			slog.String("status", string(live.Status)),
		)
		return
	}

	creatorID := live.CreatorID
	s.events.Publish(domain.Event{
		Type: domain.EventMarketDeployed,
		Data: map[string]any{
			"marketId": live.ID,
			"title":    live.Title,
			"txHash":   result.TxHash,
			"status":   string(domain.MarketStatusLive),
		},
		UserID: &creatorID,
	})

	s.logger.Info("market deployed",
		slog.Int64("market_id", marketID),
		slog.String("tx_hash", result.TxHash),
	)
}

// FindAll returns markets matching the filter, newest first. Limit defaults
// to 50, offset to 0.
func (s *MarketService) FindAll(ctx context.Context, f domain.MarketFilter) ([]domain.Market, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.markets.FindMany(ctx, f)
}

// FindByID returns a single market or ErrNotFound.
func (s *MarketService) FindByID(ctx context.Context, id int64) (domain.Market, error) {
	return s.markets.FindByID(ctx, id)
}

// ListByCreator returns every market created by the given user, newest first.
func (s *MarketService) ListByCreator(ctx context.Context, creatorID int64) ([]domain.Market, error) {
	return s.markets.ListByCreator(ctx, creatorID)
}
