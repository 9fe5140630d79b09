package domain

import (
	"context"
	"time"
)

// UserStore persists user accounts.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (User, error)
	// FindOrCreateByWallet returns the user with the given wallet address,
	// creating a fresh non-admin account if the address is unseen.
	FindOrCreateByWallet(ctx context.Context, walletAddress string) (User, error)
}

// MarketStore persists markets. Status-changing methods issue conditional
// writes so concurrent callers can never produce an invalid transition.
type MarketStore interface {
	Create(ctx context.Context, m Market) (Market, error)
	FindByID(ctx context.Context, id int64) (Market, error)
	FindMany(ctx context.Context, f MarketFilter) ([]Market, error)
	ListByCreator(ctx context.Context, creatorID int64) ([]Market, error)

	// ApproveAndCredit transitions a PENDING market to APPROVED, stamps the
	// approver and approval time, assigns the market type, and increments the
	// creator's conviction points. Both writes commit in one transaction.
	// Returns ErrNotFound if the market does not exist and ErrInvalidState if
	// it exists but is not PENDING; in either case nothing is written.
	ApproveAndCredit(ctx context.Context, marketID, marketTypeID, approverID int64) (Market, error)

	// MarkLive transitions an APPROVED market to LIVE and records the
	// settlement results. The write is guarded on the current status; the
	// returned bool reports whether this call changed the row.
	MarkLive(ctx context.Context, marketID int64, txHash string, onchainID int64) (Market, bool, error)

	// MarkFailed transitions an APPROVED market to FAILED. Guarded like
	// MarkLive.
	MarkFailed(ctx context.Context, marketID int64) (Market, bool, error)
}

// MarketTypeStore persists named validation rule-sets.
type MarketTypeStore interface {
	FindByID(ctx context.Context, id int64) (MarketType, error)
	FindByName(ctx context.Context, name string) (MarketType, error)
	ListActive(ctx context.Context) ([]MarketType, error)
	// Seed inserts the given types, skipping any whose name already exists.
	Seed(ctx context.Context, types []MarketType) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
