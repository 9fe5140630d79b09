// Package domain defines the core entities of the market approval service and
// the store interfaces that persistence layers implement. Services depend only
// on this package, never on concrete stores.
package domain

import "time"

// MarketStatus represents the lifecycle state of a market proposal. Transitions
// are one-directional: PENDING -> APPROVED -> LIVE | FAILED.
type MarketStatus string

const (
	MarketStatusPending  MarketStatus = "PENDING"
	MarketStatusApproved MarketStatus = "APPROVED"
	MarketStatusLive     MarketStatus = "LIVE"
	MarketStatusFailed   MarketStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s MarketStatus) Terminal() bool {
	return s == MarketStatusLive || s == MarketStatusFailed
}

// Market is a user-submitted prediction market proposal. TxHash and OnchainID
// are set only once the market has been settled on-chain (status LIVE).
type Market struct {
	ID              int64
	Title           string
	Description     string
	Expiry          time.Time
	ConvictionLevel float64
	Status          MarketStatus
	CreatorID       int64
	ApprovedByID    *int64
	MarketTypeID    *int64
	TxHash          *string
	OnchainID       *int64
	CreatedAt       time.Time
	ApprovedAt      *time.Time
}

// MarketProposal carries the caller-supplied fields for a new market. The
// market type is optional at creation; it becomes mandatory (and validated)
// at approval time.
type MarketProposal struct {
	Title           string
	Description     string
	Expiry          time.Time
	ConvictionLevel float64
	MarketTypeID    *int64
}

// MarketFilter selects markets for list queries. Nil fields are no-ops.
type MarketFilter struct {
	Status       *MarketStatus
	MarketTypeID *int64
	Limit        int
	Offset       int
}
