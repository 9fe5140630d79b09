package domain

import "time"

// ValidationRules constrain which markets may be approved under a market type.
// All fields are optional; absent rules are not evaluated. The struct is
// serialized to JSONB in the market_types table.
type ValidationRules struct {
	MinConvictionLevel *float64 `json:"minConvictionLevel,omitempty"`
	MaxConvictionLevel *float64 `json:"maxConvictionLevel,omitempty"`
	MinExpiryHours     *int     `json:"minExpiryHours,omitempty"`
	BannedWords        []string `json:"bannedWords,omitempty"`
}

// MarketType is a named rule-set seeded at startup. Rows are immutable after
// seeding.
type MarketType struct {
	ID          int64
	Name        string
	Description string
	IsActive    bool
	Rules       ValidationRules
	CreatedAt   time.Time
}
