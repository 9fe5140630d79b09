package domain

import "time"

// User is identified by a unique wallet address; accounts are created lazily
// on first login. ConvictionPoints accumulate one per approved market the user
// created.
type User struct {
	ID               int64
	WalletAddress    string
	IsAdmin          bool
	ConvictionPoints int
	CreatedAt        time.Time
}
