package domain

import "time"

// Credentials hold a follower's exchange API keys.
type Credentials struct {
	APIKey    string
	SecretKey string
}

// FollowerAccount is a mirroring account whose orders are sized from its own
// risk settings rather than copied verbatim. Validation of the risk inputs
// happens at the boundary that edits these records, not in the core.
type FollowerAccount struct {
	ID              int64
	Name            string
	Credentials     Credentials
	RiskPercent     float64 // Percent of fund risked per trade
	FundAmount      float64 // Fixed fund amount used for sizing
	MaxTradesPerDay int
	QuoteAsset      string // e.g. "USDT"
	IsActive        bool

	WalletBalance      float64
	BalanceRefreshedAt time.Time
}

// MirrorPosition is an open position placed on a follower account for a
// tracked trade. The scheduler refreshes its P&L periodically.
type MirrorPosition struct {
	ID         int64
	FollowerID int64
	TradeID    int64
	Symbol     string
	Quantity   float64
	Leverage   float64
	EntryPrice float64
	PNL        float64
	IsOpen     bool
	UpdatedAt  time.Time
}
