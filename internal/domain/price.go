package domain

import "time"

// PriceSource identifies which cascade tier produced a quote.
type PriceSource string

const (
	PriceSourceReplica  PriceSource = "replica"
	PriceSourceSnapshot PriceSource = "snapshot"
	PriceSourceCache    PriceSource = "cache"
	PriceSourceExternal PriceSource = "external"
)

// PriceQuote is an ephemeral per-token price resolved by the cascade. It is
// cached but never persisted as order state.
type PriceQuote struct {
	TokenID   string
	Price     float64
	Source    PriceSource
	FetchedAt time.Time
}

// TokenPrice is a stored price row from the real-time replica or the
// periodic snapshot table.
type TokenPrice struct {
	TokenID   string
	Price     float64
	UpdatedAt time.Time
}

// TokenMapping resolves an outcome token to its owning market and label.
type TokenMapping struct {
	MarketID    string
	ConditionID string
	Outcome     string
}
