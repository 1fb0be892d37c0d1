package domain

import "context"

// PositionSource queries authoritative on-chain holdings for a wallet and
// outcome token. A zero balance for a monitored order means the position was
// liquidated outside this system (a ghost order).
type PositionSource interface {
	GetBalance(ctx context.Context, wallet, tokenID string) (float64, error)
}

// MarketStatusSource reports whether a market is still tradeable.
type MarketStatusSource interface {
	GetStatus(ctx context.Context, marketID string) (MarketStatus, error)
}

// MarketDataSource is the direct (slow, rate-limited) external price
// endpoint, used only as the last cascade tier.
type MarketDataSource interface {
	FetchPrice(ctx context.Context, tokenID string) (float64, error)
}

// Fill is the confirmation returned by a liquidation call.
type Fill struct {
	// Price is the realized fill price; zero when the venue did not report
	// one, in which case callers fall back to the evaluation-time price.
	Price float64
	// SettlementRef is an optional tx hash or settlement reference.
	SettlementRef string
}

// LiquidationExecutor places the market sell that closes out a triggered
// order. May fail transiently; the caller retries on the next cycle.
type LiquidationExecutor interface {
	Sell(ctx context.Context, wallet, tokenID string, quantity float64) (Fill, error)
}

// NotificationSender best-effort delivers a message to a user. Failures are
// logged by callers, never escalated.
type NotificationSender interface {
	Send(ctx context.Context, userID int64, message string) error
}
