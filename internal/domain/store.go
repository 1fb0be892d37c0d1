package domain

import (
	"context"
	"time"
)

// OrderStore persists monitored orders. Status transitions are conditional
// on the row still being active so independent flows (monitor trigger,
// manual-sell reconciliation, user cancellation) cannot race each other into
// a double transition; a lost race surfaces as ErrOrderNotActive.
type OrderStore interface {
	Create(ctx context.Context, o MonitoredOrder) error
	GetByID(ctx context.Context, id string) (MonitoredOrder, error)
	GetActiveByUserToken(ctx context.Context, userID int64, tokenID string) (MonitoredOrder, error)
	ListActive(ctx context.Context) ([]MonitoredOrder, error)
	ListTerminalBefore(ctx context.Context, before time.Time) ([]MonitoredOrder, error)

	// UpdateEconomics replaces entry price, targets, and monitored quantity
	// on an active order (weighted-average recompute, target edits).
	UpdateEconomics(ctx context.Context, id string, entry float64, takeProfit, stopLoss *float64, quantity float64) error
	// UpdateQuantity reduces the monitored quantity of an active order.
	UpdateQuantity(ctx context.Context, id string, quantity float64) error
	// TouchPriceCheck records the time the monitor last evaluated the order.
	TouchPriceCheck(ctx context.Context, id string, at time.Time) error

	// MarkTriggered moves an active order to triggered with the realized
	// execution price. Returns ErrOrderNotActive if the order already left
	// the active state.
	MarkTriggered(ctx context.Context, id string, trigger TriggerType, executionPrice float64) error
	// MarkCancelled moves an active order to cancelled with a reason.
	// Returns ErrOrderNotActive if the order already left the active state.
	MarkCancelled(ctx context.Context, id string, reason string) error
}

// Transaction is the persisted record of an executed liquidation.
type Transaction struct {
	ID            string
	OrderID       string
	UserID        int64
	Wallet        string
	MarketID      string
	TokenID       string
	Side          string // always "sell" for liquidations
	Quantity      float64
	Price         float64 // realized fill price
	Proceeds      float64
	RealizedPnL   float64
	SettlementRef *string // optional tx hash / settlement reference
	CreatedAt     time.Time
}

// TransactionStore persists liquidation transaction records.
type TransactionStore interface {
	Insert(ctx context.Context, tx Transaction) error
	ListByOrder(ctx context.Context, orderID string) ([]Transaction, error)
	ListBefore(ctx context.Context, before time.Time) ([]Transaction, error)
}

// MarketStore reads market metadata maintained by the ingestion pipeline
// (an external collaborator). The token-mapping fallback scans it to derive
// token -> (market, outcome) from the ordered outcome-token lists.
type MarketStore interface {
	GetByID(ctx context.Context, id string) (Market, error)
	GetByTokenIDs(ctx context.Context, tokenIDs []string) ([]Market, error)
}

// ReplicaPriceStore reads the low-latency real-time price replica (tier 1).
// Only rows updated at or after the since cutoff are returned.
type ReplicaPriceStore interface {
	GetFresh(ctx context.Context, tokenIDs []string, since time.Time) (map[string]TokenPrice, error)
}

// SnapshotPriceStore reads the periodic price snapshot table (tier 2), with
// the same freshness contract as ReplicaPriceStore.
type SnapshotPriceStore interface {
	GetFresh(ctx context.Context, tokenIDs []string, since time.Time) (map[string]TokenPrice, error)
}
