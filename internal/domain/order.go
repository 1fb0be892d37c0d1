package domain

import (
	"fmt"
	"time"
)

// OrderStatus tracks the lifecycle of a monitored order. Transitions are
// monotone: active orders move to triggered or cancelled and stay there.
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"
	OrderStatusTriggered OrderStatus = "triggered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// TriggerType records which target fired a liquidation.
type TriggerType string

const (
	TriggerTakeProfit TriggerType = "take_profit"
	TriggerStopLoss   TriggerType = "stop_loss"
)

// Machine-readable cancellation reasons.
const (
	CancelReasonPositionNotFound = "position_not_found"
	CancelReasonPositionClosed   = "position_closed"
	CancelReasonMarketClosed     = "market_closed"
	CancelReasonMarketResolved   = "market_resolved"
	CancelReasonNoTokens         = "no_tokens"
	CancelReasonUserCancelled    = "user_cancelled"
)

// MonitoredOrder is a conditional liquidation instruction: when the market
// price for the token crosses either target, the monitored quantity is sold.
// Orders are never deleted, only moved to a terminal status, so the row
// doubles as the audit record.
type MonitoredOrder struct {
	ID       string
	UserID   int64  // Telegram user id, used for notifications
	Wallet   string // proxy wallet holding the position
	TokenID  string // ERC-1155 outcome token id
	MarketID string
	Outcome  string // outcome label, e.g. "Yes"

	EntryPrice        float64
	TakeProfitPrice   *float64
	StopLossPrice     *float64
	MonitoredQuantity float64 // shares this order may liquidate; may be below total holdings

	Status          OrderStatus
	TriggeredType   *TriggerType
	ExecutionPrice  *float64 // realized fill price, set only on trigger
	CancelledReason *string

	CreatedAt        time.Time
	TriggeredAt      *time.Time
	CancelledAt      *time.Time
	LastPriceCheckAt *time.Time
}

// ValidateTargets checks the target invariants against the entry price:
// at least one target must be set, take-profit must sit above entry and
// stop-loss below it.
func ValidateTargets(entry float64, takeProfit, stopLoss *float64) error {
	if takeProfit == nil && stopLoss == nil {
		return fmt.Errorf("%w: at least one of take-profit and stop-loss required", ErrInvalidTargets)
	}
	if takeProfit != nil && *takeProfit <= entry {
		return fmt.Errorf("%w: take-profit %.4f must exceed entry %.4f", ErrInvalidTargets, *takeProfit, entry)
	}
	if stopLoss != nil && *stopLoss >= entry {
		return fmt.Errorf("%w: stop-loss %.4f must be below entry %.4f", ErrInvalidTargets, *stopLoss, entry)
	}
	return nil
}

// ApplyBuy folds an additional purchase into the order: the entry price
// becomes the quantity-weighted average, and each target keeps its offset
// percentage relative to the old entry so the user's risk/reward ratio
// survives position additions.
func (o *MonitoredOrder) ApplyBuy(newQty, newPrice float64) error {
	if newQty <= 0 {
		return fmt.Errorf("domain: apply buy: quantity %.4f must be positive", newQty)
	}
	if o.EntryPrice <= 0 {
		return fmt.Errorf("domain: apply buy: entry price %.4f must be positive", o.EntryPrice)
	}

	oldQty := o.MonitoredQuantity
	oldEntry := o.EntryPrice
	newEntry := (oldQty*oldEntry + newQty*newPrice) / (oldQty + newQty)

	if o.TakeProfitPrice != nil {
		tp := newEntry * (1 + (*o.TakeProfitPrice-oldEntry)/oldEntry)
		o.TakeProfitPrice = &tp
	}
	if o.StopLossPrice != nil {
		sl := newEntry * (1 + (*o.StopLossPrice-oldEntry)/oldEntry)
		o.StopLossPrice = &sl
	}

	o.EntryPrice = newEntry
	o.MonitoredQuantity = oldQty + newQty
	return nil
}

// Evaluate compares the current price against the order's targets and
// returns the trigger type that fired, or nil. Take-profit wins the
// tie-break when both targets are eligible on the same tick.
func (o *MonitoredOrder) Evaluate(currentPrice float64) *TriggerType {
	if o.TakeProfitPrice != nil && currentPrice >= *o.TakeProfitPrice {
		t := TriggerTakeProfit
		return &t
	}
	if o.StopLossPrice != nil && currentPrice <= *o.StopLossPrice {
		t := TriggerStopLoss
		return &t
	}
	return nil
}

// Terminal reports whether the order has reached a terminal status.
func (o *MonitoredOrder) Terminal() bool {
	return o.Status == OrderStatusTriggered || o.Status == OrderStatusCancelled
}
