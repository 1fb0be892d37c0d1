package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// ExecutorConfig holds the per-order timeout knobs.
type ExecutorConfig struct {
	// IOTimeout bounds every read call made while checking an order.
	IOTimeout time.Duration
	// LiquidationTimeout bounds the sell call; it is longer than IOTimeout
	// because a market sell waits for settlement.
	LiquidationTimeout time.Duration
}

// TriggerExecutor checks one order against its environment and, when a
// target has crossed, liquidates the monitored quantity. Every status
// transition it makes is conditional on the row still being active, so a
// concurrent cancel or an earlier trigger simply wins and this pass becomes
// a no-op.
type TriggerExecutor struct {
	orders    domain.OrderStore
	txs       domain.TransactionStore
	positions domain.PositionSource
	markets   domain.MarketStatusSource
	seller    domain.LiquidationExecutor
	notifier  domain.NotificationSender
	cfg       ExecutorConfig
	logger    *slog.Logger
	newID     func() string
	nowFunc   func() time.Time
}

// NewTriggerExecutor creates a TriggerExecutor.
func NewTriggerExecutor(
	orders domain.OrderStore,
	txs domain.TransactionStore,
	positions domain.PositionSource,
	markets domain.MarketStatusSource,
	seller domain.LiquidationExecutor,
	notifier domain.NotificationSender,
	cfg ExecutorConfig,
	logger *slog.Logger,
) *TriggerExecutor {
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = 5 * time.Second
	}
	if cfg.LiquidationTimeout <= 0 {
		cfg.LiquidationTimeout = 30 * time.Second
	}
	return &TriggerExecutor{
		orders:    orders,
		txs:       txs,
		positions: positions,
		markets:   markets,
		seller:    seller,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "trigger_executor")),
		newID:     uuid.NewString,
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}
}

// CheckOrder runs the full evaluation pipeline for one order. price is the
// cascade-resolved quote for the order's token, or nil when no tier could
// resolve one this cycle; without a price only the position and market
// checks run and target evaluation is skipped.
func (e *TriggerExecutor) CheckOrder(ctx context.Context, order domain.MonitoredOrder, price *domain.PriceQuote) error {
	log := e.logger.With(
		slog.String("order_id", order.ID),
		slog.String("token_id", order.TokenID),
	)

	if err := e.orders.TouchPriceCheck(ctx, order.ID, e.nowFunc()); err != nil {
		// Diagnostic timestamp only; never block the evaluation on it.
		log.WarnContext(ctx, "touch price check failed", slog.String("error", err.Error()))
	}

	// Positions are authoritative: an order whose wallet no longer holds the
	// token is a ghost and gets cleaned up before any price logic.
	balance, err := e.getBalance(ctx, order)
	if err != nil {
		return fmt.Errorf("executor: check balance %s: %w", order.ID, err)
	}
	if balance <= 0 {
		return e.cancel(ctx, order, domain.CancelReasonPositionNotFound, log,
			fmt.Sprintf("⚠️ Order for %s cancelled: position no longer held.", order.Outcome))
	}

	status, err := e.getMarketStatus(ctx, order)
	if err != nil {
		return fmt.Errorf("executor: check market %s: %w", order.ID, err)
	}
	switch status {
	case domain.MarketStatusClosed:
		return e.cancel(ctx, order, domain.CancelReasonMarketClosed, log,
			fmt.Sprintf("⚠️ Order for %s cancelled: market closed.%s",
				order.Outcome, valuationSummary(order, price, balance)))
	case domain.MarketStatusResolved:
		return e.cancel(ctx, order, domain.CancelReasonMarketResolved, log,
			fmt.Sprintf("⚠️ Order for %s cancelled: market resolved. Redeem your position for its settlement value.%s",
				order.Outcome, valuationSummary(order, price, balance)))
	}

	if price == nil {
		log.DebugContext(ctx, "no price this cycle, skipping evaluation")
		return nil
	}

	trigger := order.Evaluate(price.Price)
	if trigger == nil {
		return nil
	}

	return e.liquidate(ctx, order, *trigger, price.Price, balance, log)
}

// liquidate sells the monitored quantity and records the outcome. The sell
// quantity is clamped to the on-chain balance so a partially sold position
// never produces an oversized order.
func (e *TriggerExecutor) liquidate(ctx context.Context, order domain.MonitoredOrder, trigger domain.TriggerType, evalPrice, balance float64, log *slog.Logger) error {
	quantity := order.MonitoredQuantity
	if balance < quantity {
		quantity = balance
	}
	if quantity <= 0 {
		return e.cancel(ctx, order, domain.CancelReasonNoTokens, log,
			fmt.Sprintf("⚠️ Order for %s cancelled: no tokens left to sell.", order.Outcome))
	}

	log.InfoContext(ctx, "target crossed, liquidating",
		slog.String("trigger", string(trigger)),
		slog.Float64("price", evalPrice),
		slog.Float64("quantity", quantity),
	)

	sellCtx, cancel := context.WithTimeout(ctx, e.cfg.LiquidationTimeout)
	defer cancel()

	fill, err := e.seller.Sell(sellCtx, order.Wallet, order.TokenID, quantity)
	if err != nil {
		// The order stays active and the next cycle retries.
		return fmt.Errorf("executor: sell %s: %w", order.ID, err)
	}

	// The fill is committed on the venue. A shutdown cancelling the cycle
	// context must not abort the bookkeeping below, or the order would stay
	// active with no transaction record and could be sold a second time on
	// the next start.
	ctx = context.WithoutCancel(ctx)

	// Prefer the realized price; the evaluation price is only the fallback
	// when the venue did not report a fill price.
	execPrice := fill.Price
	if execPrice <= 0 {
		execPrice = evalPrice
	}

	if err := e.orders.MarkTriggered(ctx, order.ID, trigger, execPrice); err != nil {
		if errors.Is(err, domain.ErrOrderNotActive) {
			// Lost the transition race after a successful sell; the fill is
			// real so the transaction is still recorded below.
			log.WarnContext(ctx, "order left active state during liquidation")
		} else {
			return fmt.Errorf("executor: mark triggered %s: %w", order.ID, err)
		}
	}

	e.recordTransaction(ctx, order, quantity, execPrice, fill.SettlementRef, log)
	e.notifyTrigger(ctx, order, trigger, quantity, execPrice, log)

	log.InfoContext(ctx, "order triggered",
		slog.String("trigger", string(trigger)),
		slog.Float64("execution_price", execPrice),
	)
	return nil
}

func (e *TriggerExecutor) recordTransaction(ctx context.Context, order domain.MonitoredOrder, quantity, price float64, settlementRef string, log *slog.Logger) {
	tx := domain.Transaction{
		ID:          e.newID(),
		OrderID:     order.ID,
		UserID:      order.UserID,
		Wallet:      order.Wallet,
		MarketID:    order.MarketID,
		TokenID:     order.TokenID,
		Side:        "sell",
		Quantity:    quantity,
		Price:       price,
		Proceeds:    quantity * price,
		RealizedPnL: quantity * (price - order.EntryPrice),
		CreatedAt:   e.nowFunc(),
	}
	if settlementRef != "" {
		tx.SettlementRef = &settlementRef
	}
	if err := e.txs.Insert(ctx, tx); err != nil {
		// The order transition already committed; losing the bookkeeping row
		// is logged, not escalated.
		log.ErrorContext(ctx, "record transaction failed", slog.String("error", err.Error()))
	}
}

func (e *TriggerExecutor) notifyTrigger(ctx context.Context, order domain.MonitoredOrder, trigger domain.TriggerType, quantity, price float64, log *slog.Logger) {
	pnl := quantity * (price - order.EntryPrice)
	var label string
	if trigger == domain.TriggerTakeProfit {
		label = "🎯 Take-profit"
	} else {
		label = "🛑 Stop-loss"
	}
	msg := fmt.Sprintf("%s hit for *%s*\nSold %.2f @ %.4f\nPnL: %+.2f USDC", label, order.Outcome, quantity, price, pnl)
	if err := e.notifier.Send(ctx, order.UserID, msg); err != nil {
		log.WarnContext(ctx, "trigger notification failed", slog.String("error", err.Error()))
	}
}

// valuationSummary renders a best-effort final valuation line for cancel
// notices. It returns an empty string when no price resolved this cycle.
func valuationSummary(order domain.MonitoredOrder, price *domain.PriceQuote, balance float64) string {
	if price == nil {
		return ""
	}
	quantity := order.MonitoredQuantity
	if balance < quantity {
		quantity = balance
	}
	return fmt.Sprintf("\nEstimated value: %.2f USDC (entry value %.2f USDC)",
		quantity*price.Price, quantity*order.EntryPrice)
}

// cancel moves the order to cancelled and best-effort notifies the user. A
// lost transition race is treated as success.
func (e *TriggerExecutor) cancel(ctx context.Context, order domain.MonitoredOrder, reason string, log *slog.Logger, message string) error {
	if err := e.orders.MarkCancelled(ctx, order.ID, reason); err != nil {
		if errors.Is(err, domain.ErrOrderNotActive) {
			return nil
		}
		return fmt.Errorf("executor: cancel %s (%s): %w", order.ID, reason, err)
	}

	log.InfoContext(ctx, "order cancelled", slog.String("reason", reason))

	if message != "" {
		if err := e.notifier.Send(ctx, order.UserID, message); err != nil {
			log.WarnContext(ctx, "cancel notification failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (e *TriggerExecutor) getBalance(ctx context.Context, order domain.MonitoredOrder) (float64, error) {
	ioCtx, cancel := context.WithTimeout(ctx, e.cfg.IOTimeout)
	defer cancel()
	return e.positions.GetBalance(ioCtx, order.Wallet, order.TokenID)
}

func (e *TriggerExecutor) getMarketStatus(ctx context.Context, order domain.MonitoredOrder) (domain.MarketStatus, error) {
	ioCtx, cancel := context.WithTimeout(ctx, e.cfg.IOTimeout)
	defer cancel()
	return e.markets.GetStatus(ioCtx, order.MarketID)
}
