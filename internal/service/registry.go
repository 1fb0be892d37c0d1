// Package service holds the order registry, the token mapper, and the
// monitoring loop with its trigger executor. These are the behaviors on top
// of the storage and pricing layers; everything external is reached through
// domain interfaces so each service is testable with in-memory fakes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// CreateOrderParams are the user-supplied inputs for a new monitored order.
type CreateOrderParams struct {
	UserID     int64
	Wallet     string
	TokenID    string
	EntryPrice float64
	TakeProfit *float64
	StopLoss   *float64
	Quantity   float64
}

// OrderRegistry manages the monitored-order lifecycle outside the monitor
// loop: creation, target edits, position additions, user cancellation, and
// reconciliation after out-of-band sells.
type OrderRegistry struct {
	orders    domain.OrderStore
	mapper    *TokenMapper
	positions domain.PositionSource
	logger    *slog.Logger
	newID     func() string
	nowFunc   func() time.Time
}

// NewOrderRegistry creates an OrderRegistry.
func NewOrderRegistry(orders domain.OrderStore, mapper *TokenMapper, positions domain.PositionSource, logger *slog.Logger) *OrderRegistry {
	return &OrderRegistry{
		orders:    orders,
		mapper:    mapper,
		positions: positions,
		logger:    logger.With(slog.String("component", "order_registry")),
		newID:     uuid.NewString,
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder validates and persists a new monitored order. One active order
// per (user, token) is enforced both here and by a partial unique index, so
// a concurrent duplicate surfaces as ErrAlreadyExists either way.
func (r *OrderRegistry) CreateOrder(ctx context.Context, p CreateOrderParams) (domain.MonitoredOrder, error) {
	if !common.IsHexAddress(p.Wallet) {
		return domain.MonitoredOrder{}, fmt.Errorf("registry: wallet %q: %w", p.Wallet, domain.ErrInvalidWallet)
	}
	if p.Quantity <= 0 {
		return domain.MonitoredOrder{}, fmt.Errorf("registry: quantity %.4f must be positive: %w", p.Quantity, domain.ErrInvalidTargets)
	}
	if p.EntryPrice <= 0 || p.EntryPrice >= 1 {
		return domain.MonitoredOrder{}, fmt.Errorf("registry: entry price %.4f must be in (0, 1): %w", p.EntryPrice, domain.ErrInvalidTargets)
	}
	if err := domain.ValidateTargets(p.EntryPrice, p.TakeProfit, p.StopLoss); err != nil {
		return domain.MonitoredOrder{}, fmt.Errorf("registry: %w", err)
	}

	if _, err := r.orders.GetActiveByUserToken(ctx, p.UserID, p.TokenID); err == nil {
		return domain.MonitoredOrder{}, fmt.Errorf("registry: active order exists for user %d token %s: %w", p.UserID, p.TokenID, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.MonitoredOrder{}, fmt.Errorf("registry: check existing order: %w", err)
	}

	mapping, err := r.mapper.Resolve(ctx, p.TokenID)
	if err != nil {
		return domain.MonitoredOrder{}, fmt.Errorf("registry: resolve token %s: %w", p.TokenID, err)
	}

	order := domain.MonitoredOrder{
		ID:                r.newID(),
		UserID:            p.UserID,
		Wallet:            common.HexToAddress(p.Wallet).Hex(),
		TokenID:           p.TokenID,
		MarketID:          mapping.MarketID,
		Outcome:           mapping.Outcome,
		EntryPrice:        p.EntryPrice,
		TakeProfitPrice:   p.TakeProfit,
		StopLossPrice:     p.StopLoss,
		MonitoredQuantity: p.Quantity,
		Status:            domain.OrderStatusActive,
		CreatedAt:         r.nowFunc(),
	}

	if err := r.orders.Create(ctx, order); err != nil {
		return domain.MonitoredOrder{}, fmt.Errorf("registry: create order: %w", err)
	}

	r.logger.InfoContext(ctx, "monitored order created",
		slog.String("order_id", order.ID),
		slog.Int64("user_id", order.UserID),
		slog.String("token_id", order.TokenID),
		slog.String("market_id", order.MarketID),
		slog.Float64("entry", order.EntryPrice),
	)
	return order, nil
}

// CancelOrder cancels an active order on the user's request.
func (r *OrderRegistry) CancelOrder(ctx context.Context, orderID string) error {
	if err := r.orders.MarkCancelled(ctx, orderID, domain.CancelReasonUserCancelled); err != nil {
		return fmt.Errorf("registry: cancel order %s: %w", orderID, err)
	}
	r.logger.InfoContext(ctx, "order cancelled by user", slog.String("order_id", orderID))
	return nil
}

// UpdateTargets replaces the targets of an active order. The new targets are
// validated against the existing entry price.
func (r *OrderRegistry) UpdateTargets(ctx context.Context, orderID string, takeProfit, stopLoss *float64) error {
	order, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("registry: update targets %s: %w", orderID, err)
	}
	if order.Status != domain.OrderStatusActive {
		return fmt.Errorf("registry: update targets %s: %w", orderID, domain.ErrOrderNotActive)
	}
	if err := domain.ValidateTargets(order.EntryPrice, takeProfit, stopLoss); err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	if err := r.orders.UpdateEconomics(ctx, orderID, order.EntryPrice, takeProfit, stopLoss, order.MonitoredQuantity); err != nil {
		return fmt.Errorf("registry: update targets %s: %w", orderID, err)
	}
	r.logger.InfoContext(ctx, "order targets updated", slog.String("order_id", orderID))
	return nil
}

// ApplyAdditionalBuy folds an additional purchase into an active order: the
// entry price becomes the quantity-weighted average and each target keeps
// its percentage offset from entry.
func (r *OrderRegistry) ApplyAdditionalBuy(ctx context.Context, orderID string, quantity, price float64) (domain.MonitoredOrder, error) {
	order, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.MonitoredOrder{}, fmt.Errorf("registry: apply buy %s: %w", orderID, err)
	}
	if order.Status != domain.OrderStatusActive {
		return domain.MonitoredOrder{}, fmt.Errorf("registry: apply buy %s: %w", orderID, domain.ErrOrderNotActive)
	}

	if err := order.ApplyBuy(quantity, price); err != nil {
		return domain.MonitoredOrder{}, fmt.Errorf("registry: apply buy %s: %w", orderID, err)
	}

	if err := r.orders.UpdateEconomics(ctx, orderID, order.EntryPrice, order.TakeProfitPrice, order.StopLossPrice, order.MonitoredQuantity); err != nil {
		return domain.MonitoredOrder{}, fmt.Errorf("registry: apply buy %s: %w", orderID, err)
	}

	r.logger.InfoContext(ctx, "additional buy applied",
		slog.String("order_id", orderID),
		slog.Float64("entry", order.EntryPrice),
		slog.Float64("quantity", order.MonitoredQuantity),
	)
	return order, nil
}

// ReconcileAfterSell adjusts an active order after the user sold part or all
// of the position outside this system. Remaining holdings are re-queried from
// the position source rather than trusted from the caller. Selling everything
// cancels the order; a partial sell shrinks the monitored quantity.
func (r *OrderRegistry) ReconcileAfterSell(ctx context.Context, orderID string) error {
	order, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("registry: reconcile %s: %w", orderID, err)
	}
	if order.Status != domain.OrderStatusActive {
		return nil
	}

	remainingBalance, err := r.positions.GetBalance(ctx, order.Wallet, order.TokenID)
	if err != nil {
		return fmt.Errorf("registry: reconcile %s: query holdings: %w", orderID, err)
	}

	if remainingBalance <= 0 {
		if err := r.orders.MarkCancelled(ctx, orderID, domain.CancelReasonPositionClosed); err != nil {
			return fmt.Errorf("registry: reconcile %s: %w", orderID, err)
		}
		r.logger.InfoContext(ctx, "order cancelled, position closed externally",
			slog.String("order_id", orderID),
		)
		return nil
	}

	if remainingBalance < order.MonitoredQuantity {
		if err := r.orders.UpdateQuantity(ctx, orderID, remainingBalance); err != nil {
			return fmt.Errorf("registry: reconcile %s: %w", orderID, err)
		}
		r.logger.InfoContext(ctx, "monitored quantity reduced after external sell",
			slog.String("order_id", orderID),
			slog.Float64("quantity", remainingBalance),
		)
	}
	return nil
}

// GetOrder retrieves a single order by its ID.
func (r *OrderRegistry) GetOrder(ctx context.Context, orderID string) (domain.MonitoredOrder, error) {
	order, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.MonitoredOrder{}, fmt.Errorf("registry: get order %s: %w", orderID, err)
	}
	return order, nil
}

// ListActive returns every order still being monitored.
func (r *OrderRegistry) ListActive(ctx context.Context) ([]domain.MonitoredOrder, error) {
	orders, err := r.orders.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: list active: %w", err)
	}
	return orders, nil
}
