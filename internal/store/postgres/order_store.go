package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL. All state
// transitions are conditional on status = 'active' so racing flows resolve
// through the database rather than an in-process lock.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection
// pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts a new monitored order.
func (s *OrderStore) Create(ctx context.Context, o domain.MonitoredOrder) error {
	const query = `
		INSERT INTO monitored_orders (
			id, user_id, wallet, token_id, market_id, outcome,
			entry_price, take_profit_price, stop_loss_price, monitored_quantity,
			status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12
		)`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.UserID, o.Wallet, o.TokenID, o.MarketID, o.Outcome,
		o.EntryPrice, o.TakeProfitPrice, o.StopLossPrice, o.MonitoredQuantity,
		string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}
	return nil
}

const orderSelectCols = `id, user_id, wallet, token_id, market_id, outcome,
	entry_price, take_profit_price, stop_loss_price, monitored_quantity,
	status, triggered_type, execution_price, cancelled_reason,
	created_at, triggered_at, cancelled_at, last_price_check_at`

func scanOrderFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.MonitoredOrder, error) {
	var o domain.MonitoredOrder
	var status string
	var triggeredType *string

	err := scanner.Scan(
		&o.ID, &o.UserID, &o.Wallet, &o.TokenID, &o.MarketID, &o.Outcome,
		&o.EntryPrice, &o.TakeProfitPrice, &o.StopLossPrice, &o.MonitoredQuantity,
		&status, &triggeredType, &o.ExecutionPrice, &o.CancelledReason,
		&o.CreatedAt, &o.TriggeredAt, &o.CancelledAt, &o.LastPriceCheckAt,
	)
	if err != nil {
		return domain.MonitoredOrder{}, err
	}

	o.Status = domain.OrderStatus(status)
	if triggeredType != nil {
		t := domain.TriggerType(*triggeredType)
		o.TriggeredType = &t
	}
	return o, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.MonitoredOrder, error) {
	var orders []domain.MonitoredOrder
	for rows.Next() {
		o, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetByID retrieves a single order by ID.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.MonitoredOrder, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM monitored_orders WHERE id = $1`, id)

	o, err := scanOrderFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MonitoredOrder{}, domain.ErrNotFound
		}
		return domain.MonitoredOrder{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

// GetActiveByUserToken returns the single active order for a (user, token)
// pair, or ErrNotFound.
func (s *OrderStore) GetActiveByUserToken(ctx context.Context, userID int64, tokenID string) (domain.MonitoredOrder, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM monitored_orders
		 WHERE user_id = $1 AND token_id = $2 AND status = 'active'`,
		userID, tokenID)

	o, err := scanOrderFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MonitoredOrder{}, domain.ErrNotFound
		}
		return domain.MonitoredOrder{}, fmt.Errorf("postgres: get active order user=%d token=%s: %w", userID, tokenID, err)
	}
	return o, nil
}

// ListActive returns all active orders, oldest first so long-waiting orders
// are evaluated before newly created ones.
func (s *OrderStore) ListActive(ctx context.Context) ([]domain.MonitoredOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM monitored_orders
		 WHERE status = 'active'
		 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active orders: %w", err)
	}
	return orders, nil
}

// ListTerminalBefore returns triggered/cancelled orders whose terminal
// timestamp is strictly before the cutoff. Used by the cold-storage
// archiver.
func (s *OrderStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.MonitoredOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM monitored_orders
		 WHERE status IN ('triggered', 'cancelled')
		   AND COALESCE(triggered_at, cancelled_at) < $1
		 ORDER BY created_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan terminal orders: %w", err)
	}
	return orders, nil
}

// UpdateEconomics replaces entry price, targets, and monitored quantity on
// an active order.
func (s *OrderStore) UpdateEconomics(ctx context.Context, id string, entry float64, takeProfit, stopLoss *float64, quantity float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE monitored_orders
		 SET entry_price = $1, take_profit_price = $2, stop_loss_price = $3,
		     monitored_quantity = $4
		 WHERE id = $5 AND status = 'active'`,
		entry, takeProfit, stopLoss, quantity, id)
	if err != nil {
		return fmt.Errorf("postgres: update economics %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotActive
	}
	return nil
}

// UpdateQuantity reduces the monitored quantity of an active order.
func (s *OrderStore) UpdateQuantity(ctx context.Context, id string, quantity float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE monitored_orders SET monitored_quantity = $1
		 WHERE id = $2 AND status = 'active'`,
		quantity, id)
	if err != nil {
		return fmt.Errorf("postgres: update quantity %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotActive
	}
	return nil
}

// TouchPriceCheck records the time the monitor last evaluated the order.
// Terminal orders are touched as a no-op rather than an error: the
// timestamp is diagnostic only.
func (s *OrderStore) TouchPriceCheck(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE monitored_orders SET last_price_check_at = $1 WHERE id = $2`,
		at, id)
	if err != nil {
		return fmt.Errorf("postgres: touch price check %s: %w", id, err)
	}
	return nil
}

// MarkTriggered moves an active order to triggered. The WHERE clause on
// status makes the transition atomic against concurrent cancellations.
func (s *OrderStore) MarkTriggered(ctx context.Context, id string, trigger domain.TriggerType, executionPrice float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE monitored_orders
		 SET status = 'triggered', triggered_type = $1, execution_price = $2,
		     triggered_at = NOW()
		 WHERE id = $3 AND status = 'active'`,
		string(trigger), executionPrice, id)
	if err != nil {
		return fmt.Errorf("postgres: mark triggered %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotActive
	}
	return nil
}

// MarkCancelled moves an active order to cancelled with a reason.
func (s *OrderStore) MarkCancelled(ctx context.Context, id string, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE monitored_orders
		 SET status = 'cancelled', cancelled_reason = $1, cancelled_at = NOW()
		 WHERE id = $2 AND status = 'active'`,
		reason, id)
	if err != nil {
		return fmt.Errorf("postgres: mark cancelled %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotActive
	}
	return nil
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
