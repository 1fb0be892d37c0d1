package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore backed by the given
// connection pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Insert records an executed liquidation.
func (s *TransactionStore) Insert(ctx context.Context, tx domain.Transaction) error {
	const query = `
		INSERT INTO order_transactions (
			id, order_id, user_id, wallet, market_id, token_id,
			side, quantity, price, proceeds, realized_pnl, settlement_ref,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13
		)`

	_, err := s.pool.Exec(ctx, query,
		tx.ID, tx.OrderID, tx.UserID, tx.Wallet, tx.MarketID, tx.TokenID,
		tx.Side, tx.Quantity, tx.Price, tx.Proceeds, tx.RealizedPnL, tx.SettlementRef,
		tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

const txSelectCols = `id, order_id, user_id, wallet, market_id, token_id,
	side, quantity, price, proceeds, realized_pnl, settlement_ref, created_at`

func scanTxRows(rows pgx.Rows) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.OrderID, &tx.UserID, &tx.Wallet, &tx.MarketID, &tx.TokenID,
			&tx.Side, &tx.Quantity, &tx.Price, &tx.Proceeds, &tx.RealizedPnL, &tx.SettlementRef,
			&tx.CreatedAt,
		); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// ListByOrder returns all transactions recorded for an order.
func (s *TransactionStore) ListByOrder(ctx context.Context, orderID string) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txSelectCols+` FROM order_transactions
		 WHERE order_id = $1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions for order %s: %w", orderID, err)
	}
	defer rows.Close()

	txs, err := scanTxRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transactions for order %s: %w", orderID, err)
	}
	return txs, nil
}

// ListBefore returns all transactions created strictly before the cutoff.
// Used by the cold-storage archiver.
func (s *TransactionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txSelectCols+` FROM order_transactions
		 WHERE created_at < $1 ORDER BY created_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	txs, err := scanTxRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transactions: %w", err)
	}
	return txs, nil
}

// Compile-time interface check.
var _ domain.TransactionStore = (*TransactionStore)(nil)
