package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// priceStore is the shared implementation behind the real-time replica and
// snapshot stores; the two differ only in table name and freshness window.
type priceStore struct {
	pool  *pgxpool.Pool
	table string
}

func (s *priceStore) getFresh(ctx context.Context, tokenIDs []string, since time.Time) (map[string]domain.TokenPrice, error) {
	if len(tokenIDs) == 0 {
		return map[string]domain.TokenPrice{}, nil
	}

	query := fmt.Sprintf(
		`SELECT token_id, price, updated_at FROM %s
		 WHERE token_id = ANY($1) AND updated_at >= $2`, s.table)

	rows, err := s.pool.Query(ctx, query, tokenIDs, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s fresh prices: %w", s.table, err)
	}
	defer rows.Close()

	result := make(map[string]domain.TokenPrice, len(tokenIDs))
	for rows.Next() {
		var p domain.TokenPrice
		if err := rows.Scan(&p.TokenID, &p.Price, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan %s price: %w", s.table, err)
		}
		result[p.TokenID] = p
	}
	return result, rows.Err()
}

// ReplicaPriceStore reads the tier-1 real-time price replica.
type ReplicaPriceStore struct {
	priceStore
}

// NewReplicaPriceStore creates a ReplicaPriceStore backed by the given
// connection pool.
func NewReplicaPriceStore(pool *pgxpool.Pool) *ReplicaPriceStore {
	return &ReplicaPriceStore{priceStore{pool: pool, table: "token_prices_rt"}}
}

// GetFresh returns rows for the given tokens updated at or after since, in
// a single batched read.
func (s *ReplicaPriceStore) GetFresh(ctx context.Context, tokenIDs []string, since time.Time) (map[string]domain.TokenPrice, error) {
	return s.getFresh(ctx, tokenIDs, since)
}

// SnapshotPriceStore reads the tier-2 periodic price snapshot.
type SnapshotPriceStore struct {
	priceStore
}

// NewSnapshotPriceStore creates a SnapshotPriceStore backed by the given
// connection pool.
func NewSnapshotPriceStore(pool *pgxpool.Pool) *SnapshotPriceStore {
	return &SnapshotPriceStore{priceStore{pool: pool, table: "token_prices_snapshot"}}
}

// GetFresh returns rows for the given tokens updated at or after since, in
// a single batched read.
func (s *SnapshotPriceStore) GetFresh(ctx context.Context, tokenIDs []string, since time.Time) (map[string]domain.TokenPrice, error) {
	return s.getFresh(ctx, tokenIDs, since)
}

// Compile-time interface checks.
var (
	_ domain.ReplicaPriceStore  = (*ReplicaPriceStore)(nil)
	_ domain.SnapshotPriceStore = (*SnapshotPriceStore)(nil)
)
