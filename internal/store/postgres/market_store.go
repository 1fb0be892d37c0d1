package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. The markets
// table is maintained by the metadata ingestion pipeline; this service only
// reads it.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection
// pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketSelectCols = `id, condition_id, question, slug, outcomes, token_ids,
	status, closed_at, created_at, updated_at`

func scanMarketFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Market, error) {
	var m domain.Market
	var status string

	err := scanner.Scan(
		&m.ID, &m.ConditionID, &m.Question, &m.Slug, &m.Outcomes, &m.TokenIDs,
		&status, &m.ClosedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// GetByID retrieves a single market by ID.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE id = $1`, id)

	m, err := scanMarketFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetByTokenIDs returns every market whose outcome-token list intersects
// the given token ids. The GIN index on token_ids keeps the overlap scan
// cheap even though this is the expensive fallback path behind the mapping
// cache.
func (s *MarketStore) GetByTokenIDs(ctx context.Context, tokenIDs []string) ([]domain.Market, error) {
	if len(tokenIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE token_ids && $1`,
		tokenIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: get markets by token ids: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarketFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
