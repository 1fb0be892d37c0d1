package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

type countingMarketStore struct {
	*memMarketStore
	calls int
}

func (s *countingMarketStore) GetByTokenIDs(ctx context.Context, tokenIDs []string) ([]domain.Market, error) {
	s.calls++
	return s.memMarketStore.GetByTokenIDs(ctx, tokenIDs)
}

func TestTokenMapperResolvesAndCaches(t *testing.T) {
	store := &countingMarketStore{memMarketStore: &memMarketStore{markets: []domain.Market{{
		ID:          "market-1",
		ConditionID: "0xcond",
		Outcomes:    []string{"Yes", "No"},
		TokenIDs:    []string{"tok-yes", "tok-no"},
	}}}}
	mapper := NewTokenMapper(store, newMemCache(), 5*time.Minute, discardLogger())
	ctx := context.Background()

	mapping, err := mapper.Resolve(ctx, "tok-no")
	require.NoError(t, err)
	require.Equal(t, "market-1", mapping.MarketID)
	require.Equal(t, "0xcond", mapping.ConditionID)
	require.Equal(t, "No", mapping.Outcome)
	require.Equal(t, 1, store.calls)

	// Second lookup is served from the cache.
	_, err = mapper.Resolve(ctx, "tok-no")
	require.NoError(t, err)
	require.Equal(t, 1, store.calls)
}

func TestTokenMapperUnknownToken(t *testing.T) {
	store := &countingMarketStore{memMarketStore: &memMarketStore{}}
	mapper := NewTokenMapper(store, newMemCache(), 5*time.Minute, discardLogger())

	_, err := mapper.Resolve(context.Background(), "tok-mystery")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTokenMapperBatchPartialResult(t *testing.T) {
	store := &countingMarketStore{memMarketStore: &memMarketStore{markets: []domain.Market{{
		ID:       "market-1",
		Outcomes: []string{"Yes", "No"},
		TokenIDs: []string{"tok-yes", "tok-no"},
	}}}}
	mapper := NewTokenMapper(store, newMemCache(), 5*time.Minute, discardLogger())

	out, err := mapper.ResolveBatch(context.Background(), []string{"tok-yes", "tok-mystery"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Contains(t, out, "tok-yes")
}
