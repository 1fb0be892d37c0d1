package pricing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// fakeTier is a scripted resolver that records which ids it was asked for.
type fakeTier struct {
	name   string
	prices map[string]float64
	err    error

	calls    int
	askedIDs [][]string
}

func (f *fakeTier) Name() string { return f.name }

func (f *fakeTier) TryResolve(ctx context.Context, tokenIDs []string) (map[string]domain.PriceQuote, error) {
	f.calls++
	f.askedIDs = append(f.askedIDs, append([]string(nil), tokenIDs...))
	if f.err != nil {
		return nil, f.err
	}
	quotes := make(map[string]domain.PriceQuote)
	for _, id := range tokenIDs {
		if p, ok := f.prices[id]; ok {
			quotes[id] = domain.PriceQuote{
				TokenID:   id,
				Price:     p,
				Source:    domain.PriceSource(f.name),
				FetchedAt: time.Now(),
			}
		}
	}
	return quotes, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCascadeSkipsLowerTiersWhenResolved(t *testing.T) {
	tier1 := &fakeTier{name: "replica", prices: map[string]float64{"tok1": 0.61}}
	tier2 := &fakeTier{name: "snapshot", prices: map[string]float64{"tok1": 0.55}}
	tier3 := &fakeTier{name: "cache"}

	c := NewCascade(testLogger(), tier1, tier2, tier3)
	got := c.ResolvePrices(context.Background(), []string{"tok1"})

	require.Len(t, got, 1)
	require.Equal(t, 0.61, got["tok1"].Price)
	require.Equal(t, domain.PriceSource("replica"), got["tok1"].Source)

	require.Equal(t, 1, tier1.calls)
	require.Zero(t, tier2.calls, "resolved token must not reach tier 2")
	require.Zero(t, tier3.calls, "resolved token must not reach tier 3")
}

func TestCascadeCarriesMissingForward(t *testing.T) {
	tier1 := &fakeTier{name: "replica", prices: map[string]float64{"tok1": 0.61}}
	tier2 := &fakeTier{name: "snapshot", prices: map[string]float64{"tok2": 0.30}}

	c := NewCascade(testLogger(), tier1, tier2)
	got := c.ResolvePrices(context.Background(), []string{"tok1", "tok2", "tok3"})

	require.Len(t, got, 2)
	require.Equal(t, domain.PriceSource("replica"), got["tok1"].Source)
	require.Equal(t, domain.PriceSource("snapshot"), got["tok2"].Source)
	_, ok := got["tok3"]
	require.False(t, ok, "token missing from every tier stays missing")

	// Tier 2 only sees what tier 1 could not resolve.
	require.Equal(t, [][]string{{"tok2", "tok3"}}, tier2.askedIDs)
}

func TestCascadeTierFailureIsIsolated(t *testing.T) {
	tier1 := &fakeTier{name: "replica", err: errors.New("replica down")}
	tier2 := &fakeTier{name: "snapshot", prices: map[string]float64{
		"tok1": 0.40,
		"tok2": 0.70,
	}}

	c := NewCascade(testLogger(), tier1, tier2)
	got := c.ResolvePrices(context.Background(), []string{"tok1", "tok2"})

	require.Len(t, got, 2, "a failing tier must not abort the batch")
	require.Equal(t, 0.40, got["tok1"].Price)
	require.Equal(t, 0.70, got["tok2"].Price)
}

func TestCascadeAllTiersMissReturnsEmpty(t *testing.T) {
	tier1 := &fakeTier{name: "replica"}
	tier2 := &fakeTier{name: "snapshot"}

	c := NewCascade(testLogger(), tier1, tier2)
	got := c.ResolvePrices(context.Background(), []string{"tok1"})

	require.Empty(t, got, "missing must stay missing, never defaulted")
}

func TestCascadeDeduplicatesInput(t *testing.T) {
	tier1 := &fakeTier{name: "replica", prices: map[string]float64{"tok1": 0.5}}

	c := NewCascade(testLogger(), tier1)
	got := c.ResolvePrices(context.Background(), []string{"tok1", "tok1", ""})

	require.Len(t, got, 1)
	require.Equal(t, [][]string{{"tok1"}}, tier1.askedIDs)
}

// fakeMarketData is a scripted domain.MarketDataSource.
type fakeMarketData struct {
	prices map[string]float64
}

func (f *fakeMarketData) FetchPrice(ctx context.Context, tokenID string) (float64, error) {
	p, ok := f.prices[tokenID]
	if !ok {
		return 0, errors.New("no price")
	}
	return p, nil
}

// memCache is an in-memory domain.Cache for tier tests.
type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]string)}
}

func (m *memCache) Get(ctx context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *memCache) BatchGet(ctx context.Context, keys []string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (m *memCache) Delete(ctx context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func (m *memCache) DeletePattern(ctx context.Context, pattern string) {}

func (m *memCache) Stats() domain.CacheStats { return domain.CacheStats{} }

func TestExternalTierCachesResults(t *testing.T) {
	cache := newMemCache()
	tier := NewExternalTier(
		&fakeMarketData{prices: map[string]float64{"tok1": 0.42}},
		cache, nil,
		ExternalTierConfig{Concurrency: 2, FetchTimeout: time.Second, PriceTTL: 25 * time.Second},
		testLogger(),
	)

	got, err := tier.TryResolve(context.Background(), []string{"tok1", "tok2"})
	require.NoError(t, err)

	require.Len(t, got, 1, "per-token fetch failures are skipped, not fatal")
	require.Equal(t, 0.42, got["tok1"].Price)
	require.Equal(t, domain.PriceSourceExternal, got["tok1"].Source)

	cached, ok := cache.Get(context.Background(), PriceKey("tok1"))
	require.True(t, ok, "successful fetch must be written back to the cache")
	require.Equal(t, "0.42", cached)
}

func TestCacheTierParsesBatch(t *testing.T) {
	cache := newMemCache()
	cache.Set(context.Background(), PriceKey("tok1"), "0.37", 0)
	cache.Set(context.Background(), PriceKey("tok2"), "garbage", 0)

	tier := NewCacheTier(cache)
	got, err := tier.TryResolve(context.Background(), []string{"tok1", "tok2", "tok3"})
	require.NoError(t, err)

	require.Len(t, got, 1, "unparseable and absent values are misses")
	require.Equal(t, 0.37, got["tok1"].Price)
	require.Equal(t, domain.PriceSourceCache, got["tok1"].Source)
}
