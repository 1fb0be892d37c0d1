package pricing

import (
	"context"
	"strconv"
	"time"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// PriceKey returns the cache key under which a token's price is stored.
func PriceKey(tokenID string) string {
	return "price:" + tokenID
}

// CacheTier resolves prices from the distributed cache (tier 3). The cache
// is already breaker-guarded, so a degraded cache simply resolves nothing
// and the batch falls through to the external tier.
type CacheTier struct {
	cache domain.Cache
}

// NewCacheTier creates the tier-3 resolver over the given cache.
func NewCacheTier(cache domain.Cache) *CacheTier {
	return &CacheTier{cache: cache}
}

// Name returns the tier identifier.
func (t *CacheTier) Name() string { return "cache" }

// TryResolve batch-reads the price keys. Unparseable values are treated as
// misses.
func (t *CacheTier) TryResolve(ctx context.Context, tokenIDs []string) (map[string]domain.PriceQuote, error) {
	keys := make([]string, len(tokenIDs))
	for i, id := range tokenIDs {
		keys[i] = PriceKey(id)
	}

	values := t.cache.BatchGet(ctx, keys)
	if len(values) == 0 {
		return map[string]domain.PriceQuote{}, nil
	}

	now := time.Now().UTC()
	quotes := make(map[string]domain.PriceQuote, len(values))
	for _, id := range tokenIDs {
		raw, ok := values[PriceKey(id)]
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		quotes[id] = domain.PriceQuote{
			TokenID:   id,
			Price:     price,
			Source:    domain.PriceSourceCache,
			FetchedAt: now,
		}
	}
	return quotes, nil
}

// Compile-time interface check.
var _ Resolver = (*CacheTier)(nil)
