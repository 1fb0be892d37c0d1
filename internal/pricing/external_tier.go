package pricing

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// rateLimitKey groups all external price fetches under one shared budget.
const rateLimitKey = "polymarket_price"

// ExternalTierConfig bounds the tier-4 fan-out.
type ExternalTierConfig struct {
	// Concurrency is the worker-pool size. The external endpoint is the
	// only tier that can meaningfully overload a remote dependency, so it
	// is the only one with pool bounding.
	Concurrency int
	// FetchTimeout bounds a single price fetch.
	FetchTimeout time.Duration
	// PriceTTL is the cache TTL applied to fetched prices.
	PriceTTL time.Duration
	// RateLimit / RateWindow bound fetches across processes. Zero limit
	// disables distributed limiting.
	RateLimit  int
	RateWindow time.Duration
}

// ExternalTier resolves prices by calling the external market-data endpoint
// directly (tier 4). Each success is written back to the cache so the next
// cycle resolves from tier 3 instead.
type ExternalTier struct {
	client  domain.MarketDataSource
	cache   domain.Cache
	limiter domain.RateLimiter
	cfg     ExternalTierConfig
	logger  *slog.Logger
}

// NewExternalTier creates the tier-4 resolver. limiter may be nil to skip
// distributed rate limiting.
func NewExternalTier(
	client domain.MarketDataSource,
	cache domain.Cache,
	limiter domain.RateLimiter,
	cfg ExternalTierConfig,
	logger *slog.Logger,
) *ExternalTier {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	return &ExternalTier{
		client:  client,
		cache:   cache,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "external_price_tier")),
	}
}

// Name returns the tier identifier.
func (t *ExternalTier) Name() string { return "external" }

// TryResolve fetches each token through a bounded worker pool. Per-token
// failures are logged and skipped; they never abort the batch.
func (t *ExternalTier) TryResolve(ctx context.Context, tokenIDs []string) (map[string]domain.PriceQuote, error) {
	quotes := make(map[string]domain.PriceQuote, len(tokenIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Concurrency)

	for _, tokenID := range tokenIDs {
		tokenID := tokenID
		g.Go(func() error {
			if !t.allow(gctx, tokenID) {
				return nil
			}

			fetchCtx, cancel := context.WithTimeout(gctx, t.cfg.FetchTimeout)
			price, err := t.client.FetchPrice(fetchCtx, tokenID)
			cancel()
			if err != nil {
				t.logger.DebugContext(gctx, "external price fetch failed",
					slog.String("token_id", tokenID),
					slog.String("error", err.Error()),
				)
				return nil
			}

			t.cache.Set(gctx, PriceKey(tokenID),
				strconv.FormatFloat(price, 'f', -1, 64), t.cfg.PriceTTL)

			mu.Lock()
			quotes[tokenID] = domain.PriceQuote{
				TokenID:   tokenID,
				Price:     price,
				Source:    domain.PriceSourceExternal,
				FetchedAt: time.Now().UTC(),
			}
			mu.Unlock()
			return nil
		})
	}

	// Workers swallow their own errors, so Wait only reflects ctx
	// cancellation.
	if err := g.Wait(); err != nil {
		return quotes, err
	}
	return quotes, nil
}

// allow consults the distributed rate limiter. The limiter fails open: if
// Redis is unreachable the local worker pool remains the only bound.
func (t *ExternalTier) allow(ctx context.Context, tokenID string) bool {
	if t.limiter == nil || t.cfg.RateLimit <= 0 {
		return true
	}

	allowed, err := t.limiter.Allow(ctx, rateLimitKey, t.cfg.RateLimit, t.cfg.RateWindow)
	if err != nil {
		t.logger.DebugContext(ctx, "rate limiter unavailable, proceeding",
			slog.String("error", err.Error()),
		)
		return true
	}
	if !allowed {
		t.logger.DebugContext(ctx, "external fetch rate limited",
			slog.String("token_id", tokenID),
		)
	}
	return allowed
}

// Compile-time interface check.
var _ Resolver = (*ExternalTier)(nil)
