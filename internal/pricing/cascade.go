// Package pricing implements the multi-tier price-resolution cascade. Tiers
// are ordered by increasing latency and decreasing freshness guarantee but
// increasing coverage: cheap sources are consulted first and the expensive
// external endpoint is the last resort.
package pricing

import (
	"context"
	"log/slog"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// Resolver is one tier in the cascade. TryResolve returns quotes for the
// subset of tokenIDs it could resolve; ids absent from the map are carried
// forward to the next tier. A non-nil error means the whole tier is
// unavailable this round — the cascade logs it and carries every id
// forward, so one bad source never blocks the others.
type Resolver interface {
	Name() string
	TryResolve(ctx context.Context, tokenIDs []string) (map[string]domain.PriceQuote, error)
}

// Cascade folds a token batch over an ordered list of resolvers. Adding or
// removing a tier is a wiring change, not a control-flow change.
type Cascade struct {
	resolvers []Resolver
	logger    *slog.Logger
}

// NewCascade creates a Cascade over the given resolvers, consulted in
// order.
func NewCascade(logger *slog.Logger, resolvers ...Resolver) *Cascade {
	return &Cascade{
		resolvers: resolvers,
		logger:    logger.With(slog.String("component", "price_cascade")),
	}
}

// ResolvePrices resolves a current price per token id. Tokens no tier could
// resolve are simply absent from the result; callers must treat absence as
// "skip this evaluation", never as a zero price.
func (c *Cascade) ResolvePrices(ctx context.Context, tokenIDs []string) map[string]domain.PriceQuote {
	resolved := make(map[string]domain.PriceQuote, len(tokenIDs))

	remaining := dedupe(tokenIDs)
	for _, r := range c.resolvers {
		if len(remaining) == 0 {
			break
		}

		quotes, err := r.TryResolve(ctx, remaining)
		if err != nil {
			c.logger.WarnContext(ctx, "price tier unavailable",
				slog.String("tier", r.Name()),
				slog.Int("pending", len(remaining)),
				slog.String("error", err.Error()),
			)
			continue
		}

		next := remaining[:0]
		for _, id := range remaining {
			if q, ok := quotes[id]; ok {
				resolved[id] = q
			} else {
				next = append(next, id)
			}
		}
		remaining = next
	}

	if len(remaining) > 0 {
		c.logger.DebugContext(ctx, "prices unresolved after all tiers",
			slog.Int("count", len(remaining)),
		)
	}
	return resolved
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
