package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// MappingKey is the cache key for a token's market/outcome mapping.
func MappingKey(tokenID string) string {
	return "tokenmap:" + tokenID
}

// TokenMapper resolves outcome token ids to their owning market and outcome
// label. Mappings are immutable, so they are cached aggressively; on a cache
// miss the mapper falls back to scanning market metadata for the token.
type TokenMapper struct {
	markets domain.MarketStore
	cache   domain.Cache
	ttl     time.Duration
	logger  *slog.Logger
}

// NewTokenMapper creates a TokenMapper with the given cache TTL.
func NewTokenMapper(markets domain.MarketStore, cache domain.Cache, ttl time.Duration, logger *slog.Logger) *TokenMapper {
	return &TokenMapper{
		markets: markets,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With(slog.String("component", "token_mapper")),
	}
}

// Resolve returns the mapping for one token id, consulting the cache first.
func (m *TokenMapper) Resolve(ctx context.Context, tokenID string) (domain.TokenMapping, error) {
	mappings, err := m.ResolveBatch(ctx, []string{tokenID})
	if err != nil {
		return domain.TokenMapping{}, err
	}
	mapping, ok := mappings[tokenID]
	if !ok {
		return domain.TokenMapping{}, fmt.Errorf("token_mapper: token %s: %w", tokenID, domain.ErrNotFound)
	}
	return mapping, nil
}

// ResolveBatch resolves mappings for a batch of token ids. Tokens that no
// known market carries are absent from the result rather than an error, so
// one unknown token never fails the batch.
func (m *TokenMapper) ResolveBatch(ctx context.Context, tokenIDs []string) (map[string]domain.TokenMapping, error) {
	out := make(map[string]domain.TokenMapping, len(tokenIDs))

	keys := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		keys = append(keys, MappingKey(id))
	}

	cached := m.cache.BatchGet(ctx, keys)
	var missing []string
	for _, id := range tokenIDs {
		raw, ok := cached[MappingKey(id)]
		if !ok {
			missing = append(missing, id)
			continue
		}
		var mapping domain.TokenMapping
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			// Corrupt entry; drop it and re-resolve from the store.
			m.cache.Delete(ctx, MappingKey(id))
			missing = append(missing, id)
			continue
		}
		out[id] = mapping
	}

	if len(missing) == 0 {
		return out, nil
	}

	markets, err := m.markets.GetByTokenIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("token_mapper: load markets: %w", err)
	}

	want := make(map[string]struct{}, len(missing))
	for _, id := range missing {
		want[id] = struct{}{}
	}

	for _, market := range markets {
		for i, tok := range market.TokenIDs {
			if _, ok := want[tok]; !ok {
				continue
			}
			outcome := ""
			if i < len(market.Outcomes) {
				outcome = market.Outcomes[i]
			}
			mapping := domain.TokenMapping{
				MarketID:    market.ID,
				ConditionID: market.ConditionID,
				Outcome:     outcome,
			}
			out[tok] = mapping

			if raw, err := json.Marshal(mapping); err == nil {
				m.cache.Set(ctx, MappingKey(tok), string(raw), m.ttl)
			}
		}
	}

	for _, id := range missing {
		if _, ok := out[id]; !ok {
			m.logger.WarnContext(ctx, "no market found for token",
				slog.String("token_id", id),
			)
		}
	}
	return out, nil
}
