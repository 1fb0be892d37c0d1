package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skudskud/polycool-copy-sub000/internal/breaker"
	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// TTLCache implements domain.Cache over Redis with every call guarded by a
// circuit breaker. When the breaker denies an attempt, or Redis fails, the
// operation degrades to a miss or no-op: the cache is an accelerator, never
// a source of truth, so callers fall through to the next tier.
type TTLCache struct {
	rdb     *redis.Client
	breaker *breaker.Breaker
	logger  *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errs   atomic.Int64
}

// NewTTLCache creates a TTLCache backed by the given Client and guarded by
// the given breaker.
func NewTTLCache(c *Client, b *breaker.Breaker, logger *slog.Logger) *TTLCache {
	return &TTLCache{
		rdb:     c.Underlying(),
		breaker: b,
		logger:  logger.With(slog.String("component", "ttl_cache")),
	}
}

// Get returns the value for key and whether it was present.
func (tc *TTLCache) Get(ctx context.Context, key string) (string, bool) {
	if !tc.breaker.CanAttempt() {
		tc.misses.Add(1)
		return "", false
	}

	val, err := tc.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			tc.breaker.RecordSuccess()
			tc.misses.Add(1)
			return "", false
		}
		tc.recordError(ctx, "get", key, err)
		return "", false
	}

	tc.breaker.RecordSuccess()
	tc.hits.Add(1)
	return val, true
}

// Set stores value under key for the given TTL. Failures are swallowed
// after updating the breaker and error counter.
func (tc *TTLCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if !tc.breaker.CanAttempt() {
		return
	}

	if err := tc.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		tc.recordError(ctx, "set", key, err)
		return
	}
	tc.breaker.RecordSuccess()
}

// BatchGet returns the present subset of keys using a single pipeline; the
// cascade may query dozens of tokens per cycle and per-key round trips
// dominate latency at that size.
func (tc *TTLCache) BatchGet(ctx context.Context, keys []string) map[string]string {
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result
	}
	if !tc.breaker.CanAttempt() {
		tc.misses.Add(int64(len(keys)))
		return result
	}

	pipe := tc.rdb.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(keys))
	for _, k := range keys {
		cmds[k] = pipe.Get(ctx, k)
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		tc.recordError(ctx, "batch_get", "", err)
		return result
	}
	tc.breaker.RecordSuccess()

	for k, cmd := range cmds {
		val, err := cmd.Result()
		if err != nil {
			tc.misses.Add(1)
			continue
		}
		tc.hits.Add(1)
		result[k] = val
	}
	return result
}

// Delete removes a single key.
func (tc *TTLCache) Delete(ctx context.Context, key string) {
	if !tc.breaker.CanAttempt() {
		return
	}
	if err := tc.rdb.Del(ctx, key).Err(); err != nil {
		tc.recordError(ctx, "delete", key, err)
		return
	}
	tc.breaker.RecordSuccess()
}

// DeletePattern removes all keys matching a glob pattern using SCAN so the
// server is never blocked by a KEYS call.
func (tc *TTLCache) DeletePattern(ctx context.Context, pattern string) {
	if !tc.breaker.CanAttempt() {
		return
	}

	iter := tc.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		tc.recordError(ctx, "delete_pattern", pattern, err)
		return
	}

	if len(keys) > 0 {
		if err := tc.rdb.Del(ctx, keys...).Err(); err != nil {
			tc.recordError(ctx, "delete_pattern", pattern, err)
			return
		}
	}
	tc.breaker.RecordSuccess()
}

// Stats returns the rolling hit/miss/error counters.
func (tc *TTLCache) Stats() domain.CacheStats {
	return domain.CacheStats{
		Hits:   tc.hits.Load(),
		Misses: tc.misses.Load(),
		Errors: tc.errs.Load(),
	}
}

func (tc *TTLCache) recordError(ctx context.Context, op, key string, err error) {
	tc.breaker.RecordFailure()
	tc.errs.Add(1)
	tc.logger.WarnContext(ctx, "cache operation failed",
		slog.String("op", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}

// Compile-time interface check.
var _ domain.Cache = (*TTLCache)(nil)
