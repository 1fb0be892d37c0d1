package domain

import (
	"context"
	"time"
)

// Cache is a TTL key/value cache fronting the distributed cache service.
// Implementations consult a circuit breaker before every call: when the
// breaker denies the attempt, or the underlying service fails, operations
// degrade to a miss or no-op rather than returning an error. Callers must
// therefore never treat a miss as authoritative absence.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool)
	// Set stores value under key for the given TTL. Best effort.
	Set(ctx context.Context, key, value string, ttl time.Duration)
	// BatchGet returns the present subset of keys in a single round trip.
	BatchGet(ctx context.Context, keys []string) map[string]string
	// Delete removes a single key. Best effort.
	Delete(ctx context.Context, key string)
	// DeletePattern removes all keys matching a glob pattern. Best effort.
	DeletePattern(ctx context.Context, pattern string)
	// Stats returns the rolling hit/miss/error counters.
	Stats() CacheStats
}

// CacheStats are rolling counters exposed for observability.
type CacheStats struct {
	Hits   int64
	Misses int64
	Errors int64
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
