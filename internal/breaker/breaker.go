// Package breaker implements a circuit breaker guarding calls to the
// distributed cache service. The breaker is an injected dependency owned by
// the caller, not a process singleton, so tests can substitute a fresh
// instance per case. State is deliberately not persisted: a restarted
// process should re-probe the dependency.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the breaker's current mode.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config holds the breaker thresholds.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold int
	// RecoveryTimeout is how long the breaker stays open before probing.
	RecoveryTimeout time.Duration
	// HalfOpenMaxCalls is the number of probe calls allowed while
	// half-open; that many consecutive successes close the breaker.
	HalfOpenMaxCalls int
}

// DefaultConfig returns the standard thresholds: 3 failures to open, 60s
// recovery, 3 half-open probes.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// Snapshot is a point-in-time view of the breaker for observability.
type Snapshot struct {
	State            State
	FailureCount     int
	HalfOpenSuccess  int
	LastFailureAt    time.Time
}

// Breaker is a three-state circuit breaker. All methods are safe for
// concurrent use.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu              sync.Mutex
	state           State
	failureCount    int
	halfOpenCalls   int
	halfOpenSuccess int
	lastFailureAt   time.Time
}

// New creates a closed Breaker with the given config. Zero or negative
// thresholds fall back to the defaults.
func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return &Breaker{
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
}

// NewWithClock creates a Breaker with an injected clock for tests.
func NewWithClock(cfg Config, now func() time.Time) *Breaker {
	b := New(cfg)
	b.now = now
	return b
}

// CanAttempt reports whether a real call to the dependency may proceed.
// While open it returns false until the recovery timeout has elapsed, at
// which point the breaker moves to half-open. Each half-open consultation
// consumes one of the allowed probe slots.
func (b *Breaker) CanAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailureAt) > b.cfg.RecoveryTimeout {
			b.state = StateHalfOpen
			b.halfOpenCalls = 1
			b.halfOpenSuccess = 0
			return true
		}
		return false
	case StateHalfOpen:
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			return false
		}
		b.halfOpenCalls++
		return true
	}
	return false
}

// RecordSuccess reports a successful call. Enough consecutive half-open
// successes close the breaker and reset the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.cfg.HalfOpenMaxCalls {
			b.state = StateClosed
			b.failureCount = 0
			b.halfOpenCalls = 0
			b.halfOpenSuccess = 0
		}
	}
}

// RecordFailure reports a failed call. Reaching the failure threshold while
// closed opens the breaker; any half-open failure reopens it immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = b.now()

	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = StateOpen
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.halfOpenCalls = 0
		b.halfOpenSuccess = 0
	}
}

// Snapshot returns the current state and counters.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:           b.state,
		FailureCount:    b.failureCount,
		HalfOpenSuccess: b.halfOpenSuccess,
		LastFailureAt:   b.lastFailureAt,
	}
}

// ExecuteWithFallback runs primary through the breaker b. When the breaker
// denies the attempt, or primary returns an error, fallback is invoked and
// its result returned. The fallback is expected to already be safe (for
// example a direct external call) and must not depend on the guarded
// dependency.
func ExecuteWithFallback[T any](
	ctx context.Context,
	b *Breaker,
	primary func(context.Context) (T, error),
	fallback func(context.Context) (T, error),
) (T, error) {
	if !b.CanAttempt() {
		return fallback(ctx)
	}

	out, err := primary(ctx)
	if err != nil {
		b.RecordFailure()
		return fallback(ctx)
	}

	b.RecordSuccess()
	return out, nil
}

// String implements fmt.Stringer for log output.
func (s Snapshot) String() string {
	return fmt.Sprintf("%s failures=%d half_open_success=%d", s.State, s.FailureCount, s.HalfOpenSuccess)
}
