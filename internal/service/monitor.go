package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// PriceResolver resolves a current price per token id. Tokens it could not
// resolve are absent from the result.
type PriceResolver interface {
	ResolvePrices(ctx context.Context, tokenIDs []string) map[string]domain.PriceQuote
}

// MonitorConfig holds the polling-loop parameters.
type MonitorConfig struct {
	// Interval is the pause between cycles, measured from the end of one
	// cycle to the start of the next so slow cycles never overlap.
	Interval time.Duration
	// StopTimeout bounds how long Stop waits for the in-flight cycle.
	StopTimeout time.Duration
}

// Monitor is the polling loop: each cycle it loads every active order,
// resolves prices for the batch through the cascade, and hands each order to
// the executor. Orders are processed sequentially; one order's failure is
// logged and never aborts the rest of the cycle.
type Monitor struct {
	orders   domain.OrderStore
	resolver PriceResolver
	executor *TriggerExecutor
	cfg      MonitorConfig
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewMonitor creates a Monitor.
func NewMonitor(orders domain.OrderStore, resolver PriceResolver, executor *TriggerExecutor, cfg MonitorConfig, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 30 * time.Second
	}
	return &Monitor{
		orders:   orders,
		resolver: resolver,
		executor: executor,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "monitor")),
	}
}

// Start launches the polling loop. Calling Start on a running monitor is a
// no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.loop(loopCtx)
	m.logger.InfoContext(ctx, "monitor started",
		slog.Duration("interval", m.cfg.Interval),
	)
}

// Stop signals the loop to exit and waits up to StopTimeout for the
// in-flight cycle to finish. Calling Stop on a stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	cancel()
	select {
	case <-done:
		m.logger.Info("monitor stopped")
	case <-time.After(m.cfg.StopTimeout):
		m.logger.Warn("monitor stop timed out waiting for cycle")
	}
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	// Immediate first cycle so a restart does not wait a full interval.
	m.RunCycle(ctx)

	timer := time.NewTimer(m.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		m.RunCycle(ctx)

		if ctx.Err() != nil {
			return
		}
		timer.Reset(m.cfg.Interval)
	}
}

// RunCycle executes one monitoring pass. Exported so operational tooling can
// force a pass outside the ticker.
func (m *Monitor) RunCycle(ctx context.Context) {
	start := time.Now()

	orders, err := m.orders.ListActive(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "list active orders failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if len(orders) == 0 {
		return
	}

	tokenIDs := make([]string, 0, len(orders))
	for _, o := range orders {
		tokenIDs = append(tokenIDs, o.TokenID)
	}
	prices := m.resolver.ResolvePrices(ctx, tokenIDs)

	var checked, failed int
	for _, order := range orders {
		if ctx.Err() != nil {
			m.logger.InfoContext(ctx, "cycle interrupted",
				slog.Int("checked", checked),
				slog.Int("remaining", len(orders)-checked),
			)
			return
		}

		var quote *domain.PriceQuote
		if q, ok := prices[order.TokenID]; ok {
			quote = &q
		}

		if err := m.executor.CheckOrder(ctx, order, quote); err != nil {
			failed++
			m.logger.ErrorContext(ctx, "order check failed",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
		checked++
	}

	m.logger.InfoContext(ctx, "cycle complete",
		slog.Int("orders", len(orders)),
		slog.Int("prices", len(prices)),
		slog.Int("failed", failed),
		slog.Duration("elapsed", time.Since(start)),
	)
}
