// Package app owns the application lifecycle: it wires the stores, cache,
// cascade, and services together and runs the monitor loop (plus the
// optional archival ticker) until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skudskud/polycool-copy-sub000/internal/config"
)

// App is the root application object.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the monitor loop and the optional
// archiver, and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting tp/sl monitor",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Duration("interval", a.cfg.Monitor.Interval.Duration),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		deps.Monitor.Start(gctx)
		<-gctx.Done()
		deps.Monitor.Stop()
		return nil
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiver(gctx, deps)
		})
	}

	return g.Wait()
}

// runArchiver periodically copies aged terminal records to cold storage.
func (a *App) runArchiver(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(a.cfg.Archive.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)

		if n, err := deps.Archiver.ArchiveOrders(ctx, cutoff); err != nil {
			a.logger.ErrorContext(ctx, "order archival failed", slog.String("error", err.Error()))
		} else if n > 0 {
			a.logger.InfoContext(ctx, "archived orders", slog.Int64("count", n))
		}

		if n, err := deps.Archiver.ArchiveTransactions(ctx, cutoff); err != nil {
			a.logger.ErrorContext(ctx, "transaction archival failed", slog.String("error", err.Error()))
		} else if n > 0 {
			a.logger.InfoContext(ctx, "archived transactions", slog.Int64("count", n))
		}
	}
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
