package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/skudskud/polycool-copy-sub000/internal/blob/s3"
	"github.com/skudskud/polycool-copy-sub000/internal/breaker"
	"github.com/skudskud/polycool-copy-sub000/internal/cache/redis"
	"github.com/skudskud/polycool-copy-sub000/internal/config"
	"github.com/skudskud/polycool-copy-sub000/internal/domain"
	"github.com/skudskud/polycool-copy-sub000/internal/notify"
	"github.com/skudskud/polycool-copy-sub000/internal/platform/polymarket"
	"github.com/skudskud/polycool-copy-sub000/internal/pricing"
	"github.com/skudskud/polycool-copy-sub000/internal/service"
	"github.com/skudskud/polycool-copy-sub000/internal/store/postgres"
)

// Dependencies bundles everything the monitor needs to run. It is built by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	OrderStore       domain.OrderStore
	TransactionStore domain.TransactionStore
	MarketStore      domain.MarketStore

	// Cache layer
	Cache       domain.Cache
	RateLimiter domain.RateLimiter
	Breaker     *breaker.Breaker

	// Pricing
	Cascade *pricing.Cascade

	// Services
	Registry *service.OrderRegistry
	Monitor  *service.Monitor

	// Optional cold-storage archiver; nil when archival is disabled.
	Archiver domain.Archiver
}

// Wire constructs every concrete implementation from the configuration and
// returns the bundle together with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.OrderStore = postgres.NewOrderStore(pool)
	deps.TransactionStore = postgres.NewTransactionStore(pool)
	deps.MarketStore = postgres.NewMarketStore(pool)
	replicaPrices := postgres.NewReplicaPriceStore(pool)
	snapshotPrices := postgres.NewSnapshotPriceStore(pool)

	// --- Redis behind the circuit breaker ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Breaker = breaker.New(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout.Duration,
		HalfOpenMaxCalls: cfg.Breaker.HalfOpenMaxCalls,
	})
	deps.Cache = redis.NewTTLCache(redisClient, deps.Breaker, logger)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- External platform clients ---
	clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost)
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	data := polymarket.NewDataClient(cfg.Polymarket.DataHost)
	relayer := polymarket.NewRelayerClient(cfg.Polymarket.RelayerHost, cfg.Polymarket.RelayerAPIKey)

	// --- Price cascade, cheapest tier first ---
	deps.Cascade = pricing.NewCascade(logger,
		pricing.NewReplicaTier(replicaPrices, cfg.Pricing.ReplicaFreshness.Duration, cfg.Pricing.FetchTimeout.Duration),
		pricing.NewSnapshotTier(snapshotPrices, cfg.Pricing.SnapshotFreshness.Duration, cfg.Pricing.FetchTimeout.Duration),
		pricing.NewCacheTier(deps.Cache),
		pricing.NewExternalTier(clob, deps.Cache, deps.RateLimiter, pricing.ExternalTierConfig{
			Concurrency:  cfg.Pricing.ExternalConcurrency,
			FetchTimeout: cfg.Pricing.FetchTimeout.Duration,
			PriceTTL:     cfg.Pricing.PriceTTL.Duration,
			RateLimit:    cfg.Pricing.ExternalRateLimit,
			RateWindow:   cfg.Pricing.ExternalRateWindow.Duration,
		}, logger),
	)

	// --- Notifications ---
	var notifier domain.NotificationSender = notify.NoopNotifier{}
	if cfg.Notify.TelegramToken != "" {
		notifier = notify.NewTelegramNotifier(cfg.Notify.TelegramToken)
	}

	// --- Services ---
	mapper := service.NewTokenMapper(deps.MarketStore, deps.Cache, cfg.Mapping.TTL.Duration, logger)
	deps.Registry = service.NewOrderRegistry(deps.OrderStore, mapper, data, logger)

	executor := service.NewTriggerExecutor(
		deps.OrderStore,
		deps.TransactionStore,
		data,
		gamma,
		relayer,
		notifier,
		service.ExecutorConfig{
			IOTimeout:          cfg.Monitor.IOTimeout.Duration,
			LiquidationTimeout: cfg.Monitor.LiquidationTimeout.Duration,
		},
		logger,
	)
	deps.Monitor = service.NewMonitor(deps.OrderStore, deps.Cascade, executor, service.MonitorConfig{
		Interval:    cfg.Monitor.Interval.Duration,
		StopTimeout: cfg.Monitor.StopTimeout.Duration,
	}, logger)

	// --- Optional S3 archiver ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.OrderStore,
			deps.TransactionStore,
			logger,
		)
	}

	return deps, cleanup, nil
}
