// Package config defines the top-level configuration for the TP/SL monitor
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYCOOL_* environment
// variables.
type Config struct {
	Monitor    MonitorConfig    `toml:"monitor"`
	Pricing    PricingConfig    `toml:"pricing"`
	Mapping    MappingConfig    `toml:"mapping"`
	Breaker    BreakerConfig    `toml:"breaker"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Notify     NotifyConfig     `toml:"notify"`
	Archive    ArchiveConfig    `toml:"archive"`
	LogLevel   string           `toml:"log_level"`
}

// MonitorConfig holds the polling-loop parameters.
type MonitorConfig struct {
	// Interval is the pause between monitoring cycles.
	Interval duration `toml:"interval"`
	// StopTimeout bounds how long Stop waits for the in-flight cycle.
	StopTimeout duration `toml:"stop_timeout"`
	// LiquidationTimeout bounds a single liquidation call; it is longer
	// than other I/O timeouts because the call waits for settlement.
	LiquidationTimeout duration `toml:"liquidation_timeout"`
	// IOTimeout bounds every other per-order I/O call.
	IOTimeout duration `toml:"io_timeout"`
}

// PricingConfig holds the cascade tier parameters.
type PricingConfig struct {
	// ReplicaFreshness is the tier-1 acceptance window.
	ReplicaFreshness duration `toml:"replica_freshness"`
	// SnapshotFreshness is the tier-2 acceptance window, on the order of
	// the snapshot interval.
	SnapshotFreshness duration `toml:"snapshot_freshness"`
	// PriceTTL is the cache TTL applied to resolved prices.
	PriceTTL duration `toml:"price_ttl"`
	// ExternalConcurrency bounds tier-4 worker-pool fan-out.
	ExternalConcurrency int `toml:"external_concurrency"`
	// ExternalRateLimit / ExternalRateWindow bound tier-4 calls across all
	// processes sharing the Redis instance.
	ExternalRateLimit  int      `toml:"external_rate_limit"`
	ExternalRateWindow duration `toml:"external_rate_window"`
	// FetchTimeout bounds a single tier query.
	FetchTimeout duration `toml:"fetch_timeout"`
}

// MappingConfig holds identifier-mapping cache parameters.
type MappingConfig struct {
	TTL duration `toml:"ttl"`
}

// BreakerConfig holds circuit-breaker thresholds for the cache dependency.
type BreakerConfig struct {
	FailureThreshold int      `toml:"failure_threshold"`
	RecoveryTimeout  duration `toml:"recovery_timeout"`
	HalfOpenMaxCalls int      `toml:"half_open_max_calls"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	GammaHost     string `toml:"gamma_host"`
	DataHost      string `toml:"data_host"`
	RelayerHost   string `toml:"relayer_host"`
	RelayerAPIKey string `toml:"relayer_api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken string `toml:"telegram_token"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`

	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "15s", "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration baseline.
func Defaults() Config {
	return Config{
		Monitor: MonitorConfig{
			Interval:           duration{15 * time.Second},
			StopTimeout:        duration{30 * time.Second},
			LiquidationTimeout: duration{30 * time.Second},
			IOTimeout:          duration{5 * time.Second},
		},
		Pricing: PricingConfig{
			ReplicaFreshness:    duration{5 * time.Second},
			SnapshotFreshness:   duration{60 * time.Second},
			PriceTTL:            duration{25 * time.Second},
			ExternalConcurrency: 5,
			ExternalRateLimit:   30,
			ExternalRateWindow:  duration{10 * time.Second},
			FetchTimeout:        duration{5 * time.Second},
		},
		Mapping: MappingConfig{
			TTL: duration{5 * time.Minute},
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			RecoveryTimeout:  duration{60 * time.Second},
			HalfOpenMaxCalls: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Polymarket: PolymarketConfig{
			ClobHost:    "https://clob.polymarket.com",
			GammaHost:   "https://gamma-api.polymarket.com",
			DataHost:    "https://data-api.polymarket.com",
			RelayerHost: "https://relayer-v2.polymarket.com",
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			RetentionDays:  30,
			Interval:       duration{24 * time.Hour},
			Region:         "us-east-1",
			ForcePathStyle: true,
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks the configuration for inconsistencies and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Monitor.Interval.Duration <= 0 {
		errs = append(errs, "monitor: interval must be positive")
	}
	if c.Monitor.StopTimeout.Duration <= 0 {
		errs = append(errs, "monitor: stop_timeout must be positive")
	}

	if c.Pricing.ExternalConcurrency <= 0 {
		errs = append(errs, "pricing: external_concurrency must be positive")
	}
	if c.Pricing.ReplicaFreshness.Duration <= 0 {
		errs = append(errs, "pricing: replica_freshness must be positive")
	}
	if c.Pricing.SnapshotFreshness.Duration <= 0 {
		errs = append(errs, "pricing: snapshot_freshness must be positive")
	}
	if c.Pricing.PriceTTL.Duration <= 0 {
		errs = append(errs, "pricing: price_ttl must be positive")
	}

	if c.Breaker.FailureThreshold <= 0 {
		errs = append(errs, "breaker: failure_threshold must be positive")
	}
	if c.Breaker.HalfOpenMaxCalls <= 0 {
		errs = append(errs, "breaker: half_open_max_calls must be positive")
	}

	if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "") {
		errs = append(errs, "postgres: either dsn or host/database/user must be set")
	}
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.DataHost == "" {
		errs = append(errs, "polymarket: data_host must not be empty")
	}
	if c.Polymarket.RelayerHost == "" {
		errs = append(errs, "polymarket: relayer_host must not be empty")
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must be set when archival is enabled")
		}
		if c.Archive.RetentionDays <= 0 {
			errs = append(errs, "archive: retention_days must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
