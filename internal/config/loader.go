package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYCOOL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYCOOL_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Monitor ──
	setDuration(&cfg.Monitor.Interval, "POLYCOOL_MONITOR_INTERVAL")
	setDuration(&cfg.Monitor.StopTimeout, "POLYCOOL_MONITOR_STOP_TIMEOUT")
	setDuration(&cfg.Monitor.LiquidationTimeout, "POLYCOOL_MONITOR_LIQUIDATION_TIMEOUT")
	setDuration(&cfg.Monitor.IOTimeout, "POLYCOOL_MONITOR_IO_TIMEOUT")

	// ── Pricing ──
	setDuration(&cfg.Pricing.ReplicaFreshness, "POLYCOOL_PRICING_REPLICA_FRESHNESS")
	setDuration(&cfg.Pricing.SnapshotFreshness, "POLYCOOL_PRICING_SNAPSHOT_FRESHNESS")
	setDuration(&cfg.Pricing.PriceTTL, "POLYCOOL_PRICING_PRICE_TTL")
	setInt(&cfg.Pricing.ExternalConcurrency, "POLYCOOL_PRICING_EXTERNAL_CONCURRENCY")
	setInt(&cfg.Pricing.ExternalRateLimit, "POLYCOOL_PRICING_EXTERNAL_RATE_LIMIT")
	setDuration(&cfg.Pricing.ExternalRateWindow, "POLYCOOL_PRICING_EXTERNAL_RATE_WINDOW")
	setDuration(&cfg.Pricing.FetchTimeout, "POLYCOOL_PRICING_FETCH_TIMEOUT")

	// ── Mapping ──
	setDuration(&cfg.Mapping.TTL, "POLYCOOL_MAPPING_TTL")

	// ── Breaker ──
	setInt(&cfg.Breaker.FailureThreshold, "POLYCOOL_BREAKER_FAILURE_THRESHOLD")
	setDuration(&cfg.Breaker.RecoveryTimeout, "POLYCOOL_BREAKER_RECOVERY_TIMEOUT")
	setInt(&cfg.Breaker.HalfOpenMaxCalls, "POLYCOOL_BREAKER_HALF_OPEN_MAX_CALLS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYCOOL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYCOOL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYCOOL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYCOOL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYCOOL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYCOOL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYCOOL_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYCOOL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYCOOL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYCOOL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYCOOL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYCOOL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYCOOL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYCOOL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYCOOL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYCOOL_REDIS_TLS_ENABLED")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYCOOL_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYCOOL_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLYCOOL_POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.RelayerHost, "POLYCOOL_POLYMARKET_RELAYER_HOST")
	setStr(&cfg.Polymarket.RelayerAPIKey, "POLYCOOL_POLYMARKET_RELAYER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYCOOL_NOTIFY_TELEGRAM_TOKEN")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "POLYCOOL_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "POLYCOOL_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "POLYCOOL_ARCHIVE_INTERVAL")
	setStr(&cfg.Archive.Endpoint, "POLYCOOL_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "POLYCOOL_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "POLYCOOL_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "POLYCOOL_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "POLYCOOL_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "POLYCOOL_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "POLYCOOL_ARCHIVE_FORCE_PATH_STYLE")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "POLYCOOL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
