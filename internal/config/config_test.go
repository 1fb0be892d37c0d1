package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Addr = "localhost:6379"
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[monitor]
interval = "5s"

[pricing]
replica_freshness = "2s"
external_concurrency = 8

[redis]
addr = "redis.internal:6380"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 5*time.Second, cfg.Monitor.Interval.Duration)
	require.Equal(t, 2*time.Second, cfg.Pricing.ReplicaFreshness.Duration)
	require.Equal(t, 8, cfg.Pricing.ExternalConcurrency)
	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)

	// Untouched sections keep their defaults.
	require.Equal(t, 25*time.Second, cfg.Pricing.PriceTTL.Duration)
	require.Equal(t, 3, cfg.Breaker.FailureThreshold)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := writeConfig(t, `
[redis]
addr = "from-file:6379"
`)

	t.Setenv("POLYCOOL_REDIS_ADDR", "from-env:6379")
	t.Setenv("POLYCOOL_MONITOR_INTERVAL", "45s")
	t.Setenv("POLYCOOL_BREAKER_FAILURE_THRESHOLD", "7")
	t.Setenv("POLYCOOL_POSTGRES_RUN_MIGRATIONS", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "from-env:6379", cfg.Redis.Addr)
	require.Equal(t, 45*time.Second, cfg.Monitor.Interval.Duration)
	require.Equal(t, 7, cfg.Breaker.FailureThreshold)
	require.False(t, cfg.Postgres.RunMigrations)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "verbose"
	cfg.Redis.Addr = ""
	cfg.Breaker.FailureThreshold = 0
	cfg.Polymarket.ClobHost = ""

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "log_level")
	require.Contains(t, err.Error(), "redis")
	require.Contains(t, err.Error(), "failure_threshold")
	require.Contains(t, err.Error(), "clob_host")
}

func TestValidateArchiveRequiresBucket(t *testing.T) {
	cfg := Defaults()
	cfg.Archive.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "bucket")
}
