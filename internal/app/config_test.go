package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 60*time.Minute, cfg.DraftCacheTTL)
	require.Equal(t, "default", cfg.PublishQueue)
	require.Equal(t, 10, cfg.PublishMaxRetry)
	require.Equal(t, 5, cfg.WorkerConcurrency)
	require.Equal(t, "catalog.products", cfg.ProductFeedChannel)
	require.Equal(t, "@every 15m", cfg.SweepCron)
	require.Equal(t, 500, cfg.SweepBatchSize)
	require.False(t, cfg.IsProduction())
	require.Equal(t, "127.0.0.1:6379", cfg.Redis().Addr)
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DRAFT_CACHE_TTL", "5m")
	t.Setenv("PUBLISH_QUEUE", "catalog")
	t.Setenv("PUBLISH_DELAY", "0s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SWEEP_CRON", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Empty(t, cfg.SweepCron)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 5*time.Minute, cfg.DraftCacheTTL)
	require.Equal(t, "catalog", cfg.PublishQueue)
	require.Zero(t, cfg.PublishDelay)
	require.Equal(t, 3, cfg.Redis().DB)
}

func TestLoadConfigRejectsNonPositiveConcurrency(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("WORKER_CONCURRENCY", "0")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsNonPositiveSweepBatch(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SWEEP_BATCH_SIZE", "0")

	_, err := LoadConfig()
	require.Error(t, err)
}
