package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.False(t, cfg.Server.TrustProxy)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, "/media", cfg.Media.URLPrefix)
	assert.Equal(t, int64(5<<20), cfg.Media.MaxImageBytes)
	assert.Equal(t, 20, cfg.RateLimit.Submissions)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "pass-events", cfg.Events.KafkaTopic)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRatio)
}

func TestLoadPrefixedValues(t *testing.T) {
	t.Setenv("MOUNTPASS_ADDR", ":9090")
	t.Setenv("MOUNTPASS_DATABASE_URL", "postgres://localhost/mountpass")
	t.Setenv("MOUNTPASS_REDIS_POOL_SIZE", "32")
	t.Setenv("MOUNTPASS_RATELIMIT_WINDOW", "10m")
	t.Setenv("MOUNTPASS_SUBMITTER_REFRESH", "true")
	t.Setenv("MOUNTPASS_EVENTS_ENABLED", "true")
	t.Setenv("MOUNTPASS_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("MOUNTPASS_TRUST_PROXY", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://localhost/mountpass", cfg.Database.URL)
	assert.Equal(t, 32, cfg.Redis.PoolSize)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.Window)
	assert.True(t, cfg.Moderation.RefreshSubmitter)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.KafkaBrokers)
	assert.True(t, cfg.Server.TrustProxy)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("events without brokers", func(t *testing.T) {
		t.Setenv("MOUNTPASS_EVENTS_ENABLED", "true")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kafka brokers")
	})

	t.Run("sample ratio above one", func(t *testing.T) {
		t.Setenv("MOUNTPASS_TRACE_SAMPLE_RATIO", "1.5")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sample ratio")
	})

	t.Run("malformed duration", func(t *testing.T) {
		t.Setenv("MOUNTPASS_REQUEST_TIMEOUT", "soon")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("disabled rate limit skips its checks", func(t *testing.T) {
		t.Setenv("MOUNTPASS_RATELIMIT_DISABLED", "true")
		t.Setenv("MOUNTPASS_RATELIMIT_SUBMISSIONS", "0")
		_, err := Load()
		require.NoError(t, err)
	})
}
