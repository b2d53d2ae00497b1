package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"NAMEX_ADDR", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS", "EXPIRY_DAYS",
		"RESTORATION_EXPIRY_DAYS", "CHECKOUT_LOCK_TTL", "EXPIRY_TIMEZONE", "SOLR_CORE"} {
		t.Setenv(k, "")
	}
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "namex.emailer", cfg.Kafka.NotificationTopic)
	assert.Equal(t, "possible.conflicts", cfg.Solr.Core)
	assert.Equal(t, 56, cfg.Expiry.Days)
	assert.Equal(t, 421, cfg.Expiry.RestorationDays)
	assert.Equal(t, 30*time.Second, cfg.CheckoutLockTTL)
	assert.Equal(t, "America/Vancouver", cfg.Expiry.Timezone)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,a:9092")
	t.Setenv("EXPIRY_DAYS", "30")
	t.Setenv("CHECKOUT_LOCK_TTL", "5s")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30, cfg.Expiry.Days)
	assert.Equal(t, 5*time.Second, cfg.CheckoutLockTTL)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Run("days", func(t *testing.T) {
		t.Setenv("EXPIRY_DAYS", "-1")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("duration", func(t *testing.T) {
		t.Setenv("CHECKOUT_LOCK_TTL", "soon")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("timezone", func(t *testing.T) {
		t.Setenv("EXPIRY_TIMEZONE", "Mars/Olympus")
		_, err := FromEnv()
		assert.Error(t, err)
	})
}
