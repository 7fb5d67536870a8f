package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"DISPOSISI_ADDR", "LOG_LEVEL", "DATABASE_URL", "REDIS_URL", "TOKEN_TTL",
		"KAFKA_BROKERS", "KAFKA_AUDIT_TOPIC", "PUBLIC_REDACT", "SEED_SAMPLE", "ATTACHMENT_MAX_BYTES",
		"LOGIN_MAX_ATTEMPTS", "LOGIN_WINDOW", "LOGIN_LOCK_DURATION", "HTTP_WRITE_TIMEOUT", "HTTP_MAX_HEADER_BYTES", "TRUSTED_PROXIES"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 8*time.Hour, cfg.TokenTTL)
	assert.Nil(t, cfg.KafkaBrokers)
	assert.Equal(t, "disposisi.audit", cfg.KafkaTopic)
	assert.True(t, cfg.PublicRedact, "public responses are redacted unless disabled")
	assert.False(t, cfg.SeedSample)
	assert.Equal(t, int64(10<<20), cfg.AttachmentMaxBytes)
	assert.NotEmpty(t, cfg.JWTSigningKey)
	assert.Equal(t, 5, cfg.LoginAttempts)
	assert.Nil(t, cfg.TrustedProxies, "forwarding headers are ignored unless proxies are configured")
	assert.Equal(t, 30*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, 1<<20, cfg.HTTP.MaxHeaderBytes)
	assert.Equal(t, 15*time.Minute, cfg.LoginWindow)
	assert.Equal(t, 15*time.Minute, cfg.LoginLockDuration)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DISPOSISI_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("PUBLIC_REDACT", "false")
	t.Setenv("SEED_SAMPLE", "true")
	t.Setenv("REDIS_POOL_SIZE", "not-a-number")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "3")
	t.Setenv("HTTP_WRITE_TIMEOUT", "2m")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.PublicRedact)
	assert.True(t, cfg.SeedSample)
	assert.Equal(t, 10, cfg.Redis.PoolSize, "invalid numbers fall back to the default")
	assert.Equal(t, 3, cfg.LoginAttempts)
	assert.Equal(t, 2*time.Minute, cfg.HTTP.WriteTimeout)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.TrustedProxies)
}
