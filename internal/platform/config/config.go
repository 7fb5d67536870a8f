package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string
	LogLevel slog.Level
	HTTP     HTTPConfig

	// TrustedProxies lists addresses or CIDRs whose forwarding headers are honored.
	TrustedProxies []string

	// DatabaseURL selects the Postgres record store; empty keeps records in memory.
	DatabaseURL string
	Redis       RedisConfig

	JWTSigningKey string
	TokenTTL      time.Duration

	LoginAttempts     int
	LoginWindow       time.Duration
	LoginLockDuration time.Duration

	DirectoryFile   string
	DevSeedPassword string
	SeedSample      bool

	KafkaBrokers []string
	KafkaTopic   string

	PublicRedact       bool
	AttachmentMaxBytes int64
}

// HTTPConfig holds the server timeouts.
type HTTPConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

// RedisConfig configures the optional Redis attachment store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const (
	defaultTokenTTL           = 8 * time.Hour
	defaultAttachmentMaxBytes = 10 << 20
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("DISPOSISI_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:     addr,
		LogLevel: parseLevel(os.Getenv("LOG_LEVEL")),
		HTTP: HTTPConfig{
			ReadHeaderTimeout: envDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       envDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      envDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       envDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			MaxHeaderBytes:    envInt("HTTP_MAX_HEADER_BYTES", 1<<20),
		},
		TrustedProxies: envList("TRUSTED_PROXIES"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		JWTSigningKey:      jwtSigningKey,
		TokenTTL:           envDuration("TOKEN_TTL", defaultTokenTTL),
		LoginAttempts:      envInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:        envDuration("LOGIN_WINDOW", 15*time.Minute),
		LoginLockDuration:  envDuration("LOGIN_LOCK_DURATION", 15*time.Minute),
		DirectoryFile:      os.Getenv("DIRECTORY_FILE"),
		DevSeedPassword:    os.Getenv("DEV_SEED_PASSWORD"),
		SeedSample:         envBool("SEED_SAMPLE", false),
		KafkaBrokers:       envList("KAFKA_BROKERS"),
		KafkaTopic:         envString("KAFKA_AUDIT_TOPIC", "disposisi.audit"),
		PublicRedact:       envBool("PUBLIC_REDACT", true),
		AttachmentMaxBytes: int64(envInt("ATTACHMENT_MAX_BYTES", defaultAttachmentMaxBytes)),
	}
}

func parseLevel(v string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
