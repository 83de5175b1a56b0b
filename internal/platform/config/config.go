package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	JWTSigningKey  string
	AdminTokenHash string
}

// RedisConfig captures aggregate cache connection settings.
// An empty URL means redis is not configured and the in-memory cache is
// used instead.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig captures event store connection settings.
// An empty URL means postgres is not configured and the in-memory event
// store is used instead (single-process, non-durable; dev only).
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig captures detector ingest settings. Empty brokers disable the
// consumer.
type KafkaConfig struct {
	Brokers string
	Topic   string
	Group   string
}

// LedgerConfig captures ledger behavior knobs.
type LedgerConfig struct {
	// Timezone is the IANA zone used to bucket events into calendar days.
	// One zone per deployment; day buckets are derived state and can be
	// re-bucketed by replay if the zone ever changes.
	Timezone          string
	ReconcileInterval time.Duration
}

// Config is the full service configuration.
type Config struct {
	Server   Server
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Ledger   LedgerConfig
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("JAPA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	timezone := os.Getenv("JAPA_TIMEZONE")
	if timezone == "" {
		timezone = "UTC"
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "japa.detections"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "japa-ledger"
	}

	return Config{
		Server: Server{
			Addr:           addr,
			JWTSigningKey:  jwtSigningKey,
			AdminTokenHash: os.Getenv("ADMIN_TOKEN_HASH"),
		},
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: os.Getenv("KAFKA_BROKERS"),
			Topic:   topic,
			Group:   group,
		},
		Ledger: LedgerConfig{
			Timezone:          timezone,
			ReconcileInterval: envDuration("RECONCILE_INTERVAL", time.Hour),
		},
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
