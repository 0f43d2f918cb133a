// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Event log backends
const (
	EventLogStore      = "store"
	EventLogClickHouse = "clickhouse"
)

// Event publishers
const (
	PublisherNone  = "none"
	PublisherRedis = "redis"
	PublisherKafka = "kafka"
)

// Config holds the service settings. It is read once at startup.
type Config struct {
	// Logging
	Environment string
	LogLevel    string
	LogFormat   string

	// Server
	ServerAddr     string
	TrustedProxies []string // Proxies allowed to set X-Forwarded-For

	// Storage
	StoreBackend string
	RedisURL     string
	DatabaseURL  string

	// Event log
	EventLogBackend    string
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Event publishing
	EventPublisher string
	KafkaBrokers   []string
	EventTopic     string

	// Challenges
	ChallengeTTL  time.Duration
	SweepInterval time.Duration
	AddressHRPs   []string

	// Rate limit for challenge issuance, per client IP
	ChallengeRatePerMinute int
	ChallengeRateBurst     int
}

// Load reads an optional .env file and then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Environment:            getEnvString("ROLA_ENV", "development"),
		LogLevel:               getEnvString("LOG_LEVEL", "info"),
		LogFormat:              getEnvString("LOG_FORMAT", "console"),
		ServerAddr:             getEnvString("SERVER_ADDR", ":8000"),
		TrustedProxies:         getEnvList("TRUSTED_PROXIES"),
		StoreBackend:           strings.ToLower(getEnvString("STORE_BACKEND", BackendMemory)),
		RedisURL:               os.Getenv("REDIS_URL"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		EventLogBackend:        strings.ToLower(getEnvString("EVENT_LOG_BACKEND", EventLogStore)),
		ClickHouseAddr:         getEnvString("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase:     getEnvString("CLICKHOUSE_DATABASE", "default"),
		ClickHouseUsername:     getEnvString("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword:     os.Getenv("CLICKHOUSE_PASSWORD"),
		EventPublisher:         strings.ToLower(getEnvString("EVENT_PUBLISHER", PublisherNone)),
		KafkaBrokers:           getEnvList("KAFKA_BROKERS"),
		EventTopic:             getEnvString("EVENT_TOPIC", "rola.auth_events"),
		ChallengeTTL:           getEnvDuration("CHALLENGE_TTL", 5*time.Minute),
		SweepInterval:          getEnvDuration("SWEEP_INTERVAL", time.Minute),
		AddressHRPs:            getEnvList("ADDRESS_HRPS"),
		ChallengeRatePerMinute: getEnvInt("CHALLENGE_RATE_PER_MINUTE", 60),
		ChallengeRateBurst:     getEnvInt("CHALLENGE_RATE_BURST", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend selections and the variables they require
func (c *Config) Validate() error {
	var missing []string

	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.EventLogBackend {
	case EventLogStore, EventLogClickHouse:
	default:
		return fmt.Errorf("unknown EVENT_LOG_BACKEND %q", c.EventLogBackend)
	}

	switch c.EventPublisher {
	case PublisherNone:
	case PublisherRedis:
		if c.RedisURL == "" && !containsString(missing, "REDIS_URL") {
			missing = append(missing, "REDIS_URL")
		}
	case PublisherKafka:
		if len(c.KafkaBrokers) == 0 {
			missing = append(missing, "KAFKA_BROKERS")
		}
	default:
		return fmt.Errorf("unknown EVENT_PUBLISHER %q", c.EventPublisher)
	}

	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if c.ChallengeTTL <= 0 {
		return fmt.Errorf("CHALLENGE_TTL must be positive, got %s", c.ChallengeTTL)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("SWEEP_INTERVAL must not be negative, got %s", c.SweepInterval)
	}
	if c.ChallengeRatePerMinute <= 0 || c.ChallengeRateBurst <= 0 {
		return errors.New("CHALLENGE_RATE_PER_MINUTE and CHALLENGE_RATE_BURST must be positive")
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
