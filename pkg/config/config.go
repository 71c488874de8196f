package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/payforge/payforge/pkg/observability"
	"github.com/payforge/payforge/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Processor configuration
	Processor ProcessorConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// ProcessorConfig holds payment processor settings
type ProcessorConfig struct {
	// StripeSecretKey authenticates API calls
	StripeSecretKey string
	// StripeWebhookSecret verifies event delivery signatures
	StripeWebhookSecret string
	// StripeBaseURL overrides the API host, for tests and proxies
	StripeBaseURL string
	// CallTimeout bounds a single processor API call
	CallTimeout time.Duration
	// SweepSchedule is the cron spec for the pending card token sweeper
	SweepSchedule string
	// SweepBatchSize bounds records picked up per sweep
	SweepBatchSize int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Processor:     loadProcessorConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PAYFORGE_HOST", "0.0.0.0"),
		Port:            getEnv("PAYFORGE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PAYFORGE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PAYFORGE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PAYFORGE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PAYFORGE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PAYFORGE_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// PostgreSQL config
	if pgURL := getEnv("PAYFORGE_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("PAYFORGE_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("PAYFORGE_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("PAYFORGE_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// Redis config
	if redisURL := getEnv("PAYFORGE_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("PAYFORGE_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("PAYFORGE_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("PAYFORGE_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("PAYFORGE_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}
	if dedupTTL := getEnvDuration("PAYFORGE_DEDUP_TTL", 0); dedupTTL > 0 {
		cfg.DedupTTL = dedupTTL
	}

	return cfg
}

// loadProcessorConfig loads payment processor configuration from environment
func loadProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		StripeSecretKey:     getEnv("PAYFORGE_STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("PAYFORGE_STRIPE_WEBHOOK_SECRET", ""),
		StripeBaseURL:       getEnv("PAYFORGE_STRIPE_BASE_URL", ""),
		CallTimeout:         getEnvDuration("PAYFORGE_STRIPE_TIMEOUT", 20*time.Second),
		SweepSchedule:       getEnv("PAYFORGE_SWEEP_SCHEDULE", "@every 5m"),
		SweepBatchSize:      getEnvInt("PAYFORGE_SWEEP_BATCH_SIZE", 100),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("PAYFORGE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("PAYFORGE_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate storage config
	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	// Validate processor config
	if c.Processor.StripeSecretKey == "" {
		return fmt.Errorf("stripe secret key is required")
	}
	if c.Processor.StripeWebhookSecret == "" {
		return fmt.Errorf("stripe webhook secret is required")
	}
	if c.Processor.SweepBatchSize <= 0 {
		return fmt.Errorf("sweep batch size must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
