// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	PAYFORGE_HOST="0.0.0.0"
//	PAYFORGE_PORT="8080"
//	PAYFORGE_HEALTH_PORT="9090"
//	PAYFORGE_READ_TIMEOUT="15s"
//	PAYFORGE_WRITE_TIMEOUT="15s"
//
// Storage settings:
//
//	PAYFORGE_POSTGRES_URL="postgres://localhost/payforge"
//	PAYFORGE_POSTGRES_MAX_CONNS="25"
//	PAYFORGE_REDIS_URL="redis://localhost:6379"
//	PAYFORGE_DEDUP_TTL="72h"
//
// Processor settings:
//
//	PAYFORGE_STRIPE_SECRET_KEY="sk_live_..."
//	PAYFORGE_STRIPE_WEBHOOK_SECRET="whsec_..."
//	PAYFORGE_SWEEP_SCHEDULE="@every 5m"
//
// Observability settings:
//
//	PAYFORGE_LOG_LEVEL="info"  # debug, info, warn, error
//	PAYFORGE_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
