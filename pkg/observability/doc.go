// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown for the billing service.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("record_id", id).Info("customer resolved")
//
// # Prometheus Metrics
//
// Initialize and register metrics:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.BillingOperationsTotal.WithLabelValues("charge", "success").Inc()
//	metrics.WebhookEventsTotal.WithLabelValues("invoice.paid", "applied").Inc()
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	status := checker.Check(ctx)
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/api: request logging and metrics middleware
package observability
