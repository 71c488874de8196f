package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/payforge/payforge/pkg/api"
	"github.com/payforge/payforge/pkg/billing"
	"github.com/payforge/payforge/pkg/config"
	"github.com/payforge/payforge/pkg/httputil"
	"github.com/payforge/payforge/pkg/observability"
	"github.com/payforge/payforge/pkg/processor/stripe"
	"github.com/payforge/payforge/pkg/storage/postgres"
	"github.com/payforge/payforge/pkg/webhooks"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("version", observability.Version).Info("starting payforge")

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	// Postgres
	db, err := postgres.Open(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := postgres.Migrate(migrateCtx, db); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	records := postgres.NewRecordStore(db)
	subscriptions := postgres.NewSubscriptionStore(db)
	charges := postgres.NewChargeStore(db)

	// Redis-backed webhook dedup, fronted by an in-process LRU. Optional:
	// without Redis, dedup degrades to per-instance.
	var dedupBacking webhooks.Deduper
	var eventDedup *postgres.EventDedup
	if cfg.Storage.RedisURL != "" {
		eventDedup, err = postgres.NewEventDedup(cfg.Storage)
		if err != nil {
			logger.WithError(err).Error("failed to connect to redis")
			os.Exit(1)
		}
		defer eventDedup.Close()
		dedupBacking = eventDedup
	}
	dedup, err := webhooks.NewLRUDeduper(10000, dedupBacking)
	if err != nil {
		logger.WithError(err).Error("failed to create event dedup")
		os.Exit(1)
	}

	// Stripe adapter
	client := stripe.NewClient(stripe.Config{
		SecretKey: cfg.Processor.StripeSecretKey,
		BaseURL:   cfg.Processor.StripeBaseURL,
		Timeout:   cfg.Processor.CallTimeout,
		Metrics:   metrics,
	})

	engine := billing.NewEngine(billing.EngineConfig{
		Records:       records,
		Subscriptions: subscriptions,
		Charges:       charges,
		Client:        client,
		ProcessorName: "stripe",
		Logger:        logger,
		Metrics:       metrics,
	})

	reconciler := webhooks.NewReconciler(webhooks.ReconcilerConfig{
		Engine:        engine,
		Records:       records,
		Subscriptions: subscriptions,
		Charges:       charges,
		Dedup:         dedup,
		ProcessorName: "stripe",
		Logger:        logger,
		Metrics:       metrics,
	})
	webhookHandler := webhooks.NewHandler(
		stripe.NewEventVerifier(cfg.Processor.StripeWebhookSecret),
		reconciler,
		logger,
	)

	// Pending card token sweeper
	sweeper := billing.NewTokenSweeper(engine, records, logger)
	sweeper.SetBatchSize(cfg.Processor.SweepBatchSize)
	if err := sweeper.Start(cfg.Processor.SweepSchedule); err != nil {
		logger.WithError(err).Error("failed to start token sweeper")
		os.Exit(1)
	}

	var limiter *httputil.RateLimiter
	if eventDedup != nil {
		limiter = httputil.NewRateLimiter(eventDedup.Client(), nil, logger)
	}

	server := api.NewServer(api.ServerConfig{
		Engine:         engine,
		Records:        records,
		Subscriptions:  subscriptions,
		Charges:        charges,
		WebhookHandler: webhookHandler,
		RateLimiter:    limiter,
		Logger:         logger,
		Metrics:        metrics,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes and scrapes
	healthChecker := observability.NewHealthChecker(db, nil)
	if eventDedup != nil {
		healthChecker = observability.NewHealthChecker(db, eventDedup.Client())
	}
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	stopStats := make(chan struct{})
	if metrics != nil {
		metrics.CollectDBStats(db, 15*time.Second, stopStats)
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("api server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("api server failed")
			os.Exit(1)
		}
	}()

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.OnShutdown("token sweeper", func(ctx context.Context) error {
		sweeper.Stop()
		return nil
	})
	shutdown.OnShutdown("health server", func(ctx context.Context) error {
		close(stopStats)
		return healthServer.Shutdown(ctx)
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown did not complete cleanly")
		os.Exit(1)
	}
}
