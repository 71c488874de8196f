package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/payforge/payforge/pkg/billing"
	"github.com/payforge/payforge/pkg/httputil"
	"github.com/payforge/payforge/pkg/observability"
	"github.com/payforge/payforge/pkg/webhooks"
)

// ServerConfig wires the API server.
type ServerConfig struct {
	Engine        *billing.Engine
	Records       billing.RecordStore
	Subscriptions billing.SubscriptionStore
	Charges       billing.ChargeStore
	// WebhookHandler is optional; without it no webhook route is exposed.
	WebhookHandler *webhooks.Handler
	// RateLimiter is optional; without it requests are not rate limited.
	RateLimiter *httputil.RateLimiter
	Logger      *observability.Logger
	Metrics     *observability.Metrics
}

// Server represents the billing API server
type Server struct {
	router          *mux.Router
	billingHandlers *BillingHandlers
	webhookHandler  *webhooks.Handler
	rateLimiter     *httputil.RateLimiter
	logger          *observability.Logger
	metrics         *observability.Metrics
}

// NewServer creates a new API server
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		router:          mux.NewRouter(),
		billingHandlers: NewBillingHandlers(cfg.Engine, cfg.Records, cfg.Subscriptions, cfg.Charges, logger),
		webhookHandler:  cfg.WebhookHandler,
		rateLimiter:     cfg.RateLimiter,
		logger:          logger,
		metrics:         cfg.Metrics,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	s.billingHandlers.RegisterRoutes(api)

	// Rate limit API callers, not webhook deliveries: the processor's retry
	// loop is the backpressure mechanism there.
	if s.rateLimiter != nil {
		api.Use(s.rateLimiter.Middleware)
	}

	// Webhook ingress stays outside the versioned prefix; the processor's
	// endpoint configuration should not churn with API versions.
	if s.webhookHandler != nil {
		s.webhookHandler.RegisterRoutes(s.router)
	}

	middlewares := []mux.MiddlewareFunc{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.MaxBytesMiddleware(1 << 20),
	}
	if s.metrics != nil {
		middlewares = append(middlewares, httputil.MetricsMiddleware(s.metrics))
	}
	s.router.Use(middlewares...)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for tests
func (s *Server) Router() *mux.Router {
	return s.router
}
