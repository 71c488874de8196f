package webhooks

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/payforge/payforge/pkg/observability"
)

// maxPayloadBytes bounds webhook bodies. Stripe events are small; anything
// larger is not a legitimate delivery.
const maxPayloadBytes = 1 << 20

// Parser verifies a raw delivery and converts it to a neutral Event.
// Implementations are processor specific.
type Parser interface {
	// Parse verifies the payload against the signature header value and
	// returns the decoded event. A verification or decoding failure is a
	// permanent rejection.
	Parse(payload []byte, signature string) (*Event, error)
	// SignatureHeader names the HTTP header carrying the signature.
	SignatureHeader() string
}

// Handler is the HTTP ingress for processor event deliveries.
type Handler struct {
	parser     Parser
	reconciler *Reconciler
	logger     *observability.Logger
}

// NewHandler creates a webhook Handler.
func NewHandler(parser Parser, reconciler *Reconciler, logger *observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Handler{parser: parser, reconciler: reconciler, logger: logger}
}

// RegisterRoutes attaches the webhook endpoint to the router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks/stripe", h.HandleDelivery).Methods("POST")
}

// HandleDelivery verifies and applies one event delivery. The response code
// is the contract with the processor's retry loop: 2xx acknowledges the
// event permanently, 4xx rejects it permanently, 5xx asks for a redelivery.
func (h *Handler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		h.logger.WithError(err).Warn("failed to read webhook payload")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	event, err := h.parser.Parse(payload, r.Header.Get(h.parser.SignatureHeader()))
	if err != nil {
		h.logger.WithError(err).Warn("rejected webhook delivery")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if err := h.reconciler.Apply(r.Context(), event); err != nil {
		h.logger.WithError(err).
			WithField("event_id", event.ID).
			WithField("event_type", string(event.Type)).
			Error("failed to apply webhook event")
		http.Error(w, "event not applied", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
