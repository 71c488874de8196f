package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/payforge/payforge/pkg/billing"
	"github.com/payforge/payforge/pkg/httputil"
	"github.com/payforge/payforge/pkg/observability"
)

// BillingHandlers handles billing-related HTTP requests
type BillingHandlers struct {
	engine  *billing.Engine
	records billing.RecordStore
	subs    billing.SubscriptionStore
	charges billing.ChargeStore
	logger  *observability.Logger
}

// NewBillingHandlers creates a new BillingHandlers
func NewBillingHandlers(engine *billing.Engine, records billing.RecordStore, subs billing.SubscriptionStore, charges billing.ChargeStore, logger *observability.Logger) *BillingHandlers {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &BillingHandlers{
		engine:  engine,
		records: records,
		subs:    subs,
		charges: charges,
		logger:  logger,
	}
}

// RegisterRoutes registers billing routes
func (h *BillingHandlers) RegisterRoutes(router *mux.Router) {
	// Records
	router.HandleFunc("/records", h.CreateRecord).Methods("POST")
	router.HandleFunc("/records/{id}", h.GetRecord).Methods("GET")
	router.HandleFunc("/records/{id}", h.UpdateRecord).Methods("PUT")

	// Customer resolution
	router.HandleFunc("/records/{id}/customer", h.ResolveCustomer).Methods("POST")

	// Charges
	router.HandleFunc("/records/{id}/charges", h.Charge).Methods("POST")
	router.HandleFunc("/records/{id}/charges", h.ListCharges).Methods("GET")

	// Subscriptions
	router.HandleFunc("/records/{id}/subscriptions", h.Subscribe).Methods("POST")
	router.HandleFunc("/records/{id}/subscriptions", h.ListSubscriptions).Methods("GET")
	router.HandleFunc("/records/{id}/subscriptions/{subscription_id}", h.GetSubscription).Methods("GET")

	// Payment methods
	router.HandleFunc("/records/{id}/payment-method", h.UpdatePaymentMethod).Methods("PUT")
	router.HandleFunc("/records/{id}/setup-intent", h.CreateSetupIntent).Methods("POST")

	// Invoices
	router.HandleFunc("/records/{id}/invoices", h.CreateInvoice).Methods("POST")
	router.HandleFunc("/records/{id}/invoices/upcoming", h.GetUpcomingInvoice).Methods("GET")
}

// CreateRecord creates a local billing record. The remote customer is created
// lazily by the first operation that needs one.
func (h *BillingHandlers) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateRecordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.WriteValidationError(w, "email is required")
		return
	}

	record := &billing.BillingRecord{
		Email:              strings.TrimSpace(req.Email),
		Name:               strings.TrimSpace(req.Name),
		ConnectedAccountID: req.ConnectedAccountID,
		PendingCardToken:   req.CardToken,
	}
	if err := h.records.CreateRecord(r.Context(), record); err != nil {
		writeBillingError(w, err)
		return
	}

	httputil.WriteCreated(w, record)
}

// GetRecord retrieves a billing record
func (h *BillingHandlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	record, err := h.records.GetRecord(r.Context(), id)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	httputil.WriteSuccess(w, record)
}

// UpdateRecord updates the record's profile and pushes it to the remote
// customer when one exists.
func (h *BillingHandlers) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req UpdateRecordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.WriteValidationError(w, "email is required")
		return
	}

	record, err := h.records.GetRecord(r.Context(), id)
	if err != nil {
		writeBillingError(w, err)
		return
	}
	record.Email = strings.TrimSpace(req.Email)
	record.Name = strings.TrimSpace(req.Name)
	if err := h.records.UpdateRecord(r.Context(), record); err != nil {
		writeBillingError(w, err)
		return
	}

	if err := h.engine.SyncCustomerProfile(r.Context(), record.ID); err != nil {
		writeBillingError(w, err)
		return
	}

	httputil.WriteSuccess(w, record)
}

// ResolveCustomer creates the remote customer if needed and returns it.
// Repeating the call never creates a second remote customer.
func (h *BillingHandlers) ResolveCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	cust, err := h.engine.ResolveCustomer(r.Context(), id)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	httputil.WriteSuccess(w, CustomerResponse{
		ProcessorID:            cust.ID,
		Email:                  cust.Email,
		Name:                   cust.Name,
		DefaultPaymentMethodID: cust.DefaultPaymentMethodID,
	})
}

// Charge performs a one-off charge against the record's default payment
// method, or an explicit one.
func (h *BillingHandlers) Charge(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req ChargeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequirePositive(w, req.Amount, "amount") {
		return
	}

	outcome, err := h.engine.Charge(r.Context(), id, req.Amount, billing.ChargeOptions{
		Currency:        req.Currency,
		PaymentMethodID: req.PaymentMethodID,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		writeBillingError(w, err)
		return
	}

	status := http.StatusCreated
	if outcome.Payment.RequiresAction() {
		// The caller must run the authentication step and wait for the
		// webhook to settle the charge.
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, ChargeResponse{
		Payment: paymentResponse(&outcome.Payment),
		Charge:  outcome.Charge,
	})
}

// ListCharges lists the record's local charge entries
func (h *BillingHandlers) ListCharges(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.records.GetRecord(r.Context(), id); err != nil {
		writeBillingError(w, err)
		return
	}
	charges, err := h.charges.ListCharges(r.Context(), id)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	httputil.WriteSuccess(w, charges)
}

// Subscribe activates a plan for the record
func (h *BillingHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req SubscribeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Plan, "plan") {
		return
	}
	name := req.Name
	if name == "" {
		name = "default"
	}

	outcome, err := h.engine.Subscribe(r.Context(), id, name, req.Plan, billing.SubscribeOptions{
		Quantity:        req.Quantity,
		TrialPeriodDays: req.TrialPeriodDays,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		writeBillingError(w, err)
		return
	}

	status := http.StatusCreated
	if outcome.Payment != nil {
		// Subscription row exists but the payment is not secured yet.
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, SubscribeResponse{
		Subscription: outcome.Subscription,
		Payment:      paymentResponse(outcome.Payment),
	})
}

// ListSubscriptions lists the record's local subscriptions
func (h *BillingHandlers) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.records.GetRecord(r.Context(), id); err != nil {
		writeBillingError(w, err)
		return
	}
	subs, err := h.subs.ListSubscriptions(r.Context(), id)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	httputil.WriteSuccess(w, subs)
}

// GetSubscription fetches the live remote subscription state
func (h *BillingHandlers) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	subscriptionID := mux.Vars(r)["subscription_id"]

	sub, err := h.engine.RetrieveSubscription(r.Context(), id, subscriptionID)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	httputil.WriteSuccess(w, sub)
}

// UpdatePaymentMethod sets the record's default payment method and refreshes
// the card cache
func (h *BillingHandlers) UpdatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req UpdatePaymentMethodRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.PaymentMethodID, "payment_method_id") {
		return
	}

	updated, err := h.engine.UpdateDefaultPaymentMethod(r.Context(), id, req.PaymentMethodID)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	record, err := h.records.GetRecord(r.Context(), id)
	if err != nil {
		writeBillingError(w, err)
		return
	}
	httputil.WriteSuccess(w, UpdatePaymentMethodResponse{
		Updated:      updated,
		CardBrand:    record.CardBrand,
		CardLast4:    record.CardLast4,
		CardExpMonth: record.CardExpMonth,
		CardExpYear:  record.CardExpYear,
	})
}

// CreateSetupIntent creates a setup intent for collecting a new payment
// method off-session
func (h *BillingHandlers) CreateSetupIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	payment, err := h.engine.CreateSetupIntent(r.Context(), id)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	httputil.WriteCreated(w, paymentResponse(payment))
}

// CreateInvoice creates and immediately collects an ad-hoc invoice
func (h *BillingHandlers) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req InvoiceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	inv, err := h.engine.Invoice(r.Context(), id, req.Description)
	if err != nil {
		writeBillingError(w, err)
		return
	}
	if inv == nil {
		httputil.WriteConflict(w, "record has no remote customer to invoice")
		return
	}

	httputil.WriteCreated(w, inv)
}

// GetUpcomingInvoice previews the record's next invoice
func (h *BillingHandlers) GetUpcomingInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	inv, err := h.engine.UpcomingInvoice(r.Context(), id)
	if err != nil {
		writeBillingError(w, err)
		return
	}
	if inv == nil {
		httputil.WriteNotFoundError(w, "record has no upcoming invoice")
		return
	}

	httputil.WriteSuccess(w, inv)
}
