package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/payforge/payforge/pkg/observability"
	"github.com/payforge/payforge/pkg/processor"
)

// ChargeOptions tune a single charge operation.
type ChargeOptions struct {
	// Currency defaults to "usd".
	Currency string
	// PaymentMethodID overrides the customer's default payment method.
	PaymentMethodID string
	// IdempotencyKey makes a retry after a timeout safe. Generated when
	// empty; callers retrying after ProcessorUnavailable must reuse theirs.
	IdempotencyKey string
}

// ChargeOutcome is the result of a charge operation.
type ChargeOutcome struct {
	// Payment is the classified intent state.
	Payment Payment `json:"payment"`
	// Charge is the local entry; nil when the intent failed outright and no
	// entry was recorded.
	Charge *Charge `json:"charge,omitempty"`
}

// SubscribeOptions tune a subscribe operation.
type SubscribeOptions struct {
	// Quantity defaults to 1.
	Quantity int64
	// TrialPeriodDays overrides the plan's trial when set; otherwise the
	// trial is inherited from the plan.
	TrialPeriodDays *int
	IdempotencyKey  string
}

// SubscribeOutcome is the result of a subscribe operation.
type SubscribeOutcome struct {
	Subscription *Subscription `json:"subscription"`
	// Payment is non-nil when a client-side step is still required before
	// the subscription is truly usable. A created subscription row does not
	// mean the payment is secured.
	Payment *Payment `json:"payment,omitempty"`
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Records       RecordStore
	Subscriptions SubscriptionStore
	Charges       ChargeStore
	Client        processor.Client
	// ProcessorName is persisted on records at customer creation, e.g.
	// "stripe".
	ProcessorName string
	Logger        *observability.Logger
	Metrics       *observability.Metrics
}

// Engine drives billing operations against the processor and reconciles the
// results into local state.
type Engine struct {
	records       RecordStore
	subs          SubscriptionStore
	charges       ChargeStore
	client        processor.Client
	processorName string
	logger        *observability.Logger
	metrics       *observability.Metrics

	locks  *recordLocks
	flight singleflight.Group

	now    func() time.Time
	newKey func() string
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	name := cfg.ProcessorName
	if name == "" {
		name = "stripe"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Engine{
		records:       cfg.Records,
		subs:          cfg.Subscriptions,
		charges:       cfg.Charges,
		client:        cfg.Client,
		processorName: name,
		logger:        logger,
		metrics:       cfg.Metrics,
		locks:         newRecordLocks(),
		now:           time.Now,
		newKey:        uuid.NewString,
	}
}

// ResolveCustomer returns the remote customer for the record, creating it on
// first use. After a successful return the record's processor id is set, and
// calling again performs no create.
func (e *Engine) ResolveCustomer(ctx context.Context, recordID int64) (*processor.Customer, error) {
	unlock := e.locks.lock(recordID)
	defer unlock()

	record, err := e.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	cust, err := e.resolveCustomer(ctx, record)
	e.observe("resolve_customer", err)
	return cust, err
}

// resolveCustomer implements customer resolution. Caller holds the record
// lock.
func (e *Engine) resolveCustomer(ctx context.Context, record *BillingRecord) (*processor.Customer, error) {
	if record.HasProcessorID() {
		cust, err := e.retrieveCustomer(ctx, record)
		if err != nil {
			return nil, err
		}
		if record.PendingCardToken != "" {
			if err := e.applyPendingToken(ctx, record, cust.ID); err != nil {
				return nil, err
			}
		}
		return cust, nil
	}

	// Create the remote customer. The idempotency key is derived from the
	// record identity so a retry after a timeout cannot create a duplicate.
	opts := e.callOpts(record)
	opts.IdempotencyKey = fmt.Sprintf("%s-customer-%d", e.processorName, record.ID)
	cust, err := e.client.CreateCustomer(ctx, processor.CustomerParams{
		Email: record.Email,
		Name:  record.Name,
	}, opts)
	if err != nil {
		return nil, err
	}

	// Link back immediately and atomically. A remote customer without a
	// local link is the failure class the idempotency key guards against.
	record.ProcessorName = e.processorName
	record.ProcessorID = cust.ID
	if err := e.records.UpdateRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("persist processor id for record %d: %w", record.ID, err)
	}

	if record.PendingCardToken != "" {
		if err := e.applyPendingToken(ctx, record, cust.ID); err != nil {
			return nil, err
		}
	}
	return cust, nil
}

// retrieveCustomer fetches the remote customer, collapsing concurrent
// identical reads. A missing remote id is surfaced as CustomerNotFoundError,
// never silently recreated.
func (e *Engine) retrieveCustomer(ctx context.Context, record *BillingRecord) (*processor.Customer, error) {
	key := record.ConnectedAccountID + ":" + record.ProcessorID
	v, err, _ := e.flight.Do(key, func() (interface{}, error) {
		return e.client.RetrieveCustomer(ctx, record.ProcessorID, e.callOpts(record))
	})
	if err != nil {
		if processor.IsNotFound(err) {
			return nil, &CustomerNotFoundError{RecordID: record.ID, ProcessorID: record.ProcessorID}
		}
		return nil, err
	}
	return v.(*processor.Customer), nil
}

// applyPendingToken attaches the pending card token as the customer's
// default method, caches the card fields, and clears the token. If the
// remote attach succeeds but the local save fails, the token survives and
// the reconciliation sweep retries it.
func (e *Engine) applyPendingToken(ctx context.Context, record *BillingRecord, customerID string) error {
	token := record.PendingCardToken
	opts := e.callOpts(record)

	pm, err := e.client.AttachPaymentMethod(ctx, token, customerID, opts)
	if err != nil {
		return err
	}
	if err := e.client.SetDefaultPaymentMethod(ctx, customerID, pm.ID, opts); err != nil {
		return err
	}

	record.applyCard(pm.Card)
	record.PendingCardToken = ""
	if err := e.records.UpdateRecord(ctx, record); err != nil {
		e.logger.WithError(err).WithField("record_id", record.ID).
			Warn("card token applied remotely but local save failed; sweep will retry")
		return err
	}
	return nil
}

// Charge creates and auto-confirms a payment intent on the record's default
// payment method. A local charge entry is recorded for succeeded intents and
// for intents awaiting client action (as pending); failed intents leave no
// local entry.
func (e *Engine) Charge(ctx context.Context, recordID int64, amount int64, opts ChargeOptions) (*ChargeOutcome, error) {
	unlock := e.locks.lock(recordID)
	defer unlock()

	record, err := e.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	cust, err := e.resolveCustomer(ctx, record)
	if err != nil {
		e.observe("charge", err)
		return nil, err
	}

	methodID := opts.PaymentMethodID
	if methodID == "" {
		methodID = cust.DefaultPaymentMethodID
	}
	currency := opts.Currency
	if currency == "" {
		currency = "usd"
	}

	callOpts := e.callOpts(record)
	callOpts.IdempotencyKey = opts.IdempotencyKey
	if callOpts.IdempotencyKey == "" {
		callOpts.IdempotencyKey = e.newKey()
	}

	intent, err := e.client.CreatePaymentIntent(ctx, processor.PaymentIntentParams{
		CustomerID:      cust.ID,
		PaymentMethodID: methodID,
		Amount:          amount,
		Currency:        currency,
		Confirm:         true,
	}, callOpts)
	if err != nil {
		e.observe("charge", err)
		return nil, err
	}

	payment := NewPayment(intent)
	if err := payment.Validate(); err != nil {
		e.observe("charge", err)
		return nil, err
	}

	outcome := &ChargeOutcome{Payment: payment}
	if payment.Succeeded() || payment.RequiresAction() {
		status := ChargeStatusSucceeded
		if payment.RequiresAction() {
			status = ChargeStatusPending
		}
		charge := &Charge{
			RecordID:          record.ID,
			ProcessorIntentID: intent.ID,
			ProcessorChargeID: payment.ChargeID(),
			Amount:            amount,
			Currency:          currency,
			Status:            status,
		}
		if err := e.charges.CreateCharge(ctx, charge); err != nil {
			e.observe("charge", err)
			return nil, err
		}
		outcome.Charge = charge
	}

	e.observe("charge", nil)
	return outcome, nil
}

// Subscribe creates a remote subscription and mirrors it locally, then runs
// the activation state machine: an incomplete subscription surfaces its
// first invoice's payment intent, a trialing subscription with a pending
// setup intent surfaces that intent, anything else needs no follow-up.
func (e *Engine) Subscribe(ctx context.Context, recordID int64, name, plan string, opts SubscribeOptions) (*SubscribeOutcome, error) {
	unlock := e.locks.lock(recordID)
	defer unlock()

	record, err := e.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	cust, err := e.resolveCustomer(ctx, record)
	if err != nil {
		e.observe("subscribe", err)
		return nil, err
	}

	quantity := opts.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	callOpts := e.callOpts(record)
	callOpts.IdempotencyKey = opts.IdempotencyKey
	if callOpts.IdempotencyKey == "" {
		callOpts.IdempotencyKey = e.newKey()
	}

	remote, err := e.client.CreateSubscription(ctx, processor.SubscriptionParams{
		CustomerID: cust.ID,
		PlanID:     plan,
		Quantity:   quantity,
		// Trial comes from the plan unless the caller overrode it.
		TrialFromPlan:   opts.TrialPeriodDays == nil,
		TrialPeriodDays: opts.TrialPeriodDays,
		OffSession:      true,
	}, callOpts)
	if err != nil {
		e.observe("subscribe", err)
		return nil, err
	}

	sub := &Subscription{
		RecordID:                record.ID,
		Name:                    name,
		ProcessorPlanID:         plan,
		ProcessorSubscriptionID: remote.ID,
		Status:                  SubscriptionStatus(remote.Status),
		Quantity:                quantity,
		TrialEndsAt:             remote.TrialEnd,
		CurrentPeriodEnd:        remote.CurrentPeriodEnd,
	}
	if err := e.subs.CreateSubscription(ctx, sub); err != nil {
		e.observe("subscribe", err)
		return nil, err
	}

	outcome := &SubscribeOutcome{Subscription: sub}

	switch {
	case sub.Incomplete() && remote.LatestInvoice != nil && remote.LatestInvoice.PaymentIntent != nil:
		// No trial and the card needs additional authentication.
		payment := NewPayment(remote.LatestInvoice.PaymentIntent)
		if err := payment.Validate(); err != nil {
			e.observe("subscribe", err)
			return nil, err
		}
		outcome.Payment = &payment

	case sub.OnTrial() && remote.PendingSetupIntent != nil:
		// Trial granted but the card still needs verification before the
		// trial ends.
		payment := NewSetupPayment(remote.PendingSetupIntent)
		if err := payment.Validate(); err != nil {
			e.observe("subscribe", err)
			return nil, err
		}
		outcome.Payment = &payment
	}

	e.observe("subscribe", nil)
	return outcome, nil
}

// UpdateDefaultPaymentMethod attaches the method and makes it the customer's
// default, refreshing the local card cache. When the method already is the
// default it returns true without any remote write. The local record is
// untouched unless both remote steps succeed.
func (e *Engine) UpdateDefaultPaymentMethod(ctx context.Context, recordID int64, methodID string) (bool, error) {
	unlock := e.locks.lock(recordID)
	defer unlock()

	record, err := e.records.GetRecord(ctx, recordID)
	if err != nil {
		return false, err
	}
	cust, err := e.resolveCustomer(ctx, record)
	if err != nil {
		e.observe("update_default_payment_method", err)
		return false, err
	}

	if methodID == cust.DefaultPaymentMethodID {
		e.observe("update_default_payment_method", nil)
		return true, nil
	}

	opts := e.callOpts(record)
	pm, err := e.client.AttachPaymentMethod(ctx, methodID, cust.ID, opts)
	if err != nil {
		e.observe("update_default_payment_method", err)
		return false, err
	}
	if err := e.client.SetDefaultPaymentMethod(ctx, cust.ID, pm.ID, opts); err != nil {
		e.observe("update_default_payment_method", err)
		return false, err
	}

	record.applyCard(pm.Card)
	now := e.now()
	record.LastSyncedAt = &now
	if err := e.records.UpdateRecord(ctx, record); err != nil {
		e.observe("update_default_payment_method", err)
		return false, err
	}

	e.observe("update_default_payment_method", nil)
	return true, nil
}

// SyncCardFromRemote reconciles the local card cache with the customer's
// current default payment method. observedAt orders the sync against other
// applied state: a zero observedAt means "now"; an observedAt at or before
// the record's last sync is stale and the call is a no-op. Connected-account
// records are never synced.
func (e *Engine) SyncCardFromRemote(ctx context.Context, recordID int64, observedAt time.Time) error {
	unlock := e.locks.lock(recordID)
	defer unlock()

	record, err := e.records.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if record.OnConnectedAccount() {
		return nil
	}
	if !record.HasProcessorID() {
		return nil
	}
	if observedAt.IsZero() {
		observedAt = e.now()
	}
	if record.LastSyncedAt != nil && !observedAt.After(*record.LastSyncedAt) {
		return nil
	}

	cust, err := e.retrieveCustomer(ctx, record)
	if err != nil {
		e.observe("sync_card", err)
		return err
	}

	if cust.DefaultPaymentMethodID != "" {
		pm, err := e.client.RetrievePaymentMethod(ctx, cust.DefaultPaymentMethodID, e.callOpts(record))
		if err != nil {
			e.observe("sync_card", err)
			return err
		}
		record.applyCard(pm.Card)
	} else {
		record.clearCard()
	}

	record.LastSyncedAt = &observedAt
	if err := e.records.UpdateRecord(ctx, record); err != nil {
		e.observe("sync_card", err)
		return err
	}
	e.observe("sync_card", nil)
	return nil
}

// CreateSetupIntent creates an off-session setup intent so a front end can
// collect and verify a new payment method.
func (e *Engine) CreateSetupIntent(ctx context.Context, recordID int64) (*Payment, error) {
	unlock := e.locks.lock(recordID)
	defer unlock()

	record, err := e.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	cust, err := e.resolveCustomer(ctx, record)
	if err != nil {
		e.observe("create_setup_intent", err)
		return nil, err
	}

	si, err := e.client.CreateSetupIntent(ctx, processor.SetupIntentParams{
		CustomerID: cust.ID,
		Usage:      "off_session",
	}, e.callOpts(record))
	if err != nil {
		e.observe("create_setup_intent", err)
		return nil, err
	}

	payment := NewSetupPayment(si)
	e.observe("create_setup_intent", nil)
	return &payment, nil
}

// SyncCustomerProfile pushes the record's email and name to the remote
// customer.
func (e *Engine) SyncCustomerProfile(ctx context.Context, recordID int64) error {
	unlock := e.locks.lock(recordID)
	defer unlock()

	record, err := e.records.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if !record.HasProcessorID() {
		return nil
	}

	_, err = e.client.UpdateCustomer(ctx, record.ProcessorID, processor.CustomerParams{
		Email: record.Email,
		Name:  record.Name,
	}, e.callOpts(record))
	e.observe("sync_customer_profile", err)
	return err
}

// Invoice creates and immediately collects an invoice for the record.
// Returns nil without error when the record has no remote customer yet.
func (e *Engine) Invoice(ctx context.Context, recordID int64, description string) (*processor.Invoice, error) {
	unlock := e.locks.lock(recordID)
	defer unlock()

	record, err := e.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !record.HasProcessorID() {
		return nil, nil
	}

	opts := e.callOpts(record)
	opts.IdempotencyKey = e.newKey()
	inv, err := e.client.CreateInvoice(ctx, processor.InvoiceParams{
		CustomerID:  record.ProcessorID,
		Description: description,
		Pay:         true,
	}, opts)
	e.observe("invoice", err)
	return inv, err
}

// UpcomingInvoice previews the record's next invoice.
func (e *Engine) UpcomingInvoice(ctx context.Context, recordID int64) (*processor.Invoice, error) {
	record, err := e.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !record.HasProcessorID() {
		return nil, nil
	}
	inv, err := e.client.RetrieveUpcomingInvoice(ctx, record.ProcessorID, e.callOpts(record))
	e.observe("upcoming_invoice", err)
	return inv, err
}

// RetrieveSubscription fetches the remote subscription scoped to the record.
func (e *Engine) RetrieveSubscription(ctx context.Context, recordID int64, processorSubscriptionID string) (*processor.Subscription, error) {
	record, err := e.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return e.client.RetrieveSubscription(ctx, processorSubscriptionID, e.callOpts(record))
}

// callOpts scopes a remote call to the record's connected account.
func (e *Engine) callOpts(record *BillingRecord) processor.CallOptions {
	return processor.CallOptions{ConnectedAccount: record.ConnectedAccountID}
}

// observe records the operation outcome metric.
func (e *Engine) observe(operation string, err error) {
	if e.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case err == nil:
	case processor.IsUnavailable(err):
		outcome = "unavailable"
	case processor.IsRejected(err):
		outcome = "rejected"
	case IsCustomerNotFound(err):
		outcome = "customer_not_found"
	case IsInvalidIntentState(err):
		outcome = "invalid_intent"
	default:
		outcome = "error"
	}
	e.metrics.BillingOperationsTotal.WithLabelValues(operation, outcome).Inc()
}
