package webhooks

import (
	"context"
	"errors"

	"github.com/payforge/payforge/pkg/billing"
	"github.com/payforge/payforge/pkg/observability"
)

// Reconciler applies processor events to local billing state.
type Reconciler struct {
	engine        *billing.Engine
	records       billing.RecordStore
	subs          billing.SubscriptionStore
	charges       billing.ChargeStore
	dedup         Deduper
	processorName string
	logger        *observability.Logger
	metrics       *observability.Metrics
}

// ReconcilerConfig wires a Reconciler.
type ReconcilerConfig struct {
	Engine        *billing.Engine
	Records       billing.RecordStore
	Subscriptions billing.SubscriptionStore
	Charges       billing.ChargeStore
	Dedup         Deduper
	// ProcessorName scopes record lookups, e.g. "stripe".
	ProcessorName string
	Logger        *observability.Logger
	Metrics       *observability.Metrics
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	name := cfg.ProcessorName
	if name == "" {
		name = "stripe"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Reconciler{
		engine:        cfg.Engine,
		records:       cfg.Records,
		subs:          cfg.Subscriptions,
		charges:       cfg.Charges,
		dedup:         cfg.Dedup,
		processorName: name,
		logger:        logger,
		metrics:       cfg.Metrics,
	}
}

// Apply processes one event. It returns an error only for failures worth a
// redelivery (datastore down, processor unreachable); unknown records and
// stale or duplicate events are acknowledged silently.
func (r *Reconciler) Apply(ctx context.Context, event *Event) error {
	if r.dedup != nil {
		seen, err := r.dedup.Seen(ctx, event.ID)
		if err != nil {
			// Handlers are idempotent, so a dedup outage downgrades to
			// at-least-once application rather than blocking deliveries.
			r.logger.WithError(err).WithField("event_id", event.ID).
				Warn("event dedup unavailable, applying anyway")
		} else if seen {
			r.count(event, "duplicate")
			return nil
		}
	}

	var err error
	switch event.Type {
	case EventCustomerUpdated, EventPaymentMethodAttached, EventPaymentMethodDetached:
		err = r.applyCardSync(ctx, event)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		err = r.applySubscriptionState(ctx, event)
	case EventInvoicePaid:
		err = r.applyInvoicePaid(ctx, event)
	case EventInvoicePaymentFailed:
		err = r.applyInvoiceFailed(ctx, event)
	default:
		r.count(event, "ignored")
		return nil
	}

	if err != nil {
		// Left unmarked so the processor's redelivery gets applied.
		r.count(event, "error")
		return err
	}
	if r.dedup != nil {
		if err := r.dedup.MarkProcessed(ctx, event.ID); err != nil {
			// The event is already applied; a redelivered duplicate is
			// harmless, so ack rather than trigger one deliberately.
			r.logger.WithError(err).WithField("event_id", event.ID).
				Warn("failed to mark event processed")
		}
	}
	r.count(event, "applied")
	return nil
}

// applyCardSync re-reads the customer's current default payment method and
// reconciles the card cache. The engine enforces staleness ordering against
// the record's last sync and the connected-account rule.
func (r *Reconciler) applyCardSync(ctx context.Context, event *Event) error {
	record, ok, err := r.lookupRecord(ctx, event)
	if err != nil || !ok {
		return err
	}
	return r.engine.SyncCardFromRemote(ctx, record.ID, event.CreatedAt)
}

// applySubscriptionState mirrors the event's absolute subscription state
// onto the matching local row. Webhooks never create or delete rows.
func (r *Reconciler) applySubscriptionState(ctx context.Context, event *Event) error {
	if event.SubscriptionID == "" {
		return nil
	}

	status := billing.SubscriptionStatusCanceled
	quantity := int64(0)
	if event.Type != EventSubscriptionDeleted && event.Subscription != nil {
		status = billing.SubscriptionStatus(event.Subscription.Status)
		quantity = event.Subscription.Quantity
	}
	if quantity <= 0 {
		local, err := r.subs.GetSubscriptionByProcessorID(ctx, event.SubscriptionID)
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			r.logger.WithField("subscription_id", event.SubscriptionID).
				Info("event for unknown subscription, discarding")
			return nil
		}
		if err != nil {
			return err
		}
		quantity = local.Quantity
	}

	err := r.subs.UpdateSubscriptionState(ctx, event.SubscriptionID, status, quantity)
	if errors.Is(err, billing.ErrSubscriptionNotFound) {
		r.logger.WithField("subscription_id", event.SubscriptionID).
			Info("event for unknown subscription, discarding")
		return nil
	}
	return err
}

// applyInvoicePaid settles the pending charge for the invoice's payment
// intent, if one was recorded.
func (r *Reconciler) applyInvoicePaid(ctx context.Context, event *Event) error {
	if event.PaymentIntentID == "" {
		return nil
	}
	err := r.charges.ResolveCharge(ctx, event.PaymentIntentID, billing.ChargeStatusSucceeded, event.ChargeID)
	if errors.Is(err, billing.ErrChargeNotFound) {
		return nil
	}
	return err
}

// applyInvoiceFailed fails the pending charge and moves the subscription to
// past_due when the invoice belongs to one.
func (r *Reconciler) applyInvoiceFailed(ctx context.Context, event *Event) error {
	if event.PaymentIntentID != "" {
		err := r.charges.ResolveCharge(ctx, event.PaymentIntentID, billing.ChargeStatusFailed, "")
		if err != nil && !errors.Is(err, billing.ErrChargeNotFound) {
			return err
		}
	}

	if event.SubscriptionID != "" {
		local, err := r.subs.GetSubscriptionByProcessorID(ctx, event.SubscriptionID)
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		err = r.subs.UpdateSubscriptionState(ctx, event.SubscriptionID, billing.SubscriptionStatusPastDue, local.Quantity)
		if err != nil && !errors.Is(err, billing.ErrSubscriptionNotFound) {
			return err
		}
	}
	return nil
}

// lookupRecord resolves the local record for the event's customer. A
// missing record is not an error: the delivery must still be acknowledged.
func (r *Reconciler) lookupRecord(ctx context.Context, event *Event) (*billing.BillingRecord, bool, error) {
	if event.CustomerID == "" {
		return nil, false, nil
	}
	record, err := r.records.GetRecordByProcessorID(ctx, r.processorName, event.CustomerID)
	if errors.Is(err, billing.ErrRecordNotFound) {
		r.logger.WithField("customer_id", event.CustomerID).
			WithField("event_id", event.ID).
			Info("event for unknown billing record, discarding")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (r *Reconciler) count(event *Event, result string) {
	if r.metrics == nil {
		return
	}
	r.metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), result).Inc()
}
