package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/payforge/payforge/pkg/webhooks"
)

// EventVerifier checks Stripe webhook signatures and converts verified
// deliveries into neutral events. It implements webhooks.Parser.
type EventVerifier struct {
	secret string
}

// NewEventVerifier creates a verifier with the endpoint's signing secret.
func NewEventVerifier(secret string) *EventVerifier {
	return &EventVerifier{secret: secret}
}

// SignatureHeader returns the header Stripe signs deliveries with.
func (v *EventVerifier) SignatureHeader() string { return "Stripe-Signature" }

// Parse verifies the payload and decodes the event. IgnoreAPIVersionMismatch
// keeps verification working across API version pins; the wire structs only
// declare fields stable across versions.
func (v *EventVerifier) Parse(payload []byte, signature string) (*webhooks.Event, error) {
	stripeEvent, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}
	return mapEvent(&stripeEvent)
}

// Wire views of event payload objects. These overlap with the client wire
// types but decode the extra linkage fields events carry.

type wireEventCustomer struct {
	ID string `json:"id"`
}

type wireEventPaymentMethod struct {
	ID       string           `json:"id"`
	Customer wireExpandableID `json:"customer"`
}

type wireEventSubscription struct {
	ID       string           `json:"id"`
	Customer wireExpandableID `json:"customer"`
	Status   string           `json:"status"`
	Quantity int64            `json:"quantity"`
}

type wireEventInvoice struct {
	ID            string           `json:"id"`
	Customer      wireExpandableID `json:"customer"`
	Subscription  wireExpandableID `json:"subscription"`
	PaymentIntent wireExpandableID `json:"payment_intent"`
	Charge        wireExpandableID `json:"charge"`
}

func mapEvent(ev *stripe.Event) (*webhooks.Event, error) {
	out := &webhooks.Event{
		ID:               ev.ID,
		Type:             webhooks.EventType(ev.Type),
		CreatedAt:        time.Unix(ev.Created, 0).UTC(),
		ConnectedAccount: ev.Account,
	}

	switch out.Type {
	case webhooks.EventCustomerUpdated:
		var obj wireEventCustomer
		if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
			return nil, fmt.Errorf("decode customer event: %w", err)
		}
		out.CustomerID = obj.ID

	case webhooks.EventPaymentMethodAttached, webhooks.EventPaymentMethodDetached:
		var obj wireEventPaymentMethod
		if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
			return nil, fmt.Errorf("decode payment method event: %w", err)
		}
		out.CustomerID = obj.Customer.ID

	case webhooks.EventSubscriptionUpdated, webhooks.EventSubscriptionDeleted:
		var obj wireEventSubscription
		if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
			return nil, fmt.Errorf("decode subscription event: %w", err)
		}
		out.CustomerID = obj.Customer.ID
		out.SubscriptionID = obj.ID
		out.Subscription = &webhooks.SubscriptionState{
			Status:   obj.Status,
			Quantity: obj.Quantity,
		}

	case webhooks.EventInvoicePaid, webhooks.EventInvoicePaymentFailed:
		var obj wireEventInvoice
		if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
			return nil, fmt.Errorf("decode invoice event: %w", err)
		}
		out.CustomerID = obj.Customer.ID
		out.InvoiceID = obj.ID
		out.SubscriptionID = obj.Subscription.ID
		out.PaymentIntentID = obj.PaymentIntent.ID
		out.ChargeID = obj.Charge.ID
	}

	return out, nil
}
