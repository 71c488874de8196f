package webhooks

import "time"

// EventType represents the type of processor event, in the processor's own
// vocabulary.
type EventType string

const (
	EventCustomerUpdated       EventType = "customer.updated"
	EventPaymentMethodAttached EventType = "payment_method.attached"
	EventPaymentMethodDetached EventType = "payment_method.detached"
	EventSubscriptionUpdated   EventType = "customer.subscription.updated"
	EventSubscriptionDeleted   EventType = "customer.subscription.deleted"
	EventInvoicePaid           EventType = "invoice.paid"
	EventInvoicePaymentFailed  EventType = "invoice.payment_failed"
)

// SubscriptionState is the absolute remote state carried by a subscription
// event.
type SubscriptionState struct {
	Status   string `json:"status"`
	Quantity int64  `json:"quantity"`
}

// Event is a processor event in neutral form.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	CreatedAt time.Time `json:"created_at"`

	// CustomerID is the remote customer the event concerns.
	CustomerID string `json:"customer_id,omitempty"`
	// ConnectedAccount is set for events originating from a sub-account.
	ConnectedAccount string `json:"connected_account,omitempty"`

	SubscriptionID string             `json:"subscription_id,omitempty"`
	Subscription   *SubscriptionState `json:"subscription,omitempty"`

	InvoiceID       string `json:"invoice_id,omitempty"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	ChargeID        string `json:"charge_id,omitempty"`
}
