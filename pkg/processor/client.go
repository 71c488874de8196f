package processor

import "context"

// Client is the remote payment processor contract. Every method accepts
// CallOptions for connected-account scoping and idempotency keys, blocks on
// network I/O, and returns a *Error from the taxonomy on failure.
type Client interface {
	CreateCustomer(ctx context.Context, params CustomerParams, opts CallOptions) (*Customer, error)
	RetrieveCustomer(ctx context.Context, id string, opts CallOptions) (*Customer, error)
	UpdateCustomer(ctx context.Context, id string, params CustomerParams, opts CallOptions) (*Customer, error)

	AttachPaymentMethod(ctx context.Context, methodID, customerID string, opts CallOptions) (*PaymentMethod, error)
	RetrievePaymentMethod(ctx context.Context, methodID string, opts CallOptions) (*PaymentMethod, error)
	// SetDefaultPaymentMethod updates the customer's invoice default.
	SetDefaultPaymentMethod(ctx context.Context, customerID, methodID string, opts CallOptions) error

	CreatePaymentIntent(ctx context.Context, params PaymentIntentParams, opts CallOptions) (*PaymentIntent, error)
	CreateSetupIntent(ctx context.Context, params SetupIntentParams, opts CallOptions) (*SetupIntent, error)

	CreateSubscription(ctx context.Context, params SubscriptionParams, opts CallOptions) (*Subscription, error)
	RetrieveSubscription(ctx context.Context, id string, opts CallOptions) (*Subscription, error)

	CreateInvoice(ctx context.Context, params InvoiceParams, opts CallOptions) (*Invoice, error)
	RetrieveUpcomingInvoice(ctx context.Context, customerID string, opts CallOptions) (*Invoice, error)
}
