package processor

import "time"

// Customer is the processor's view of a payer.
type Customer struct {
	ID                     string `json:"id"`
	Email                  string `json:"email,omitempty"`
	Name                   string `json:"name,omitempty"`
	DefaultPaymentMethodID string `json:"default_payment_method_id,omitempty"`
}

// Card holds the display details of a card payment method.
type Card struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

// PaymentMethod is a tokenized payment instrument attached to a customer.
type PaymentMethod struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Card *Card  `json:"card,omitempty"`
}

// IntentStatus is the processor-reported status of a payment or setup intent.
type IntentStatus string

const (
	IntentStatusSucceeded             IntentStatus = "succeeded"
	IntentStatusRequiresAction        IntentStatus = "requires_action"
	IntentStatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentStatusProcessing            IntentStatus = "processing"
	IntentStatusCanceled              IntentStatus = "canceled"
)

// PaymentIntent is a single attempt to collect a payment.
type PaymentIntent struct {
	ID           string       `json:"id"`
	Status       IntentStatus `json:"status"`
	Amount       int64        `json:"amount"`
	Currency     string       `json:"currency"`
	ClientSecret string       `json:"client_secret,omitempty"`
	// ChargeID references the charge produced by a succeeded intent.
	ChargeID        string `json:"charge_id,omitempty"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
}

// SetupIntent verifies a payment method for later off-session use.
type SetupIntent struct {
	ID           string       `json:"id"`
	Status       IntentStatus `json:"status"`
	ClientSecret string       `json:"client_secret,omitempty"`
}

// Subscription is the processor's view of a recurring billing agreement.
type Subscription struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	PlanID             string     `json:"plan_id"`
	Quantity           int64      `json:"quantity"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	// LatestInvoice carries the first invoice's payment intent when the
	// subscription was created with expansion; nil otherwise.
	LatestInvoice *Invoice `json:"latest_invoice,omitempty"`
	// PendingSetupIntent is set when a trial was granted but the card still
	// needs verification before the trial ends.
	PendingSetupIntent *SetupIntent `json:"pending_setup_intent,omitempty"`
}

// Invoice is a processor invoice.
type Invoice struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	AmountDue     int64          `json:"amount_due"`
	Currency      string         `json:"currency"`
	Paid          bool           `json:"paid"`
	PeriodStart   *time.Time     `json:"period_start,omitempty"`
	PeriodEnd     *time.Time     `json:"period_end,omitempty"`
	PaymentIntent *PaymentIntent `json:"payment_intent,omitempty"`
}

// CustomerParams describes a customer create/update.
type CustomerParams struct {
	Email string
	Name  string
}

// PaymentIntentParams describes a payment intent create.
type PaymentIntentParams struct {
	CustomerID      string
	PaymentMethodID string
	Amount          int64
	Currency        string
	// Confirm requests automatic confirmation in the same call.
	Confirm    bool
	OffSession bool
}

// SetupIntentParams describes a setup intent create.
type SetupIntentParams struct {
	CustomerID string
	// Usage is the intended usage of the verified method, e.g. "off_session".
	Usage string
}

// SubscriptionParams describes a subscription create.
type SubscriptionParams struct {
	CustomerID string
	PlanID     string
	Quantity   int64
	// TrialFromPlan inherits the trial from the plan definition. Ignored when
	// TrialPeriodDays is set.
	TrialFromPlan   bool
	TrialPeriodDays *int
	OffSession      bool
}

// InvoiceParams describes an invoice create.
type InvoiceParams struct {
	CustomerID  string
	Description string
	// Pay collects the invoice immediately after creation.
	Pay bool
}

// CallOptions scope a remote call.
type CallOptions struct {
	// ConnectedAccount routes the call to a platform sub-account when set.
	ConnectedAccount string
	// IdempotencyKey makes a retried create safe after a timeout. Ignored on
	// reads.
	IdempotencyKey string
}
