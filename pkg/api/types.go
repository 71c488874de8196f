package api

import "github.com/payforge/payforge/pkg/billing"

// CreateRecordRequest creates a local billing record. No remote customer is
// created until the first billing operation needs one.
type CreateRecordRequest struct {
	Email              string `json:"email"`
	Name               string `json:"name,omitempty"`
	ConnectedAccountID string `json:"connected_account_id,omitempty"`
	// CardToken is an optional payment method token to attach as the
	// default once the remote customer exists.
	CardToken string `json:"card_token,omitempty"`
}

// UpdateRecordRequest updates the record's profile fields and pushes them to
// the remote customer when one exists.
type UpdateRecordRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// ChargeRequest performs a one-off charge against the record.
type ChargeRequest struct {
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency,omitempty"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
	// IdempotencyKey must be reused when retrying after a 503.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// SubscribeRequest activates a plan for the record.
type SubscribeRequest struct {
	Name            string `json:"name,omitempty"`
	Plan            string `json:"plan"`
	Quantity        int64  `json:"quantity,omitempty"`
	TrialPeriodDays *int   `json:"trial_period_days,omitempty"`
	IdempotencyKey  string `json:"idempotency_key,omitempty"`
}

// UpdatePaymentMethodRequest sets the record's default payment method.
type UpdatePaymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

// InvoiceRequest creates and collects an ad-hoc invoice.
type InvoiceRequest struct {
	Description string `json:"description,omitempty"`
}

// CustomerResponse is the resolved remote customer.
type CustomerResponse struct {
	ProcessorID            string `json:"processor_id"`
	Email                  string `json:"email,omitempty"`
	Name                   string `json:"name,omitempty"`
	DefaultPaymentMethodID string `json:"default_payment_method_id,omitempty"`
}

// PaymentResponse reports an intent that may need a client-side follow-up.
type PaymentResponse struct {
	Kind           string `json:"kind"`
	IntentID       string `json:"intent_id"`
	Status         string `json:"status"`
	ClientSecret   string `json:"client_secret,omitempty"`
	RequiresAction bool   `json:"requires_action"`
}

func paymentResponse(p *billing.Payment) *PaymentResponse {
	if p == nil {
		return nil
	}
	return &PaymentResponse{
		Kind:           string(p.Kind),
		IntentID:       p.IntentID,
		Status:         string(p.Status),
		ClientSecret:   p.ClientSecret,
		RequiresAction: p.RequiresAction(),
	}
}

// ChargeResponse is the outcome of a charge request.
type ChargeResponse struct {
	Payment *PaymentResponse `json:"payment"`
	Charge  *billing.Charge  `json:"charge,omitempty"`
}

// SubscribeResponse is the outcome of a subscribe request.
type SubscribeResponse struct {
	Subscription *billing.Subscription `json:"subscription"`
	Payment      *PaymentResponse      `json:"payment,omitempty"`
}

// UpdatePaymentMethodResponse reports the card cache after the default
// payment method change.
type UpdatePaymentMethodResponse struct {
	Updated      bool   `json:"updated"`
	CardBrand    string `json:"card_brand,omitempty"`
	CardLast4    string `json:"card_last4,omitempty"`
	CardExpMonth int    `json:"card_exp_month,omitempty"`
	CardExpYear  int    `json:"card_exp_year,omitempty"`
}
