package billing

import "github.com/payforge/payforge/pkg/processor"

// PaymentKind distinguishes what a Payment wraps.
type PaymentKind string

const (
	PaymentKindPaymentIntent PaymentKind = "payment_intent"
	PaymentKindSetupIntent   PaymentKind = "setup_intent"
)

// Payment classifies a processor-reported payment or setup intent into an
// actionable outcome. It is ephemeral: created per operation, discarded once
// a terminal status is reached. Transitions are processor-driven; this type
// only classifies and validates.
type Payment struct {
	Kind     PaymentKind            `json:"kind"`
	IntentID string                 `json:"intent_id"`
	Status   processor.IntentStatus `json:"status"`
	// ClientSecret is the opaque payload a front end needs to complete a
	// 3-D-Secure style authentication step.
	ClientSecret string `json:"client_secret,omitempty"`
	Amount       int64  `json:"amount,omitempty"`
	Currency     string `json:"currency,omitempty"`

	chargeID string
}

// NewPayment wraps a payment intent.
func NewPayment(pi *processor.PaymentIntent) Payment {
	return Payment{
		Kind:         PaymentKindPaymentIntent,
		IntentID:     pi.ID,
		Status:       pi.Status,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     pi.Currency,
		chargeID:     pi.ChargeID,
	}
}

// NewSetupPayment wraps a setup intent.
func NewSetupPayment(si *processor.SetupIntent) Payment {
	return Payment{
		Kind:         PaymentKindSetupIntent,
		IntentID:     si.ID,
		Status:       si.Status,
		ClientSecret: si.ClientSecret,
	}
}

// Succeeded reports a terminal success.
func (p Payment) Succeeded() bool { return p.Status == processor.IntentStatusSucceeded }

// Canceled reports a terminal cancellation.
func (p Payment) Canceled() bool { return p.Status == processor.IntentStatusCanceled }

// RequiresAction reports that the client must complete an authentication
// step before the intent can progress.
func (p Payment) RequiresAction() bool { return p.Status == processor.IntentStatusRequiresAction }

// RequiresPaymentMethod reports that the prior attempt failed and the client
// must supply a new payment method.
func (p Payment) RequiresPaymentMethod() bool {
	return p.Status == processor.IntentStatusRequiresPaymentMethod
}

// Processing reports that the processor is still working on the intent.
func (p Payment) Processing() bool { return p.Status == processor.IntentStatusProcessing }

// Terminal reports whether the intent needs no further input from anyone.
func (p Payment) Terminal() bool { return p.Succeeded() || p.Canceled() }

// Actionable reports whether the caller must re-enter the flow to progress.
func (p Payment) Actionable() bool { return p.RequiresAction() || p.RequiresPaymentMethod() }

// ChargeID returns the remote charge produced by a succeeded payment intent.
func (p Payment) ChargeID() string { return p.chargeID }

// Validate checks that the reported state is internally consistent. A
// succeeded payment intent must carry a charge reference; an intent waiting
// on client action must carry the client payload.
func (p Payment) Validate() error {
	switch p.Status {
	case processor.IntentStatusSucceeded:
		if p.Kind == PaymentKindPaymentIntent && p.chargeID == "" {
			return &InvalidIntentStateError{
				IntentID: p.IntentID,
				Status:   p.Status,
				Reason:   "succeeded payment intent has no charge reference",
			}
		}
	case processor.IntentStatusRequiresAction:
		if p.ClientSecret == "" {
			return &InvalidIntentStateError{
				IntentID: p.IntentID,
				Status:   p.Status,
				Reason:   "requires_action intent has no client payload",
			}
		}
	case processor.IntentStatusRequiresPaymentMethod,
		processor.IntentStatusProcessing,
		processor.IntentStatusCanceled:
		// Nothing extra to check.
	default:
		return &InvalidIntentStateError{
			IntentID: p.IntentID,
			Status:   p.Status,
			Reason:   "unknown intent status",
		}
	}
	return nil
}
