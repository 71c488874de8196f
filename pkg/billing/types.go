package billing

import (
	"strings"
	"time"

	"github.com/payforge/payforge/pkg/processor"
)

// BillingRecord is the persisted local entity representing one payer.
type BillingRecord struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`

	// ProcessorName and ProcessorID link the record to its remote customer.
	// ProcessorID is written at most once per processor.
	ProcessorName string `json:"processor_name,omitempty"`
	ProcessorID   string `json:"processor_id,omitempty"`

	// ConnectedAccountID scopes all remote calls to a platform sub-account.
	// Records with a connected account never cache card fields.
	ConnectedAccountID string `json:"connected_account_id,omitempty"`

	// Denormalized display cache of the default payment method. Written or
	// cleared as a unit.
	CardBrand    string `json:"card_brand,omitempty"`
	CardLast4    string `json:"card_last4,omitempty"`
	CardExpMonth int    `json:"card_exp_month,omitempty"`
	CardExpYear  int    `json:"card_exp_year,omitempty"`

	// PendingCardToken is a transient payment method token waiting to be
	// attached as the default method. Cleared once applied.
	PendingCardToken string `json:"pending_card_token,omitempty"`

	// LastSyncedAt records when remote state was last applied locally.
	// Webhook events carrying older state are discarded against it.
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	// Version is the optimistic concurrency token managed by the store.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasProcessorID reports whether the remote customer has been created.
func (r *BillingRecord) HasProcessorID() bool { return r.ProcessorID != "" }

// OnConnectedAccount reports whether the record is scoped to a platform
// sub-account.
func (r *BillingRecord) OnConnectedAccount() bool { return r.ConnectedAccountID != "" }

// applyCard overwrites the card display cache as a unit. Connected-account
// records are never updated; their cards are clones of the platform's.
func (r *BillingRecord) applyCard(card *processor.Card) {
	if r.OnConnectedAccount() || card == nil {
		return
	}
	r.CardBrand = capitalize(card.Brand)
	r.CardLast4 = card.Last4
	r.CardExpMonth = card.ExpMonth
	r.CardExpYear = card.ExpYear
	r.PendingCardToken = ""
}

// clearCard removes the card display cache as a unit. This is the explicit
// "no default payment method" state, distinct from "not yet synced".
func (r *BillingRecord) clearCard() {
	if r.OnConnectedAccount() {
		return
	}
	r.CardBrand = ""
	r.CardLast4 = ""
	r.CardExpMonth = 0
	r.CardExpYear = 0
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// SubscriptionStatus mirrors the processor's subscription lifecycle.
type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
)

// Subscription is one (record, plan) activation. Status is mutated only by
// reconciling processor responses or webhook events.
type Subscription struct {
	ID       int64 `json:"id"`
	RecordID int64 `json:"record_id"`
	// Name is the logical role of the subscription, e.g. "default".
	Name                    string             `json:"name"`
	ProcessorPlanID         string             `json:"processor_plan_id"`
	ProcessorSubscriptionID string             `json:"processor_subscription_id"`
	Status                  SubscriptionStatus `json:"status"`
	Quantity                int64              `json:"quantity"`
	TrialEndsAt             *time.Time         `json:"trial_ends_at,omitempty"`
	CurrentPeriodEnd        *time.Time         `json:"current_period_end,omitempty"`
	CreatedAt               time.Time          `json:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at"`
}

// Incomplete reports whether the subscription exists at the processor but
// the first payment has not been secured.
func (s *Subscription) Incomplete() bool { return s.Status == SubscriptionStatusIncomplete }

// OnTrial reports whether the subscription is in a trial period.
func (s *Subscription) OnTrial() bool { return s.Status == SubscriptionStatusTrialing }

// ChargeStatus is the lifecycle of a local charge entry.
type ChargeStatus string

const (
	// ChargeStatusPending marks a charge whose intent still requires a
	// client-side action. Resolved by webhook or confirmation follow-up.
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusSucceeded ChargeStatus = "succeeded"
	ChargeStatusFailed    ChargeStatus = "failed"
)

// Charge is the local record of one payment attempt.
type Charge struct {
	ID                 int64        `json:"id"`
	RecordID           int64        `json:"record_id"`
	ProcessorIntentID  string       `json:"processor_intent_id"`
	ProcessorChargeID  string       `json:"processor_charge_id,omitempty"`
	Amount             int64        `json:"amount"`
	Currency           string       `json:"currency"`
	Status             ChargeStatus `json:"status"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}
