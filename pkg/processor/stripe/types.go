package stripe

import (
	"encoding/json"
	"time"

	"github.com/payforge/payforge/pkg/processor"
)

// wireExpandableID decodes a Stripe expandable field, which is either a bare
// id string or an expanded object with an "id" key.
type wireExpandableID struct {
	ID string
}

func (e *wireExpandableID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &e.ID)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.ID = obj.ID
	return nil
}

// Wire types for Stripe JSON deserialization. Only the fields the adapter
// reads are declared.

type wireCustomer struct {
	ID              string              `json:"id"`
	Email           string              `json:"email"`
	Name            string              `json:"name"`
	InvoiceSettings wireInvoiceSettings `json:"invoice_settings"`
}

type wireInvoiceSettings struct {
	DefaultPaymentMethod wireExpandableID `json:"default_payment_method"`
}

type wirePaymentMethod struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Card *wireCard `json:"card"`
}

type wireCard struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

type wirePaymentIntent struct {
	ID            string           `json:"id"`
	Status        string           `json:"status"`
	Amount        int64            `json:"amount"`
	Currency      string           `json:"currency"`
	ClientSecret  string           `json:"client_secret"`
	LatestCharge  wireExpandableID `json:"latest_charge"`
	PaymentMethod wireExpandableID `json:"payment_method"`
}

type wireSetupIntent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
}

type wireSubscription struct {
	ID                 string                `json:"id"`
	Status             string                `json:"status"`
	Quantity           int64                 `json:"quantity"`
	TrialEnd           int64                 `json:"trial_end"`
	CurrentPeriodStart int64                 `json:"current_period_start"`
	CurrentPeriodEnd   int64                 `json:"current_period_end"`
	Items              wireSubscriptionItems `json:"items"`
	LatestInvoice      *wireInvoice          `json:"latest_invoice"`
	PendingSetupIntent *wireSetupIntent      `json:"pending_setup_intent"`
}

type wireSubscriptionItems struct {
	Data []wireSubscriptionItem `json:"data"`
}

type wireSubscriptionItem struct {
	Price wirePrice `json:"price"`
}

type wirePrice struct {
	ID string `json:"id"`
}

type wireInvoice struct {
	ID            string             `json:"id"`
	Status        string             `json:"status"`
	AmountDue     int64              `json:"amount_due"`
	Currency      string             `json:"currency"`
	Paid          bool               `json:"paid"`
	PeriodStart   int64              `json:"period_start"`
	PeriodEnd     int64              `json:"period_end"`
	PaymentIntent *wirePaymentIntent `json:"payment_intent"`
}

// mapCustomer converts a Stripe customer to the neutral type.
func mapCustomer(c *wireCustomer) *processor.Customer {
	return &processor.Customer{
		ID:                     c.ID,
		Email:                  c.Email,
		Name:                   c.Name,
		DefaultPaymentMethodID: c.InvoiceSettings.DefaultPaymentMethod.ID,
	}
}

func mapPaymentMethod(pm *wirePaymentMethod) *processor.PaymentMethod {
	out := &processor.PaymentMethod{ID: pm.ID, Type: pm.Type}
	if pm.Card != nil {
		out.Card = &processor.Card{
			Brand:    pm.Card.Brand,
			Last4:    pm.Card.Last4,
			ExpMonth: pm.Card.ExpMonth,
			ExpYear:  pm.Card.ExpYear,
		}
	}
	return out
}

func mapPaymentIntent(pi *wirePaymentIntent) *processor.PaymentIntent {
	return &processor.PaymentIntent{
		ID:              pi.ID,
		Status:          processor.IntentStatus(pi.Status),
		Amount:          pi.Amount,
		Currency:        pi.Currency,
		ClientSecret:    pi.ClientSecret,
		ChargeID:        pi.LatestCharge.ID,
		PaymentMethodID: pi.PaymentMethod.ID,
	}
}

func mapSetupIntent(si *wireSetupIntent) *processor.SetupIntent {
	return &processor.SetupIntent{
		ID:           si.ID,
		Status:       processor.IntentStatus(si.Status),
		ClientSecret: si.ClientSecret,
	}
}

func mapSubscription(sub *wireSubscription) *processor.Subscription {
	out := &processor.Subscription{
		ID:                 sub.ID,
		Status:             sub.Status,
		Quantity:           sub.Quantity,
		TrialEnd:           unixTime(sub.TrialEnd),
		CurrentPeriodStart: unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(sub.CurrentPeriodEnd),
	}
	if len(sub.Items.Data) > 0 {
		out.PlanID = sub.Items.Data[0].Price.ID
	}
	if sub.LatestInvoice != nil {
		out.LatestInvoice = mapInvoice(sub.LatestInvoice)
	}
	if sub.PendingSetupIntent != nil {
		out.PendingSetupIntent = mapSetupIntent(sub.PendingSetupIntent)
	}
	return out
}

func mapInvoice(inv *wireInvoice) *processor.Invoice {
	out := &processor.Invoice{
		ID:          inv.ID,
		Status:      inv.Status,
		AmountDue:   inv.AmountDue,
		Currency:    inv.Currency,
		Paid:        inv.Paid,
		PeriodStart: unixTime(inv.PeriodStart),
		PeriodEnd:   unixTime(inv.PeriodEnd),
	}
	if inv.PaymentIntent != nil {
		out.PaymentIntent = mapPaymentIntent(inv.PaymentIntent)
	}
	return out
}

// unixTime converts a Stripe epoch-seconds field; zero means absent.
func unixTime(secs int64) *time.Time {
	if secs == 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}
