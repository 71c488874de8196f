package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payforge/payforge/pkg/webhooks"
)

const testSigningSecret = "whsec_test_secret"

// signPayload builds a Stripe-Signature header over the payload the way
// Stripe does: HMAC-SHA256 of "<timestamp>.<payload>".
func signPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(eventType, dataObject string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": %q,
		"created": 1756600000,
		"data": {"object": %s}
	}`, eventType, dataObject))
}

func TestParseRejectsBadSignature(t *testing.T) {
	v := NewEventVerifier(testSigningSecret)
	payload := eventPayload("customer.updated", `{"id":"cus_123"}`)

	_, err := v.Parse(payload, signPayload(payload, "whsec_wrong_secret", time.Now()))
	assert.Error(t, err)
}

func TestParseRejectsTamperedPayload(t *testing.T) {
	v := NewEventVerifier(testSigningSecret)
	payload := eventPayload("customer.updated", `{"id":"cus_123"}`)
	sig := signPayload(payload, testSigningSecret, time.Now())

	tampered := eventPayload("customer.updated", `{"id":"cus_999"}`)
	_, err := v.Parse(tampered, sig)
	assert.Error(t, err)
}

func TestParseCustomerUpdated(t *testing.T) {
	v := NewEventVerifier(testSigningSecret)
	payload := eventPayload("customer.updated", `{"id":"cus_123"}`)

	event, err := v.Parse(payload, signPayload(payload, testSigningSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, webhooks.EventCustomerUpdated, event.Type)
	assert.Equal(t, "cus_123", event.CustomerID)
	assert.Equal(t, int64(1756600000), event.CreatedAt.Unix())
}

func TestParsePaymentMethodAttached(t *testing.T) {
	v := NewEventVerifier(testSigningSecret)
	payload := eventPayload("payment_method.attached", `{"id":"pm_1","customer":"cus_123"}`)

	event, err := v.Parse(payload, signPayload(payload, testSigningSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, webhooks.EventPaymentMethodAttached, event.Type)
	assert.Equal(t, "cus_123", event.CustomerID)
}

func TestParsePaymentMethodDetachedExpandedCustomer(t *testing.T) {
	v := NewEventVerifier(testSigningSecret)
	payload := eventPayload("payment_method.detached", `{"id":"pm_1","customer":{"id":"cus_123"}}`)

	event, err := v.Parse(payload, signPayload(payload, testSigningSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, webhooks.EventPaymentMethodDetached, event.Type)
	assert.Equal(t, "cus_123", event.CustomerID)
}

func TestParseSubscriptionUpdated(t *testing.T) {
	v := NewEventVerifier(testSigningSecret)
	payload := eventPayload("customer.subscription.updated",
		`{"id":"sub_1","customer":"cus_123","status":"past_due","quantity":3}`)

	event, err := v.Parse(payload, signPayload(payload, testSigningSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, webhooks.EventSubscriptionUpdated, event.Type)
	assert.Equal(t, "sub_1", event.SubscriptionID)
	require.NotNil(t, event.Subscription)
	assert.Equal(t, "past_due", event.Subscription.Status)
	assert.Equal(t, int64(3), event.Subscription.Quantity)
}

func TestParseInvoicePaid(t *testing.T) {
	v := NewEventVerifier(testSigningSecret)
	payload := eventPayload("invoice.paid",
		`{"id":"in_1","customer":"cus_123","subscription":"sub_1","payment_intent":"pi_1","charge":"ch_1"}`)

	event, err := v.Parse(payload, signPayload(payload, testSigningSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, webhooks.EventInvoicePaid, event.Type)
	assert.Equal(t, "in_1", event.InvoiceID)
	assert.Equal(t, "sub_1", event.SubscriptionID)
	assert.Equal(t, "pi_1", event.PaymentIntentID)
	assert.Equal(t, "ch_1", event.ChargeID)
}

func TestParseUnknownEventTypePassesThrough(t *testing.T) {
	v := NewEventVerifier(testSigningSecret)
	payload := eventPayload("charge.refunded", `{"id":"ch_1"}`)

	event, err := v.Parse(payload, signPayload(payload, testSigningSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, webhooks.EventType("charge.refunded"), event.Type)
	assert.Empty(t, event.CustomerID)
}

func TestSignatureHeaderName(t *testing.T) {
	v := NewEventVerifier(testSigningSecret)
	assert.Equal(t, "Stripe-Signature", v.SignatureHeader())
}
