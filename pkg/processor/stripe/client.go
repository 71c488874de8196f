package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/payforge/payforge/pkg/observability"
	"github.com/payforge/payforge/pkg/processor"
)

// apiBase is the default Stripe API base URL. Overridable in tests.
const apiBase = "https://api.stripe.com"

// Config holds the settings for creating a Client.
type Config struct {
	SecretKey string
	// BaseURL overrides the Stripe API endpoint; used by tests with httptest.
	BaseURL string
	// Timeout bounds each remote call. Defaults to 20 seconds.
	Timeout time.Duration
	// Metrics records per-operation call durations; optional.
	Metrics *observability.Metrics
}

// Client implements processor.Client against the Stripe REST API.
type Client struct {
	httpClient *http.Client
	secretKey  string
	baseURL    string
	metrics    *observability.Metrics
}

var _ processor.Client = (*Client)(nil)

// NewClient creates a Stripe-backed processor client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = apiBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		metrics:    cfg.Metrics,
	}
}

// CreateCustomer creates a remote customer.
func (c *Client) CreateCustomer(ctx context.Context, params processor.CustomerParams, opts processor.CallOptions) (*processor.Customer, error) {
	form := url.Values{}
	if params.Email != "" {
		form.Set("email", params.Email)
	}
	if params.Name != "" {
		form.Set("name", params.Name)
	}

	var cust wireCustomer
	if err := c.do(ctx, "CreateCustomer", http.MethodPost, "/v1/customers", form, opts, &cust); err != nil {
		return nil, err
	}
	return mapCustomer(&cust), nil
}

// RetrieveCustomer fetches a remote customer by id.
func (c *Client) RetrieveCustomer(ctx context.Context, id string, opts processor.CallOptions) (*processor.Customer, error) {
	var cust wireCustomer
	if err := c.do(ctx, "RetrieveCustomer", http.MethodGet, "/v1/customers/"+url.PathEscape(id), nil, opts, &cust); err != nil {
		return nil, err
	}
	return mapCustomer(&cust), nil
}

// UpdateCustomer updates the remote customer's profile fields.
func (c *Client) UpdateCustomer(ctx context.Context, id string, params processor.CustomerParams, opts processor.CallOptions) (*processor.Customer, error) {
	form := url.Values{}
	form.Set("email", params.Email)
	form.Set("name", params.Name)

	var cust wireCustomer
	if err := c.do(ctx, "UpdateCustomer", http.MethodPost, "/v1/customers/"+url.PathEscape(id), form, opts, &cust); err != nil {
		return nil, err
	}
	return mapCustomer(&cust), nil
}

// AttachPaymentMethod attaches a payment method to a customer.
func (c *Client) AttachPaymentMethod(ctx context.Context, methodID, customerID string, opts processor.CallOptions) (*processor.PaymentMethod, error) {
	form := url.Values{}
	form.Set("customer", customerID)

	var pm wirePaymentMethod
	path := "/v1/payment_methods/" + url.PathEscape(methodID) + "/attach"
	if err := c.do(ctx, "AttachPaymentMethod", http.MethodPost, path, form, opts, &pm); err != nil {
		return nil, err
	}
	return mapPaymentMethod(&pm), nil
}

// RetrievePaymentMethod fetches a payment method by id.
func (c *Client) RetrievePaymentMethod(ctx context.Context, methodID string, opts processor.CallOptions) (*processor.PaymentMethod, error) {
	var pm wirePaymentMethod
	path := "/v1/payment_methods/" + url.PathEscape(methodID)
	if err := c.do(ctx, "RetrievePaymentMethod", http.MethodGet, path, nil, opts, &pm); err != nil {
		return nil, err
	}
	return mapPaymentMethod(&pm), nil
}

// SetDefaultPaymentMethod updates the customer's invoice default method.
func (c *Client) SetDefaultPaymentMethod(ctx context.Context, customerID, methodID string, opts processor.CallOptions) error {
	form := url.Values{}
	form.Set("invoice_settings[default_payment_method]", methodID)

	var cust wireCustomer
	return c.do(ctx, "SetDefaultPaymentMethod", http.MethodPost, "/v1/customers/"+url.PathEscape(customerID), form, opts, &cust)
}

// CreatePaymentIntent creates a payment intent, optionally auto-confirming.
func (c *Client) CreatePaymentIntent(ctx context.Context, params processor.PaymentIntentParams, opts processor.CallOptions) (*processor.PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.Amount, 10))
	form.Set("currency", params.Currency)
	form.Set("customer", params.CustomerID)
	if params.PaymentMethodID != "" {
		form.Set("payment_method", params.PaymentMethodID)
	}
	if params.Confirm {
		form.Set("confirm", "true")
		form.Set("confirmation_method", "automatic")
	}
	if params.OffSession {
		form.Set("off_session", "true")
	}
	form.Add("expand[]", "latest_charge")

	var pi wirePaymentIntent
	if err := c.do(ctx, "CreatePaymentIntent", http.MethodPost, "/v1/payment_intents", form, opts, &pi); err != nil {
		return nil, err
	}
	return mapPaymentIntent(&pi), nil
}

// CreateSetupIntent creates a setup intent for verifying a payment method.
func (c *Client) CreateSetupIntent(ctx context.Context, params processor.SetupIntentParams, opts processor.CallOptions) (*processor.SetupIntent, error) {
	form := url.Values{}
	form.Set("customer", params.CustomerID)
	usage := params.Usage
	if usage == "" {
		usage = "off_session"
	}
	form.Set("usage", usage)

	var si wireSetupIntent
	if err := c.do(ctx, "CreateSetupIntent", http.MethodPost, "/v1/setup_intents", form, opts, &si); err != nil {
		return nil, err
	}
	return mapSetupIntent(&si), nil
}

// CreateSubscription creates a remote subscription with the first invoice's
// payment intent and any pending setup intent expanded.
func (c *Client) CreateSubscription(ctx context.Context, params processor.SubscriptionParams, opts processor.CallOptions) (*processor.Subscription, error) {
	form := url.Values{}
	form.Set("customer", params.CustomerID)
	form.Set("items[0][price]", params.PlanID)
	form.Set("items[0][quantity]", strconv.FormatInt(params.Quantity, 10))
	if params.OffSession {
		form.Set("off_session", "true")
	}
	if params.TrialPeriodDays != nil {
		form.Set("trial_period_days", strconv.Itoa(*params.TrialPeriodDays))
	} else if params.TrialFromPlan {
		form.Set("trial_from_plan", "true")
	}
	form.Add("expand[]", "latest_invoice.payment_intent")
	form.Add("expand[]", "pending_setup_intent")

	var sub wireSubscription
	if err := c.do(ctx, "CreateSubscription", http.MethodPost, "/v1/subscriptions", form, opts, &sub); err != nil {
		return nil, err
	}
	return mapSubscription(&sub), nil
}

// RetrieveSubscription fetches a subscription by id.
func (c *Client) RetrieveSubscription(ctx context.Context, id string, opts processor.CallOptions) (*processor.Subscription, error) {
	form := url.Values{}
	form.Add("expand[]", "latest_invoice.payment_intent")
	form.Add("expand[]", "pending_setup_intent")

	var sub wireSubscription
	path := "/v1/subscriptions/" + url.PathEscape(id) + "?" + form.Encode()
	if err := c.do(ctx, "RetrieveSubscription", http.MethodGet, path, nil, opts, &sub); err != nil {
		return nil, err
	}
	return mapSubscription(&sub), nil
}

// CreateInvoice creates an invoice, paying it immediately when requested.
func (c *Client) CreateInvoice(ctx context.Context, params processor.InvoiceParams, opts processor.CallOptions) (*processor.Invoice, error) {
	form := url.Values{}
	form.Set("customer", params.CustomerID)
	if params.Description != "" {
		form.Set("description", params.Description)
	}

	var inv wireInvoice
	if err := c.do(ctx, "CreateInvoice", http.MethodPost, "/v1/invoices", form, opts, &inv); err != nil {
		return nil, err
	}
	if !params.Pay {
		return mapInvoice(&inv), nil
	}

	var paid wireInvoice
	payPath := "/v1/invoices/" + url.PathEscape(inv.ID) + "/pay"
	if err := c.do(ctx, "CreateInvoice.pay", http.MethodPost, payPath, url.Values{}, opts, &paid); err != nil {
		return nil, err
	}
	return mapInvoice(&paid), nil
}

// RetrieveUpcomingInvoice previews the customer's next invoice.
func (c *Client) RetrieveUpcomingInvoice(ctx context.Context, customerID string, opts processor.CallOptions) (*processor.Invoice, error) {
	var inv wireInvoice
	path := "/v1/invoices/upcoming?customer=" + url.QueryEscape(customerID)
	if err := c.do(ctx, "RetrieveUpcomingInvoice", http.MethodGet, path, nil, opts, &inv); err != nil {
		return nil, err
	}
	return mapInvoice(&inv), nil
}

// do issues one authenticated request and decodes the response into out.
func (c *Client) do(ctx context.Context, op, method, path string, form url.Values, opts processor.CallOptions, out interface{}) error {
	if c.metrics != nil {
		start := time.Now()
		defer func() {
			c.metrics.ProcessorCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		}()
	}

	reqURL := c.baseURL + path
	var body *strings.Reader
	if method == http.MethodGet {
		if len(form) > 0 {
			sep := "?"
			if strings.Contains(path, "?") {
				sep = "&"
			}
			reqURL += sep + form.Encode()
		}
		body = strings.NewReader("")
	} else {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return processor.Unavailable(op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if opts.ConnectedAccount != "" {
		req.Header.Set("Stripe-Account", opts.ConnectedAccount)
	}
	if opts.IdempotencyKey != "" && method == http.MethodPost {
		req.Header.Set("Idempotency-Key", opts.IdempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return processor.Unavailable(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return processor.Unavailable(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
