package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payforge/payforge/pkg/billing"
	"github.com/payforge/payforge/pkg/processor"
)

// memRecordStore is an in-memory billing.RecordStore for handler tests.
type memRecordStore struct {
	mu      sync.Mutex
	records map[int64]*billing.BillingRecord
	nextID  int64
}

func newMemRecordStore() *memRecordStore {
	return &memRecordStore{records: make(map[int64]*billing.BillingRecord), nextID: 1}
}

func (s *memRecordStore) CreateRecord(ctx context.Context, record *billing.BillingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = s.nextID
	s.nextID++
	record.Version = 1
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt
	clone := *record
	s.records[record.ID] = &clone
	return nil
}

func (s *memRecordStore) GetRecord(ctx context.Context, id int64) (*billing.BillingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil, billing.ErrRecordNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *memRecordStore) GetRecordByProcessorID(ctx context.Context, processorName, processorID string) (*billing.BillingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.ProcessorName == processorName && record.ProcessorID == processorID {
			clone := *record
			return &clone, nil
		}
	}
	return nil, billing.ErrRecordNotFound
}

func (s *memRecordStore) UpdateRecord(ctx context.Context, record *billing.BillingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[record.ID]
	if !ok {
		return billing.ErrRecordNotFound
	}
	if stored.Version != record.Version {
		return billing.ErrVersionConflict
	}
	record.Version++
	clone := *record
	s.records[record.ID] = &clone
	return nil
}

func (s *memRecordStore) ListPendingCardTokens(ctx context.Context, limit int) ([]*billing.BillingRecord, error) {
	return nil, nil
}

// memSubscriptionStore is an in-memory billing.SubscriptionStore.
type memSubscriptionStore struct {
	mu     sync.Mutex
	subs   []*billing.Subscription
	nextID int64
}

func (s *memSubscriptionStore) CreateSubscription(ctx context.Context, sub *billing.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub.ID = s.nextID
	clone := *sub
	s.subs = append(s.subs, &clone)
	return nil
}

func (s *memSubscriptionStore) GetSubscriptionByProcessorID(ctx context.Context, processorSubscriptionID string) (*billing.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.ProcessorSubscriptionID == processorSubscriptionID {
			clone := *sub
			return &clone, nil
		}
	}
	return nil, billing.ErrSubscriptionNotFound
}

func (s *memSubscriptionStore) ListSubscriptions(ctx context.Context, recordID int64) ([]*billing.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*billing.Subscription
	for _, sub := range s.subs {
		if sub.RecordID == recordID {
			clone := *sub
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *memSubscriptionStore) UpdateSubscriptionState(ctx context.Context, processorSubscriptionID string, status billing.SubscriptionStatus, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.ProcessorSubscriptionID == processorSubscriptionID {
			sub.Status = status
			sub.Quantity = quantity
			return nil
		}
	}
	return billing.ErrSubscriptionNotFound
}

// memChargeStore is an in-memory billing.ChargeStore.
type memChargeStore struct {
	mu      sync.Mutex
	charges []*billing.Charge
	nextID  int64
}

func (s *memChargeStore) CreateCharge(ctx context.Context, charge *billing.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	charge.ID = s.nextID
	clone := *charge
	s.charges = append(s.charges, &clone)
	return nil
}

func (s *memChargeStore) GetChargeByIntentID(ctx context.Context, processorIntentID string) (*billing.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, charge := range s.charges {
		if charge.ProcessorIntentID == processorIntentID {
			clone := *charge
			return &clone, nil
		}
	}
	return nil, billing.ErrChargeNotFound
}

func (s *memChargeStore) ListCharges(ctx context.Context, recordID int64) ([]*billing.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*billing.Charge
	for _, charge := range s.charges {
		if charge.RecordID == recordID {
			clone := *charge
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *memChargeStore) ResolveCharge(ctx context.Context, processorIntentID string, status billing.ChargeStatus, processorChargeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, charge := range s.charges {
		if charge.ProcessorIntentID == processorIntentID {
			charge.Status = status
			if processorChargeID != "" {
				charge.ProcessorChargeID = processorChargeID
			}
			return nil
		}
	}
	return billing.ErrChargeNotFound
}

// mockClient is a mock implementation of processor.Client
type mockClient struct {
	createCustomerFunc      func(params processor.CustomerParams, opts processor.CallOptions) (*processor.Customer, error)
	retrieveCustomerFunc    func(id string, opts processor.CallOptions) (*processor.Customer, error)
	createPaymentIntentFunc func(params processor.PaymentIntentParams, opts processor.CallOptions) (*processor.PaymentIntent, error)
	createSubscriptionFunc  func(params processor.SubscriptionParams, opts processor.CallOptions) (*processor.Subscription, error)
	createInvoiceFunc       func(params processor.InvoiceParams, opts processor.CallOptions) (*processor.Invoice, error)
	upcomingInvoiceFunc     func(customerID string, opts processor.CallOptions) (*processor.Invoice, error)
}

func (m *mockClient) CreateCustomer(ctx context.Context, params processor.CustomerParams, opts processor.CallOptions) (*processor.Customer, error) {
	if m.createCustomerFunc != nil {
		return m.createCustomerFunc(params, opts)
	}
	return &processor.Customer{ID: "cus_123", Email: params.Email, Name: params.Name}, nil
}

func (m *mockClient) RetrieveCustomer(ctx context.Context, id string, opts processor.CallOptions) (*processor.Customer, error) {
	if m.retrieveCustomerFunc != nil {
		return m.retrieveCustomerFunc(id, opts)
	}
	return &processor.Customer{ID: id}, nil
}

func (m *mockClient) UpdateCustomer(ctx context.Context, id string, params processor.CustomerParams, opts processor.CallOptions) (*processor.Customer, error) {
	return &processor.Customer{ID: id, Email: params.Email, Name: params.Name}, nil
}

func (m *mockClient) AttachPaymentMethod(ctx context.Context, methodID, customerID string, opts processor.CallOptions) (*processor.PaymentMethod, error) {
	return &processor.PaymentMethod{
		ID:   methodID,
		Type: "card",
		Card: &processor.Card{Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030},
	}, nil
}

func (m *mockClient) RetrievePaymentMethod(ctx context.Context, methodID string, opts processor.CallOptions) (*processor.PaymentMethod, error) {
	return &processor.PaymentMethod{ID: methodID, Type: "card"}, nil
}

func (m *mockClient) SetDefaultPaymentMethod(ctx context.Context, customerID, methodID string, opts processor.CallOptions) error {
	return nil
}

func (m *mockClient) CreatePaymentIntent(ctx context.Context, params processor.PaymentIntentParams, opts processor.CallOptions) (*processor.PaymentIntent, error) {
	if m.createPaymentIntentFunc != nil {
		return m.createPaymentIntentFunc(params, opts)
	}
	return &processor.PaymentIntent{
		ID:       "pi_1",
		Status:   processor.IntentStatusSucceeded,
		Amount:   params.Amount,
		Currency: params.Currency,
		ChargeID: "ch_1",
	}, nil
}

func (m *mockClient) CreateSetupIntent(ctx context.Context, params processor.SetupIntentParams, opts processor.CallOptions) (*processor.SetupIntent, error) {
	return &processor.SetupIntent{ID: "seti_1", Status: processor.IntentStatusRequiresAction, ClientSecret: "secret"}, nil
}

func (m *mockClient) CreateSubscription(ctx context.Context, params processor.SubscriptionParams, opts processor.CallOptions) (*processor.Subscription, error) {
	if m.createSubscriptionFunc != nil {
		return m.createSubscriptionFunc(params, opts)
	}
	return &processor.Subscription{ID: "sub_1", Status: "active", PlanID: params.PlanID, Quantity: params.Quantity}, nil
}

func (m *mockClient) RetrieveSubscription(ctx context.Context, id string, opts processor.CallOptions) (*processor.Subscription, error) {
	return &processor.Subscription{ID: id, Status: "active"}, nil
}

func (m *mockClient) CreateInvoice(ctx context.Context, params processor.InvoiceParams, opts processor.CallOptions) (*processor.Invoice, error) {
	if m.createInvoiceFunc != nil {
		return m.createInvoiceFunc(params, opts)
	}
	return &processor.Invoice{ID: "in_1", Status: "paid", Paid: true}, nil
}

func (m *mockClient) RetrieveUpcomingInvoice(ctx context.Context, customerID string, opts processor.CallOptions) (*processor.Invoice, error) {
	if m.upcomingInvoiceFunc != nil {
		return m.upcomingInvoiceFunc(customerID, opts)
	}
	return &processor.Invoice{ID: "in_next", Status: "draft", AmountDue: 1000}, nil
}

type handlerFixture struct {
	router  *mux.Router
	records *memRecordStore
	subs    *memSubscriptionStore
	charges *memChargeStore
	client  *mockClient
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	records := newMemRecordStore()
	subs := &memSubscriptionStore{}
	charges := &memChargeStore{}
	client := &mockClient{}

	engine := billing.NewEngine(billing.EngineConfig{
		Records:       records,
		Subscriptions: subs,
		Charges:       charges,
		Client:        client,
		ProcessorName: "stripe",
	})
	handlers := NewBillingHandlers(engine, records, subs, charges, nil)
	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	return &handlerFixture{router: router, records: records, subs: subs, charges: charges, client: client}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *handlerFixture) seedRecord(t *testing.T, record *billing.BillingRecord) *billing.BillingRecord {
	t.Helper()
	require.NoError(t, f.records.CreateRecord(context.Background(), record))
	return record
}

func TestCreateRecordHandler(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/records", CreateRecordRequest{
		Email:     "jo@example.com",
		Name:      "Jo",
		CardToken: "pm_tok",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var created billing.BillingRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "jo@example.com", created.Email)
	assert.Equal(t, "pm_tok", created.PendingCardToken)
	// No remote customer yet; creation is lazy.
	assert.Empty(t, created.ProcessorID)
}

func TestCreateRecordHandlerRequiresEmail(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/records", CreateRecordRequest{Name: "Jo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRecordHandlerNotFound(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/records/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRecordHandlerBadID(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/records/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveCustomerHandler(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com"})

	rec := f.do(t, http.MethodPost, "/records/1/customer", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp CustomerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cus_123", resp.ProcessorID)

	// Repeat resolves to the same customer.
	rec = f.do(t, http.MethodPost, "/records/1/customer", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	stored, err := f.records.GetRecord(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "cus_123", stored.ProcessorID)
}

func TestResolveCustomerHandlerMissingRemote(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{
		Email:         "jo@example.com",
		ProcessorName: "stripe",
		ProcessorID:   "cus_gone",
	})
	f.client.retrieveCustomerFunc = func(id string, opts processor.CallOptions) (*processor.Customer, error) {
		return nil, processor.NotFound("retrieve_customer", "no such customer")
	}

	rec := f.do(t, http.MethodPost, "/records/1/customer", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestChargeHandlerSucceeded(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com", ProcessorName: "stripe", ProcessorID: "cus_123"})

	rec := f.do(t, http.MethodPost, "/records/1/charges", ChargeRequest{Amount: 2500})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp ChargeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Charge)
	assert.Equal(t, billing.ChargeStatusSucceeded, resp.Charge.Status)
	assert.Equal(t, "succeeded", string(resp.Payment.Status))
}

func TestChargeHandlerRequiresAction(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com", ProcessorName: "stripe", ProcessorID: "cus_123"})
	f.client.createPaymentIntentFunc = func(params processor.PaymentIntentParams, opts processor.CallOptions) (*processor.PaymentIntent, error) {
		return &processor.PaymentIntent{
			ID:           "pi_3ds",
			Status:       processor.IntentStatusRequiresAction,
			ClientSecret: "secret",
		}, nil
	}

	rec := f.do(t, http.MethodPost, "/records/1/charges", ChargeRequest{Amount: 2500})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp ChargeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Payment.RequiresAction)
	assert.Equal(t, "secret", resp.Payment.ClientSecret)
}

func TestChargeHandlerValidatesAmount(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com"})

	rec := f.do(t, http.MethodPost, "/records/1/charges", ChargeRequest{Amount: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChargeHandlerCardDeclined(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com", ProcessorName: "stripe", ProcessorID: "cus_123"})
	f.client.createPaymentIntentFunc = func(params processor.PaymentIntentParams, opts processor.CallOptions) (*processor.PaymentIntent, error) {
		return nil, processor.Rejected("create_payment_intent", "card_declined", "insufficient_funds", "Your card was declined.")
	}

	rec := f.do(t, http.MethodPost, "/records/1/charges", ChargeRequest{Amount: 2500})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestChargeHandlerProcessorDown(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com", ProcessorName: "stripe", ProcessorID: "cus_123"})
	f.client.createPaymentIntentFunc = func(params processor.PaymentIntentParams, opts processor.CallOptions) (*processor.PaymentIntent, error) {
		return nil, processor.Unavailable("create_payment_intent", fmt.Errorf("connection refused"))
	}

	rec := f.do(t, http.MethodPost, "/records/1/charges", ChargeRequest{Amount: 2500})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSubscribeHandlerActive(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com", ProcessorName: "stripe", ProcessorID: "cus_123"})

	rec := f.do(t, http.MethodPost, "/records/1/subscriptions", SubscribeRequest{Plan: "price_pro"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp SubscribeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Subscription)
	assert.Equal(t, "default", resp.Subscription.Name)
	assert.Nil(t, resp.Payment)
}

func TestSubscribeHandlerIncomplete(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com", ProcessorName: "stripe", ProcessorID: "cus_123"})
	f.client.createSubscriptionFunc = func(params processor.SubscriptionParams, opts processor.CallOptions) (*processor.Subscription, error) {
		return &processor.Subscription{
			ID:     "sub_1",
			Status: "incomplete",
			LatestInvoice: &processor.Invoice{
				ID: "in_1",
				PaymentIntent: &processor.PaymentIntent{
					ID:           "pi_sub",
					Status:       processor.IntentStatusRequiresAction,
					ClientSecret: "secret",
				},
			},
		}, nil
	}

	rec := f.do(t, http.MethodPost, "/records/1/subscriptions", SubscribeRequest{Plan: "price_pro"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp SubscribeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Payment)
	assert.Equal(t, "secret", resp.Payment.ClientSecret)
}

func TestSubscribeHandlerRequiresPlan(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com"})

	rec := f.do(t, http.MethodPost, "/records/1/subscriptions", SubscribeRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdatePaymentMethodHandler(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com", ProcessorName: "stripe", ProcessorID: "cus_123"})

	rec := f.do(t, http.MethodPut, "/records/1/payment-method", UpdatePaymentMethodRequest{PaymentMethodID: "pm_new"})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp UpdatePaymentMethodResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Updated)
	assert.Equal(t, "Visa", resp.CardBrand)
	assert.Equal(t, "4242", resp.CardLast4)
}

func TestCreateSetupIntentHandler(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com", ProcessorName: "stripe", ProcessorID: "cus_123"})

	rec := f.do(t, http.MethodPost, "/records/1/setup-intent", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "setup_intent", string(resp.Kind))
	assert.Equal(t, "secret", resp.ClientSecret)
}

func TestCreateInvoiceHandlerWithoutCustomer(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com"})

	rec := f.do(t, http.MethodPost, "/records/1/invoices", InvoiceRequest{Description: "setup fee"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateInvoiceHandler(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com", ProcessorName: "stripe", ProcessorID: "cus_123"})

	rec := f.do(t, http.MethodPost, "/records/1/invoices", InvoiceRequest{Description: "setup fee"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestGetSubscriptionHandler(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com", ProcessorName: "stripe", ProcessorID: "cus_123"})

	rec := f.do(t, http.MethodGet, "/records/1/subscriptions/sub_1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var sub processor.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, "sub_1", sub.ID)
	assert.Equal(t, "active", sub.Status)
}

func TestListChargesHandler(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com", ProcessorName: "stripe", ProcessorID: "cus_123"})

	rec := f.do(t, http.MethodPost, "/records/1/charges", ChargeRequest{Amount: 100})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/records/1/charges", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var charges []*billing.Charge
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &charges))
	require.Len(t, charges, 1)
	assert.Equal(t, int64(100), charges[0].Amount)
}

func TestUpdateRecordHandler(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedRecord(t, &billing.BillingRecord{Email: "jo@example.com", ProcessorName: "stripe", ProcessorID: "cus_123"})

	rec := f.do(t, http.MethodPut, "/records/1", UpdateRecordRequest{Email: "new@example.com", Name: "New Name"})
	assert.Equal(t, http.StatusOK, rec.Code)

	stored, err := f.records.GetRecord(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", stored.Email)
	assert.Equal(t, "New Name", stored.Name)
}
