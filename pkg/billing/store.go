package billing

import "context"

// RecordStore persists billing records. Implementations must return
// ErrRecordNotFound for missing ids and ErrVersionConflict when an update's
// version no longer matches the stored one.
type RecordStore interface {
	CreateRecord(ctx context.Context, record *BillingRecord) error
	GetRecord(ctx context.Context, id int64) (*BillingRecord, error)
	// GetRecordByProcessorID resolves the local record for a remote
	// customer id; used by webhook routing.
	GetRecordByProcessorID(ctx context.Context, processorName, processorID string) (*BillingRecord, error)
	// UpdateRecord persists the record if record.Version matches the stored
	// version, then increments it. The write must be a single durable
	// statement so processor id linkage is never half-applied.
	UpdateRecord(ctx context.Context, record *BillingRecord) error
	// ListPendingCardTokens returns records whose pending card token
	// survived a partial failure and still needs to be applied.
	ListPendingCardTokens(ctx context.Context, limit int) ([]*BillingRecord, error)
}

// SubscriptionStore persists local subscriptions.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, sub *Subscription) error
	GetSubscriptionByProcessorID(ctx context.Context, processorSubscriptionID string) (*Subscription, error)
	ListSubscriptions(ctx context.Context, recordID int64) ([]*Subscription, error)
	// UpdateSubscriptionState mutates only status and quantity of the
	// matching subscription; webhooks never create or delete rows.
	UpdateSubscriptionState(ctx context.Context, processorSubscriptionID string, status SubscriptionStatus, quantity int64) error
}

// ChargeStore persists local charge entries.
type ChargeStore interface {
	CreateCharge(ctx context.Context, charge *Charge) error
	GetChargeByIntentID(ctx context.Context, processorIntentID string) (*Charge, error)
	ListCharges(ctx context.Context, recordID int64) ([]*Charge, error)
	// ResolveCharge moves a pending charge to its terminal status once the
	// intent settles.
	ResolveCharge(ctx context.Context, processorIntentID string, status ChargeStatus, processorChargeID string) error
}
