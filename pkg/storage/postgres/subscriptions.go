package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/payforge/payforge/pkg/billing"
)

// SubscriptionStore implements billing.SubscriptionStore using PostgreSQL.
type SubscriptionStore struct {
	db *sql.DB
}

var _ billing.SubscriptionStore = (*SubscriptionStore)(nil)

// NewSubscriptionStore creates a new SubscriptionStore.
func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionColumns = `id, record_id, name, processor_plan_id, processor_subscription_id,
	status, quantity, trial_ends_at, current_period_end, created_at, updated_at`

// CreateSubscription inserts a new subscription row.
func (s *SubscriptionStore) CreateSubscription(ctx context.Context, sub *billing.Subscription) error {
	query := `
		INSERT INTO subscriptions (record_id, name, processor_plan_id,
			processor_subscription_id, status, quantity, trial_ends_at, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		sub.RecordID, sub.Name, sub.ProcessorPlanID, sub.ProcessorSubscriptionID,
		sub.Status, sub.Quantity, sub.TrialEndsAt, sub.CurrentPeriodEnd).
		Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetSubscriptionByProcessorID fetches a subscription by its remote id.
func (s *SubscriptionStore) GetSubscriptionByProcessorID(ctx context.Context, processorSubscriptionID string) (*billing.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE processor_subscription_id = $1`
	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, processorSubscriptionID))
	if err == sql.ErrNoRows {
		return nil, billing.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// ListSubscriptions returns all subscriptions for a record.
func (s *SubscriptionStore) ListSubscriptions(ctx context.Context, recordID int64) ([]*billing.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE record_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*billing.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// UpdateSubscriptionState mutates status and quantity of the matching row.
// Missing rows are reported, never created.
func (s *SubscriptionStore) UpdateSubscriptionState(ctx context.Context, processorSubscriptionID string, status billing.SubscriptionStatus, quantity int64) error {
	query := `
		UPDATE subscriptions SET status = $1, quantity = $2, updated_at = NOW()
		WHERE processor_subscription_id = $3
	`
	result, err := s.db.ExecContext(ctx, query, status, quantity, processorSubscriptionID)
	if err != nil {
		return fmt.Errorf("failed to update subscription state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return billing.ErrSubscriptionNotFound
	}
	return nil
}

func scanSubscription(row rowScanner) (*billing.Subscription, error) {
	sub := &billing.Subscription{}
	var trialEndsAt, currentPeriodEnd sql.NullTime
	err := row.Scan(
		&sub.ID, &sub.RecordID, &sub.Name, &sub.ProcessorPlanID,
		&sub.ProcessorSubscriptionID, &sub.Status, &sub.Quantity,
		&trialEndsAt, &currentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if trialEndsAt.Valid {
		t := trialEndsAt.Time
		sub.TrialEndsAt = &t
	}
	if currentPeriodEnd.Valid {
		t := currentPeriodEnd.Time
		sub.CurrentPeriodEnd = &t
	}
	return sub, nil
}
