package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/payforge/payforge/pkg/billing"
)

// RecordStore implements billing.RecordStore using PostgreSQL.
type RecordStore struct {
	db *sql.DB
}

var _ billing.RecordStore = (*RecordStore)(nil)

// NewRecordStore creates a new RecordStore.
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

const recordColumns = `id, email, name, processor_name, processor_id, connected_account_id,
	card_brand, card_last4, card_exp_month, card_exp_year, pending_card_token,
	last_synced_at, version, created_at, updated_at`

// CreateRecord inserts a new billing record.
func (s *RecordStore) CreateRecord(ctx context.Context, record *billing.BillingRecord) error {
	query := `
		INSERT INTO billing_records (email, name, connected_account_id, pending_card_token)
		VALUES ($1, $2, $3, $4)
		RETURNING id, version, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		record.Email, record.Name, record.ConnectedAccountID, record.PendingCardToken).
		Scan(&record.ID, &record.Version, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create billing record: %w", err)
	}
	return nil
}

// GetRecord fetches a billing record by id.
func (s *RecordStore) GetRecord(ctx context.Context, id int64) (*billing.BillingRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM billing_records WHERE id = $1`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, billing.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get billing record: %w", err)
	}
	return record, nil
}

// GetRecordByProcessorID fetches a billing record by its remote customer id.
func (s *RecordStore) GetRecordByProcessorID(ctx context.Context, processorName, processorID string) (*billing.BillingRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM billing_records
		WHERE processor_name = $1 AND processor_id = $2`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, processorName, processorID))
	if err == sql.ErrNoRows {
		return nil, billing.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get billing record by processor id: %w", err)
	}
	return record, nil
}

// UpdateRecord persists the record when its version still matches, then
// increments the version. A single statement keeps the processor id linkage
// atomic with everything else on the row.
func (s *RecordStore) UpdateRecord(ctx context.Context, record *billing.BillingRecord) error {
	query := `
		UPDATE billing_records
		SET email = $1, name = $2, processor_name = $3, processor_id = $4,
		    connected_account_id = $5, card_brand = $6, card_last4 = $7,
		    card_exp_month = $8, card_exp_year = $9, pending_card_token = $10,
		    last_synced_at = $11, version = version + 1, updated_at = NOW()
		WHERE id = $12 AND version = $13
	`
	result, err := s.db.ExecContext(ctx, query,
		record.Email, record.Name, record.ProcessorName, record.ProcessorID,
		record.ConnectedAccountID, record.CardBrand, record.CardLast4,
		record.CardExpMonth, record.CardExpYear, record.PendingCardToken,
		record.LastSyncedAt, record.ID, record.Version)
	if err != nil {
		return fmt.Errorf("failed to update billing record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a concurrent update from a missing row.
		var exists bool
		checkErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM billing_records WHERE id = $1)`, record.ID).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("failed to check billing record existence: %w", checkErr)
		}
		if !exists {
			return billing.ErrRecordNotFound
		}
		return billing.ErrVersionConflict
	}

	record.Version++
	return nil
}

// ListPendingCardTokens returns records with an unapplied card token.
func (s *RecordStore) ListPendingCardTokens(ctx context.Context, limit int) ([]*billing.BillingRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM billing_records
		WHERE pending_card_token <> ''
		ORDER BY updated_at
		LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending card tokens: %w", err)
	}
	defer rows.Close()

	var records []*billing.BillingRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan billing record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*billing.BillingRecord, error) {
	record := &billing.BillingRecord{}
	var lastSyncedAt sql.NullTime
	err := row.Scan(
		&record.ID, &record.Email, &record.Name, &record.ProcessorName,
		&record.ProcessorID, &record.ConnectedAccountID, &record.CardBrand,
		&record.CardLast4, &record.CardExpMonth, &record.CardExpYear,
		&record.PendingCardToken, &lastSyncedAt, &record.Version,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		record.LastSyncedAt = &t
	}
	return record, nil
}
