package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/payforge/payforge/pkg/billing"
)

// ChargeStore implements billing.ChargeStore using PostgreSQL.
type ChargeStore struct {
	db *sql.DB
}

var _ billing.ChargeStore = (*ChargeStore)(nil)

// NewChargeStore creates a new ChargeStore.
func NewChargeStore(db *sql.DB) *ChargeStore {
	return &ChargeStore{db: db}
}

const chargeColumns = `id, record_id, processor_intent_id, processor_charge_id,
	amount, currency, status, created_at, updated_at`

// CreateCharge inserts a new charge entry. The unique index on the intent id
// makes a replayed insert for the same intent fail instead of duplicating.
func (s *ChargeStore) CreateCharge(ctx context.Context, charge *billing.Charge) error {
	query := `
		INSERT INTO charges (record_id, processor_intent_id, processor_charge_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		charge.RecordID, charge.ProcessorIntentID, charge.ProcessorChargeID,
		charge.Amount, charge.Currency, charge.Status).
		Scan(&charge.ID, &charge.CreatedAt, &charge.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create charge: %w", err)
	}
	return nil
}

// GetChargeByIntentID fetches a charge by its remote intent id.
func (s *ChargeStore) GetChargeByIntentID(ctx context.Context, processorIntentID string) (*billing.Charge, error) {
	query := `SELECT ` + chargeColumns + ` FROM charges WHERE processor_intent_id = $1`
	charge, err := scanCharge(s.db.QueryRowContext(ctx, query, processorIntentID))
	if err == sql.ErrNoRows {
		return nil, billing.ErrChargeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get charge: %w", err)
	}
	return charge, nil
}

// ListCharges returns all charges for a record.
func (s *ChargeStore) ListCharges(ctx context.Context, recordID int64) ([]*billing.Charge, error) {
	query := `SELECT ` + chargeColumns + ` FROM charges WHERE record_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list charges: %w", err)
	}
	defer rows.Close()

	var charges []*billing.Charge
	for rows.Next() {
		charge, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan charge: %w", err)
		}
		charges = append(charges, charge)
	}
	return charges, rows.Err()
}

// ResolveCharge moves a charge to its terminal status.
func (s *ChargeStore) ResolveCharge(ctx context.Context, processorIntentID string, status billing.ChargeStatus, processorChargeID string) error {
	query := `
		UPDATE charges
		SET status = $1,
		    processor_charge_id = CASE WHEN $2 <> '' THEN $2 ELSE processor_charge_id END,
		    updated_at = NOW()
		WHERE processor_intent_id = $3
	`
	result, err := s.db.ExecContext(ctx, query, status, processorChargeID, processorIntentID)
	if err != nil {
		return fmt.Errorf("failed to resolve charge: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return billing.ErrChargeNotFound
	}
	return nil
}

func scanCharge(row rowScanner) (*billing.Charge, error) {
	charge := &billing.Charge{}
	err := row.Scan(
		&charge.ID, &charge.RecordID, &charge.ProcessorIntentID,
		&charge.ProcessorChargeID, &charge.Amount, &charge.Currency,
		&charge.Status, &charge.CreatedAt, &charge.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return charge, nil
}
