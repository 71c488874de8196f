package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payforge/payforge/pkg/billing"
)

func newMockDB(t *testing.T) (*RecordStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRecordStore(db), mock
}

func recordRows(record *billing.BillingRecord) *sqlmock.Rows {
	var lastSyncedAt interface{}
	if record.LastSyncedAt != nil {
		lastSyncedAt = *record.LastSyncedAt
	}
	return sqlmock.NewRows([]string{
		"id", "email", "name", "processor_name", "processor_id", "connected_account_id",
		"card_brand", "card_last4", "card_exp_month", "card_exp_year", "pending_card_token",
		"last_synced_at", "version", "created_at", "updated_at",
	}).AddRow(
		record.ID, record.Email, record.Name, record.ProcessorName, record.ProcessorID,
		record.ConnectedAccountID, record.CardBrand, record.CardLast4, record.CardExpMonth,
		record.CardExpYear, record.PendingCardToken, lastSyncedAt, record.Version,
		record.CreatedAt, record.UpdatedAt,
	)
}

func TestCreateRecord(t *testing.T) {
	store, mock := newMockDB(t)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO billing_records`).
		WithArgs("jo@example.com", "Jo", "", "pm_tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "created_at", "updated_at"}).
			AddRow(int64(1), int64(1), now, now))

	record := &billing.BillingRecord{Email: "jo@example.com", Name: "Jo", PendingCardToken: "pm_tok"}
	require.NoError(t, store.CreateRecord(context.Background(), record))
	assert.Equal(t, int64(1), record.ID)
	assert.Equal(t, int64(1), record.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecord(t *testing.T) {
	store, mock := newMockDB(t)

	lastSync := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM billing_records WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(recordRows(&billing.BillingRecord{
			ID:            1,
			Email:         "jo@example.com",
			ProcessorName: "stripe",
			ProcessorID:   "cus_123",
			CardBrand:     "Visa",
			LastSyncedAt:  &lastSync,
			Version:       3,
		}))

	record, err := store.GetRecord(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "cus_123", record.ProcessorID)
	assert.Equal(t, "Visa", record.CardBrand)
	require.NotNil(t, record.LastSyncedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecordNotFound(t *testing.T) {
	store, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM billing_records WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetRecord(context.Background(), 99)
	assert.ErrorIs(t, err, billing.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecordByProcessorID(t *testing.T) {
	store, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM billing_records\s+WHERE processor_name = \$1 AND processor_id = \$2`).
		WithArgs("stripe", "cus_123").
		WillReturnRows(recordRows(&billing.BillingRecord{
			ID:            1,
			ProcessorName: "stripe",
			ProcessorID:   "cus_123",
			Version:       1,
		}))

	record, err := store.GetRecordByProcessorID(context.Background(), "stripe", "cus_123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRecordIncrementsVersion(t *testing.T) {
	store, mock := newMockDB(t)

	record := &billing.BillingRecord{
		ID:            1,
		Email:         "jo@example.com",
		ProcessorName: "stripe",
		ProcessorID:   "cus_123",
		Version:       2,
	}
	mock.ExpectExec(`UPDATE billing_records`).
		WithArgs(record.Email, record.Name, record.ProcessorName, record.ProcessorID,
			record.ConnectedAccountID, record.CardBrand, record.CardLast4,
			record.CardExpMonth, record.CardExpYear, record.PendingCardToken,
			record.LastSyncedAt, record.ID, record.Version).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdateRecord(context.Background(), record))
	assert.Equal(t, int64(3), record.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRecordVersionConflict(t *testing.T) {
	store, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE billing_records`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := store.UpdateRecord(context.Background(), &billing.BillingRecord{ID: 1, Version: 1})
	assert.ErrorIs(t, err, billing.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRecordMissingRow(t *testing.T) {
	store, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE billing_records`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := store.UpdateRecord(context.Background(), &billing.BillingRecord{ID: 99, Version: 1})
	assert.ErrorIs(t, err, billing.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingCardTokens(t *testing.T) {
	store, mock := newMockDB(t)

	rows := recordRows(&billing.BillingRecord{ID: 1, Email: "a@example.com", PendingCardToken: "pm_1", Version: 1})
	mock.ExpectQuery(`SELECT (.+) FROM billing_records\s+WHERE pending_card_token <> ''`).
		WithArgs(50).
		WillReturnRows(rows)

	records, err := store.ListPendingCardTokens(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "pm_1", records[0].PendingCardToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}
