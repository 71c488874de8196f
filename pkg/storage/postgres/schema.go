package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema statements executed by Migrate. Kept additive; existing tables are
// never dropped.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS billing_records (
		id                   BIGSERIAL PRIMARY KEY,
		email                TEXT NOT NULL,
		name                 TEXT NOT NULL DEFAULT '',
		processor_name       TEXT NOT NULL DEFAULT '',
		processor_id         TEXT NOT NULL DEFAULT '',
		connected_account_id TEXT NOT NULL DEFAULT '',
		card_brand           TEXT NOT NULL DEFAULT '',
		card_last4           TEXT NOT NULL DEFAULT '',
		card_exp_month       INT NOT NULL DEFAULT 0,
		card_exp_year        INT NOT NULL DEFAULT 0,
		pending_card_token   TEXT NOT NULL DEFAULT '',
		last_synced_at       TIMESTAMPTZ,
		version              BIGINT NOT NULL DEFAULT 1,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_billing_records_processor
		ON billing_records (processor_name, processor_id)
		WHERE processor_id <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_billing_records_pending_token
		ON billing_records (id)
		WHERE pending_card_token <> ''`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id                        BIGSERIAL PRIMARY KEY,
		record_id                 BIGINT NOT NULL REFERENCES billing_records(id),
		name                      TEXT NOT NULL,
		processor_plan_id         TEXT NOT NULL,
		processor_subscription_id TEXT NOT NULL UNIQUE,
		status                    TEXT NOT NULL,
		quantity                  BIGINT NOT NULL DEFAULT 1,
		trial_ends_at             TIMESTAMPTZ,
		current_period_end        TIMESTAMPTZ,
		created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_record ON subscriptions (record_id)`,
	`CREATE TABLE IF NOT EXISTS charges (
		id                  BIGSERIAL PRIMARY KEY,
		record_id           BIGINT NOT NULL REFERENCES billing_records(id),
		processor_intent_id TEXT NOT NULL UNIQUE,
		processor_charge_id TEXT NOT NULL DEFAULT '',
		amount              BIGINT NOT NULL,
		currency            TEXT NOT NULL,
		status              TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_charges_record ON charges (record_id)`,
}

// Migrate creates the billing tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
