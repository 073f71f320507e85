package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order on startup; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id                  UUID PRIMARY KEY,
		email               TEXT NOT NULL UNIQUE,
		display_name        TEXT NOT NULL DEFAULT '',
		role                TEXT NOT NULL DEFAULT 'DOCTOR',
		speciality          TEXT NOT NULL DEFAULT '',
		verification_status TEXT NOT NULL DEFAULT 'PENDING'
			CHECK (verification_status IN ('PENDING', 'VERIFIED')),
		balance             BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_role_status_created
		ON accounts (role, verification_status, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS payout_requests (
		id               UUID PRIMARY KEY,
		account_id       UUID NOT NULL REFERENCES accounts(id),
		amount           BIGINT NOT NULL CHECK (amount > 0),
		status           TEXT NOT NULL DEFAULT 'PROCESSING'
			CHECK (status IN ('PROCESSING', 'PROCESSED', 'REJECTED')),
		rejection_reason TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at     TIMESTAMPTZ,
		processed_by     UUID
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payout_requests_status_created
		ON payout_requests (status, created_at)`,

	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id            UUID PRIMARY KEY,
		account_id    UUID NOT NULL REFERENCES accounts(id),
		delta         BIGINT NOT NULL CHECK (delta <> 0),
		category      TEXT NOT NULL,
		payout_id     UUID UNIQUE REFERENCES payout_requests(id),
		actor_id      UUID,
		description   TEXT NOT NULL DEFAULT '',
		balance_after BIGINT NOT NULL CHECK (balance_after >= 0),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_created
		ON ledger_entries (account_id, created_at)`,

	// Ledger rows are immutable once written
	`CREATE OR REPLACE FUNCTION ledger_entries_append_only() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'ledger_entries is append-only';
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS trg_ledger_entries_append_only ON ledger_entries`,
	`CREATE TRIGGER trg_ledger_entries_append_only
		BEFORE UPDATE OR DELETE ON ledger_entries
		FOR EACH ROW EXECUTE FUNCTION ledger_entries_append_only()`,
}

// EnsureSchema creates the tables the registry and settlement engine need
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
