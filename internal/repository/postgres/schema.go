package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the tables this service owns if they don't exist.
// Run once at startup; safe to call repeatedly.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticket_sales (
			id          UUID PRIMARY KEY,
			batch_id    UUID NOT NULL,
			provider    TEXT NOT NULL,
			sale_date   TIMESTAMPTZ NOT NULL,
			price       DOUBLE PRECISION NOT NULL,
			zone_name   TEXT,
			channel     TEXT,
			buyer_email TEXT,
			quantity    BIGINT,
			is_resale   BOOLEAN,
			ticket_type TEXT,
			order_ref   TEXT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_sales_batch ON ticket_sales (batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_sales_provider_date ON ticket_sales (provider, sale_date)`,
		`CREATE TABLE IF NOT EXISTS import_ledger (
			id               UUID PRIMARY KEY,
			batch_id         UUID NOT NULL,
			source_file_name TEXT NOT NULL,
			provider         TEXT NOT NULL,
			mapping_used     JSONB NOT NULL DEFAULT '{}',
			imported_count   INTEGER NOT NULL,
			error_count      INTEGER NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_import_ledger_provider ON import_ledger (provider, created_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
