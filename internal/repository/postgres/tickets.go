// Package postgres implements the persistence layer against PostgreSQL:
// batched ticket-sale inserts, the append-only import ledger, and schema
// bootstrap.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/festops/festops/internal/domain"
)

// TicketRepo persists normalized ticket sales.
type TicketRepo struct{ db *sql.DB }

// NewTicketRepo creates a Postgres-backed ticket repository.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// InsertBatch writes an import batch in a single COPY inside one
// transaction. The batch is all-or-nothing: per-row validity was settled
// upstream by the import pipeline, so any failure here is a storage fault
// and the whole batch rolls back for retry.
func (r *TicketRepo) InsertBatch(ctx context.Context, batch []domain.TicketSale) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ticket batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("ticket_sales",
		"id", "batch_id", "provider", "sale_date", "price",
		"zone_name", "channel", "buyer_email", "quantity",
		"is_resale", "ticket_type", "order_ref"))
	if err != nil {
		return fmt.Errorf("prepare ticket copy: %w", err)
	}

	for _, t := range batch {
		_, err = stmt.ExecContext(ctx,
			t.ID, t.BatchID, t.Provider, t.SaleDate, t.Price,
			t.ZoneName, t.Channel, t.BuyerEmail, t.Quantity,
			t.IsResale, t.TicketType, t.OrderRef)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("buffer ticket row: %w", err)
		}
	}

	// Flush the COPY buffer.
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush ticket batch: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("close ticket copy: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ticket batch: %w", err)
	}
	return nil
}

// CountByBatch returns how many tickets a batch actually persisted.
func (r *TicketRepo) CountByBatch(ctx context.Context, batchID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ticket_sales WHERE batch_id = $1`, batchID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count batch %s: %w", batchID, err)
	}
	return n, nil
}
