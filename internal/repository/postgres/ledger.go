package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/festops/festops/internal/domain"
)

// LedgerRepo persists the append-only import audit trail. The core
// contract is Append and ListByProvider; no update or delete exists.
type LedgerRepo struct{ db *sql.DB }

// NewLedgerRepo creates a Postgres-backed import ledger.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// Append writes one ledger entry for a completed commit.
func (r *LedgerRepo) Append(ctx context.Context, entry domain.ImportLedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	mappingJSON, err := json.Marshal(entry.MappingUsed)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO import_ledger
			(id, batch_id, source_file_name, provider, mapping_used,
			 imported_count, error_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.BatchID, entry.SourceFileName, entry.Provider,
		string(mappingJSON), entry.ImportedCount, entry.ErrorCount, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// ListByProvider returns a provider's import history, most recent first.
// An empty provider lists every entry.
func (r *LedgerRepo) ListByProvider(ctx context.Context, provider string, limit, offset int) ([]domain.ImportLedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, batch_id, source_file_name, provider, mapping_used,
		       imported_count, error_count, created_at
		FROM import_ledger`
	args := []interface{}{}
	if provider != "" {
		query += ` WHERE provider = $1`
		args = append(args, provider)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []domain.ImportLedgerEntry
	for rows.Next() {
		var e domain.ImportLedgerEntry
		var mappingJSON []byte
		if err := rows.Scan(&e.ID, &e.BatchID, &e.SourceFileName, &e.Provider,
			&mappingJSON, &e.ImportedCount, &e.ErrorCount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if len(mappingJSON) > 0 {
			if err := json.Unmarshal(mappingJSON, &e.MappingUsed); err != nil {
				return nil, fmt.Errorf("decode mapping for %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
