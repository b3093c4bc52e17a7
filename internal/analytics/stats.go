// Package analytics runs read-only aggregate queries over persisted
// ticket sales. The results feed the dashboard charts and the
// recommendation engine; this package knows nothing about how either
// consumes them.
package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/festops/festops/internal/domain"
)

// Valid group-by dimensions for sales aggregates.
const (
	GroupByProvider = "provider"
	GroupByZone     = "zone"
	GroupByChannel  = "channel"
)

var groupColumns = map[string]string{
	GroupByProvider: "provider",
	GroupByZone:     "COALESCE(zone_name, '(none)')",
	GroupByChannel:  "COALESCE(channel, '(none)')",
}

// Service answers aggregate sales queries.
type Service struct{ db *sql.DB }

// NewService creates an analytics service over the given database.
func NewService(db *sql.DB) *Service { return &Service{db: db} }

// SalesByGroup returns ticket counts and revenue grouped by one of the
// supported dimensions, largest revenue first.
func (s *Service) SalesByGroup(ctx context.Context, groupBy string) ([]domain.SalesAggregate, error) {
	col, ok := groupColumns[groupBy]
	if !ok {
		return nil, fmt.Errorf("unsupported group dimension %q", groupBy)
	}

	query := fmt.Sprintf(`
		SELECT %s AS group_key,
		       COUNT(*) AS ticket_count,
		       SUM(price * COALESCE(quantity, 1)) AS revenue
		FROM ticket_sales
		GROUP BY group_key
		ORDER BY revenue DESC`, col)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sales by %s: %w", groupBy, err)
	}
	defer rows.Close()

	var out []domain.SalesAggregate
	for rows.Next() {
		var agg domain.SalesAggregate
		if err := rows.Scan(&agg.GroupKey, &agg.TicketCount, &agg.Revenue); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// Totals returns the overall ticket count and revenue.
func (s *Service) Totals(ctx context.Context) (int, float64, error) {
	var count int
	var revenue sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(price * COALESCE(quantity, 1))
		FROM ticket_sales`).Scan(&count, &revenue)
	if err != nil {
		return 0, 0, fmt.Errorf("sales totals: %w", err)
	}
	return count, revenue.Float64, nil
}
