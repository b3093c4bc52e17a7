package analytics

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSalesByGroup(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT provider AS group_key`).
		WillReturnRows(sqlmock.NewRows([]string{"group_key", "ticket_count", "revenue"}).
			AddRow("ticketera", 120, 5400.0).
			AddRow("reventa-hub", 30, 900.0))

	svc := NewService(db)
	aggs, err := svc.SalesByGroup(context.Background(), GroupByProvider)
	if err != nil {
		t.Fatalf("SalesByGroup: %v", err)
	}
	if len(aggs) != 2 {
		t.Fatalf("groups = %d, want 2", len(aggs))
	}
	if aggs[0].GroupKey != "ticketera" || aggs[0].TicketCount != 120 || aggs[0].Revenue != 5400.0 {
		t.Errorf("first group = %+v", aggs[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSalesByGroupZoneUsesCoalesce(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`COALESCE\(zone_name, '\(none\)'\) AS group_key`).
		WillReturnRows(sqlmock.NewRows([]string{"group_key", "ticket_count", "revenue"}).
			AddRow("(none)", 5, 50.0))

	svc := NewService(db)
	aggs, err := svc.SalesByGroup(context.Background(), GroupByZone)
	if err != nil {
		t.Fatalf("SalesByGroup: %v", err)
	}
	if aggs[0].GroupKey != "(none)" {
		t.Errorf("null zones should group under (none): %+v", aggs[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSalesByGroupRejectsUnknownDimension(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := NewService(db).SalesByGroup(context.Background(), "buyer_email"); err == nil {
		t.Error("arbitrary group dimensions must be rejected, not interpolated")
	}
}

func TestTotals(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\), SUM`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(150, 6300.0))

	count, revenue, err := NewService(db).Totals(context.Background())
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if count != 150 || revenue != 6300.0 {
		t.Errorf("totals = %d, %v", count, revenue)
	}
}

func TestTotalsEmptyTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	// SUM over zero rows is NULL.
	mock.ExpectQuery(`SELECT COUNT\(\*\), SUM`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(0, nil))

	count, revenue, err := NewService(db).Totals(context.Background())
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if count != 0 || revenue != 0 {
		t.Errorf("empty totals = %d, %v", count, revenue)
	}
}
