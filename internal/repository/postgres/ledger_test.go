package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/festops/festops/internal/domain"
)

func TestLedgerAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO import_ledger`).
		WithArgs(sqlmock.AnyArg(), "b-1", "ventas.csv", "ticketera",
			`{"sale_date":"Fecha"}`, 2, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewLedgerRepo(db)
	err = repo.Append(context.Background(), domain.ImportLedgerEntry{
		BatchID:        "b-1",
		SourceFileName: "ventas.csv",
		Provider:       "ticketera",
		MappingUsed:    map[string]string{"sale_date": "Fecha"},
		ImportedCount:  2,
		ErrorCount:     1,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLedgerListByProvider(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	created := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "batch_id", "source_file_name", "provider", "mapping_used",
		"imported_count", "error_count", "created_at",
	}).AddRow("e-1", "b-1", "ventas.csv", "ticketera",
		[]byte(`{"sale_date":"Fecha","price":"Precio"}`), 2, 1, created)

	mock.ExpectQuery(`FROM import_ledger WHERE provider = \$1 ORDER BY created_at DESC`).
		WithArgs("ticketera", 50, 0).
		WillReturnRows(rows)

	repo := NewLedgerRepo(db)
	out, err := repo.ListByProvider(context.Background(), "ticketera", 0, 0)
	if err != nil {
		t.Fatalf("ListByProvider: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("entries = %d, want 1", len(out))
	}
	e := out[0]
	if e.MappingUsed["price"] != "Precio" {
		t.Errorf("mapping not decoded: %v", e.MappingUsed)
	}
	if e.TotalRows() != 3 {
		t.Errorf("TotalRows = %d, want 3", e.TotalRows())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLedgerListAllProviders(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM import_ledger ORDER BY created_at DESC`).
		WithArgs(25, 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "batch_id", "source_file_name", "provider", "mapping_used",
			"imported_count", "error_count", "created_at",
		}))

	repo := NewLedgerRepo(db)
	out, err := repo.ListByProvider(context.Background(), "", 25, 10)
	if err != nil {
		t.Fatalf("ListByProvider: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("entries = %d, want 0", len(out))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
