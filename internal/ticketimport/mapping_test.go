package ticketimport

import (
	"errors"
	"testing"
)

func TestMappingValidate(t *testing.T) {
	m := NewFieldMapping()

	err := m.Validate()
	var missing *MissingRequiredFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("Validate on empty mapping = %v, want MissingRequiredFieldsError", err)
	}
	if len(missing.Fields) != 2 || missing.Fields[0] != FieldPrice || missing.Fields[1] != FieldSaleDate {
		t.Errorf("missing = %v, want [price sale_date]", missing.Fields)
	}

	if err := m.Set(FieldSaleDate, "Fecha"); err != nil {
		t.Fatal(err)
	}
	if !errors.As(m.Validate(), &missing) || len(missing.Fields) != 1 || missing.Fields[0] != FieldPrice {
		t.Errorf("after mapping sale_date, missing = %v, want [price]", missing.Fields)
	}

	if err := m.Set(FieldPrice, "Precio"); err != nil {
		t.Fatal(err)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate with both required fields mapped = %v, want nil", err)
	}

	// Clearing a required field re-fails validation.
	if err := m.Set(FieldPrice, ""); err != nil {
		t.Fatal(err)
	}
	if m.Validate() == nil {
		t.Error("Validate should fail after clearing a required field")
	}
}

func TestMappingUnknownTarget(t *testing.T) {
	m := NewFieldMapping()
	if err := m.Set("ticket_color", "Color"); err == nil {
		t.Error("Set with unknown target should fail")
	}
	if _, err := MappingFrom(map[string]string{"nope": "X"}); err == nil {
		t.Error("MappingFrom with unknown target should fail")
	}
}

func TestMappingDuplicateSource(t *testing.T) {
	m := NewFieldMapping()
	if err := m.Set(FieldSaleDate, "Fecha"); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(FieldOrderRef, "Fecha"); err != nil {
		t.Errorf("two targets may share a source column: %v", err)
	}
	snap := m.Snapshot()
	if snap[FieldSaleDate] != "Fecha" || snap[FieldOrderRef] != "Fecha" {
		t.Errorf("snapshot = %v", snap)
	}
}

func TestMappingSnapshotIsCopy(t *testing.T) {
	m := NewFieldMapping()
	_ = m.Set(FieldSaleDate, "Fecha")
	snap := m.Snapshot()
	snap[FieldSaleDate] = "tampered"
	if m.Source(FieldSaleDate) != "Fecha" {
		t.Error("mutating the snapshot leaked into the mapping")
	}
}

func TestSuggestMapping(t *testing.T) {
	got := SuggestMapping([]string{"Fecha", "Precio", "Zona", "Unrecognized", "Email"})

	want := map[string]string{
		FieldSaleDate:   "Fecha",
		FieldPrice:      "Precio",
		FieldZoneName:   "Zona",
		FieldBuyerEmail: "Email",
	}
	if len(got) != len(want) {
		t.Fatalf("SuggestMapping = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("suggested[%s] = %q, want %q", k, got[k], v)
		}
	}
}

func TestSuggestMappingFirstAliasWins(t *testing.T) {
	got := SuggestMapping([]string{"Date", "Fecha"})
	if got[FieldSaleDate] != "Date" {
		t.Errorf("suggested sale_date = %q, want first match Date", got[FieldSaleDate])
	}
}
