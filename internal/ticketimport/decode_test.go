package ticketimport

import (
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestDecodeCSV(t *testing.T) {
	data := []byte("Fecha,Precio,Zona\n" +
		"2024-03-10,\"45,00\",VIP\n" +
		"10/03/2024,60.00,General\n" +
		"\n" +
		"bad-date,N/A,VIP\n")

	table, err := Decode(data, "ventas.csv", "csv")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	wantCols := []string{"Fecha", "Precio", "Zona"}
	if len(table.Columns) != len(wantCols) {
		t.Fatalf("columns = %v, want %v", table.Columns, wantCols)
	}
	for i, c := range wantCols {
		if table.Columns[i] != c {
			t.Errorf("column %d = %q, want %q", i, table.Columns[i], c)
		}
	}
	if len(table.Rows) != 3 {
		t.Fatalf("rows = %d, want 3 (blank line skipped)", len(table.Rows))
	}

	// Bare decimal promotes to a number cell; "45,00" stays text.
	if cell := table.Rows[1]["Precio"]; cell.Kind != CellNumber || cell.Number != 60 {
		t.Errorf("Precio row 1 = %+v, want number 60", cell)
	}
	if cell := table.Rows[0]["Precio"]; cell.Kind != CellText || cell.Text != "45,00" {
		t.Errorf("Precio row 0 = %+v, want text \"45,00\"", cell)
	}
	if cell := table.Rows[2]["Zona"]; cell.Kind != CellText || cell.Text != "VIP" {
		t.Errorf("Zona row 2 = %+v, want text VIP", cell)
	}
}

func TestDecodeCSVBOMAndRaggedRows(t *testing.T) {
	data := []byte("\xEF\xBB\xBFFecha,Precio\n2024-01-01,10.50,extra\n2024-01-02\n")

	table, err := Decode(data, "bom.csv", "csv")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if table.Columns[0] != "Fecha" {
		t.Errorf("BOM not stripped: first column = %q", table.Columns[0])
	}
	// Short rows pad with empty cells; extra cells are dropped.
	if cell := table.Rows[1]["Precio"]; cell.Kind != CellEmpty {
		t.Errorf("short row Precio = %+v, want empty", cell)
	}
	if _, ok := table.Rows[0]["Precio"]; !ok {
		t.Error("long row lost the Precio column")
	}
}

func TestDecodeCSVLeadingBlankLines(t *testing.T) {
	data := []byte("\n\nFecha,Precio\n2024-01-01,5\n")
	table, err := Decode(data, "padded.csv", "csv")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if table.Columns[0] != "Fecha" {
		t.Errorf("header not found past blank lines: %v", table.Columns)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		ext  string
	}{
		{"empty file", nil, "csv"},
		{"header only", []byte("Fecha,Precio\n"), "csv"},
		{"unsupported extension", []byte("x"), "pdf"},
		{"corrupt xlsx", []byte("not a zip"), "xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, "f."+tt.ext, tt.ext)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("Decode = %v, want *DecodeError", err)
			}
			if de.File == "" || de.Reason == "" {
				t.Errorf("DecodeError missing context: %+v", de)
			}
		})
	}
}

func TestDecodeXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetList()[0]

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(f.SetCellStr(sheet, "A1", "Fecha"))
	must(f.SetCellStr(sheet, "B1", "Precio"))
	must(f.SetCellStr(sheet, "C1", "Zona"))

	// A date-styled numeric cell should decode as a native date.
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	must(err)
	must(f.SetCellFloat(sheet, "A2", 45000, -1, 64))
	must(f.SetCellStyle(sheet, "A2", "A2", dateStyle))
	must(f.SetCellFloat(sheet, "B2", 45.5, -1, 64))
	must(f.SetCellStr(sheet, "C2", "VIP"))

	buf, err := f.WriteToBuffer()
	must(err)

	table, derr := Decode(buf.Bytes(), "ventas.xlsx", "xlsx")
	if derr != nil {
		t.Fatalf("Decode: %v", derr)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(table.Rows))
	}

	row := table.Rows[0]
	if cell := row["Fecha"]; cell.Kind != CellDate {
		t.Errorf("Fecha = %+v, want native date", cell)
	} else if got := cell.Date.Format("2006-01-02"); got != "2023-03-15" {
		t.Errorf("Fecha date = %s, want 2023-03-15", got)
	}
	if cell := row["Precio"]; cell.Kind != CellNumber || cell.Number != 45.5 {
		t.Errorf("Precio = %+v, want number 45.5", cell)
	}
	if cell := row["Zona"]; cell.Kind != CellText || cell.Text != "VIP" {
		t.Errorf("Zona = %+v, want text VIP", cell)
	}
}

func TestClassifyText(t *testing.T) {
	tests := []struct {
		in   string
		kind CellKind
	}{
		{"60.00", CellNumber},
		{"-3", CellNumber},
		{"45,00", CellText},
		{"€45.00", CellText},
		{"1,234.56", CellText},
		{"VIP", CellText},
		{"   ", CellEmpty},
		{"", CellEmpty},
	}
	for _, tt := range tests {
		if got := classifyText(tt.in); got.Kind != tt.kind {
			t.Errorf("classifyText(%q).Kind = %v, want %v", tt.in, got.Kind, tt.kind)
		}
	}
}

func TestDecodeExtensionCase(t *testing.T) {
	data := []byte("A\n1\n")
	for _, ext := range []string{"CSV", ".csv", "Csv"} {
		if _, err := Decode(data, "f.csv", ext); err != nil {
			t.Errorf("Decode with ext %q: %v", ext, err)
		}
	}
	if !strings.Contains(func() string {
		_, err := Decode(data, "f.txt", "txt")
		return err.Error()
	}(), "unsupported") {
		t.Error("unsupported extension error should say so")
	}
}
