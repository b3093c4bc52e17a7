package ticketimport

import "time"

// CellKind discriminates the RawCell tagged union.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
)

// RawCell is one decoded spreadsheet cell. Exactly one representation is
// set, selected by Kind. Decoders produce RawCells; the normalizer is the
// only consumer, so runtime type juggling never leaks past this package.
type RawCell struct {
	Kind   CellKind
	Text   string
	Number float64
	Date   time.Time
}

// TextCell returns a text-kind cell.
func TextCell(s string) RawCell { return RawCell{Kind: CellText, Text: s} }

// NumberCell returns a number-kind cell.
func NumberCell(f float64) RawCell { return RawCell{Kind: CellNumber, Number: f} }

// DateCell returns a native-date cell (spreadsheet date-formatted cells).
func DateCell(t time.Time) RawCell { return RawCell{Kind: CellDate, Date: t} }

// EmptyCell returns the empty cell.
func EmptyCell() RawCell { return RawCell{Kind: CellEmpty} }

// IsEmpty reports whether the cell carries no value.
func (c RawCell) IsEmpty() bool { return c.Kind == CellEmpty }

// SourceRow maps source column names to their raw cells for one data row.
// Rows are produced once by the decoder and never mutated afterwards.
type SourceRow map[string]RawCell

// Table is the fully decoded source file: ordered column names plus every
// data row, held in memory for the lifetime of one import session.
type Table struct {
	SourceName string
	Columns    []string
	Rows       []SourceRow
}

// RowCount returns the number of data rows (header excluded).
func (t *Table) RowCount() int { return len(t.Rows) }
