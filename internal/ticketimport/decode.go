package ticketimport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DecodeError indicates the uploaded file could not be turned into rows.
// It is fatal to the import session; the operator must re-upload.
type DecodeError struct {
	File   string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.File, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode reads an uploaded file into a Table. The extension (without dot,
// case-insensitive) selects the decoder: "csv" for UTF-8 CSV with a header
// row, "xlsx"/"xls" for spreadsheet binaries (first sheet only).
// Decoding is a pure read with no side effects.
func Decode(data []byte, fileName, ext string) (*Table, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "csv":
		return decodeCSV(data, fileName)
	case "xlsx", "xls":
		return decodeExcel(data, fileName)
	default:
		return nil, &DecodeError{File: fileName, Reason: fmt.Sprintf("unsupported extension %q", ext)}
	}
}

// numberPattern matches a bare integer or decimal, the only textual shapes
// the decoder promotes to a number cell. Everything fancier (currency
// symbols, thousands separators) stays text for the normalizer to handle.
var numberPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

func classifyText(s string) RawCell {
	s = strings.TrimSpace(s)
	if s == "" {
		return EmptyCell()
	}
	if numberPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return NumberCell(f)
		}
	}
	return TextCell(s)
}

func decodeCSV(data []byte, fileName string) (*Table, error) {
	reader := csv.NewReader(stripBOM(bytes.NewReader(data)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	all, err := reader.ReadAll()
	if err != nil {
		return nil, &DecodeError{File: fileName, Reason: "malformed CSV", Err: err}
	}

	// First non-empty line is the header.
	headerIdx := -1
	for i, rec := range all {
		if !recordEmpty(rec) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, &DecodeError{File: fileName, Reason: "file has no header row"}
	}

	columns := make([]string, len(all[headerIdx]))
	for i, h := range all[headerIdx] {
		columns[i] = strings.TrimSpace(h)
	}

	table := &Table{SourceName: fileName, Columns: columns}
	for _, rec := range all[headerIdx+1:] {
		if recordEmpty(rec) {
			continue
		}
		row := make(SourceRow, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = classifyText(rec[i])
			} else {
				row[col] = EmptyCell()
			}
		}
		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 {
		return nil, &DecodeError{File: fileName, Reason: "file has no data rows"}
	}
	return table, nil
}

func decodeExcel(data []byte, fileName string) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{File: fileName, Reason: "unreadable spreadsheet", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &DecodeError{File: fileName, Reason: "spreadsheet has no sheets"}
	}
	sheet := sheets[0]

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &DecodeError{File: fileName, Reason: "failed to read rows", Err: err}
	}

	headerIdx := -1
	for i, rec := range raw {
		if !recordEmpty(rec) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, &DecodeError{File: fileName, Reason: "sheet has no header row"}
	}

	columns := make([]string, len(raw[headerIdx]))
	for i, h := range raw[headerIdx] {
		columns[i] = strings.TrimSpace(h)
	}

	table := &Table{SourceName: fileName, Columns: columns}
	for r := headerIdx + 1; r < len(raw); r++ {
		rec := raw[r]
		if recordEmpty(rec) {
			continue
		}
		row := make(SourceRow, len(columns))
		for c, col := range columns {
			if c >= len(rec) {
				row[col] = EmptyCell()
				continue
			}
			row[col] = classifyExcelCell(f, sheet, c, r, rec[c])
		}
		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 {
		return nil, &DecodeError{File: fileName, Reason: "sheet has no data rows"}
	}
	return table, nil
}

// classifyExcelCell converts one raw spreadsheet cell. Numeric cells whose
// style applies a date format decode as native dates; other numerics stay
// numbers, everything else follows the CSV text rules.
func classifyExcelCell(f *excelize.File, sheet string, col, rowIdx int, raw string) RawCell {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return EmptyCell()
	}

	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return classifyText(raw)
	}

	axis, err := excelize.CoordinatesToCellName(col+1, rowIdx+1)
	if err == nil && cellHasDateStyle(f, sheet, axis) {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return DateCell(t.UTC())
		}
	}
	return NumberCell(serial)
}

// Built-in number format IDs that render as dates or times.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true,
	20: true, 21: true, 22: true, 45: true, 46: true, 47: true,
}

func cellHasDateStyle(f *excelize.File, sheet, axis string) bool {
	styleID, err := f.GetCellStyle(sheet, axis)
	if err != nil {
		return false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if builtinDateFormats[style.NumFmt] {
		return true
	}
	if style.CustomNumFmt != nil {
		fmtStr := strings.ToLower(*style.CustomNumFmt)
		return strings.ContainsAny(fmtStr, "ymd") && !strings.Contains(fmtStr, "#")
	}
	return false
}

func recordEmpty(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := r.Read(buf)
	if err != nil || n < 3 {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
