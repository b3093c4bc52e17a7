package ticketimport

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/festops/festops/internal/domain"
)

// Value is the canonical typed result of normalizing one cell. Exactly one
// representation is set, selected by the target field's semantic type.
// A nil *Value means the cell normalized to null.
type Value struct {
	Kind    domain.SemanticType `json:"kind"`
	Date    *time.Time          `json:"date,omitempty"`
	Number  *float64            `json:"number,omitempty"`
	Integer *int64              `json:"integer,omitempty"`
	Bool    *bool               `json:"bool,omitempty"`
	Text    *string             `json:"text,omitempty"`
}

func dateValue(t time.Time) *Value  { return &Value{Kind: domain.TypeDate, Date: &t} }
func numberValue(f float64) *Value  { return &Value{Kind: domain.TypeCurrency, Number: &f} }
func integerValue(i int64) *Value   { return &Value{Kind: domain.TypeInteger, Integer: &i} }
func boolValue(b bool) *Value       { return &Value{Kind: domain.TypeBoolean, Bool: &b} }
func textValue(s string) *Value     { return &Value{Kind: domain.TypeText, Text: &s} }

// DateFallback selects what happens when a date cell matches none of the
// parsing rules. The ticketing platforms this replaces silently substituted
// the current time, which fabricates plausible-looking sale dates; "reject"
// marks the value null instead so a required sale date fails the row.
type DateFallback string

const (
	FallbackNow    DateFallback = "now"
	FallbackReject DateFallback = "reject"
)

// Normalizer coerces raw cells into canonical typed values. It is pure
// apart from the injectable clock, so row normalization is safe to run
// concurrently and previews are deterministic under test.
type Normalizer struct {
	Now          func() time.Time
	DateFallback DateFallback
}

// NewNormalizer returns a normalizer with the given date fallback policy
// and a wall clock.
func NewNormalizer(fallback DateFallback) *Normalizer {
	if fallback != FallbackReject {
		fallback = FallbackNow
	}
	return &Normalizer{Now: time.Now, DateFallback: fallback}
}

// Normalize coerces one raw cell to the semantic type of the target field.
// Returns nil when the cell has no valid interpretation for that type.
func (n *Normalizer) Normalize(cell RawCell, spec domain.TargetFieldSpec) *Value {
	switch spec.Type {
	case domain.TypeDate:
		return n.normalizeDate(cell)
	case domain.TypeCurrency:
		return normalizeCurrency(cell)
	case domain.TypeInteger:
		return normalizeInteger(cell)
	case domain.TypeBoolean:
		return normalizeBoolean(cell)
	default:
		return normalizeText(cell)
	}
}

var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	dmyPattern     = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
)

// normalizeDate applies the dating rules in strict order: native date,
// ISO text, day-month-year text (the domain's local convention),
// spreadsheet serial, then the configured fallback.
func (n *Normalizer) normalizeDate(cell RawCell) *Value {
	switch cell.Kind {
	case CellDate:
		return dateValue(cell.Date.UTC())

	case CellText:
		s := strings.TrimSpace(cell.Text)
		if isoDatePattern.MatchString(s) {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return dateValue(t.UTC())
			}
			if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
				return dateValue(t)
			}
		}
		if m := dmyPattern.FindStringSubmatch(s); m != nil {
			day, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			year, _ := strconv.Atoi(m[3])
			t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			// time.Date normalizes out-of-range components (32/13/2024
			// becomes a real date); treat any drift as a failed parse.
			if t.Day() == day && int(t.Month()) == month && t.Year() == year {
				return dateValue(t)
			}
		}

	case CellNumber:
		return dateValue(serialToTime(cell.Number))

	case CellEmpty:
		// fall through to the fallback policy
	}

	if n.DateFallback == FallbackReject {
		return nil
	}
	return dateValue(n.Now().UTC())
}

// excelEpochOffsetDays is the distance in days between the spreadsheet
// serial epoch (1899-12-30) and the Unix epoch.
const excelEpochOffsetDays = 25569

func serialToTime(serial float64) time.Time {
	seconds := (serial - excelEpochOffsetDays) * 86400
	return time.Unix(int64(math.Round(seconds)), 0).UTC()
}

func normalizeCurrency(cell RawCell) *Value {
	switch cell.Kind {
	case CellNumber:
		return numberValue(cell.Number)
	case CellText:
		if f, ok := parseAmount(cell.Text); ok {
			return numberValue(f)
		}
	}
	return nil
}

func normalizeInteger(cell RawCell) *Value {
	switch cell.Kind {
	case CellNumber:
		if cell.Number == math.Trunc(cell.Number) {
			return integerValue(int64(cell.Number))
		}
	case CellText:
		if f, ok := parseAmount(cell.Text); ok && f == math.Trunc(f) {
			return integerValue(int64(f))
		}
	}
	return nil
}

// booleanSynonyms are the values treated as true, case-insensitively.
// Any other non-empty value is false; empty is null.
var booleanSynonyms = map[string]bool{
	"true": true, "sí": true, "si": true, "1": true, "yes": true,
}

func normalizeBoolean(cell RawCell) *Value {
	s := cellString(cell)
	if s == "" {
		return nil
	}
	return boolValue(booleanSynonyms[strings.ToLower(s)])
}

func normalizeText(cell RawCell) *Value {
	s := cellString(cell)
	if s == "" {
		return nil
	}
	return textValue(s)
}

// cellString renders any cell kind as trimmed text. Empty cells render "".
func cellString(cell RawCell) string {
	switch cell.Kind {
	case CellText:
		return strings.TrimSpace(cell.Text)
	case CellNumber:
		return strconv.FormatFloat(cell.Number, 'f', -1, 64)
	case CellDate:
		return cell.Date.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

// currencyJunk are characters stripped before numeric parsing: common
// currency symbols and every flavor of space.
const currencyJunk = "€$£¥ \t "

// parseAmount parses a currency-formatted string into a float. Separator
// disambiguation: a trailing period decimal wins, a comma after the last
// period is the decimal separator (European style), a lone comma with no
// period is a decimal separator.
func parseAmount(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		if strings.ContainsRune(currencyJunk, r) {
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()
	if s == "" {
		return 0, false
	}

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && dot > comma:
		// 1,234.56 — commas are thousands separators
		s = strings.ReplaceAll(s, ",", "")
	case dot >= 0 && comma >= 0:
		// 1.234,56 — periods are thousands separators, comma is decimal
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0:
		// comma is the decimal separator; any earlier commas are thousands
		s = s[:comma] + "." + s[comma+1:]
		s = strings.ReplaceAll(s, ",", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
