package ticketimport

import (
	"fmt"
	"sort"
	"strings"
)

// FieldMapping is the operator-editable correspondence between target
// schema fields and source columns. An empty source means "unmapped".
// The zero value is not usable; construct with NewFieldMapping.
type FieldMapping struct {
	bySource map[string]string // target key -> source column
}

// NewFieldMapping returns an empty mapping for the default schema.
func NewFieldMapping() *FieldMapping {
	return &FieldMapping{bySource: make(map[string]string)}
}

// MappingFrom builds a mapping from a target->source map, e.g. a suggested
// mapping or one submitted by the mapping UI. Unknown target keys are
// rejected so typos surface immediately instead of as silent nulls.
func MappingFrom(pairs map[string]string) (*FieldMapping, error) {
	m := NewFieldMapping()
	for target, source := range pairs {
		if err := m.Set(target, source); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Set maps a target field to a source column. An empty source clears the
// mapping (always legal; Validate surfaces required-field gaps so the
// operator can experiment freely before finishing). Mapping two targets to
// the same source column is accepted: duplication is the operator's call.
func (m *FieldMapping) Set(targetKey, sourceColumn string) error {
	if _, ok := SchemaField(targetKey); !ok {
		return fmt.Errorf("unknown target field %q", targetKey)
	}
	sourceColumn = strings.TrimSpace(sourceColumn)
	if sourceColumn == "" {
		delete(m.bySource, targetKey)
		return nil
	}
	m.bySource[targetKey] = sourceColumn
	return nil
}

// Source returns the source column mapped to a target field, or "" when
// the field is unmapped.
func (m *FieldMapping) Source(targetKey string) string {
	return m.bySource[targetKey]
}

// Snapshot returns a copy of the mapping as a plain map, for JSON
// responses and the ledger entry.
func (m *FieldMapping) Snapshot() map[string]string {
	out := make(map[string]string, len(m.bySource))
	for k, v := range m.bySource {
		out[k] = v
	}
	return out
}

// MissingRequiredFieldsError reports required target fields with no
// source column. It blocks the transition out of the mapping state and is
// recoverable by completing the mapping.
type MissingRequiredFieldsError struct {
	Fields []string
}

func (e *MissingRequiredFieldsError) Error() string {
	return "required fields not mapped: " + strings.Join(e.Fields, ", ")
}

// Validate checks that every required field of the schema has a mapping.
// It returns nil exactly when the mapping covers all required fields.
func (m *FieldMapping) Validate() error {
	var missing []string
	for _, spec := range DefaultSchema() {
		if spec.Required && m.bySource[spec.Key] == "" {
			missing = append(missing, spec.Key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingRequiredFieldsError{Fields: missing}
	}
	return nil
}
