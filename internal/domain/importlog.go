package domain

import "time"

// ImportLedgerEntry is the append-only audit record written once per
// completed import commit. Entries are never updated or deleted; a failed
// persistence call produces no entry at all.
type ImportLedgerEntry struct {
	ID             string            `json:"id" db:"id"`
	BatchID        string            `json:"batch_id" db:"batch_id"`
	SourceFileName string            `json:"source_file_name" db:"source_file_name"`
	Provider       string            `json:"provider" db:"provider"`
	MappingUsed    map[string]string `json:"mapping_used" db:"mapping_used"`
	ImportedCount  int               `json:"imported_count" db:"imported_count"`
	ErrorCount     int               `json:"error_count" db:"error_count"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}

// TotalRows returns the number of data rows the commit processed.
func (e ImportLedgerEntry) TotalRows() int {
	return e.ImportedCount + e.ErrorCount
}
