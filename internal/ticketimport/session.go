package ticketimport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/festops/festops/internal/domain"
	"github.com/festops/festops/internal/pkg/logger"
)

// State is the import wizard state. Transitions only move forward, except
// that editing the mapping during preview drops the session back to
// Mapping so the required-field check always runs against what will be
// committed.
type State string

const (
	StateUploading  State = "uploading"
	StateMapping    State = "mapping"
	StatePreviewing State = "previewing"
	StateCommitting State = "committing"
	StateComplete   State = "complete"
)

// StateError reports an operation attempted in the wrong wizard state,
// e.g. commit before a validated preview.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s in state %q", e.Op, e.State)
}

// CommitFailedError wraps a storage-layer fault during the batched write.
// The session stays in Committing and the same normalized batch can be
// retried without re-decoding or re-normalizing. No ledger entry exists
// for a failed commit.
type CommitFailedError struct {
	Err error
}

func (e *CommitFailedError) Error() string { return fmt.Sprintf("commit failed: %v", e.Err) }
func (e *CommitFailedError) Unwrap() error { return e.Err }

// TicketWriter persists a batch of normalized ticket sales in a single
// batched write.
type TicketWriter interface {
	InsertBatch(ctx context.Context, batch []domain.TicketSale) error
}

// Ledger appends completed-import audit entries.
type Ledger interface {
	Append(ctx context.Context, entry domain.ImportLedgerEntry) error
}

// Record is the normalized form of one source row: every target field key
// mapped to its typed value (nil = null), plus the required fields that
// normalized to null. A record with missing required fields is excluded
// from commit and counted as an error.
type Record struct {
	Row             int               `json:"row"`
	Fields          map[string]*Value `json:"fields"`
	MissingRequired []string          `json:"missing_required,omitempty"`
}

// Valid reports whether the record passes required-field validation.
func (r *Record) Valid() bool { return len(r.MissingRequired) == 0 }

// PreviewResult is the outcome of normalizing a bounded sample.
type PreviewResult struct {
	Records   []*Record `json:"records"`
	Sampled   int       `json:"sampled"`
	WouldFail int       `json:"would_fail"`
	TotalRows int       `json:"total_rows"`
}

// CommitResult is the per-row accounting of a completed commit. Both
// counts come strictly from the orchestrator's partitioning, never from
// estimates: Imported + Errors == TotalRows always holds. LedgerRecorded
// is false in the rare case the tickets landed but the audit append
// faulted; the counts are still authoritative.
type CommitResult struct {
	BatchID        string `json:"batch_id"`
	Imported       int    `json:"imported"`
	Errors         int    `json:"errors"`
	TotalRows      int    `json:"total_rows"`
	LedgerRecorded bool   `json:"ledger_recorded"`
}

// commitWorkers bounds concurrent row normalization during Commit.
const commitWorkers = 4

// Session owns one import attempt end to end: the decoded rows, the
// operator's mapping, and the normalized batch. A session serves a single
// operator; methods are safe for concurrent use but the wizard flow is
// inherently sequential.
type Session struct {
	ID        string
	Dataset   string
	Provider  string
	CreatedAt time.Time

	mu      sync.Mutex
	state   State
	table   *Table
	mapping *FieldMapping
	norm    *Normalizer

	// Normalized batch, held across failed commit attempts for retry.
	batchID       string
	pending       []domain.TicketSale
	pendingErrors int
	totalRows     int

	tickets TicketWriter
	ledger  Ledger
}

// NewSession creates a session over an already-decoded table. Decoding is
// the Uploading phase, so a fresh session starts in Mapping.
func NewSession(table *Table, provider, dataset string, norm *Normalizer, tickets TicketWriter, ledger Ledger) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Dataset:   dataset,
		Provider:  provider,
		CreatedAt: time.Now().UTC(),
		state:     StateMapping,
		table:     table,
		mapping:   NewFieldMapping(),
		norm:      norm,
		tickets:   tickets,
		ledger:    ledger,
	}
}

// State returns the current wizard state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Columns returns the decoded source column names in file order.
func (s *Session) Columns() []string { return s.table.Columns }

// SourceFileName returns the name of the uploaded file.
func (s *Session) SourceFileName() string { return s.table.SourceName }

// Mapping returns a snapshot of the current target->source mapping.
func (s *Session) Mapping() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping.Snapshot()
}

// SetMapping replaces the field mapping. Legal while mapping or
// previewing; editing during preview drops back to Mapping so the next
// preview or commit re-validates required coverage.
func (s *Session) SetMapping(pairs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateMapping && s.state != StatePreviewing {
		return &StateError{Op: "edit mapping", State: s.state}
	}
	m, err := MappingFrom(pairs)
	if err != nil {
		return err
	}
	s.mapping = m
	s.state = StateMapping
	return nil
}

// Preview normalizes the first sampleSize rows with the current mapping.
// It is side-effect free and re-entrant: every call restarts from the
// decoded source rows, never from a previous normalization, so repeated
// previews with an unchanged mapping are identical.
func (s *Session) Preview(sampleSize int) (*PreviewResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateMapping && s.state != StatePreviewing {
		return nil, &StateError{Op: "preview", State: s.state}
	}
	if err := s.mapping.Validate(); err != nil {
		return nil, err
	}

	if sampleSize <= 0 || sampleSize > len(s.table.Rows) {
		sampleSize = len(s.table.Rows)
	}

	result := &PreviewResult{
		Records:   make([]*Record, 0, sampleSize),
		Sampled:   sampleSize,
		TotalRows: len(s.table.Rows),
	}
	for i := 0; i < sampleSize; i++ {
		rec := s.normalizeRow(i)
		if !rec.Valid() {
			result.WouldFail++
		}
		result.Records = append(result.Records, rec)
	}

	s.state = StatePreviewing
	return result, nil
}

// Commit normalizes every decoded row, persists the valid records as one
// batched write, and appends a single ledger entry. Malformed rows never
// block the batch: they are excluded and counted. A storage fault returns
// CommitFailedError and leaves the session in Committing with the
// normalized batch intact for retry; the caller's context bounds the
// batched write, and a timeout is a CommitFailedError like any other
// storage fault.
func (s *Session) Commit(ctx context.Context) (*CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StatePreviewing:
		if err := s.mapping.Validate(); err != nil {
			return nil, err
		}
		s.buildBatch()
		s.state = StateCommitting
	case StateCommitting:
		// Retry: reuse the already-normalized batch.
	default:
		return nil, &StateError{Op: "commit", State: s.state}
	}

	if len(s.pending) > 0 {
		if err := s.tickets.InsertBatch(ctx, s.pending); err != nil {
			return nil, &CommitFailedError{Err: err}
		}
	}

	entry := domain.ImportLedgerEntry{
		BatchID:        s.batchID,
		SourceFileName: s.table.SourceName,
		Provider:       s.Provider,
		MappingUsed:    s.mapping.Snapshot(),
		ImportedCount:  len(s.pending),
		ErrorCount:     s.pendingErrors,
	}
	ledgerRecorded := true
	if err := s.ledger.Append(ctx, entry); err != nil {
		// The tickets are durable at this point; retrying the whole
		// commit would double-insert them. Flag the gap in the result
		// and the log instead.
		ledgerRecorded = false
		logger.Error("import ledger append failed",
			"batch_id", s.batchID, "provider", s.Provider, "error", err)
	}

	s.state = StateComplete
	logger.Info("import batch committed",
		"batch_id", s.batchID,
		"provider", s.Provider,
		"file", s.table.SourceName,
		"imported", entry.ImportedCount,
		"errors", entry.ErrorCount)

	return &CommitResult{
		BatchID:        s.batchID,
		Imported:       len(s.pending),
		Errors:         s.pendingErrors,
		TotalRows:      s.totalRows,
		LedgerRecorded: ledgerRecorded,
	}, nil
}

// buildBatch normalizes all rows concurrently and partitions them into the
// pending batch and an error count. Each row reads only itself plus the
// immutable mapping and schema, so fan-out is safe; results land in a
// slice indexed by row so accounting stays in original file order.
// Caller holds s.mu.
func (s *Session) buildBatch() {
	rows := len(s.table.Rows)
	records := make([]*Record, rows)

	var wg sync.WaitGroup
	indices := make(chan int)
	for w := 0; w < commitWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				records[i] = s.normalizeRow(i)
			}
		}()
	}
	for i := 0; i < rows; i++ {
		indices <- i
	}
	close(indices)
	wg.Wait()

	s.batchID = uuid.New().String()
	s.totalRows = rows
	s.pending = s.pending[:0]
	s.pendingErrors = 0
	for _, rec := range records {
		if !rec.Valid() {
			s.pendingErrors++
			continue
		}
		s.pending = append(s.pending, s.toTicketSale(rec))
	}
}

// normalizeRow maps and normalizes a single source row against the schema.
// Unmapped fields normalize from an empty cell, which yields null.
func (s *Session) normalizeRow(idx int) *Record {
	row := s.table.Rows[idx]
	rec := &Record{Row: idx, Fields: make(map[string]*Value)}

	for _, spec := range DefaultSchema() {
		cell := EmptyCell()
		if source := s.mapping.Source(spec.Key); source != "" {
			if c, ok := row[source]; ok {
				cell = c
			}
		}
		val := s.norm.Normalize(cell, spec)
		rec.Fields[spec.Key] = val
		if spec.Required && val == nil {
			rec.MissingRequired = append(rec.MissingRequired, spec.Key)
		}
	}
	return rec
}

func (s *Session) toTicketSale(rec *Record) domain.TicketSale {
	sale := domain.TicketSale{
		ID:       uuid.New().String(),
		BatchID:  s.batchID,
		Provider: s.Provider,
	}
	if v := rec.Fields[FieldSaleDate]; v != nil && v.Date != nil {
		sale.SaleDate = *v.Date
	}
	if v := rec.Fields[FieldPrice]; v != nil && v.Number != nil {
		sale.Price = *v.Number
	}
	if v := rec.Fields[FieldZoneName]; v != nil {
		sale.ZoneName = v.Text
	}
	if v := rec.Fields[FieldChannel]; v != nil {
		sale.Channel = v.Text
	}
	if v := rec.Fields[FieldBuyerEmail]; v != nil {
		sale.BuyerEmail = v.Text
	}
	if v := rec.Fields[FieldQuantity]; v != nil {
		sale.Quantity = v.Integer
	}
	if v := rec.Fields[FieldIsResale]; v != nil {
		sale.IsResale = v.Bool
	}
	if v := rec.Fields[FieldTicketType]; v != nil {
		sale.TicketType = v.Text
	}
	if v := rec.Fields[FieldOrderRef]; v != nil {
		sale.OrderRef = v.Text
	}
	return sale
}
