package api

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/festops/festops/internal/config"
	"github.com/festops/festops/internal/pkg/distlock"
	"github.com/festops/festops/internal/pkg/logger"
	"github.com/festops/festops/internal/repository/postgres"
	"github.com/festops/festops/internal/ticketimport"
)

// ImportService drives the import wizard over HTTP. It owns the registry
// of live sessions and the per-dataset locks that enforce one session per
// target dataset at a time.
type ImportService struct {
	cfg     config.ImportConfig
	db      *sql.DB
	redis   *redis.Client
	tickets ticketimport.TicketWriter
	ledger  *postgres.LedgerRepo

	mu        sync.Mutex
	sessions  map[string]*liveSession // by session ID
	byDataset map[string]string       // dataset -> session ID
}

type liveSession struct {
	*ticketimport.Session
	lock distlock.Lock
}

// NewImportService creates the import wizard service.
func NewImportService(cfg config.ImportConfig, db *sql.DB, redisClient *redis.Client,
	tickets ticketimport.TicketWriter, ledger *postgres.LedgerRepo) *ImportService {
	return &ImportService{
		cfg:       cfg,
		db:        db,
		redis:     redisClient,
		tickets:   tickets,
		ledger:    ledger,
		sessions:  make(map[string]*liveSession),
		byDataset: make(map[string]string),
	}
}

// HandleCreate accepts a multipart upload (file, provider, dataset),
// decodes it, takes the dataset lock, and opens an import session. The
// response carries the decoded columns and a suggested mapping for the
// wizard's mapping step.
func (s *ImportService) HandleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}

	provider := strings.TrimSpace(r.FormValue("provider"))
	if provider == "" {
		writeError(w, http.StatusBadRequest, "provider is required")
		return
	}
	dataset := strings.TrimSpace(r.FormValue("dataset"))
	if dataset == "" {
		dataset = "default"
	}

	// Fast path for a duplicate on this instance; the distributed lock
	// below still guards against sessions on other instances.
	s.mu.Lock()
	_, busy := s.byDataset[dataset]
	s.mu.Unlock()
	if busy {
		writeError(w, http.StatusConflict, "another import is already running for this dataset")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	ext := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	table, err := ticketimport.Decode(data, header.Filename, ext)
	if err != nil {
		var decodeErr *ticketimport.DecodeError
		if errors.As(err, &decodeErr) {
			writeError(w, http.StatusUnprocessableEntity, decodeErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	lock := distlock.ForDataset(s.redis, s.db, dataset, s.cfg.SessionTTL())
	acquired, err := lock.Acquire(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lock acquisition failed")
		return
	}
	if !acquired {
		writeError(w, http.StatusConflict, "another import is already running for this dataset")
		return
	}

	norm := ticketimport.NewNormalizer(ticketimport.DateFallback(s.cfg.DateFallback))
	session := ticketimport.NewSession(table, provider, dataset, norm, s.tickets, s.ledger)

	s.mu.Lock()
	s.sessions[session.ID] = &liveSession{Session: session, lock: lock}
	s.byDataset[dataset] = session.ID
	s.mu.Unlock()

	logger.Info("import session opened",
		"session_id", session.ID, "provider", provider,
		"file", header.Filename, "rows", table.RowCount())

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id":        session.ID,
		"state":             session.State(),
		"columns":           table.Columns,
		"row_count":         table.RowCount(),
		"suggested_mapping": ticketimport.SuggestMapping(table.Columns),
	})
}

// HandleStatus returns the session's current wizard state and mapping.
func (s *ImportService) HandleStatus(w http.ResponseWriter, r *http.Request) {
	live, ok := s.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "import session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": live.ID,
		"state":      live.State(),
		"provider":   live.Provider,
		"file":       live.SourceFileName(),
		"columns":    live.Columns(),
		"mapping":    live.Mapping(),
	})
}

// HandleSetMapping replaces the session's field mapping.
func (s *ImportService) HandleSetMapping(w http.ResponseWriter, r *http.Request) {
	live, ok := s.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "import session not found")
		return
	}

	var body struct {
		Mapping map[string]string `json:"mapping"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := live.SetMapping(body.Mapping); err != nil {
		var stateErr *ticketimport.StateError
		if errors.As(err, &stateErr) {
			writeError(w, http.StatusConflict, stateErr.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":   live.State(),
		"mapping": live.Mapping(),
	})
}

// HandlePreview normalizes a bounded sample with the current mapping.
func (s *ImportService) HandlePreview(w http.ResponseWriter, r *http.Request) {
	live, ok := s.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "import session not found")
		return
	}

	sampleSize := s.cfg.PreviewSampleSize
	if v := r.URL.Query().Get("sample_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= s.cfg.PreviewSampleSize {
			sampleSize = n
		}
	}

	result, err := live.Preview(sampleSize)
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleCommit runs the full commit. On success the session is closed and
// its dataset lock released; a storage fault leaves the session alive so
// the same normalized batch can be retried.
func (s *ImportService) HandleCommit(w http.ResponseWriter, r *http.Request) {
	live, ok := s.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "import session not found")
		return
	}

	// Refresh the dataset lock so it outlives a slow batched write.
	if err := live.lock.Extend(r.Context(), s.cfg.SessionTTL()); err != nil {
		logger.Warn("failed to extend dataset lock",
			"dataset", live.Dataset, "error", err)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CommitTimeout())
	defer cancel()

	result, err := live.Commit(ctx)
	if err != nil {
		var commitErr *ticketimport.CommitFailedError
		if errors.As(err, &commitErr) {
			logger.Error("import commit failed",
				"session_id", live.ID, "error", commitErr.Err)
			writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error":     commitErr.Error(),
				"retryable": true,
			})
			return
		}
		writeImportError(w, err)
		return
	}

	s.close(r.Context(), live)
	writeJSON(w, http.StatusOK, result)
}

// HandleCancel abandons the session and releases its lock.
func (s *ImportService) HandleCancel(w http.ResponseWriter, r *http.Request) {
	live, ok := s.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "import session not found")
		return
	}
	s.close(r.Context(), live)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// HandleLedger lists the import audit trail, most recent first.
func (s *ImportService) HandleLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	entries, err := s.ledger.ListByProvider(r.Context(), q.Get("provider"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// HandleSchemaFields returns the target schema for the mapping UI.
func (s *ImportService) HandleSchemaFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fields": ticketimport.DefaultSchema(),
	})
}

// ReleaseAll releases every live session's dataset lock, for shutdown.
func (s *ImportService) ReleaseAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, live := range s.sessions {
		if err := live.lock.Release(ctx); err != nil {
			logger.Warn("failed to release dataset lock",
				"dataset", live.Dataset, "error", err)
		}
	}
	s.sessions = make(map[string]*liveSession)
	s.byDataset = make(map[string]string)
}

func (s *ImportService) lookup(id string) (*liveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[id]
	return live, ok
}

func (s *ImportService) close(ctx context.Context, live *liveSession) {
	if err := live.lock.Release(ctx); err != nil {
		logger.Warn("failed to release dataset lock",
			"dataset", live.Dataset, "error", err)
	}
	s.mu.Lock()
	delete(s.sessions, live.ID)
	delete(s.byDataset, live.Dataset)
	s.mu.Unlock()
}

// writeImportError maps pipeline errors onto HTTP statuses.
func writeImportError(w http.ResponseWriter, err error) {
	var missingErr *ticketimport.MissingRequiredFieldsError
	if errors.As(err, &missingErr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":          missingErr.Error(),
			"missing_fields": missingErr.Fields,
		})
		return
	}
	var stateErr *ticketimport.StateError
	if errors.As(err, &stateErr) {
		writeError(w, http.StatusConflict, stateErr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
