// Package api exposes the festival ops HTTP surface: the ticket import
// wizard, the import ledger, aggregate sales stats, and health.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/festops/festops/internal/analytics"
	"github.com/festops/festops/internal/config"
	"github.com/festops/festops/internal/pkg/logger"
	"github.com/festops/festops/internal/repository/postgres"
)

// Server is the API server.
type Server struct {
	cfg     config.Config
	router  *chi.Mux
	server  *http.Server
	imports *ImportService
	stats   *analytics.Service
}

// NewServer wires the API server: repositories over the database, the
// import session service (with the optional Redis lock backend), and the
// route table.
func NewServer(cfg config.Config, db *sql.DB, redisClient *redis.Client) *Server {
	imports := NewImportService(cfg.Import, db, redisClient,
		postgres.NewTicketRepo(db), postgres.NewLedgerRepo(db))

	s := &Server{
		cfg:     cfg,
		imports: imports,
		stats:   analytics.NewService(db),
	}
	s.router = SetupRoutes(s)
	return s
}

// Start begins listening. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.GetHost(), s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("api server listening", "addr", addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and releases live session locks.
func (s *Server) Shutdown(ctx context.Context) error {
	s.imports.ReleaseAll(ctx)
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler { return s.router }
