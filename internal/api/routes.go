package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the route table.
func SetupRoutes(s *Server) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// The admin dashboard runs on a separate origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/imports", func(r chi.Router) {
			r.Post("/", s.imports.HandleCreate)
			r.Get("/ledger", s.imports.HandleLedger)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.imports.HandleStatus)
				r.Put("/mapping", s.imports.HandleSetMapping)
				r.Post("/preview", s.imports.HandlePreview)
				r.Post("/commit", s.imports.HandleCommit)
				r.Delete("/", s.imports.HandleCancel)
			})
		})

		r.Get("/schema/fields", s.imports.HandleSchemaFields)
		r.Get("/stats/sales", s.HandleSalesStats)
	})

	return r
}

// HandleHealth reports liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSalesStats returns aggregate sales grouped by a dimension.
func (s *Server) HandleSalesStats(w http.ResponseWriter, r *http.Request) {
	groupBy := r.URL.Query().Get("group_by")
	if groupBy == "" {
		groupBy = "provider"
	}

	aggs, err := s.stats.SalesByGroup(r.Context(), groupBy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	count, revenue, err := s.stats.Totals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group_by":      groupBy,
		"groups":        aggs,
		"total_tickets": count,
		"total_revenue": revenue,
	})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
