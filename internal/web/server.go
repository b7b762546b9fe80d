// Package web provides the read-only operations HTTP surface: a health
// probe, audit trail queries and exports, and the registered product list.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DhruvSingla03/query-automation/internal/core"
	"github.com/DhruvSingla03/query-automation/internal/logging"
	"github.com/DhruvSingla03/query-automation/internal/product"
)

// Server is the operations HTTP server.
type Server struct {
	audit   *core.AuditLog
	catalog *product.Catalog
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server exposing the audit trail and product catalog.
func NewServer(audit *core.AuditLog, catalog *product.Catalog) *Server {
	s := &Server{
		audit:   audit,
		catalog: catalog,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/audit", s.handleAuditQuery)
		r.Get("/audit/export", s.handleAuditExport)
		r.Get("/products", s.handleProducts)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string, readTimeout, writeTimeout time.Duration) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("ops server listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleAuditQuery returns audit events matching the query filters,
// newest first, with pagination.
func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, total, err := s.audit.Query(r.Context(), filter)
	if err != nil {
		logging.FromContext(r.Context()).Error("audit query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}

	writeJSON(w, map[string]interface{}{
		"events": events,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// handleAuditExport streams matching audit events as CSV.
func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rd, err := s.audit.ExportCSV(r.Context(), filter)
	if err != nil {
		logging.FromContext(r.Context()).Error("audit export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "audit export failed")
		return
	}

	name := fmt.Sprintf("audit_%s.csv", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := io.Copy(w, rd); err != nil {
		logging.FromContext(r.Context()).Error("audit export write failed", "error", err)
	}
}

// handleProducts lists the registered product codes.
func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string][]string{"products": s.catalog.Codes()})
}

// auditFilterFromQuery builds an audit filter from URL query parameters.
// Dates use the 2006-01-02 form; "to" is inclusive of the whole day.
func auditFilterFromQuery(r *http.Request) (core.AuditFilter, error) {
	q := r.URL.Query()
	filter := core.AuditFilter{
		Product:   q.Get("product"),
		TicketRef: q.Get("ticket"),
		Status:    core.RowStatus(q.Get("status")),
		BatchID:   q.Get("batch"),
		Limit:     parseIntParam(r, "limit", core.DefaultAuditLimit),
		Offset:    parseIntParam(r, "offset", 0),
	}

	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filter, fmt.Errorf("invalid from date %q", from)
		}
		filter.StartTime = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter, fmt.Errorf("invalid to date %q", to)
		}
		filter.EndTime = t.Add(24*time.Hour - time.Second)
	}

	return filter, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
