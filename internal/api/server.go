// Package api exposes the live status surface for a running analysis: the
// pipeline snapshot, recent confirmed sessions, and per-table totals.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cafesense/occupancy.report/internal/db"
	"github.com/cafesense/occupancy.report/internal/monitoring"
	"github.com/cafesense/occupancy.report/internal/timeutil"
	"github.com/cafesense/occupancy.report/internal/vision"
)

// ANSI escape codes for request log colouring
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// defaultSessionLimit caps /api/sessions responses when no limit is given.
const defaultSessionLimit = 50

// StatusSource provides the live pipeline snapshot. *vision.Pipeline
// implements it; tests substitute a fixture.
type StatusSource interface {
	Status() vision.Status
}

type Server struct {
	pipeline StatusSource
	db       *db.DB
	runID    string
	clock    timeutil.Clock
	started  time.Time
}

func NewServer(pipeline StatusSource, database *db.DB, runID string, clock timeutil.Clock) *Server {
	return &Server{
		pipeline: pipeline,
		db:       database,
		runID:    runID,
		clock:    clock,
		started:  clock.Now(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/tables", s.showTableTotals)
	mux.HandleFunc("/healthz", s.health)
	if s.db != nil {
		if err := s.db.AttachAdminRoutes(mux); err != nil {
			monitoring.Logf("admin routes unavailable: %v", err)
		}
	}
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := struct {
		RunID         string        `json:"run_id"`
		UptimeSeconds float64       `json:"uptime_seconds"`
		Pipeline      vision.Status `json:"pipeline"`
	}{
		RunID:         s.runID,
		UptimeSeconds: s.clock.Since(s.started).Seconds(),
		Pipeline:      s.pipeline.Status(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		monitoring.Logf("failed to encode status response: %v", err)
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "No session store attached")
		return
	}

	limit := defaultSessionLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	sessions, err := s.db.RecentSessions(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}
	if err := json.NewEncoder(w).Encode(sessions); err != nil {
		monitoring.Logf("failed to encode sessions response: %v", err)
	}
}

func (s *Server) showTableTotals(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "No session store attached")
		return
	}

	totals, err := s.db.TableTotals(s.runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve table totals: %v", err))
		return
	}
	if err := json.NewEncoder(w).Encode(totals); err != nil {
		monitoring.Logf("failed to encode table totals response: %v", err)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}
