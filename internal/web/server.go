// Package web serves the knoldeck JSON API.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/ingest"
	"github.com/conorfennell/knoldeck/internal/policy"
	"github.com/conorfennell/knoldeck/internal/storage"
)

const maxBodyBytes = 1 << 20

// Options are the server's collaborators besides the store.
type Options struct {
	Global   policy.Policy
	Location *time.Location
	Syncer   *ingest.Syncer   // nil disables POST /api/sync
	Now      func() time.Time // defaults to time.Now
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	db      *storage.DB
	router  *http.ServeMux
	handler http.Handler
	global  policy.Policy
	loc     *time.Location
	syncer  *ingest.Syncer
	now     func() time.Time

	// reviewMu serializes the read-modify-write of cards and daily progress.
	reviewMu sync.Mutex
	syncMu   sync.Mutex
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, opts Options) *Server {
	s := &Server{
		db:     db,
		router: http.NewServeMux(),
		global: opts.Global,
		loc:    opts.Location,
		syncer: opts.Syncer,
		now:    opts.Now,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.routes()
	s.handler = logRequests(s.router)
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.HandleFunc("GET /api/decks", s.handleListDecks())
	s.router.HandleFunc("GET /api/decks/{deck}/queue", s.handleGetQueue())
	s.router.HandleFunc("GET /api/decks/{deck}/settings", s.handleGetSettings())
	s.router.HandleFunc("PUT /api/decks/{deck}/settings", s.handlePutSettings())

	s.router.HandleFunc("GET /api/cards/{id}", s.handleGetCard())
	s.router.HandleFunc("GET /api/cards/{id}/preview", s.handlePreview())
	s.router.HandleFunc("GET /api/cards/{id}/reviews", s.handleListReviews())
	s.router.HandleFunc("POST /api/cards/{id}/review", s.handlePostReview())
	s.router.HandleFunc("POST /api/cards/{id}/suspend", s.handleSuspend(true))
	s.router.HandleFunc("POST /api/cards/{id}/unsuspend", s.handleSuspend(false))

	s.router.HandleFunc("GET /api/progress", s.handleGetProgress())

	s.router.HandleFunc("GET /api/sources", s.handleGetSources())
	s.router.HandleFunc("POST /api/sources", s.handlePostSource())
	s.router.HandleFunc("DELETE /api/sources/{id}", s.handleDeleteSource())
	s.router.HandleFunc("POST /api/sync", s.handlePostSync())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests tags each request with an ID and logs its outcome.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeErr maps store and domain errors to a status code.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidRating), errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
