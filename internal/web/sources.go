package web

import (
	"net/http"
	"strconv"

	"github.com/conorfennell/knoldeck/internal/ingest"
)

func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.db.ListSources(r.Context())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sources)
	}
}

type sourceRequest struct {
	Path string `json:"path"`
	Deck string `json:"deck"`
}

func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sourceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Path == "" {
			writeError(w, http.StatusBadRequest, "path is required")
			return
		}
		src, err := ingest.AddSource(r.Context(), s.db, req.Path, req.Deck)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, src)
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid source ID")
			return
		}
		if err := s.db.DeleteSource(r.Context(), id); err != nil {
			writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.syncer == nil {
			writeError(w, http.StatusNotImplemented, "sync is not configured")
			return
		}
		if !s.syncMu.TryLock() {
			writeError(w, http.StatusConflict, "a sync is already running")
			return
		}
		defer s.syncMu.Unlock()

		reports, err := s.syncer.Run(r.Context())
		if reports == nil {
			reports = []ingest.Report{}
		}
		if err != nil {
			// Partial failures still carry per-source reports.
			writeJSON(w, http.StatusInternalServerError, struct {
				Error   string          `json:"error"`
				Reports []ingest.Report `json:"reports"`
			}{err.Error(), reports})
			return
		}
		writeJSON(w, http.StatusOK, reports)
	}
}
