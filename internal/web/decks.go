package web

import (
	"io"
	"net/http"

	"github.com/conorfennell/knoldeck/internal/digest"
	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/policy"
	"github.com/conorfennell/knoldeck/internal/progress"
	"github.com/conorfennell/knoldeck/internal/queue"
	"github.com/conorfennell/knoldeck/internal/storage"
)

func (s *Server) handleListDecks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := digest.Summarize(r.Context(), s.db, s.global, s.loc, s.now())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

type queueResponse struct {
	Deck   string         `json:"deck"`
	Counts queue.Counts   `json:"counts"`
	Cards  []storage.Card `json:"cards"`
}

// handleGetQueue returns today's study queue for a deck in presentation order.
func (s *Server) handleGetQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		deck := r.PathValue("deck")
		now := s.now()

		stored, err := s.db.ListCardsByDeck(ctx, deck)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		p, err := s.db.EffectivePolicy(ctx, s.global, deck)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		today, err := s.db.GetProgress(ctx, progress.DateKey(now, s.loc), deck)
		if err != nil {
			writeErr(w, r, err)
			return
		}

		byID := make(map[string]storage.Card, len(stored))
		cards := make([]domain.Card, len(stored))
		for i, c := range stored {
			byID[c.ID] = c
			cards[i] = c.Card
		}
		q := queue.Build(cards, p, today, now)

		resp := queueResponse{Deck: deck, Counts: q.Counts(), Cards: make([]storage.Card, 0, q.Len())}
		for _, c := range q.Cards() {
			resp.Cards = append(resp.Cards, byID[c.ID])
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type settingsResponse struct {
	Deck      string          `json:"deck"`
	Override  policy.Override `json:"override"`
	Effective policy.Policy   `json:"effective"`
}

func (s *Server) handleGetSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deck := r.PathValue("deck")
		o, err := s.db.GetDeckOverride(r.Context(), deck)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, settingsResponse{
			Deck:      deck,
			Override:  o,
			Effective: policy.Resolve(s.global, &o).Normalize(),
		})
	}
}

// handlePutSettings replaces a deck's override. The body is a sparse
// settings object; an empty object clears the override.
func (s *Server) handlePutSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deck := r.PathValue("deck")
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		o, err := policy.ParseOverride(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		effective := policy.Resolve(s.global, &o)
		if err := policy.Validate(effective); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.db.PutDeckOverride(r.Context(), deck, o, s.now()); err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, settingsResponse{Deck: deck, Override: o, Effective: effective})
	}
}
