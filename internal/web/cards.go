package web

import (
	"net/http"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/progress"
	"github.com/conorfennell/knoldeck/internal/scheduler"
	"github.com/conorfennell/knoldeck/internal/storage"
)

func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := s.db.GetCard(r.Context(), r.PathValue("id"))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handlePreview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		card, err := s.db.GetCard(ctx, r.PathValue("id"))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		p, err := s.db.EffectivePolicy(ctx, s.global, card.DeckID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		forecast, err := scheduler.Preview(card.Card, p, s.now())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, forecast)
	}
}

func (s *Server) handleListReviews() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := r.PathValue("id")
		if _, err := s.db.GetCard(ctx, id); err != nil {
			writeErr(w, r, err)
			return
		}
		logs, err := s.db.ListReviews(ctx, id)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, logs)
	}
}

type reviewRequest struct {
	Rating domain.Rating `json:"rating"`
}

type reviewResponse struct {
	Card     storage.Card         `json:"card"`
	Log      domain.ReviewLog     `json:"log"`
	Progress domain.DailyProgress `json:"progress"`
}

// origin says which daily counter a card draws from when it is answered.
// Learning answers never count against the caps. Only due cards are
// answered, and a New or Review answer pushes the card into learning or at
// least a day out, so each card is charged at most once per day.
func origin(c domain.Card) progress.Origin {
	switch c.State {
	case domain.New:
		return progress.OriginNew
	case domain.Review:
		return progress.OriginReview
	default:
		return progress.OriginLearning
	}
}

func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !req.Rating.IsValid() {
			writeError(w, http.StatusBadRequest, domain.ErrInvalidRating.Error())
			return
		}

		s.reviewMu.Lock()
		defer s.reviewMu.Unlock()

		ctx := r.Context()
		now := s.now()
		card, err := s.db.GetCard(ctx, r.PathValue("id"))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		switch {
		case card.Suspended:
			writeError(w, http.StatusConflict, "card "+card.ID+" is suspended")
			return
		case !card.IsDue(now):
			writeError(w, http.StatusConflict, "card "+card.ID+" is not due until "+card.Due.In(s.loc).Format(time.RFC3339))
			return
		}
		p, err := s.db.EffectivePolicy(ctx, s.global, card.DeckID)
		if err != nil {
			writeErr(w, r, err)
			return
		}

		next, err := scheduler.Schedule(card.Card, req.Rating, p, now)
		if err != nil {
			writeErr(w, r, err)
			return
		}

		tracker := progress.NewTracker(s.loc)
		stored, err := s.db.GetProgress(ctx, progress.DateKey(now, s.loc), card.DeckID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		tracker.Load(stored)
		tracker.Pulled(card.DeckID, origin(card.Card), now)
		today := tracker.Answered(card.DeckID, req.Rating, now)

		log := scheduler.Log(card.Card, next, req.Rating, now)
		if err := s.db.ApplyReview(ctx, next, log, today); err != nil {
			writeErr(w, r, err)
			return
		}

		card.Card = next
		writeJSON(w, http.StatusOK, reviewResponse{Card: card, Log: log, Progress: today})
	}
}

func (s *Server) handleSuspend(suspended bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := r.PathValue("id")
		if err := s.db.SetSuspended(ctx, id, suspended, s.now()); err != nil {
			writeErr(w, r, err)
			return
		}
		card, err := s.db.GetCard(ctx, id)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleGetProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since := r.URL.Query().Get("since")
		if since == "" {
			since = progress.DateKey(s.now().AddDate(0, 0, -30), s.loc)
		} else if _, err := time.Parse(time.DateOnly, since); err != nil {
			writeError(w, http.StatusBadRequest, "since must be YYYY-MM-DD")
			return
		}
		days, err := s.db.ListProgress(r.Context(), since)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, days)
	}
}
