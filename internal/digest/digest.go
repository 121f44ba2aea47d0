// Package digest runs the daily maintenance job: it logs how much is due in
// each deck and prunes old progress records.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/policy"
	"github.com/conorfennell/knoldeck/internal/progress"
	"github.com/conorfennell/knoldeck/internal/queue"
	"github.com/conorfennell/knoldeck/internal/storage"
)

const runTimeout = 5 * time.Minute

// DeckSummary is what a deck has available to study today.
type DeckSummary struct {
	Deck string `json:"deck"`
	queue.Counts
	Suspended int `json:"suspended"`
	Leeches   int `json:"leeches"`
}

// Summarize builds today's queue for every deck and reports its size.
func Summarize(ctx context.Context, db *storage.DB, global policy.Policy, loc *time.Location, now time.Time) ([]DeckSummary, error) {
	if loc == nil {
		loc = time.Local
	}
	decks, err := db.ListDecks(ctx)
	if err != nil {
		return nil, err
	}
	date := progress.DateKey(now, loc)

	out := make([]DeckSummary, 0, len(decks))
	for _, deck := range decks {
		stored, err := db.ListCardsByDeck(ctx, deck)
		if err != nil {
			return nil, err
		}
		p, err := db.EffectivePolicy(ctx, global, deck)
		if err != nil {
			return nil, err
		}
		today, err := db.GetProgress(ctx, date, deck)
		if err != nil {
			return nil, err
		}

		s := DeckSummary{Deck: deck}
		cards := make([]domain.Card, len(stored))
		for i, c := range stored {
			cards[i] = c.Card
			if c.Suspended {
				s.Suspended++
			}
			if c.Leech {
				s.Leeches++
			}
		}
		s.Counts = queue.Build(cards, p, today, now).Counts()
		out = append(out, s)
	}
	return out, nil
}

// Job is the daily digest.
type Job struct {
	DB       *storage.DB
	Global   policy.Policy
	Location *time.Location
	KeepDays int
	Now      func() time.Time
}

// Run logs each deck's due counts and deletes progress older than KeepDays.
func (j *Job) Run(ctx context.Context) ([]DeckSummary, error) {
	now := time.Now()
	if j.Now != nil {
		now = j.Now()
	}

	summaries, err := Summarize(ctx, j.DB, j.Global, j.Location, now)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize decks: %w", err)
	}
	for _, s := range summaries {
		slog.Info("due today",
			"deck", s.Deck,
			"learning", s.Learning,
			"new", s.New,
			"review", s.Review,
			"suspended", s.Suspended,
			"leeches", s.Leeches,
		)
	}

	if j.KeepDays > 0 {
		loc := j.Location
		if loc == nil {
			loc = time.Local
		}
		cutoff := progress.DateKey(now.AddDate(0, 0, -j.KeepDays), loc)
		n, err := j.DB.PruneProgress(ctx, cutoff)
		if err != nil {
			return summaries, err
		}
		if n > 0 {
			slog.Info("pruned progress", "before", cutoff, "rows", n)
		}
	}
	return summaries, nil
}

// Scheduler runs a Job once a day.
type Scheduler struct {
	cron *gocron.Scheduler
}

// Start schedules job daily at the HH:MM time at, in the job's location.
func Start(job *Job, at string) (*Scheduler, error) {
	loc := job.Location
	if loc == nil {
		loc = time.Local
	}
	cron := gocron.NewScheduler(loc)
	_, err := cron.Every(1).Day().At(at).Tag("digest").SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := job.Run(ctx); err != nil {
			slog.Error("digest failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule digest at %s: %w", at, err)
	}
	cron.StartAsync()

	_, next := cron.NextRun()
	slog.Info("digest scheduled", "at", at, "next_run", next)
	return &Scheduler{cron: cron}, nil
}

// NextRun reports when the digest runs next.
func (s *Scheduler) NextRun() time.Time {
	_, next := s.cron.NextRun()
	return next
}

// Stop cancels future runs.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
