package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/policy"
	"github.com/conorfennell/knoldeck/internal/progress"
	"github.com/conorfennell/knoldeck/internal/scheduler"
	"github.com/conorfennell/knoldeck/internal/session"
	"github.com/conorfennell/knoldeck/internal/storage"
)

func newStudyCmd(a *app) *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "study <deck>",
		Short: "Study a deck in the terminal",
		Long: `Study today's queue for a deck. Press Enter to reveal the answer, then
rate it 1-4 (again, hard, good, easy). Enter q to stop; progress is saved
after every answer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, db *storage.DB) error {
				s, err := a.newStudy(ctx, db, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
				if noWait {
					s.wait = nil
				}
				return s.run(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "End the session instead of waiting for learning cards to come due")
	return cmd
}

// study is one interactive session in the terminal.
type study struct {
	db     *storage.DB
	deck   string
	policy policy.Policy
	runner *session.Runner
	cards  map[string]storage.Card

	in   *bufio.Scanner
	out  io.Writer
	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error // nil ends the session when only waiting cards remain

	reviewed int
}

func (a *app) newStudy(ctx context.Context, db *storage.DB, deck string, in io.Reader, out io.Writer) (*study, error) {
	stored, err := db.ListCardsByDeck(ctx, deck)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("deck %q has no cards", deck)
	}
	p, err := db.EffectivePolicy(ctx, a.cfg.Policy, deck)
	if err != nil {
		return nil, err
	}

	now := a.now()
	tracker := progress.NewTracker(a.loc)
	today, err := db.GetProgress(ctx, progress.DateKey(now, a.loc), deck)
	if err != nil {
		return nil, err
	}
	tracker.Load(today)

	byID := make(map[string]storage.Card, len(stored))
	cards := make([]domain.Card, len(stored))
	for i, c := range stored {
		byID[c.ID] = c
		cards[i] = c.Card
	}

	runner := session.New(cards, p, tracker, deck, now)
	slog.Debug("study session started", "session", runner.ID, "deck", deck, "cards", runner.Total())

	return &study{
		db:     db,
		deck:   deck,
		policy: p,
		runner: runner,
		cards:  byID,
		in:     bufio.NewScanner(in),
		out:    out,
		now:    a.now,
		wait:   sleep,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errQuit = errors.New("quit")

func (s *study) run(ctx context.Context) error {
	if s.runner.Total() == 0 {
		fmt.Fprintf(s.out, "Nothing to study in %s right now.\n", s.deck)
		return nil
	}
	defer func() {
		fmt.Fprintf(s.out, "\nReviewed %d cards.\n", s.reviewed)
	}()

	for {
		now := s.now()
		card, err := s.runner.Next(now)
		switch {
		case errors.Is(err, session.ErrDone):
			fmt.Fprintln(s.out, "\nSession complete.")
			return nil
		case errors.Is(err, session.ErrWaiting):
			until, _ := s.runner.WaitingUntil()
			if s.wait == nil {
				fmt.Fprintf(s.out, "\n%d learning cards come back later.\n", s.runner.Waiting())
				return nil
			}
			d := until.Sub(now)
			fmt.Fprintf(s.out, "\nNext learning card in %s.\n", scheduler.FormatDelay(d))
			if err := s.wait(ctx, d); err != nil {
				return err
			}
			continue
		case err != nil:
			return err
		}

		if err := s.review(ctx, card); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
	}
}

// readLine returns the next trimmed input line. End of input quits.
func (s *study) readLine() (string, error) {
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", errQuit
	}
	line := strings.ToLower(strings.TrimSpace(s.in.Text()))
	if line == "q" || line == "quit" {
		return "", errQuit
	}
	return line, nil
}

func (s *study) review(ctx context.Context, card domain.Card) error {
	full := s.cards[card.ID]
	fmt.Fprintf(s.out, "\n[%d/%d, %d waiting] %s\n", s.runner.Index(), s.runner.Total(), s.runner.Waiting(), card.State)
	fmt.Fprintf(s.out, "Q: %s\n", full.Question)
	fmt.Fprint(s.out, "(Enter to show answer) ")
	if _, err := s.readLine(); err != nil {
		return err
	}
	if err := s.runner.Flip(); err != nil {
		return err
	}

	fmt.Fprintf(s.out, "A: %s\n", full.Answer)
	if full.Context != "" {
		fmt.Fprintf(s.out, "   %s\n", full.Context)
	}

	forecast, err := scheduler.Preview(card, s.policy, s.now())
	if err != nil {
		return err
	}
	prompt := fmt.Sprintf("1) again %s  2) hard %s  3) good %s  4) easy %s > ",
		forecast.Again, forecast.Hard, forecast.Good, forecast.Easy)

	var rating domain.Rating
	for {
		fmt.Fprint(s.out, prompt)
		line, err := s.readLine()
		if err != nil {
			return err
		}
		rating, err = domain.ParseRating(line)
		if err == nil {
			break
		}
		fmt.Fprintln(s.out, "Enter 1-4 or again, hard, good, easy.")
	}

	outcome, err := s.runner.Answer(rating, s.now())
	if err != nil {
		return err
	}
	if err := s.db.ApplyReview(ctx, outcome.Card, outcome.Log, outcome.Progress); err != nil {
		return err
	}
	s.reviewed++

	full.Card = outcome.Card
	s.cards[card.ID] = full
	if outcome.Card.Leech && !card.Leech {
		msg := "tagged as a leech"
		if outcome.Card.Suspended {
			msg = "suspended as a leech"
		}
		fmt.Fprintf(s.out, "Card %s.\n", msg)
	}
	return nil
}
