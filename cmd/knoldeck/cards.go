package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/knol"
	"github.com/conorfennell/knoldeck/internal/policy"
	"github.com/conorfennell/knoldeck/internal/scheduler"
	"github.com/conorfennell/knoldeck/internal/storage"
)

func newCardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Inspect and manage single cards",
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a card, its schedule and what each rating would do",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, db *storage.DB) error {
				card, err := db.GetCard(ctx, args[0])
				if err != nil {
					return err
				}
				p, err := db.EffectivePolicy(ctx, a.cfg.Policy, card.DeckID)
				if err != nil {
					return err
				}
				now := a.now()
				forecast, err := scheduler.Preview(card.Card, p, now)
				if err != nil {
					return err
				}
				printCard(cmd.OutOrStdout(), card, now)
				fmt.Fprintf(cmd.OutOrStdout(), "Next:      %s\n", formatForecast(forecast))
				return nil
			})
		},
	}

	setSuspended := func(use, short string, suspended bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(cmd, func(ctx context.Context, db *storage.DB) error {
					if err := db.SetSuspended(ctx, args[0], suspended, a.now()); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Card %s %sed\n", knol.Short(args[0]), use)
					return nil
				})
			},
		}
	}

	var verify bool
	history := &cobra.Command{
		Use:   "history <id>",
		Short: "List a card's reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, db *storage.DB) error {
				card, err := db.GetCard(ctx, args[0])
				if err != nil {
					return err
				}
				logs, err := db.ListReviews(ctx, card.ID)
				if err != nil {
					return err
				}
				printHistory(cmd.OutOrStdout(), logs)
				if !verify {
					return nil
				}
				p, err := db.EffectivePolicy(ctx, a.cfg.Policy, card.DeckID)
				if err != nil {
					return err
				}
				return verifyHistory(cmd.OutOrStdout(), card.Card, logs, p)
			})
		},
	}
	history.Flags().BoolVar(&verify, "verify", false, "Replay the history under the current settings and compare with the stored schedule")

	cmd.AddCommand(
		show,
		setSuspended("suspend", "Keep a card out of every queue", true),
		setSuspended("unsuspend", "Return a suspended card to its queue", false),
		history,
	)
	return cmd
}

func printCard(out io.Writer, c storage.Card, now time.Time) {
	fmt.Fprintf(out, "Card:      %s (%s)\n", knol.Short(c.ID), c.DeckID)
	fmt.Fprintf(out, "Question:  %s\n", c.Question)
	fmt.Fprintf(out, "Answer:    %s\n", c.Answer)
	if c.Context != "" {
		fmt.Fprintf(out, "Context:   %s\n", c.Context)
	}
	status := c.State.String()
	if c.Suspended {
		status += ", suspended"
	}
	if c.Leech {
		status += ", leech"
	}
	fmt.Fprintf(out, "State:     %s\n", status)
	due := "now"
	if c.Due.After(now) {
		due = fmt.Sprintf("%s (%s)", c.Due.Format(time.DateTime), humanizeRel(now, c.Due))
	}
	fmt.Fprintf(out, "Due:       %s\n", due)
	fmt.Fprintf(out, "Interval:  %dd  Ease: %.2f  Reps: %d  Lapses: %d\n", c.Interval, c.Ease, c.Reps, c.Lapses)
}

func humanizeRel(now, t time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

func formatForecast(f scheduler.Forecast) string {
	return fmt.Sprintf("again %s  hard %s  good %s  easy %s", f.Again, f.Hard, f.Good, f.Easy)
}

func printHistory(out io.Writer, logs []domain.ReviewLog) {
	if len(logs) == 0 {
		fmt.Fprintln(out, "No reviews.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REVIEWED\tRATING\tFROM\tTO\tINTERVAL\tEASE")
	for _, l := range logs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dd\t%.2f\n", l.ReviewedAt.Format(time.DateTime), l.Rating, l.StateFrom, l.StateTo, l.Interval, l.Ease)
	}
	tw.Flush()
}

// verifyHistory replays logs from a fresh card and reports whether the
// result matches the stored card. Settings changed since the reviews were
// made show up as drift.
func verifyHistory(out io.Writer, stored domain.Card, logs []domain.ReviewLog, p policy.Policy) error {
	start := domain.NewCard(stored.ID, stored.DeckID, p.StartingEase, stored.CreatedAt)
	got, err := scheduler.Replay(start, logs, p)
	if err != nil {
		return err
	}
	if got.State == stored.State && got.Interval == stored.Interval && got.Ease == stored.Ease && got.Due.Equal(stored.Due) {
		fmt.Fprintln(out, "Replay matches the stored schedule.")
		return nil
	}
	fmt.Fprintf(out, "Replay differs: state %s interval %dd ease %.2f due %s\n",
		got.State, got.Interval, got.Ease, got.Due.Format(time.DateTime))
	return nil
}
