package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conorfennell/knoldeck/internal/digest"
	"github.com/conorfennell/knoldeck/internal/policy"
	"github.com/conorfennell/knoldeck/internal/storage"
)

func newDueCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "due",
		Short: "Show what each deck has to study today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, db *storage.DB) error {
				summaries, err := digest.Summarize(ctx, db, a.cfg.Policy, a.loc, a.now())
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(summaries)
				}
				printSummaries(cmd.OutOrStdout(), summaries)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func printSummaries(out io.Writer, summaries []digest.DeckSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No decks.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DECK\tLEARNING\tNEW\tREVIEW\tSUSPENDED\tLEECHES")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Deck, s.Learning, s.New, s.Review, s.Suspended, s.Leeches)
	}
	tw.Flush()
}

func newDeckCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deck",
		Short: "Inspect and configure decks",
	}

	var reset bool
	settings := &cobra.Command{
		Use:   "settings <deck> [json]",
		Short: "Show a deck's settings, or replace its overrides with a JSON object",
		Example: `  knoldeck deck settings spanish
  knoldeck deck settings spanish '{"new_cards_per_day": 10, "learning_steps": [1, 10, 60]}'
  knoldeck deck settings spanish --clear`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deck := args[0]
			return a.withStore(cmd, func(ctx context.Context, db *storage.DB) error {
				switch {
				case reset:
					if err := db.PutDeckOverride(ctx, deck, policy.Override{}, a.now()); err != nil {
						return err
					}
				case len(args) == 2:
					o, err := policy.ParseOverride([]byte(args[1]))
					if err != nil {
						return err
					}
					if err := policy.Validate(policy.Resolve(a.cfg.Policy, &o)); err != nil {
						return err
					}
					if err := db.PutDeckOverride(ctx, deck, o, a.now()); err != nil {
						return err
					}
				}
				o, err := db.GetDeckOverride(ctx, deck)
				if err != nil {
					return err
				}
				return printSettings(cmd.OutOrStdout(), deck, o, policy.Resolve(a.cfg.Policy, &o).Normalize())
			})
		},
	}
	settings.Flags().BoolVar(&reset, "clear", false, "Remove every override so the deck follows the global policy")

	cmd.AddCommand(settings)
	return cmd
}

func printSettings(out io.Writer, deck string, o policy.Override, effective policy.Policy) error {
	overrides, err := json.Marshal(o)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deck: %s\nOverrides: %s\n\n", deck, overrides)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "new_cards_per_day\t%d\n", effective.NewCardsPerDay)
	fmt.Fprintf(tw, "reviews_per_day\t%d\n", effective.ReviewsPerDay)
	fmt.Fprintf(tw, "learning_steps\t%v\n", effective.LearningSteps)
	fmt.Fprintf(tw, "graduating_interval\t%d\n", effective.GraduatingInterval)
	fmt.Fprintf(tw, "easy_interval\t%d\n", effective.EasyInterval)
	fmt.Fprintf(tw, "starting_ease\t%.2f\n", effective.StartingEase)
	fmt.Fprintf(tw, "interval_modifier\t%.2f\n", effective.IntervalModifier)
	fmt.Fprintf(tw, "hard_multiplier\t%.2f\n", effective.HardMultiplier)
	fmt.Fprintf(tw, "easy_bonus\t%.2f\n", effective.EasyBonus)
	fmt.Fprintf(tw, "maximum_interval\t%d\n", effective.MaximumInterval)
	fmt.Fprintf(tw, "leech_threshold\t%d\n", effective.LeechThreshold)
	fmt.Fprintf(tw, "leech_action\t%s\n", effective.LeechAction)
	fmt.Fprintf(tw, "new_order\t%s\n", effective.NewOrder)
	return tw.Flush()
}
