package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/conorfennell/knoldeck/internal/ingest"
	"github.com/conorfennell/knoldeck/internal/storage"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch and reconcile every card source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, db *storage.DB) error {
				reports, err := a.syncer(db).Run(ctx)
				printReports(cmd.OutOrStdout(), reports)
				return err
			})
		},
	}
}

func printReports(out io.Writer, reports []ingest.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(out, "No sources synced.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tPATH\tPARSED\tADDED\tMOVED\tDELETED\tERRORS")
	for _, r := range reports {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%d\n", r.SourceID, r.Path, r.Parsed, r.Inserted, r.Moved, r.Deleted, len(r.Errors))
	}
	tw.Flush()
	for _, r := range reports {
		for _, e := range r.Errors {
			fmt.Fprintf(out, "- %s\n", e)
		}
	}
}

func newSourceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage card sources",
	}

	var deck string
	add := &cobra.Command{
		Use:   "add <path-or-git-url>",
		Short: "Register a local directory or git repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, db *storage.DB) error {
				src, err := ingest.AddSource(ctx, db, args[0], deck)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s source %d: %s (deck %s)\n", src.Kind, src.ID, src.Path, ingest.DefaultDeck(src))
				return nil
			})
		},
	}
	add.Flags().StringVar(&deck, "deck", "", "Deck for notes in files without a Deck: line")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, db *storage.DB) error {
				sources, err := db.ListSources(ctx)
				if err != nil {
					return err
				}
				printSources(cmd.OutOrStdout(), sources)
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a source with its cards and their history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source ID %q", args[0])
			}
			return a.withStore(cmd, func(ctx context.Context, db *storage.DB) error {
				if err := db.DeleteSource(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed source %d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(add, list, remove)
	return cmd
}

func printSources(out io.Writer, sources []storage.Source) {
	if len(sources) == 0 {
		fmt.Fprintln(out, "No sources.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tDECK\tSCANNED\tPATH")
	for _, s := range sources {
		scanned := "never"
		if s.LastScanned != nil {
			scanned = humanize.Time(*s.LastScanned)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.Kind, ingest.DefaultDeck(s), scanned, s.Path)
	}
	tw.Flush()
}
