package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/knoldeck/internal/config"
	"github.com/conorfennell/knoldeck/internal/ingest"
	"github.com/conorfennell/knoldeck/internal/storage"
)

// app carries the loaded configuration to every subcommand.
type app struct {
	cfg config.Config
	loc *time.Location
	now func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}

	root := &cobra.Command{
		Use:           "knoldeck",
		Short:         "Spaced-repetition study for plain-text flashcards",
		Long:          "knoldeck schedules reviews of Q/A notes kept in markdown files or git repositories.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(a),
		newSyncCmd(a),
		newSourceCmd(a),
		newDueCmd(a),
		newStudyCmd(a),
		newCardCmd(a),
		newDeckCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(config.OptionsFromFlags(cmd.Root().PersistentFlags()))
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.loc = loc

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()})))
	slog.Debug("config loaded", "db", cfg.DB, "timezone", loc.String())
	return nil
}

func (a *app) openStore(ctx context.Context) (*storage.DB, error) {
	if dir := filepath.Dir(a.cfg.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := storage.Open(ctx, a.cfg.DB)
	if err != nil {
		return nil, err
	}
	slog.Debug("database opened", "path", a.cfg.DB)
	return db, nil
}

func (a *app) syncer(db *storage.DB) *ingest.Syncer {
	return &ingest.Syncer{
		DB:       db,
		Global:   a.cfg.Policy,
		ReposDir: a.cfg.ReposDir,
		Now:      a.now,
	}
}

// withStore opens the database for the duration of fn.
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, db *storage.DB) error) error {
	ctx := cmd.Context()
	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}
