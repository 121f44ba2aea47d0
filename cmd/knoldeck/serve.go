package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/knoldeck/internal/digest"
	"github.com/conorfennell/knoldeck/internal/storage"
	"github.com/conorfennell/knoldeck/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var syncFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, db *storage.DB) error {
				return a.serve(ctx, db, syncFirst)
			})
		},
	}
	cmd.Flags().BoolVar(&syncFirst, "sync", false, "Sync all sources before serving")
	return cmd
}

func (a *app) serve(ctx context.Context, db *storage.DB, syncFirst bool) error {
	syncer := a.syncer(db)
	if syncFirst {
		if _, err := syncer.Run(ctx); err != nil {
			slog.Warn("initial sync finished with errors", "error", err)
		}
	}

	if a.cfg.Digest.Enabled {
		sched, err := digest.Start(&digest.Job{
			DB:       db,
			Global:   a.cfg.Policy,
			Location: a.loc,
			KeepDays: a.cfg.Digest.KeepDays,
		}, a.cfg.Digest.At)
		if err != nil {
			return err
		}
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr: a.cfg.Addr,
		Handler: web.NewServer(db, web.Options{
			Global:   a.cfg.Policy,
			Location: a.loc,
			Syncer:   syncer,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", a.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
