// Package ingest turns card sources into stored cards: new notes become New
// cards, notes that disappeared from a source are deleted with their history.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/gitsource"
	"github.com/conorfennell/knoldeck/internal/parser"
	"github.com/conorfennell/knoldeck/internal/policy"
	"github.com/conorfennell/knoldeck/internal/storage"
)

// Report summarizes one source reconciliation.
type Report struct {
	SourceID int64    `json:"source_id"`
	Path     string   `json:"path"`
	Parsed   int      `json:"parsed"`
	Inserted int      `json:"inserted"`
	Moved    int      `json:"moved"`
	Deleted  int      `json:"deleted"`
	Errors   []string `json:"errors,omitempty"`
}

// Syncer reconciles sources against the store.
type Syncer struct {
	DB       *storage.DB
	Global   policy.Policy
	ReposDir string

	// Now and GitSync default to time.Now and gitsource.Sync.
	Now     func() time.Time
	GitSync func(ctx context.Context, url, localPath string) error
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// DefaultDeck is the deck used for notes in files without a Deck: line.
func DefaultDeck(src storage.Source) string {
	if src.Deck != "" {
		return src.Deck
	}
	base := strings.TrimSuffix(filepath.Base(strings.TrimRight(src.Path, "/")), ".git")
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "default"
	}
	return base
}

// Run syncs every stored source. Git sources are cloned or pulled into
// ReposDir first. A failing source is logged and skipped; the returned
// error joins all failures.
func (s *Syncer) Run(ctx context.Context) ([]Report, error) {
	slog.Info("starting sync for all sources")
	sources, err := s.DB.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		slog.Info("no sources configured")
		return nil, nil
	}

	var reports []Report
	var errs []error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := s.SyncSource(ctx, src)
		if err != nil {
			slog.Error("source sync failed", "id", src.ID, "path", src.Path, "error", err)
			errs = append(errs, err)
			continue
		}
		reports = append(reports, rep)
	}
	slog.Info("sync complete", "sources", len(sources), "failed", len(errs))
	return reports, errors.Join(errs...)
}

// SyncSource fetches a source if it is remote and reconciles it.
func (s *Syncer) SyncSource(ctx context.Context, src storage.Source) (Report, error) {
	slog.Info("syncing source", "id", src.ID, "kind", src.Kind, "path", src.Path)
	dir := src.Path
	if src.IsGit() {
		local, err := gitsource.LocalPath(s.ReposDir, src.Path)
		if err != nil {
			return Report{}, err
		}
		gitSync := s.GitSync
		if gitSync == nil {
			gitSync = gitsource.Sync
		}
		if err := gitSync(ctx, src.Path, local); err != nil {
			return Report{}, fmt.Errorf("failed to sync git source %s: %w", src.Path, err)
		}
		dir = local
	}
	return s.Reconcile(ctx, src, dir)
}

// Reconcile parses every .md file under dir and brings the source's cards
// in line with the notes found.
func (s *Syncer) Reconcile(ctx context.Context, src storage.Source, dir string) (Report, error) {
	rep := Report{SourceID: src.ID, Path: dir}
	deck := DefaultDeck(src)

	var notes []domain.Note
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		fileNotes, parseErr := parser.ParseFile(path, deck)
		if parseErr != nil {
			rep.Errors = append(rep.Errors, parseErr.Error())
			return nil
		}
		notes = append(notes, fileNotes...)
		return nil
	})
	if walkErr != nil {
		return rep, fmt.Errorf("failed to walk %s: %w", dir, walkErr)
	}
	rep.Parsed = len(notes)

	existing, err := s.DB.ListCardsBySource(ctx, src.ID)
	if err != nil {
		return rep, err
	}
	stored := make(map[string]storage.Card, len(existing))
	for _, c := range existing {
		stored[c.ID] = c
	}

	now := s.now()
	policies := make(map[string]policy.Policy)
	found := make(map[string]bool, len(notes))
	for i, n := range notes {
		if found[n.Hash] {
			continue
		}
		found[n.Hash] = true

		if c, ok := stored[n.Hash]; ok {
			if c.DeckID != n.Deck {
				if err := s.DB.MoveCard(ctx, c.ID, n.Deck, now); err != nil {
					rep.Errors = append(rep.Errors, err.Error())
					continue
				}
				rep.Moved++
			}
			continue
		}

		p, ok := policies[n.Deck]
		if !ok {
			if p, err = s.DB.EffectivePolicy(ctx, s.Global, n.Deck); err != nil {
				return rep, err
			}
			policies[n.Deck] = p
		}
		// Spread creation times so new cards keep file order.
		created := now.Add(time.Duration(i) * time.Microsecond)
		card := storage.Card{
			Card:     domain.NewCard(n.Hash, n.Deck, p.Normalize().StartingEase, created),
			Question: n.Question,
			Answer:   n.Answer,
			Context:  n.Context,
			SourceID: src.ID,
		}
		inserted, err := s.DB.InsertCard(ctx, card)
		if err != nil {
			rep.Errors = append(rep.Errors, err.Error())
			continue
		}
		if inserted {
			slog.Debug("new card", "hash", n.Hash, "deck", n.Deck)
			rep.Inserted++
		} else {
			slog.Warn("note already stored by another source", "hash", n.Hash, "path", dir)
		}
	}

	for _, c := range existing {
		if found[c.ID] {
			continue
		}
		slog.Info("orphaned card, deleting", "hash", c.ID)
		if err := s.DB.DeleteCard(ctx, c.ID); err != nil {
			slog.Warn("failed to delete orphaned card", "hash", c.ID, "error", err)
			continue
		}
		rep.Deleted++
	}

	if err := s.DB.TouchSource(ctx, src.ID, now); err != nil {
		slog.Warn("failed to update last scanned for source", "source_id", src.ID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", dir,
		"parsed_cards", rep.Parsed,
		"inserted", rep.Inserted,
		"moved", rep.Moved,
		"orphaned_deleted", rep.Deleted,
		"errors", len(rep.Errors),
	)
	return rep, nil
}

// AddSource registers a local directory or git URL. Local paths are stored
// absolute and must exist.
func AddSource(ctx context.Context, db *storage.DB, path, deck string) (storage.Source, error) {
	if gitsource.IsURL(path) {
		return db.InsertSource(ctx, path, storage.SourceGit, deck)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return storage.Source{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return storage.Source{}, fmt.Errorf("failed to add source %s: %w", abs, err)
	}
	if !info.IsDir() {
		return storage.Source{}, fmt.Errorf("failed to add source %s: not a directory", abs)
	}
	return db.InsertSource(ctx, abs, storage.SourceLocal, deck)
}
