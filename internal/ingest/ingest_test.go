package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knoldeck/internal/policy"
	"github.com/conorfennell/knoldeck/internal/storage"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*storage.DB, *Syncer) {
	t.Helper()
	db, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, &Syncer{
		DB:       db,
		Global:   policy.Default(),
		ReposDir: t.TempDir(),
		Now:      func() time.Time { return t0 },
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	db, s := setup(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Q: one\nA: 1\n---\nQ: two\nA: 2\n")
	writeFile(t, dir, "sub/b.md", "Deck: french\nQ: bonjour?\nA: hello\n")
	writeFile(t, dir, "notes.txt", "Q: ignored\nA: not markdown\n")
	writeFile(t, dir, ".hidden/c.md", "Q: hidden\nA: skipped\n")

	src, err := AddSource(ctx, db, dir, "basics")
	require.NoError(t, err)

	rep, err := s.Reconcile(ctx, src, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Parsed)
	assert.Equal(t, 3, rep.Inserted)
	assert.Empty(t, rep.Errors)

	basics, err := db.ListCardsByDeck(ctx, "basics")
	require.NoError(t, err)
	require.Len(t, basics, 2)
	assert.Equal(t, "one", basics[0].Question, "file order is creation order")
	assert.Equal(t, "two", basics[1].Question)
	assert.Equal(t, 2.5, basics[0].Ease)

	french, err := db.ListCardsByDeck(ctx, "french")
	require.NoError(t, err)
	assert.Len(t, french, 1)

	stored, err := db.GetSource(ctx, src.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastScanned)

	// Second pass is a no-op.
	rep, err = s.Reconcile(ctx, src, dir)
	require.NoError(t, err)
	assert.Zero(t, rep.Inserted)
	assert.Zero(t, rep.Deleted)
}

func TestReconcileDeletesOrphansAndMovesDecks(t *testing.T) {
	ctx := context.Background()
	db, s := setup(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Q: one\nA: 1\n---\nQ: two\nA: 2\n")
	src, err := AddSource(ctx, db, dir, "basics")
	require.NoError(t, err)
	_, err = s.Reconcile(ctx, src, dir)
	require.NoError(t, err)

	writeFile(t, dir, "a.md", "Deck: advanced\nQ: one\nA: 1\n")
	rep, err := s.Reconcile(ctx, src, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Deleted)
	assert.Equal(t, 1, rep.Moved)

	cards, err := db.ListCardsBySource(ctx, src.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "advanced", cards[0].DeckID)
}

func TestReconcileUsesDeckStartingEase(t *testing.T) {
	ctx := context.Background()
	db, s := setup(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Q: one\nA: 1\n")

	ease := 2.1
	require.NoError(t, db.PutDeckOverride(ctx, "hard", policy.Override{StartingEase: &ease}, t0))
	src, err := AddSource(ctx, db, dir, "hard")
	require.NoError(t, err)
	_, err = s.Reconcile(ctx, src, dir)
	require.NoError(t, err)

	cards, err := db.ListCardsByDeck(ctx, "hard")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, 2.1, cards[0].Ease)
}

func TestRunSyncsGitSources(t *testing.T) {
	ctx := context.Background()
	db, s := setup(t)

	var fetched []string
	s.GitSync = func(_ context.Context, url, localPath string) error {
		fetched = append(fetched, url)
		writeFile(t, localPath, "deck.md", "Q: remote\nA: yes\n")
		return nil
	}
	_, err := AddSource(ctx, db, "https://github.com/acme/spanish.git", "")
	require.NoError(t, err)

	reports, err := s.Run(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Inserted)
	assert.Equal(t, []string{"https://github.com/acme/spanish.git"}, fetched)
	assert.Equal(t, filepath.Join(s.ReposDir, "github.com", "acme", "spanish"), reports[0].Path)

	cards, err := db.ListCardsByDeck(ctx, "spanish")
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestRunReportsFailingSource(t *testing.T) {
	ctx := context.Background()
	db, s := setup(t)
	good := t.TempDir()
	writeFile(t, good, "a.md", "Q: one\nA: 1\n")
	gone := t.TempDir()

	_, err := AddSource(ctx, db, gone, "")
	require.NoError(t, err)
	_, err = AddSource(ctx, db, good, "")
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(gone))

	reports, err := s.Run(ctx)
	assert.Error(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Inserted)
}

func TestAddSourceValidates(t *testing.T) {
	ctx := context.Background()
	db, _ := setup(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "f.md")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := AddSource(ctx, db, filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
	_, err = AddSource(ctx, db, file, "")
	assert.Error(t, err)

	src, err := AddSource(ctx, db, "git@github.com:acme/cards.git", "")
	require.NoError(t, err)
	assert.Equal(t, storage.SourceGit, src.Kind)
}

func TestDefaultDeck(t *testing.T) {
	assert.Equal(t, "named", DefaultDeck(storage.Source{Path: "/x/y", Deck: "named"}))
	assert.Equal(t, "y", DefaultDeck(storage.Source{Path: "/x/y/"}))
	assert.Equal(t, "cards", DefaultDeck(storage.Source{Path: "https://github.com/acme/cards.git"}))
	assert.Equal(t, "default", DefaultDeck(storage.Source{Path: "/"}))
}
