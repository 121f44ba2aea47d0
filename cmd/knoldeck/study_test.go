package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knoldeck/internal/config"
	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/policy"
	"github.com/conorfennell/knoldeck/internal/storage"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	app *app
	db  *storage.DB
	now time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e := &testEnv{db: db, now: t0}
	e.app = &app{
		cfg: config.Config{Policy: policy.Default()},
		loc: time.UTC,
		now: func() time.Time { return e.now },
	}
	return e
}

func (e *testEnv) addCard(t *testing.T, id string, created time.Time) {
	t.Helper()
	c := storage.Card{Card: domain.NewCard(id, "spanish", 2.5, created), Question: "Q " + id, Answer: "A " + id}
	_, err := e.db.InsertCard(context.Background(), c)
	require.NoError(t, err)
}

func (e *testEnv) study(t *testing.T, input string) (*study, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	s, err := e.app.newStudy(context.Background(), e.db, "spanish", strings.NewReader(input), &out)
	require.NoError(t, err)
	s.wait = func(ctx context.Context, d time.Duration) error {
		e.now = e.now.Add(d)
		return nil
	}
	return s, &out
}

func TestStudyRunsUntilDone(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addCard(t, "a", t0.Add(-2*time.Minute))
	e.addCard(t, "b", t0.Add(-time.Minute))

	// a: good (next step), b: easy (graduates), then a comes back: good.
	s, out := e.study(t, "\n3\n\neasy\n\n3\n")
	require.NoError(t, s.run(ctx))

	assert.Equal(t, 3, s.reviewed)
	assert.Contains(t, out.String(), "Q: Q a")
	assert.Contains(t, out.String(), "Next learning card in 10m.")
	assert.Contains(t, out.String(), "Session complete.")

	a, err := e.db.GetCard(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.Review, a.State)
	assert.Equal(t, 1, a.Interval)

	b, err := e.db.GetCard(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.Review, b.State)
	assert.Equal(t, 4, b.Interval)

	logs, err := e.db.ListReviews(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	p, err := e.db.GetProgress(ctx, "2025-06-15", "spanish")
	require.NoError(t, err)
	assert.Equal(t, 2, p.NewReviewed, "a card counts once against the cap")
	assert.Equal(t, 3, p.Correct)
}

func TestStudyQuitKeepsAnsweredCards(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addCard(t, "a", t0.Add(-2*time.Minute))
	e.addCard(t, "b", t0.Add(-time.Minute))

	s, out := e.study(t, "\n4\nq\n")
	require.NoError(t, s.run(ctx))
	assert.Equal(t, 1, s.reviewed)
	assert.Contains(t, out.String(), "Reviewed 1 cards.")

	b, err := e.db.GetCard(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.New, b.State)
}

func TestStudyRepromptsOnBadRating(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addCard(t, "a", t0)

	s, out := e.study(t, "\nmeh\n2\n")
	s.wait = nil
	require.NoError(t, s.run(ctx))

	assert.Equal(t, 1, s.reviewed)
	assert.Contains(t, out.String(), "Enter 1-4")
	assert.Contains(t, out.String(), "1 learning cards come back later.")

	a, err := e.db.GetCard(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.Learning, a.State)
}

func TestStudyHonorsDailyCap(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addCard(t, "a", t0)
	perDay := 1
	require.NoError(t, e.db.PutDeckOverride(ctx, "spanish", policy.Override{NewCardsPerDay: &perDay}, t0))
	require.NoError(t, e.db.PutProgress(ctx, domain.DailyProgress{Date: "2025-06-15", Scope: "spanish", NewReviewed: 1}))

	s, out := e.study(t, "")
	require.NoError(t, s.run(ctx))
	assert.Contains(t, out.String(), "Nothing to study in spanish")
}

func TestStudyUnknownDeck(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.app.newStudy(context.Background(), e.db, "nope", strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorContains(t, err, "no cards")
}

func TestVerifyHistory(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addCard(t, "a", t0)

	s, _ := e.study(t, "\n3\n\n3\n")
	require.NoError(t, s.run(ctx))

	card, err := e.db.GetCard(ctx, "a")
	require.NoError(t, err)
	logs, err := e.db.ListReviews(ctx, "a")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, verifyHistory(&out, card.Card, logs, policy.Default()))
	assert.Contains(t, out.String(), "Replay matches")

	out.Reset()
	p := policy.Default()
	p.GraduatingInterval = 3
	require.NoError(t, verifyHistory(&out, card.Card, logs, p))
	assert.Contains(t, out.String(), "Replay differs")
}
