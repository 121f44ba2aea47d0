package digest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/policy"
	"github.com/conorfennell/knoldeck/internal/storage"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T) *storage.DB {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	add := func(id, deck string, mutate func(*domain.Card)) {
		c := storage.Card{Card: domain.NewCard(id, deck, 2.5, t0.Add(-time.Hour)), Question: id}
		if mutate != nil {
			mutate(&c.Card)
		}
		_, err := db.InsertCard(ctx, c)
		require.NoError(t, err)
	}
	add("n1", "spanish", nil)
	add("n2", "spanish", nil)
	add("n3", "spanish", nil)
	add("r1", "spanish", func(c *domain.Card) {
		c.State = domain.Review
		c.Interval = 3
		c.Due = t0.Add(-time.Minute)
	})
	add("s1", "spanish", func(c *domain.Card) {
		c.State = domain.Review
		c.Interval = 3
		c.Suspended = true
		c.Leech = true
	})
	add("l1", "french", func(c *domain.Card) {
		c.State = domain.Learning
		c.Due = t0.Add(-time.Minute)
	})
	return db
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	db := seed(t)

	perDay := 2
	require.NoError(t, db.PutDeckOverride(ctx, "spanish", policy.Override{NewCardsPerDay: &perDay}, t0))
	require.NoError(t, db.PutProgress(ctx, domain.DailyProgress{Date: "2025-06-15", Scope: "spanish", NewReviewed: 1}))

	got, err := Summarize(ctx, db, policy.Default(), time.UTC, t0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "french", got[0].Deck)
	assert.Equal(t, 1, got[0].Learning)

	spanish := got[1]
	assert.Equal(t, 1, spanish.New, "deck cap of 2 minus 1 already studied")
	assert.Equal(t, 1, spanish.Review)
	assert.Equal(t, 1, spanish.Suspended)
	assert.Equal(t, 1, spanish.Leeches)
}

func TestJobPrunesOldProgress(t *testing.T) {
	ctx := context.Background()
	db := seed(t)
	for _, date := range []string{"2025-05-01", "2025-06-01", "2025-06-15"} {
		require.NoError(t, db.PutProgress(ctx, domain.DailyProgress{Date: date, Scope: "spanish", Correct: 1}))
	}

	job := &Job{DB: db, Global: policy.Default(), Location: time.UTC, KeepDays: 30, Now: func() time.Time { return t0 }}
	summaries, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	left, err := db.ListProgress(ctx, "")
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "2025-06-01", left[0].Date)
}

func TestStartSchedulesDaily(t *testing.T) {
	job := &Job{DB: seed(t), Global: policy.Default(), Location: time.UTC}
	s, err := Start(job, "04:00")
	require.NoError(t, err)
	defer s.Stop()

	next := s.NextRun().In(time.UTC)
	require.False(t, next.IsZero())
	assert.Equal(t, 4, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, next.After(time.Now()))
}

func TestStartRejectsBadTime(t *testing.T) {
	job := &Job{DB: seed(t), Global: policy.Default(), Location: time.UTC}
	_, err := Start(job, "not a time")
	assert.Error(t, err)
}
