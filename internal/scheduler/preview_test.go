package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/policy"
)

func TestFormatDelay(t *testing.T) {
	testCases := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "<1m"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m"},
		{15 * time.Minute, "15m"},
		{3 * time.Hour, "3h"},
		{24 * time.Hour, "1d"},
		{12 * 24 * time.Hour, "12d"},
		{65 * 24 * time.Hour, "2mo"},
		{800 * 24 * time.Hour, "2y"},
	}
	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatDelay(tc.in))
		})
	}
}

func TestPreviewNewCard(t *testing.T) {
	p := policy.Default()
	p.LearningSteps = []int{1, 10}

	f, err := Preview(newCard(), p, t0)
	require.NoError(t, err)
	assert.Equal(t, Forecast{Again: "1m", Hard: "1m", Good: "10m", Easy: "4d"}, f)
}

func TestPreviewReviewCard(t *testing.T) {
	f, err := Preview(reviewCard(10, 2.5), policy.Default(), t0)
	require.NoError(t, err)
	assert.Equal(t, Forecast{Again: "1m", Hard: "12d", Good: "25d", Easy: "1mo"}, f)
}

func TestPreviewLeavesCardAlone(t *testing.T) {
	c := reviewCard(10, 2.5)
	before := c
	_, err := Preview(c, policy.Default(), t0)
	require.NoError(t, err)
	assert.Equal(t, before, c)
}

func TestReplay(t *testing.T) {
	p := policy.Default()
	start := newCard()

	ratings := []domain.Rating{domain.Good, domain.Good, domain.Good, domain.Again, domain.Good}
	var logs []domain.ReviewLog
	c := start
	now := t0
	for _, r := range ratings {
		next := mustSchedule(t, c, r, p, now)
		logs = append(logs, Log(c, next, r, now))
		c = next
		now = next.Due
	}

	replayed, err := Replay(start, logs, p)
	require.NoError(t, err)
	assert.Equal(t, c, replayed)
	assert.Equal(t, domain.Review, logs[2].StateTo)
	assert.Equal(t, domain.Relearning, logs[3].StateTo)
	assert.NotEmpty(t, logs[0].ID)
}

func TestReplayRejectsForeignLogs(t *testing.T) {
	logs := []domain.ReviewLog{{ID: "x", CardID: "other", Rating: domain.Good, ReviewedAt: t0}}
	_, err := Replay(newCard(), logs, policy.Default())
	assert.True(t, errors.Is(err, ErrCardMismatch))
}
