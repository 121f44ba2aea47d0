package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/policy"
)

// Forecast holds the next-interval label for each rating.
type Forecast struct {
	Again string `json:"again"`
	Hard  string `json:"hard"`
	Good  string `json:"good"`
	Easy  string `json:"easy"`
}

var compactMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "<1m", DivBy: 1},
	{D: time.Hour, Format: "%dm", DivBy: time.Minute},
	{D: humanize.Day, Format: "%dh", DivBy: time.Hour},
	{D: humanize.Month, Format: "%dd", DivBy: humanize.Day},
	{D: humanize.Year, Format: "%dmo", DivBy: humanize.Month},
	{D: math.MaxInt64, Format: "%dy", DivBy: humanize.Year},
}

// Preview shows what each rating would do to card without changing it.
func Preview(card domain.Card, p policy.Policy, now time.Time) (Forecast, error) {
	var labels [len(domain.Ratings)]string
	for i, r := range domain.Ratings {
		next, err := Schedule(card, r, p, now)
		if err != nil {
			return Forecast{}, err
		}
		labels[i] = FormatDelay(delay(next, now))
	}
	return Forecast{Again: labels[0], Hard: labels[1], Good: labels[2], Easy: labels[3]}, nil
}

// delay measures review cards in whole days so a DST shift does not turn
// "1d" into "23h".
func delay(c domain.Card, now time.Time) time.Duration {
	if c.State == domain.Review {
		return time.Duration(c.Interval) * humanize.Day
	}
	return c.Due.Sub(now)
}

// FormatDelay renders d in the compact form used on review buttons: 10m, 4d, 3mo.
func FormatDelay(d time.Duration) string {
	var zero time.Time
	return humanize.CustomRelTime(zero, zero.Add(d), "", "", compactMagnitudes)
}

// Replay rebuilds a card by applying its review history in order.
func Replay(card domain.Card, logs []domain.ReviewLog, p policy.Policy) (domain.Card, error) {
	c := card
	for _, l := range logs {
		if l.CardID != c.ID {
			return domain.Card{}, fmt.Errorf("%w: card %s, log %s", ErrCardMismatch, c.ID, l.CardID)
		}
		next, err := Schedule(c, l.Rating, p, l.ReviewedAt)
		if err != nil {
			return domain.Card{}, fmt.Errorf("failed to replay review %s: %w", l.ID, err)
		}
		c = next
	}
	return c, nil
}

// Log describes the transition from before to after as a review-log entry.
func Log(before, after domain.Card, rating domain.Rating, now time.Time) domain.ReviewLog {
	return domain.ReviewLog{
		ID:         uuid.NewString(),
		CardID:     after.ID,
		Rating:     rating,
		StateFrom:  before.State,
		StateTo:    after.State,
		Interval:   after.Interval,
		Ease:       after.Ease,
		Due:        after.Due,
		ReviewedAt: now,
	}
}
