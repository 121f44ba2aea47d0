// Package progress keeps the per-day review counters behind the daily caps.
package progress

import (
	"cmp"
	"slices"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// GlobalScope is the scope used when caps are not tracked per deck.
const GlobalScope = "global"

// Origin is the sub-queue a card was pulled from.
type Origin int

const (
	OriginLearning Origin = iota
	OriginNew
	OriginReview
)

func (o Origin) String() string {
	switch o {
	case OriginNew:
		return "new"
	case OriginReview:
		return "review"
	default:
		return "learning"
	}
}

type dayKey struct {
	date  string
	scope string
}

// Tracker holds one DailyProgress per calendar day and scope.
// Days are created on first use; nothing is carried over between days.
type Tracker struct {
	loc  *time.Location
	days map[dayKey]*domain.DailyProgress
}

// NewTracker creates a tracker that splits days in loc. A nil loc means UTC.
func NewTracker(loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{loc: loc, days: make(map[dayKey]*domain.DailyProgress)}
}

// DateKey returns the calendar date of t in loc as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

// Location returns the time zone used to split days.
func (t *Tracker) Location() *time.Location {
	return t.loc
}

func (t *Tracker) day(scope string, now time.Time) *domain.DailyProgress {
	k := dayKey{date: DateKey(now, t.loc), scope: scope}
	d, ok := t.days[k]
	if !ok {
		d = &domain.DailyProgress{Date: k.date, Scope: scope}
		t.days[k] = d
	}
	return d
}

// Today returns a copy of the counters for scope on the day containing now.
func (t *Tracker) Today(scope string, now time.Time) domain.DailyProgress {
	return *t.day(scope, now)
}

// Load seeds the tracker with a stored record, replacing any in-memory one.
func (t *Tracker) Load(p domain.DailyProgress) {
	cp := p
	t.days[dayKey{date: p.Date, scope: p.Scope}] = &cp
}

// Pulled counts a card taken from a sub-queue. Call it once per card, not
// once per answer: a card answered again from the waiting room is not
// pulled a second time.
func (t *Tracker) Pulled(scope string, origin Origin, now time.Time) domain.DailyProgress {
	d := t.day(scope, now)
	switch origin {
	case OriginNew:
		d.NewReviewed++
	case OriginReview:
		d.ReviewsDone++
	default:
		d.LearningDone++
	}
	return *d
}

// Answered counts one rating for the again/correct tallies.
func (t *Tracker) Answered(scope string, rating domain.Rating, now time.Time) domain.DailyProgress {
	d := t.day(scope, now)
	if rating == domain.Again {
		d.Again++
	} else {
		d.Correct++
	}
	return *d
}

// Days returns every tracked record ordered by date, then scope.
func (t *Tracker) Days() []domain.DailyProgress {
	out := make([]domain.DailyProgress, 0, len(t.days))
	for _, d := range t.days {
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b domain.DailyProgress) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.Scope, b.Scope))
	})
	return out
}
