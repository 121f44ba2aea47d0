// Package queue builds the study queue for a deck from its cards, the
// effective policy and today's progress.
package queue

import (
	"cmp"
	"slices"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/policy"
)

// Queue is the set of cards available to study right now, split by origin.
// The three slices never share a card.
type Queue struct {
	Learning []domain.Card
	New      []domain.Card
	Review   []domain.Card

	order policy.NewOrder
}

// Counts are the sub-queue sizes shown to the learner.
type Counts struct {
	Learning int `json:"learning"`
	New      int `json:"new"`
	Review   int `json:"review"`
}

// Total is the number of cards across all sub-queues.
func (c Counts) Total() int {
	return c.Learning + c.New + c.Review
}

// Build selects the due cards and applies the daily caps left over after today.
func Build(cards []domain.Card, p policy.Policy, today domain.DailyProgress, now time.Time) Queue {
	p = p.Normalize()
	q := Queue{order: p.NewOrder}

	for _, c := range cards {
		if c.Suspended {
			continue
		}
		switch c.State {
		case domain.New:
			q.New = append(q.New, c)
		case domain.Learning, domain.Relearning:
			if c.IsDue(now) {
				q.Learning = append(q.Learning, c)
			}
		case domain.Review:
			if c.IsDue(now) {
				q.Review = append(q.Review, c)
			}
		}
	}

	slices.SortStableFunc(q.Learning, byDue)
	slices.SortStableFunc(q.New, byCreated)
	slices.SortStableFunc(q.Review, byDue)

	q.New = capped(q.New, p.NewCardsPerDay-today.NewReviewed)
	q.Review = capped(q.Review, p.ReviewsPerDay-today.ReviewsDone)
	return q
}

func byDue(a, b domain.Card) int {
	return cmp.Or(a.Due.Compare(b.Due), cmp.Compare(a.ID, b.ID))
}

func byCreated(a, b domain.Card) int {
	return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
}

func capped(cards []domain.Card, limit int) []domain.Card {
	limit = max(limit, 0)
	if len(cards) > limit {
		return cards[:limit]
	}
	return cards
}

// Counts returns the size of each sub-queue.
func (q Queue) Counts() Counts {
	return Counts{Learning: len(q.Learning), New: len(q.New), Review: len(q.Review)}
}

// Len is the total number of cards in the queue.
func (q Queue) Len() int {
	return q.Counts().Total()
}

// Cards flattens the queue into presentation order. Learning cards always
// come first; new cards are placed relative to reviews by the policy's
// NewOrder. Each sub-queue keeps its own order.
func (q Queue) Cards() []domain.Card {
	out := make([]domain.Card, 0, q.Len())
	out = append(out, q.Learning...)

	switch q.order {
	case policy.NewFirst:
		out = append(out, q.New...)
		out = append(out, q.Review...)
	case policy.Mixed:
		out = append(out, interleave(q.New, q.Review)...)
	default:
		out = append(out, q.Review...)
		out = append(out, q.New...)
	}
	return out
}

// interleave spreads news evenly among reviews.
func interleave(news, reviews []domain.Card) []domain.Card {
	n, total := len(news), len(news)+len(reviews)
	out := make([]domain.Card, 0, total)
	ni, ri := 0, 0
	for k := range total {
		// Rounded share of new cards that should have been placed after k+1 picks.
		target := ((k+1)*n + total/2) / total
		takeNew := ri >= len(reviews) || (ni < n && ni < target)
		if takeNew {
			out = append(out, news[ni])
			ni++
		} else {
			out = append(out, reviews[ri])
			ri++
		}
	}
	return out
}
