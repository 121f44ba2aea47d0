// Package session runs a single study session over a snapshot of a deck's
// queue, holding short-term learning cards in a waiting room until they
// come due again.
package session

import (
	"cmp"
	"errors"
	"time"

	"github.com/emirpasic/gods/queues/priorityqueue"
	"github.com/google/uuid"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/policy"
	"github.com/conorfennell/knoldeck/internal/progress"
	"github.com/conorfennell/knoldeck/internal/queue"
	"github.com/conorfennell/knoldeck/internal/scheduler"
)

var (
	ErrDone    = errors.New("session: no cards left")
	ErrWaiting = errors.New("session: waiting for learning cards")
	ErrNoCard  = errors.New("session: no card in progress")
)

// horizonFactor stretches the longest learning step so that a hard answer
// on the last step still comes back in the same session.
const horizonFactor = 1.5

type item struct {
	card        domain.Card
	origin      progress.Origin
	availableAt time.Time
	seq         uint64
}

func byAvailable(a, b interface{}) int {
	x, y := a.(*item), b.(*item)
	return cmp.Or(x.availableAt.Compare(y.availableAt), cmp.Compare(x.seq, y.seq))
}

// Outcome is the result of answering a card. The caller persists Card and Log.
type Outcome struct {
	Card     domain.Card
	Log      domain.ReviewLog
	Progress domain.DailyProgress
	Requeued bool
}

// Runner drives one study session. It is not safe for concurrent use.
type Runner struct {
	ID string

	policy  policy.Policy
	tracker *progress.Tracker
	scope   string
	horizon time.Duration

	snapshot []item
	index    int
	waiting  *priorityqueue.Queue
	seq      uint64

	current *item
	flipped bool
	pulled  map[string]bool
}

// New snapshots the queue for cards at now. Membership of the new and review
// queues does not change afterwards, however long the session runs.
// A nil tracker starts a fresh one in UTC.
func New(cards []domain.Card, p policy.Policy, tracker *progress.Tracker, scope string, now time.Time) *Runner {
	if tracker == nil {
		tracker = progress.NewTracker(time.UTC)
	}
	p = p.Normalize()
	q := queue.Build(cards, p, tracker.Today(scope, now), now)

	r := &Runner{
		ID:      uuid.NewString(),
		policy:  p,
		tracker: tracker,
		scope:   scope,
		horizon: time.Duration(float64(p.LongestStep()) * horizonFactor),
		waiting: priorityqueue.NewWith(byAvailable),
		pulled:  make(map[string]bool),
	}

	origins := make(map[string]progress.Origin, q.Len())
	for _, c := range q.New {
		origins[c.ID] = progress.OriginNew
	}
	for _, c := range q.Review {
		origins[c.ID] = progress.OriginReview
	}
	for _, c := range q.Cards() {
		origin, ok := origins[c.ID]
		if !ok {
			origin = progress.OriginLearning
		}
		r.snapshot = append(r.snapshot, item{card: c, origin: origin})
	}
	return r
}

// Next returns the card to show. Ready waiting-room cards are served before
// the snapshot, oldest first. If a card is already in progress it is
// returned again.
func (r *Runner) Next(now time.Time) (domain.Card, error) {
	if r.current != nil {
		return r.current.card, nil
	}

	if v, ok := r.waiting.Peek(); ok && !v.(*item).availableAt.After(now) {
		r.waiting.Dequeue()
		r.current = v.(*item)
		r.flipped = false
		return r.current.card, nil
	}

	if r.index < len(r.snapshot) {
		it := r.snapshot[r.index]
		r.index++
		r.current = &it
		r.flipped = false
		return it.card, nil
	}

	if !r.waiting.Empty() {
		return domain.Card{}, ErrWaiting
	}
	return domain.Card{}, ErrDone
}

// WaitingUntil reports when the earliest waiting-room card becomes available.
func (r *Runner) WaitingUntil() (time.Time, bool) {
	v, ok := r.waiting.Peek()
	if !ok {
		return time.Time{}, false
	}
	return v.(*item).availableAt, true
}

// Current returns the card in progress, if any.
func (r *Runner) Current() (domain.Card, bool) {
	if r.current == nil {
		return domain.Card{}, false
	}
	return r.current.card, true
}

// Flip marks the current card's answer as shown.
func (r *Runner) Flip() error {
	if r.current == nil {
		return ErrNoCard
	}
	r.flipped = true
	return nil
}

func (r *Runner) Flipped() bool { return r.flipped }

// Answer rates the current card. On error the card stays current and
// nothing is recorded.
func (r *Runner) Answer(rating domain.Rating, now time.Time) (Outcome, error) {
	if r.current == nil {
		return Outcome{}, ErrNoCard
	}
	before := r.current.card
	next, err := scheduler.Schedule(before, rating, r.policy, now)
	if err != nil {
		return Outcome{}, err
	}

	if !r.pulled[before.ID] {
		r.pulled[before.ID] = true
		r.tracker.Pulled(r.scope, r.current.origin, now)
	}
	out := Outcome{
		Card:     next,
		Log:      scheduler.Log(before, next, rating, now),
		Progress: r.tracker.Answered(r.scope, rating, now),
	}

	if next.InLearning() && !next.Suspended && next.Due.Sub(now) <= r.horizon {
		r.seq++
		r.waiting.Enqueue(&item{card: next, origin: r.current.origin, availableAt: next.Due, seq: r.seq})
		out.Requeued = true
	}

	r.current = nil
	r.flipped = false
	return out, nil
}

// Index is the number of snapshot cards handed out so far.
func (r *Runner) Index() int { return r.index }

// Remaining is the number of snapshot cards not yet handed out.
func (r *Runner) Remaining() int { return len(r.snapshot) - r.index }

// Waiting is the number of cards in the waiting room.
func (r *Runner) Waiting() int { return r.waiting.Size() }

// Total is the size of the snapshot taken at the start of the session.
func (r *Runner) Total() int { return len(r.snapshot) }
