// Package scheduler computes the next state of a card after a rating.
//
// Every function here is pure: cards are passed and returned by value,
// nothing is cached between calls and the clock is always an argument.
// Replaying the same ratings at the same instants rebuilds the same card.
package scheduler

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/policy"
)

var (
	ErrInvariant    = errors.New("knoldeck: schedule would break card invariants")
	ErrCardMismatch = errors.New("knoldeck: review log belongs to another card")
)

const (
	lapseEasePenalty = 0.20
	hardEasePenalty  = 0.15
	easyEaseBonus    = 0.15
	hardStepFactor   = 1.5

	// maxDueYear is the last year a stored or JSON-encoded timestamp can hold.
	maxDueYear = 9999
)

// Schedule applies rating to card at now under the effective policy p and
// returns the updated card. The input card is not modified. An invalid
// rating is rejected before anything is computed.
func Schedule(card domain.Card, rating domain.Rating, p policy.Policy, now time.Time) (domain.Card, error) {
	if !rating.IsValid() {
		return domain.Card{}, fmt.Errorf("%w: %d", domain.ErrInvalidRating, int(rating))
	}
	if !card.State.IsValid() {
		return domain.Card{}, fmt.Errorf("%w: %d", domain.ErrInvalidState, int(card.State))
	}
	p = p.Normalize()

	c := card
	if math.IsNaN(c.Ease) || c.Ease < policy.MinimumEase {
		c.Ease = policy.MinimumEase
	}

	switch c.State {
	case domain.New, domain.Learning, domain.Relearning:
		stepTransition(&c, rating, p, now)
	case domain.Review:
		reviewTransition(&c, rating, p, now)
	}

	c.Reps++
	c.UpdatedAt = now

	if rating == domain.Again && p.LeechThreshold > 0 && c.Lapses >= p.LeechThreshold {
		c.Leech = true
		if p.LeechAction == policy.LeechSuspend {
			c.Suspended = true
		}
	}

	if err := checkInvariants(card, c, p, now); err != nil {
		return domain.Card{}, err
	}
	return c, nil
}

// stepTransition walks a New, Learning or Relearning card through the
// learning steps. Relearning cards stay in Relearning until they graduate.
func stepTransition(c *domain.Card, rating domain.Rating, p policy.Policy, now time.Time) {
	stepping := domain.Learning
	if c.State == domain.Relearning {
		stepping = domain.Relearning
	}

	// A step list shortened after the card entered it leaves the index past the end.
	idx := c.StepIndex
	if c.State == domain.New || idx < 0 {
		idx = 0
	}
	idx = min(idx, len(p.LearningSteps)-1)

	switch rating {
	case domain.Again:
		c.State = stepping
		c.StepIndex = 0
		c.Due = now.Add(p.Step(0))
	case domain.Hard:
		c.State = stepping
		c.StepIndex = idx
		c.Due = now.Add(time.Duration(float64(p.Step(idx)) * hardStepFactor))
	case domain.Good:
		next := idx + 1
		if next < len(p.LearningSteps) {
			c.State = stepping
			c.StepIndex = next
			c.Due = now.Add(p.Step(next))
			return
		}
		graduate(c, p.GraduatingInterval, p, now)
	case domain.Easy:
		graduate(c, p.EasyInterval, p, now)
	}
}

// graduate moves a card into Review. Relearning cards restart at the given
// interval, not at the interval they had before the lapse.
func graduate(c *domain.Card, days int, p policy.Policy, now time.Time) {
	c.State = domain.Review
	c.StepIndex = 0
	c.Interval = clampInterval(days, p)
	c.Due = now.AddDate(0, 0, c.Interval)
}

func reviewTransition(c *domain.Card, rating domain.Rating, p policy.Policy, now time.Time) {
	ivl := float64(max(c.Interval, 1))

	switch rating {
	case domain.Again:
		c.Lapses++
		c.Ease = roundEase(math.Max(policy.MinimumEase, c.Ease-lapseEasePenalty))
		c.State = domain.Relearning
		c.StepIndex = 0
		c.Interval = clampInterval(1, p)
		c.Due = now.Add(p.Step(0))
		return
	case domain.Hard:
		c.Interval = clampInterval(floorDays(ivl*p.HardMultiplier*p.IntervalModifier), p)
		c.Ease = roundEase(math.Max(policy.MinimumEase, c.Ease-hardEasePenalty))
	case domain.Good:
		c.Interval = clampInterval(floorDays(ivl*c.Ease*p.IntervalModifier), p)
	case domain.Easy:
		c.Interval = clampInterval(floorDays(ivl*c.Ease*p.EasyBonus*p.IntervalModifier), p)
		c.Ease = roundEase(c.Ease + easyEaseBonus)
	}
	c.Due = now.AddDate(0, 0, c.Interval)
}

// floorDays truncates a computed interval. The epsilon absorbs products
// such as 10*1.2 that land a hair below the whole number.
func floorDays(v float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(v + 1e-9))
}

func clampInterval(days int, p policy.Policy) int {
	limit := policy.IntervalCeiling
	if p.MaximumInterval > 0 {
		limit = min(limit, p.MaximumInterval)
	}
	return min(max(days, 1), limit)
}

// roundEase keeps ease at two decimals so repeated updates do not drift.
func roundEase(e float64) float64 {
	return math.Round(e*100) / 100
}

func checkInvariants(before, after domain.Card, p policy.Policy, now time.Time) error {
	switch {
	case !after.State.IsValid():
		return fmt.Errorf("%w: state %v", ErrInvariant, after.State)
	case after.Ease < policy.MinimumEase:
		return fmt.Errorf("%w: ease %.2f", ErrInvariant, after.Ease)
	case after.State == domain.Review && after.Interval < 1:
		return fmt.Errorf("%w: review interval %d", ErrInvariant, after.Interval)
	case after.InLearning() && (after.StepIndex < 0 || after.StepIndex >= len(p.LearningSteps)):
		return fmt.Errorf("%w: step %d of %d", ErrInvariant, after.StepIndex, len(p.LearningSteps))
	case after.Due.Before(now):
		return fmt.Errorf("%w: due %s before %s", ErrInvariant, after.Due, now)
	case after.Due.Year() > maxDueYear:
		return fmt.Errorf("%w: due year %d", ErrInvariant, after.Due.Year())
	case after.Reps < before.Reps || after.Lapses < before.Lapses:
		return fmt.Errorf("%w: counters went backwards", ErrInvariant)
	}
	return nil
}
