// Package policy holds the scheduling settings and the merge of global
// settings with per-deck overrides.
package policy

import (
	"math"
	"slices"
	"time"
)

// MinimumEase is the floor for every card's ease factor.
const MinimumEase = 1.3

// IntervalCeiling bounds every review interval in days, also when
// MaximumInterval is 0. It keeps due dates inside the range that RFC 3339
// timestamps can carry.
const IntervalCeiling = 36500

// DefaultLearningSteps replaces an empty learning-step list.
var DefaultLearningSteps = []int{1, 10}

// LeechAction decides what happens to a card that reaches the leech threshold.
type LeechAction string

const (
	LeechSuspend LeechAction = "suspend"
	LeechTag     LeechAction = "tag"
)

// NewOrder decides where new cards go relative to due reviews.
type NewOrder string

const (
	ReviewsFirst NewOrder = "reviews-first"
	NewFirst     NewOrder = "new-first"
	Mixed        NewOrder = "mixed"
)

// Policy is the resolved set of scheduling settings.
type Policy struct {
	NewCardsPerDay     int         `json:"new_cards_per_day" koanf:"new_cards_per_day" validate:"gte=0"`
	ReviewsPerDay      int         `json:"reviews_per_day" koanf:"reviews_per_day" validate:"gte=0"`
	GraduatingInterval int         `json:"graduating_interval" koanf:"graduating_interval" validate:"gte=1"`
	EasyInterval       int         `json:"easy_interval" koanf:"easy_interval" validate:"gte=1"`
	StartingEase       float64     `json:"starting_ease" koanf:"starting_ease" validate:"gte=1.3"`
	IntervalModifier   float64     `json:"interval_modifier" koanf:"interval_modifier" validate:"gte=0"`
	HardMultiplier     float64     `json:"hard_multiplier" koanf:"hard_multiplier" validate:"gte=0"`
	EasyBonus          float64     `json:"easy_bonus" koanf:"easy_bonus" validate:"gte=1"`
	MaximumInterval    int         `json:"maximum_interval" koanf:"maximum_interval" validate:"gte=0"` // Days; 0 means IntervalCeiling.
	LeechThreshold     int         `json:"leech_threshold" koanf:"leech_threshold" validate:"gte=0"`   // 0 disables leech detection.
	LeechAction        LeechAction `json:"leech_action" koanf:"leech_action" validate:"oneof=suspend tag"`
	LearningSteps      []int       `json:"learning_steps" koanf:"learning_steps" validate:"required,min=1,dive,gt=0"` // Minutes.
	NewOrder           NewOrder    `json:"new_order" koanf:"new_order" validate:"oneof=reviews-first new-first mixed"`
}

// Default returns the built-in global policy.
func Default() Policy {
	return Policy{
		NewCardsPerDay:     20,
		ReviewsPerDay:      200,
		GraduatingInterval: 1,
		EasyInterval:       4,
		StartingEase:       2.5,
		IntervalModifier:   1.0,
		HardMultiplier:     1.2,
		EasyBonus:          1.3,
		MaximumInterval:    IntervalCeiling,
		LeechThreshold:     8,
		LeechAction:        LeechSuspend,
		LearningSteps:      slices.Clone(DefaultLearningSteps),
		NewOrder:           ReviewsFirst,
	}
}

// Normalize returns a copy of p that the scheduler can always work with.
// Out-of-range values are clamped rather than rejected: caps are advisory,
// and an empty step list is replaced by DefaultLearningSteps.
func (p Policy) Normalize() Policy {
	d := Default()
	out := p

	out.NewCardsPerDay = max(out.NewCardsPerDay, 0)
	out.ReviewsPerDay = max(out.ReviewsPerDay, 0)
	out.GraduatingInterval = max(out.GraduatingInterval, 1)
	out.EasyInterval = max(out.EasyInterval, 1)
	out.MaximumInterval = max(out.MaximumInterval, 0)
	out.LeechThreshold = max(out.LeechThreshold, 0)

	if math.IsNaN(out.StartingEase) || out.StartingEase < MinimumEase {
		out.StartingEase = MinimumEase
	}
	out.IntervalModifier = nonNegative(out.IntervalModifier, d.IntervalModifier)
	out.HardMultiplier = nonNegative(out.HardMultiplier, d.HardMultiplier)
	out.EasyBonus = nonNegative(out.EasyBonus, d.EasyBonus)

	switch out.LeechAction {
	case LeechSuspend, LeechTag:
	default:
		out.LeechAction = d.LeechAction
	}
	switch out.NewOrder {
	case ReviewsFirst, NewFirst, Mixed:
	default:
		out.NewOrder = d.NewOrder
	}

	steps := make([]int, 0, len(p.LearningSteps))
	for _, s := range p.LearningSteps {
		if s > 0 {
			steps = append(steps, s)
		}
	}
	if len(steps) == 0 {
		steps = slices.Clone(DefaultLearningSteps)
	}
	out.LearningSteps = steps

	return out
}

func nonNegative(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return math.Max(v, 0)
}

// Step returns the delay of learning step i. i must be in range.
func (p Policy) Step(i int) time.Duration {
	return time.Duration(p.LearningSteps[i]) * time.Minute
}

// LongestStep returns the largest learning-step delay.
func (p Policy) LongestStep() time.Duration {
	if len(p.LearningSteps) == 0 {
		return 0
	}
	return time.Duration(slices.Max(p.LearningSteps)) * time.Minute
}
