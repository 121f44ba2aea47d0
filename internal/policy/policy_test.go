package policy

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int                    { return &v }
func floatp(v float64) *float64          { return &v }
func actionp(a LeechAction) *LeechAction { return &a }

func TestResolve(t *testing.T) {
	global := Default()

	t.Run("nil override copies global", func(t *testing.T) {
		p := Resolve(global, nil)
		assert.Equal(t, global, p)

		p.LearningSteps[0] = 99
		assert.Equal(t, 1, global.LearningSteps[0], "global steps must not be aliased")
	})

	t.Run("set fields win, unset fields inherit", func(t *testing.T) {
		p := Resolve(global, &Override{
			NewCardsPerDay: intp(5),
			StartingEase:   floatp(2.1),
			LeechAction:    actionp(LeechTag),
		})
		assert.Equal(t, 5, p.NewCardsPerDay)
		assert.Equal(t, 2.1, p.StartingEase)
		assert.Equal(t, LeechTag, p.LeechAction)
		assert.Equal(t, global.ReviewsPerDay, p.ReviewsPerDay)
		assert.Equal(t, global.LearningSteps, p.LearningSteps)
	})

	t.Run("learning steps replace the whole list", func(t *testing.T) {
		p := Resolve(global, &Override{LearningSteps: []int{5}})
		assert.Equal(t, []int{5}, p.LearningSteps)
	})

	t.Run("zero value in override is still an override", func(t *testing.T) {
		p := Resolve(global, &Override{NewCardsPerDay: intp(0)})
		assert.Equal(t, 0, p.NewCardsPerDay)
	})
}

func TestNormalize(t *testing.T) {
	p := Policy{
		NewCardsPerDay:     -3,
		ReviewsPerDay:      -1,
		GraduatingInterval: 0,
		EasyInterval:       -2,
		StartingEase:       1.0,
		IntervalModifier:   -0.5,
		HardMultiplier:     math.NaN(),
		EasyBonus:          1.3,
		MaximumInterval:    -1,
		LeechThreshold:     -4,
		LeechAction:        "explode",
		LearningSteps:      []int{0, -5},
		NewOrder:           "sideways",
	}

	n := p.Normalize()
	assert.Equal(t, 0, n.NewCardsPerDay)
	assert.Equal(t, 0, n.ReviewsPerDay)
	assert.Equal(t, 1, n.GraduatingInterval)
	assert.Equal(t, 1, n.EasyInterval)
	assert.Equal(t, MinimumEase, n.StartingEase)
	assert.Equal(t, 0.0, n.IntervalModifier)
	assert.Equal(t, 1.2, n.HardMultiplier)
	assert.Equal(t, 0, n.MaximumInterval)
	assert.Equal(t, 0, n.LeechThreshold)
	assert.Equal(t, LeechSuspend, n.LeechAction)
	assert.Equal(t, []int{1, 10}, n.LearningSteps)
	assert.Equal(t, ReviewsFirst, n.NewOrder)

	assert.Equal(t, []int{0, -5}, p.LearningSteps, "input must not change")
}

func TestNormalizeKeepsValidPolicy(t *testing.T) {
	p := Default()
	p.LearningSteps = []int{1, 5, 30}
	assert.Equal(t, p, p.Normalize())
}

func TestSteps(t *testing.T) {
	p := Default()
	p.LearningSteps = []int{1, 30, 10}
	assert.Equal(t, 30*time.Minute, p.Step(1))
	assert.Equal(t, 30*time.Minute, p.LongestStep())
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(Default()))

	p := Default()
	p.LearningSteps = nil
	assert.Error(t, Validate(p))

	p = Default()
	p.LeechAction = "delete"
	assert.Error(t, Validate(p))

	p = Default()
	p.StartingEase = 1.1
	assert.Error(t, Validate(p))
}

func TestParseOverride(t *testing.T) {
	t.Run("sparse object", func(t *testing.T) {
		o, err := ParseOverride([]byte(`{"new_cards_per_day": 5, "learning_steps": [2, 20]}`))
		require.NoError(t, err)
		require.NotNil(t, o.NewCardsPerDay)
		assert.Equal(t, 5, *o.NewCardsPerDay)
		assert.Equal(t, []int{2, 20}, o.LearningSteps)
		assert.Nil(t, o.ReviewsPerDay)
	})

	t.Run("empty input", func(t *testing.T) {
		o, err := ParseOverride(nil)
		require.NoError(t, err)
		assert.True(t, o.IsEmpty())
	})

	t.Run("negative caps are accepted for clamping", func(t *testing.T) {
		o, err := ParseOverride([]byte(`{"reviews_per_day": -10}`))
		require.NoError(t, err)
		assert.Equal(t, 0, Resolve(Default(), &o).Normalize().ReviewsPerDay)
	})

	rejected := map[string]string{
		"unknown key":    `{"new_cards": 5}`,
		"wrong type":     `{"new_cards_per_day": "five"}`,
		"fractional int": `{"easy_interval": 2.5}`,
		"bad enum":       `{"leech_action": "delete"}`,
		"zero step":      `{"learning_steps": [0, 10]}`,
		"not an object":  `[1, 2]`,
		"malformed json": `{"new_cards_per_day": `,
	}
	for name, input := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOverride([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestOverrideMarshalsSparse(t *testing.T) {
	raw, err := json.Marshal(Override{EasyInterval: intp(3)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"easy_interval": 3}`, string(raw))
}
