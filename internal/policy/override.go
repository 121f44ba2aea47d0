package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Override is a sparse set of per-deck settings. A nil field inherits the
// global value. LearningSteps is replaced or inherited as a whole list.
type Override struct {
	NewCardsPerDay     *int         `json:"new_cards_per_day,omitempty"`
	ReviewsPerDay      *int         `json:"reviews_per_day,omitempty"`
	GraduatingInterval *int         `json:"graduating_interval,omitempty"`
	EasyInterval       *int         `json:"easy_interval,omitempty"`
	StartingEase       *float64     `json:"starting_ease,omitempty"`
	IntervalModifier   *float64     `json:"interval_modifier,omitempty"`
	HardMultiplier     *float64     `json:"hard_multiplier,omitempty"`
	EasyBonus          *float64     `json:"easy_bonus,omitempty"`
	MaximumInterval    *int         `json:"maximum_interval,omitempty"`
	LeechThreshold     *int         `json:"leech_threshold,omitempty"`
	LeechAction        *LeechAction `json:"leech_action,omitempty"`
	LearningSteps      []int        `json:"learning_steps,omitempty"`
	NewOrder           *NewOrder    `json:"new_order,omitempty"`
}

// Resolve merges a deck override onto the global policy.
// A nil override yields a copy of global.
func Resolve(global Policy, o *Override) Policy {
	p := global
	p.LearningSteps = slices.Clone(global.LearningSteps)
	if o == nil {
		return p
	}

	setInt(&p.NewCardsPerDay, o.NewCardsPerDay)
	setInt(&p.ReviewsPerDay, o.ReviewsPerDay)
	setInt(&p.GraduatingInterval, o.GraduatingInterval)
	setInt(&p.EasyInterval, o.EasyInterval)
	setInt(&p.MaximumInterval, o.MaximumInterval)
	setInt(&p.LeechThreshold, o.LeechThreshold)
	setFloat(&p.StartingEase, o.StartingEase)
	setFloat(&p.IntervalModifier, o.IntervalModifier)
	setFloat(&p.HardMultiplier, o.HardMultiplier)
	setFloat(&p.EasyBonus, o.EasyBonus)
	if o.LeechAction != nil {
		p.LeechAction = *o.LeechAction
	}
	if o.NewOrder != nil {
		p.NewOrder = *o.NewOrder
	}
	if o.LearningSteps != nil {
		p.LearningSteps = slices.Clone(o.LearningSteps)
	}
	return p
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// IsEmpty reports whether the override sets no field at all.
func (o Override) IsEmpty() bool {
	return o.NewCardsPerDay == nil && o.ReviewsPerDay == nil &&
		o.GraduatingInterval == nil && o.EasyInterval == nil &&
		o.StartingEase == nil && o.IntervalModifier == nil &&
		o.HardMultiplier == nil && o.EasyBonus == nil &&
		o.MaximumInterval == nil && o.LeechThreshold == nil &&
		o.LeechAction == nil && o.LearningSteps == nil && o.NewOrder == nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports every field of p that is out of range.
// Use it where bad settings should be refused (config files, API writes);
// the scheduler itself relies on Normalize.
func Validate(p Policy) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}

const overrideSchemaURL = "schema://deck-settings.json"

const overrideSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "new_cards_per_day":   {"type": "integer"},
    "reviews_per_day":     {"type": "integer"},
    "graduating_interval": {"type": "integer", "minimum": 1},
    "easy_interval":       {"type": "integer", "minimum": 1},
    "starting_ease":       {"type": "number", "minimum": 1.3},
    "interval_modifier":   {"type": "number", "minimum": 0},
    "hard_multiplier":     {"type": "number", "minimum": 0},
    "easy_bonus":          {"type": "number", "minimum": 1},
    "maximum_interval":    {"type": "integer", "minimum": 0},
    "leech_threshold":     {"type": "integer", "minimum": 0},
    "leech_action":        {"enum": ["suspend", "tag"]},
    "learning_steps":      {"type": "array", "items": {"type": "integer", "exclusiveMinimum": 0}},
    "new_order":           {"enum": ["reviews-first", "new-first", "mixed"]}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func overrideValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(overrideSchema)))
		if err != nil {
			schemaErr = fmt.Errorf("parse deck settings schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(overrideSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add deck settings schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(overrideSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ParseOverride decodes a stored sparse settings object. Unknown keys and
// values of the wrong type are rejected. Negative caps are accepted here
// and clamped later by Normalize.
func ParseOverride(data []byte) (Override, error) {
	var o Override
	if len(bytes.TrimSpace(data)) == 0 {
		return o, nil
	}

	sch, err := overrideValidator()
	if err != nil {
		return o, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return o, fmt.Errorf("invalid deck settings JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return o, fmt.Errorf("deck settings rejected: %w", err)
	}
	if err := json.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("failed to decode deck settings: %w", err)
	}
	return o, nil
}
