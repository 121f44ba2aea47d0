package domain

import "time"

// Note is a single question-answer-context entry as written in a card source.
type Note struct {
	Question string
	Answer   string
	Context  string
	Deck     string
	Hash     string
}

// Card is the schedulable record for one note.
// Only the scheduler changes State, StepIndex, Due, Interval, Ease, Reps, Lapses and Suspended.
type Card struct {
	ID        string    `json:"id"`
	DeckID    string    `json:"deck_id"`
	State     State     `json:"state"`
	StepIndex int       `json:"step_index"` // Meaningful only in Learning and Relearning.
	Due       time.Time `json:"due"`
	Interval  int       `json:"interval"` // Whole days.
	Ease      float64   `json:"ease"`
	Reps      int       `json:"reps"`
	Lapses    int       `json:"lapses"`
	Suspended bool      `json:"suspended"`
	Leech     bool      `json:"leech,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCard creates a card in the New state, due immediately.
func NewCard(id, deckID string, startingEase float64, now time.Time) Card {
	return Card{
		ID:        id,
		DeckID:    deckID,
		State:     New,
		Due:       now,
		Ease:      startingEase,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsDue reports whether the card is eligible for review at now.
func (c Card) IsDue(now time.Time) bool {
	return !c.Due.After(now)
}

// InLearning reports whether the card is walking through learning steps.
func (c Card) InLearning() bool {
	return c.State == Learning || c.State == Relearning
}
