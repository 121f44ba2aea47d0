package domain

import "time"

// ReviewLog records a single review event for a card.
type ReviewLog struct {
	ID         string    `json:"id"`
	CardID     string    `json:"card_id"`
	Rating     Rating    `json:"rating"`
	StateFrom  State     `json:"state_from"`
	StateTo    State     `json:"state_to"`
	Interval   int       `json:"interval"`
	Ease       float64   `json:"ease"`
	Due        time.Time `json:"due"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// DailyProgress holds the counters for one calendar day in one scope.
// NewReviewed and ReviewsDone drive the daily caps; the rest are tallies.
type DailyProgress struct {
	Date         string `json:"date"` // YYYY-MM-DD in the configured location.
	Scope        string `json:"scope"`
	NewReviewed  int    `json:"new_reviewed"`
	ReviewsDone  int    `json:"reviews_done"`
	LearningDone int    `json:"learning_done"`
	Again        int    `json:"again"`
	Correct      int    `json:"correct"`
}
