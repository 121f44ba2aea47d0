package domain

import "errors"

// Use errors.Is to check: errors.Is(err, domain.ErrInvalidRating)
var (
	ErrInvalidRating = errors.New("knoldeck: invalid rating")
	ErrInvalidState  = errors.New("knoldeck: invalid card state")
)
