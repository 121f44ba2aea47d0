package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRating(t *testing.T) {
	testCases := []struct {
		input   string
		want    Rating
		wantErr bool
	}{
		{"again", Again, false},
		{"easy", Easy, false},
		{"3", Good, false},
		{"2", Hard, false},
		{"0", 0, true},
		{"5", 0, true},
		{"Good", 0, true},
		{"", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseRating(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRating))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRatingJSONAcceptsGrade(t *testing.T) {
	var body struct {
		Rating Rating `json:"rating"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"rating":4}`), &body))
	assert.Equal(t, Easy, body.Rating)

	require.NoError(t, json.Unmarshal([]byte(`{"rating":"hard"}`), &body))
	assert.Equal(t, Hard, body.Rating)

	err := json.Unmarshal([]byte(`{"rating":9}`), &body)
	assert.True(t, errors.Is(err, ErrInvalidRating))
}

func TestInvalidStateDoesNotMarshal(t *testing.T) {
	_, err := json.Marshal(State(7))
	require.Error(t, err)
	assert.Equal(t, "State(7)", State(7).String())
}

func TestCardJSONShape(t *testing.T) {
	due := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	c := NewCard("abc", "spanish", 2.5, due)
	c.State = Review
	c.Interval = 12
	c.Ease = 2.35

	raw, err := json.Marshal(c)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "review", fields["state"])
	assert.Equal(t, "2025-03-01T09:30:00Z", fields["due"])
	assert.Equal(t, 12.0, fields["interval"])
	assert.Equal(t, 2.35, fields["ease"])
	assert.NotContains(t, fields, "leech")

	var back Card
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, c, back)
}

func TestCardIsDue(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewCard("a", "d", 2.5, now)
	assert.True(t, c.IsDue(now))
	c.Due = now.Add(time.Second)
	assert.False(t, c.IsDue(now))
}
