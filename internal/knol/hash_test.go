package knol

import (
	"testing"

	"github.com/conorfennell/knoldeck/internal/domain"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name     string
		note     domain.Note
		expected string
	}{
		{
			name: "trims and lowercases",
			note: domain.Note{
				Question: "  What is HTMX? \r\n",
				Answer:   "A library for AJAX.",
				Context:  "Web Development",
			},
			expected: "what is htmx?\na library for ajax.\nweb development",
		},
		{
			name:     "trailing spaces inside multiline answers",
			note:     domain.Note{Question: "Colors", Answer: "Red  \r\nBlue\t\nYellow"},
			expected: "colors\nred\nblue\nyellow\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.note); got != tc.expected {
				t.Errorf("Expected normalized string to be %q, but got %q", tc.expected, got)
			}
		})
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		note := domain.Note{
			Question: "Q",
			Answer:   "A",
			Context:  "C",
		}
		// Hash for "q\na\nc"
		expectedHash := "eb2456c1ee4f36305069dd0f63a30e92d5443129f5e8fd9a5ec490fbc4d4d8a2"
		if hash := Hash(note); hash != expectedHash {
			t.Errorf("Expected hash '%s', but got '%s'", expectedHash, hash)
		}
	})

	t.Run("hash ignores deck", func(t *testing.T) {
		a := domain.Note{Question: "Test", Deck: "one"}
		b := domain.Note{Question: "Test", Deck: "two"}
		if Hash(a) != Hash(b) {
			t.Errorf("Expected the same hash for the same note in different decks")
		}
	})

	t.Run("different content gives different hash", func(t *testing.T) {
		a := domain.Note{Question: "Test", Answer: "1"}
		b := domain.Note{Question: "Test", Answer: "2"}
		if Hash(a) == Hash(b) {
			t.Errorf("Expected different hashes for different answers")
		}
	})
}

func TestShort(t *testing.T) {
	if got := Short("eb2456c1ee4f36305069dd0f"); got != "eb2456c1ee4f" {
		t.Errorf("Expected 'eb2456c1ee4f', got '%s'", got)
	}
	if got := Short("abc"); got != "abc" {
		t.Errorf("Expected 'abc', got '%s'", got)
	}
}
