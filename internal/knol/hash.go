// Package knol derives stable card identities from note content.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// clean lowercases a field, unifies line endings and drops trailing
// whitespace from every line, so that editor noise does not change a hash.
func clean(part string) string {
	p := strings.ReplaceAll(part, "\r\n", "\n")
	lines := strings.Split(strings.ToLower(p), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Normalize joins the cleaned question, answer and context with newlines.
// The deck is not part of it: moving a note to another deck keeps its card.
func Normalize(n domain.Note) string {
	return strings.Join([]string{clean(n.Question), clean(n.Answer), clean(n.Context)}, "\n")
}

// Hash returns the hex SHA-256 of the normalized note. It is the card ID.
func Hash(n domain.Note) string {
	sum := sha256.Sum256([]byte(Normalize(n)))
	return hex.EncodeToString(sum[:])
}

// Short abbreviates a hash for display.
func Short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
