// Package parser reads notes from markdown card files.
//
// A note starts with a "Q:" line and may carry "A:" and "C:" blocks; each
// block runs until the next prefix. A line of "---" ends the current note.
// A "Deck:" line sets the deck for the notes that follow it in the file.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/knol"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	deckPrefix     = "Deck:"
	separator      = "---"

	maxLine = 1 << 20
)

type field int

const (
	none field = iota
	question
	answer
	context
)

type reader struct {
	deck    string
	notes   []domain.Note
	current domain.Note
	field   field
	block   []string
}

// flushBlock stores the lines collected so far in the field being read.
func (r *reader) flushBlock() {
	if len(r.block) == 0 {
		return
	}
	content := strings.Join(r.block, "\n")
	switch r.field {
	case question:
		r.current.Question = content
	case answer:
		r.current.Answer = content
	case context:
		r.current.Context = content
	}
	r.block = nil
}

func (r *reader) finishNote() {
	r.flushBlock()
	if strings.TrimSpace(r.current.Question) != "" {
		r.current.Question = strings.TrimRight(r.current.Question, "\n")
		r.current.Answer = strings.TrimRight(r.current.Answer, "\n")
		r.current.Context = strings.TrimRight(r.current.Context, "\n")
		r.current.Deck = r.deck
		r.current.Hash = knol.Hash(r.current)
		r.notes = append(r.notes, r.current)
	}
	r.current = domain.Note{}
	r.field = none
}

func (r *reader) start(f field, rest string) {
	r.flushBlock()
	if f == question && r.field != none {
		r.finishNote()
	}
	r.field = f
	r.block = append(r.block, strings.TrimPrefix(rest, " "))
}

// ParseFile reads a file from the given path and extracts all notes.
// defaultDeck applies until the file names a deck of its own.
func ParseFile(path, defaultDeck string) ([]domain.Note, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	notes, err := Parse(file, defaultDeck)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return notes, nil
}

// Parse reads from an io.Reader and extracts all notes in file order.
func Parse(in io.Reader, defaultDeck string) ([]domain.Note, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	r := &reader{deck: defaultDeck}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		switch {
		case line == separator:
			r.finishNote()
		case strings.HasPrefix(line, deckPrefix):
			r.finishNote()
			if deck := strings.TrimSpace(line[len(deckPrefix):]); deck != "" {
				r.deck = deck
			}
		case strings.HasPrefix(line, questionPrefix):
			r.start(question, line[len(questionPrefix):])
		case strings.HasPrefix(line, answerPrefix):
			r.start(answer, line[len(answerPrefix):])
		case strings.HasPrefix(line, contextPrefix):
			r.start(context, line[len(contextPrefix):])
		case r.field != none:
			r.block = append(r.block, line)
		}
	}
	r.finishNote() // Finish the very last note in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return r.notes, nil
}
