package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// Card is a scheduled card together with the note text it was built from.
type Card struct {
	domain.Card
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Context  string `json:"context,omitempty"`
	SourceID int64  `json:"source_id,omitempty"`
}

type cardRow struct {
	ID        string        `db:"id"`
	DeckID    string        `db:"deck_id"`
	SourceID  sql.NullInt64 `db:"source_id"`
	Question  string        `db:"question"`
	Answer    string        `db:"answer"`
	Context   string        `db:"context"`
	State     string        `db:"state"`
	StepIndex int           `db:"step_index"`
	Due       string        `db:"due"`
	Interval  int           `db:"interval_days"`
	Ease      float64       `db:"ease"`
	Reps      int           `db:"reps"`
	Lapses    int           `db:"lapses"`
	Suspended bool          `db:"suspended"`
	Leech     bool          `db:"leech"`
	CreatedAt string        `db:"created_at"`
	UpdatedAt string        `db:"updated_at"`
}

func newCardRow(c Card) cardRow {
	return cardRow{
		ID:        c.ID,
		DeckID:    c.DeckID,
		SourceID:  sql.NullInt64{Int64: c.SourceID, Valid: c.SourceID != 0},
		Question:  c.Question,
		Answer:    c.Answer,
		Context:   c.Context,
		State:     c.State.String(),
		StepIndex: c.StepIndex,
		Due:       formatTime(c.Due),
		Interval:  c.Interval,
		Ease:      c.Ease,
		Reps:      c.Reps,
		Lapses:    c.Lapses,
		Suspended: c.Suspended,
		Leech:     c.Leech,
		CreatedAt: formatTime(c.CreatedAt),
		UpdatedAt: formatTime(c.UpdatedAt),
	}
}

func (r cardRow) card() (Card, error) {
	state, err := domain.ParseState(r.State)
	if err != nil {
		return Card{}, fmt.Errorf("failed to load card %s: %w", r.ID, err)
	}
	var times [3]time.Time
	for i, s := range []string{r.Due, r.CreatedAt, r.UpdatedAt} {
		if times[i], err = parseTime(s); err != nil {
			return Card{}, fmt.Errorf("failed to load card %s: %w", r.ID, err)
		}
	}
	return Card{
		Card: domain.Card{
			ID:        r.ID,
			DeckID:    r.DeckID,
			State:     state,
			StepIndex: r.StepIndex,
			Due:       times[0],
			Interval:  r.Interval,
			Ease:      r.Ease,
			Reps:      r.Reps,
			Lapses:    r.Lapses,
			Suspended: r.Suspended,
			Leech:     r.Leech,
			CreatedAt: times[1],
			UpdatedAt: times[2],
		},
		Question: r.Question,
		Answer:   r.Answer,
		Context:  r.Context,
		SourceID: r.SourceID.Int64,
	}, nil
}

const cardColumns = `id, deck_id, source_id, question, answer, context, state, step_index, due,
	interval_days, ease, reps, lapses, suspended, leech, created_at, updated_at`

// InsertCard stores a new card. It reports false if a card with the same
// hash already exists, in which case nothing is written.
func (db *DB) InsertCard(ctx context.Context, c Card) (bool, error) {
	res, err := db.conn.NamedExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (:id, :deck_id, :source_id, :question, :answer, :context, :state, :step_index, :due,
			:interval_days, :ease, :reps, :lapses, :suspended, :leech, :created_at, :updated_at)
		ON CONFLICT(id) DO NOTHING
	`, newCardRow(c))
	if err != nil {
		return false, fmt.Errorf("failed to insert card %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert card %s: %w", c.ID, err)
	}
	return n == 1, nil
}

// GetCard retrieves a card by its ID.
func (db *DB) GetCard(ctx context.Context, id string) (Card, error) {
	var r cardRow
	err := db.conn.GetContext(ctx, &r, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Card{}, fmt.Errorf("failed to get card %s: %w", id, err)
	}
	return r.card()
}

func (db *DB) selectCards(ctx context.Context, what, query string, args ...any) ([]Card, error) {
	var rows []cardRow
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get cards for %s: %w", what, err)
	}
	cards := make([]Card, 0, len(rows))
	for _, r := range rows {
		c, err := r.card()
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// ListCards returns every card.
func (db *DB) ListCards(ctx context.Context) ([]Card, error) {
	return db.selectCards(ctx, "all decks", `SELECT `+cardColumns+` FROM cards ORDER BY created_at, id`)
}

// ListCardsByDeck returns the cards of one deck.
func (db *DB) ListCardsByDeck(ctx context.Context, deck string) ([]Card, error) {
	return db.selectCards(ctx, "deck "+deck,
		`SELECT `+cardColumns+` FROM cards WHERE deck_id = ? ORDER BY created_at, id`, deck)
}

// ListCardsBySource returns the cards that came from a source.
func (db *DB) ListCardsBySource(ctx context.Context, sourceID int64) ([]Card, error) {
	return db.selectCards(ctx, fmt.Sprintf("source ID %d", sourceID),
		`SELECT `+cardColumns+` FROM cards WHERE source_id = ? ORDER BY created_at, id`, sourceID)
}

const updateCardSQL = `
	UPDATE cards
	SET state = :state, step_index = :step_index, due = :due, interval_days = :interval_days,
		ease = :ease, reps = :reps, lapses = :lapses, suspended = :suspended, leech = :leech,
		updated_at = :updated_at
	WHERE id = :id
`

type namedExecer interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

func updateCard(ctx context.Context, e namedExecer, c domain.Card) error {
	res, err := e.NamedExecContext(ctx, updateCardSQL, newCardRow(Card{Card: c}))
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", c.ID, err)
	}
	return expectOne(res, "card "+c.ID)
}

// UpdateCard writes a card's scheduling state. Note text is left alone.
func (db *DB) UpdateCard(ctx context.Context, c domain.Card) error {
	return updateCard(ctx, db.conn, c)
}

// SetSuspended suspends or unsuspends a card.
func (db *DB) SetSuspended(ctx context.Context, id string, suspended bool, now time.Time) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards SET suspended = ?, updated_at = ? WHERE id = ?
	`, suspended, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to set suspended on card %s: %w", id, err)
	}
	return expectOne(res, "card "+id)
}

// MoveCard assigns a card to another deck, keeping its schedule.
func (db *DB) MoveCard(ctx context.Context, id, deck string, now time.Time) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards SET deck_id = ?, updated_at = ? WHERE id = ?
	`, deck, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to move card %s to deck %s: %w", id, deck, err)
	}
	return expectOne(res, "card "+id)
}

// DeleteCard removes a card and its review history.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card with hash %s: %w", id, err)
	}
	return expectOne(res, "card "+id)
}

// ListDecks returns the names of all decks that have cards or settings.
func (db *DB) ListDecks(ctx context.Context) ([]string, error) {
	var decks []string
	err := db.conn.SelectContext(ctx, &decks, `
		SELECT deck_id FROM cards
		UNION
		SELECT id FROM decks
		ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	return decks, nil
}
