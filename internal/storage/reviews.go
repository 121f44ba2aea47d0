package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/conorfennell/knoldeck/internal/domain"
)

type reviewRow struct {
	ID         string  `db:"id"`
	CardID     string  `db:"card_id"`
	Rating     string  `db:"rating"`
	StateFrom  string  `db:"state_from"`
	StateTo    string  `db:"state_to"`
	Interval   int     `db:"interval_days"`
	Ease       float64 `db:"ease"`
	Due        string  `db:"due"`
	ReviewedAt string  `db:"reviewed_at"`
}

func newReviewRow(l domain.ReviewLog) reviewRow {
	return reviewRow{
		ID:         l.ID,
		CardID:     l.CardID,
		Rating:     l.Rating.String(),
		StateFrom:  l.StateFrom.String(),
		StateTo:    l.StateTo.String(),
		Interval:   l.Interval,
		Ease:       l.Ease,
		Due:        formatTime(l.Due),
		ReviewedAt: formatTime(l.ReviewedAt),
	}
}

func (r reviewRow) log() (domain.ReviewLog, error) {
	l := domain.ReviewLog{ID: r.ID, CardID: r.CardID, Interval: r.Interval, Ease: r.Ease}
	var err error
	if l.Rating, err = domain.ParseRating(r.Rating); err != nil {
		return domain.ReviewLog{}, fmt.Errorf("failed to load review %s: %w", r.ID, err)
	}
	if l.StateFrom, err = domain.ParseState(r.StateFrom); err != nil {
		return domain.ReviewLog{}, fmt.Errorf("failed to load review %s: %w", r.ID, err)
	}
	if l.StateTo, err = domain.ParseState(r.StateTo); err != nil {
		return domain.ReviewLog{}, fmt.Errorf("failed to load review %s: %w", r.ID, err)
	}
	if l.Due, err = parseTime(r.Due); err != nil {
		return domain.ReviewLog{}, fmt.Errorf("failed to load review %s: %w", r.ID, err)
	}
	if l.ReviewedAt, err = parseTime(r.ReviewedAt); err != nil {
		return domain.ReviewLog{}, fmt.Errorf("failed to load review %s: %w", r.ID, err)
	}
	return l, nil
}

const insertReviewSQL = `
	INSERT INTO review_log (id, card_id, rating, state_from, state_to, interval_days, ease, due, reviewed_at)
	VALUES (:id, :card_id, :rating, :state_from, :state_to, :interval_days, :ease, :due, :reviewed_at)
`

// AppendReview adds one entry to a card's review history.
func (db *DB) AppendReview(ctx context.Context, l domain.ReviewLog) error {
	if _, err := db.conn.NamedExecContext(ctx, insertReviewSQL, newReviewRow(l)); err != nil {
		return fmt.Errorf("failed to append review for card %s: %w", l.CardID, err)
	}
	return nil
}

// ListReviews returns a card's review history, oldest first.
func (db *DB) ListReviews(ctx context.Context, cardID string) ([]domain.ReviewLog, error) {
	var rows []reviewRow
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT id, card_id, rating, state_from, state_to, interval_days, ease, due, reviewed_at
		FROM review_log WHERE card_id = ?
		ORDER BY reviewed_at, rowid
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for card %s: %w", cardID, err)
	}
	logs := make([]domain.ReviewLog, 0, len(rows))
	for _, r := range rows {
		l, err := r.log()
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// ApplyReview stores the result of one answer atomically: the updated card,
// its review-log entry and the day's progress counters.
func (db *DB) ApplyReview(ctx context.Context, c domain.Card, l domain.ReviewLog, p domain.DailyProgress) error {
	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := updateCard(ctx, tx, c); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, insertReviewSQL, newReviewRow(l)); err != nil {
			return fmt.Errorf("failed to append review for card %s: %w", l.CardID, err)
		}
		return putProgress(ctx, tx, p)
	})
}
