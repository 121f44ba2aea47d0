package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/knoldeck/internal/domain"
)

type progressRow struct {
	Date         string `db:"date"`
	Scope        string `db:"scope"`
	NewReviewed  int    `db:"new_reviewed"`
	ReviewsDone  int    `db:"reviews_done"`
	LearningDone int    `db:"learning_done"`
	Again        int    `db:"again"`
	Correct      int    `db:"correct"`
}

func (r progressRow) progress() domain.DailyProgress {
	return domain.DailyProgress(r)
}

const progressColumns = `date, scope, new_reviewed, reviews_done, learning_done, again, correct`

const upsertProgressSQL = `
	INSERT INTO daily_progress (` + progressColumns + `)
	VALUES (:date, :scope, :new_reviewed, :reviews_done, :learning_done, :again, :correct)
	ON CONFLICT(date, scope) DO UPDATE SET
		new_reviewed = excluded.new_reviewed,
		reviews_done = excluded.reviews_done,
		learning_done = excluded.learning_done,
		again = excluded.again,
		correct = excluded.correct
`

func putProgress(ctx context.Context, e namedExecer, p domain.DailyProgress) error {
	if _, err := e.NamedExecContext(ctx, upsertProgressSQL, progressRow(p)); err != nil {
		return fmt.Errorf("failed to save progress for %s/%s: %w", p.Date, p.Scope, err)
	}
	return nil
}

// PutProgress creates or replaces the counters for one day and scope.
func (db *DB) PutProgress(ctx context.Context, p domain.DailyProgress) error {
	return putProgress(ctx, db.conn, p)
}

// GetProgress returns the counters for a day and scope. A day with no
// reviews yet comes back as a zero record rather than ErrNotFound.
func (db *DB) GetProgress(ctx context.Context, date, scope string) (domain.DailyProgress, error) {
	var r progressRow
	err := db.conn.GetContext(ctx, &r, `
		SELECT `+progressColumns+` FROM daily_progress WHERE date = ? AND scope = ?
	`, date, scope)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DailyProgress{Date: date, Scope: scope}, nil
	}
	if err != nil {
		return domain.DailyProgress{}, fmt.Errorf("failed to get progress for %s/%s: %w", date, scope, err)
	}
	return r.progress(), nil
}

// ListProgress returns every record on or after since (YYYY-MM-DD).
func (db *DB) ListProgress(ctx context.Context, since string) ([]domain.DailyProgress, error) {
	var rows []progressRow
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT `+progressColumns+` FROM daily_progress WHERE date >= ? ORDER BY date, scope
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress since %s: %w", since, err)
	}
	out := make([]domain.DailyProgress, len(rows))
	for i, r := range rows {
		out[i] = r.progress()
	}
	return out, nil
}

// PruneProgress deletes records dated before the given day and reports how many went.
func (db *DB) PruneProgress(ctx context.Context, before string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM daily_progress WHERE date < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune progress before %s: %w", before, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune progress before %s: %w", before, err)
	}
	return n, nil
}
