package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Source kinds.
const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// Source represents a card source, either a local path or a Git URL.
type Source struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Kind        string     `json:"kind"`
	Deck        string     `json:"deck,omitempty"` // Deck for files without a Deck: line.
	LastScanned *time.Time `json:"last_scanned,omitempty"`
}

// IsGit reports whether the source is a remote git repository.
func (s Source) IsGit() bool { return s.Kind == SourceGit }

type sourceRow struct {
	ID          int64          `db:"id"`
	Path        string         `db:"path"`
	Kind        string         `db:"kind"`
	Deck        string         `db:"deck"`
	LastScanned sql.NullString `db:"last_scanned"`
}

func (r sourceRow) source() (Source, error) {
	s := Source{ID: r.ID, Path: r.Path, Kind: r.Kind, Deck: r.Deck}
	if r.LastScanned.Valid {
		t, err := parseTime(r.LastScanned.String)
		if err != nil {
			return Source{}, err
		}
		s.LastScanned = &t
	}
	return s, nil
}

const sourceColumns = `id, path, kind, deck, last_scanned`

// InsertSource inserts a new source and returns it with its ID.
func (db *DB) InsertSource(ctx context.Context, path, kind, deck string) (Source, error) {
	if kind != SourceLocal && kind != SourceGit {
		return Source{}, fmt.Errorf("failed to insert source %s: unknown kind %q", path, kind)
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (path, kind, deck)
		VALUES (?, ?, ?)
	`, path, kind, deck)
	if err != nil {
		return Source{}, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Source{}, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return Source{ID: id, Path: path, Kind: kind, Deck: deck}, nil
}

// GetSource retrieves a source by its ID.
func (db *DB) GetSource(ctx context.Context, id int64) (Source, error) {
	var r sourceRow
	err := db.conn.GetContext(ctx, &r, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Source{}, fmt.Errorf("failed to get source %d: %w", id, err)
	}
	return r.source()
}

// FindSourceByPath retrieves a source from the database by its path.
func (db *DB) FindSourceByPath(ctx context.Context, path string) (Source, error) {
	var r sourceRow
	err := db.conn.GetContext(ctx, &r, `SELECT `+sourceColumns+` FROM sources WHERE path = ?`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, fmt.Errorf("source %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return Source{}, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return r.source()
}

// ListSources retrieves all stored sources ordered by ID.
func (db *DB) ListSources(ctx context.Context) ([]Source, error) {
	var rows []sourceRow
	if err := db.conn.SelectContext(ctx, &rows, `SELECT `+sourceColumns+` FROM sources ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	sources := make([]Source, 0, len(rows))
	for _, r := range rows {
		s, err := r.source()
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// DeleteSource removes a source together with its cards and their review history.
func (db *DB) DeleteSource(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	return expectOne(res, fmt.Sprintf("source %d", id))
}

// TouchSource updates the last_scanned timestamp for a source.
func (db *DB) TouchSource(ctx context.Context, id int64, now time.Time) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE sources
		SET last_scanned = ?
		WHERE id = ?
	`, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", id, err)
	}
	return expectOne(res, fmt.Sprintf("source %d", id))
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count affected rows for %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
