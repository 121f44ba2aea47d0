package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knoldeck/internal/policy"
)

// GetDeckOverride returns a deck's sparse settings. A deck with no stored
// settings has an empty override.
func (db *DB) GetDeckOverride(ctx context.Context, deck string) (policy.Override, error) {
	var raw string
	err := db.conn.GetContext(ctx, &raw, `SELECT settings FROM decks WHERE id = ?`, deck)
	if errors.Is(err, sql.ErrNoRows) {
		return policy.Override{}, nil
	}
	if err != nil {
		return policy.Override{}, fmt.Errorf("failed to get settings for deck %s: %w", deck, err)
	}
	o, err := policy.ParseOverride([]byte(raw))
	if err != nil {
		return policy.Override{}, fmt.Errorf("failed to load settings for deck %s: %w", deck, err)
	}
	return o, nil
}

// PutDeckOverride replaces a deck's settings. Only the fields set in o are stored.
func (db *DB) PutDeckOverride(ctx context.Context, deck string, o policy.Override, now time.Time) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to encode settings for deck %s: %w", deck, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO decks (id, settings, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET settings = excluded.settings, updated_at = excluded.updated_at
	`, deck, string(raw), formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to save settings for deck %s: %w", deck, err)
	}
	return nil
}

// EffectivePolicy resolves a deck's settings against the global policy.
func (db *DB) EffectivePolicy(ctx context.Context, global policy.Policy, deck string) (policy.Policy, error) {
	o, err := db.GetDeckOverride(ctx, deck)
	if err != nil {
		return policy.Policy{}, err
	}
	return policy.Resolve(global, &o), nil
}
