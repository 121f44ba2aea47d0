package storage

// Timestamps are stored as fixed-width UTC text so that ORDER BY on them is
// chronological.
const schema = `
-- The 'sources' table tracks where cards come from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL DEFAULT 'local',
    deck TEXT NOT NULL DEFAULT '',
    last_scanned TEXT
);

-- Sparse per-deck policy overrides, stored as JSON with only the set fields.
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    settings TEXT NOT NULL DEFAULT '{}',
    updated_at TEXT NOT NULL
);

-- The 'cards' table stores the note text and the scheduling state of each card.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY, -- knol hash of the note
    deck_id TEXT NOT NULL,
    source_id INTEGER,
    question TEXT NOT NULL,
    answer TEXT NOT NULL DEFAULT '',
    context TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT 'new',
    step_index INTEGER NOT NULL DEFAULT 0,
    due TEXT NOT NULL,
    interval_days INTEGER NOT NULL DEFAULT 0,
    ease REAL NOT NULL,
    reps INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    suspended INTEGER NOT NULL DEFAULT 0,
    leech INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,

    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards(deck_id);
CREATE INDEX IF NOT EXISTS idx_cards_source ON cards(source_id);

CREATE TABLE IF NOT EXISTS review_log (
    id TEXT PRIMARY KEY,
    card_id TEXT NOT NULL,
    rating TEXT NOT NULL,
    state_from TEXT NOT NULL,
    state_to TEXT NOT NULL,
    interval_days INTEGER NOT NULL,
    ease REAL NOT NULL,
    due TEXT NOT NULL,
    reviewed_at TEXT NOT NULL,

    FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_review_log_card ON review_log(card_id, reviewed_at);

CREATE TABLE IF NOT EXISTS daily_progress (
    date TEXT NOT NULL,
    scope TEXT NOT NULL,
    new_reviewed INTEGER NOT NULL DEFAULT 0,
    reviews_done INTEGER NOT NULL DEFAULT 0,
    learning_done INTEGER NOT NULL DEFAULT 0,
    again INTEGER NOT NULL DEFAULT 0,
    correct INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (date, scope)
);
`
