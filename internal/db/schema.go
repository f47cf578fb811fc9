package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    bio           TEXT,
    created_at    DATETIME NOT NULL,
    deleted_at    DATETIME
);

CREATE TABLE IF NOT EXISTS objects (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL REFERENCES users(id),
    name        TEXT NOT NULL,
    category    TEXT,
    condition   TEXT,
    public      INTEGER NOT NULL DEFAULT 1,
    for_sale    INTEGER NOT NULL DEFAULT 0,
    for_trade   INTEGER NOT NULL DEFAULT 1,
    price       INTEGER,
    image       BLOB,
    image_mime  TEXT,
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS proposals (
    id          TEXT PRIMARY KEY,
    sender_id   TEXT NOT NULL REFERENCES users(id),
    receiver_id TEXT NOT NULL REFERENCES users(id),
    status      TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'declined', 'cancelled')),
    created_at  DATETIME NOT NULL,
    resolved_at DATETIME,
    flagged_at  DATETIME
);

CREATE TABLE IF NOT EXISTS proposal_items (
    proposal_id TEXT NOT NULL REFERENCES proposals(id),
    object_id   TEXT NOT NULL,
    side        TEXT NOT NULL CHECK (side IN ('sender', 'receiver')),
    position    INTEGER NOT NULL,
    PRIMARY KEY (proposal_id, object_id)
);

CREATE TABLE IF NOT EXISTS provenance (
    id            TEXT PRIMARY KEY,
    object_id     TEXT NOT NULL REFERENCES objects(id),
    from_owner_id TEXT REFERENCES users(id),
    to_owner_id   TEXT NOT NULL REFERENCES users(id),
    kind          TEXT NOT NULL CHECK (kind IN ('intake', 'trade', 'sale')),
    price         INTEGER,
    proposal_id   TEXT,
    created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    sender_id   TEXT NOT NULL REFERENCES users(id),
    receiver_id TEXT NOT NULL REFERENCES users(id),
    text        TEXT NOT NULL,
    created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS links (
    id           TEXT PRIMARY KEY,
    requester_id TEXT NOT NULL REFERENCES users(id),
    receiver_id  TEXT NOT NULL REFERENCES users(id),
    status       TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected')),
    created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS incidents (
    id          TEXT PRIMARY KEY,
    proposal_id TEXT NOT NULL REFERENCES proposals(id),
    kind        TEXT NOT NULL,
    detail      TEXT NOT NULL,
    created_at  DATETIME NOT NULL,
    resolved_at DATETIME,
    resolution  TEXT
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return migrate(db)
}
