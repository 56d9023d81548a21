package sqlite

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	name       TEXT PRIMARY KEY,
	private    BOOLEAN NOT NULL DEFAULT 0,
	creator    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_allowed (
	room     TEXT NOT NULL,
	username TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (room, username)
);

CREATE TABLE IF NOT EXISTS room_muted (
	room     TEXT NOT NULL,
	username TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (room, username)
);

CREATE TABLE IF NOT EXISTS messages (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	room   TEXT NOT NULL,
	sender TEXT NOT NULL,
	body   TEXT NOT NULL,
	type   TEXT NOT NULL DEFAULT 'chat',
	ts     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room, id);
`

// Migrate applies the schema. It is idempotent.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
