package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single connection: serializes writes and keeps :memory: databases from
	// splitting across pooled connections.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Migrate applies the chat schema as a simple, idempotent set of
// CREATE TABLE / CREATE INDEX statements.
//
// Two constraints carry the access model: memberships are unique per
// (conversation, user), and read receipts are unique per (message, user).
// Conversations have no owner column on purpose; reachability comes from
// membership rows alone, so a conversation with zero memberships is a legal
// but permanently invisible row.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// Identities: credentials only. User-facing attributes live on
		// the profile with the same id.
		`CREATE TABLE IF NOT EXISTS identities (
			id              TEXT PRIMARY KEY,
			email           VARCHAR(255) UNIQUE NOT NULL,
			hashed_password VARCHAR(255) NOT NULL,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		// Profiles: 1:1 with identities, created in the same transaction.
		`CREATE TABLE IF NOT EXISTS profiles (
			id           TEXT PRIMARY KEY REFERENCES identities(id) ON DELETE CASCADE,
			display_name VARCHAR(100) NOT NULL,
			avatar_url   TEXT,
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		// Conversations: no owner column.
		`CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			kind       VARCHAR(10) NOT NULL CHECK (kind IN ('dm', 'group')),
			name       VARCHAR(100),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		// Memberships: the join table every access decision is based on.
		`CREATE TABLE IF NOT EXISTS memberships (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id         TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			joined_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (conversation_id, user_id)
		);`,
		// Messages: sender and conversation are immutable after insert.
		`CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id       TEXT NOT NULL REFERENCES profiles(id),
			content         TEXT NOT NULL,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
			edited_at       DATETIME DEFAULT NULL
		);`,
		// Read receipts: unique per (message, user) makes acking idempotent.
		`CREATE TABLE IF NOT EXISTS read_receipts (
			id         TEXT PRIMARY KEY,
			message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			read_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (message_id, user_id)
		);`,

		`CREATE INDEX IF NOT EXISTS idx_identities_email ON identities(email);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_user ON memberships(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_conv ON memberships(conversation_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_read_receipts_message ON read_receipts(message_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
