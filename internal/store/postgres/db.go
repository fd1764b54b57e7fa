package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the chat schema on PostgreSQL.
// Same shape as the SQLite schema: memberships unique per
// (conversation, user), receipts unique per (message, user), no owner column
// on conversations.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS identities (
			id              TEXT         PRIMARY KEY,
			email           VARCHAR(255) UNIQUE NOT NULL,
			hashed_password VARCHAR(255) NOT NULL,
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS profiles (
			id           TEXT         PRIMARY KEY REFERENCES identities(id) ON DELETE CASCADE,
			display_name VARCHAR(100) NOT NULL,
			avatar_url   TEXT,
			created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT        PRIMARY KEY,
			kind       VARCHAR(10) NOT NULL CHECK (kind IN ('dm', 'group')),
			name       VARCHAR(100),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS memberships (
			id              TEXT        PRIMARY KEY,
			conversation_id TEXT        NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id         TEXT        NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			joined_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (conversation_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id              TEXT        PRIMARY KEY,
			conversation_id TEXT        NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id       TEXT        NOT NULL REFERENCES profiles(id),
			content         TEXT        NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			edited_at       TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS read_receipts (
			id         TEXT        PRIMARY KEY,
			message_id TEXT        NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id    TEXT        NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			read_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (message_id, user_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_identities_email ON identities(email)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_user ON memberships(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_conv ON memberships(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_read_receipts_message ON read_receipts(message_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
