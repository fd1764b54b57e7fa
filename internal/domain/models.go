package domain

import "time"

// Conversation kinds.
const (
	KindDirect = "dm"
	KindGroup  = "group"
)

// Identity represents an authenticated account. Credentials live here; all
// user-facing attributes live on the Profile sharing the same ID.
type Identity struct {
	ID             string    `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Profile is the directory entry for an identity. Created exactly once, in
// the same transaction as the identity itself.
type Profile struct {
	ID          string    `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	AvatarURL   *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Conversation represents a DM or group channel. There is deliberately no
// owner column: access derives solely from Membership rows.
type Conversation struct {
	ID        string    `db:"id" json:"id"`
	Kind      string    `db:"kind" json:"kind"`
	Name      *string   `db:"name" json:"name,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Membership joins a user to a conversation. It is the sole basis for every
// access decision in the system. Unique per (conversation, user).
type Membership struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	JoinedAt       time.Time `db:"joined_at" json:"joined_at"`
}

// Message is one entry in a conversation's log. Sender and conversation are
// immutable after creation.
type Message struct {
	ID             string     `db:"id" json:"id"`
	ConversationID string     `db:"conversation_id" json:"conversation_id"`
	SenderID       string     `db:"sender_id" json:"sender_id"`
	Content        string     `db:"content" json:"content"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	EditedAt       *time.Time `db:"edited_at" json:"edited_at,omitempty"`
}

// ReadReceipt acknowledges a message for one user. Unique per
// (message, user), which makes acknowledgment idempotent.
type ReadReceipt struct {
	ID        string    `db:"id" json:"id"`
	MessageID string    `db:"message_id" json:"message_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}
