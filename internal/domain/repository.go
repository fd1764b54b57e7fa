package domain

import (
	"context"
	"time"
)

// IdentityRepository defines persistence operations for identities.
type IdentityRepository interface {
	// CreateWithProfile inserts an identity and its profile in a single
	// transaction. If the profile insert fails the identity must not be
	// created either.
	CreateWithProfile(ctx context.Context, ident *Identity, profile *Profile) error
	GetByID(ctx context.Context, id string) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
}

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*Profile, error)
	List(ctx context.Context, offset, limit int) ([]*Profile, error)
	Update(ctx context.Context, p *Profile) error
}

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	// Create inserts the conversation and the creator's membership in one
	// transaction, so a reachable conversation never exists without at
	// least one member.
	Create(ctx context.Context, c *Conversation, creatorID string) error
	// CreateDetached inserts the conversation row alone. The result is
	// unreachable until a membership row is added; callers own that second
	// step.
	CreateDetached(ctx context.Context, c *Conversation) error
	GetByID(ctx context.Context, id string) (*Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]*Conversation, error)
	SetName(ctx context.Context, id string, name *string) error
	Touch(ctx context.Context, id string) error
	// SweepOrphans deletes conversations that have no memberships and are
	// older than the given age. Returns the number of rows removed.
	SweepOrphans(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MembershipRepository defines operations on the membership join table.
type MembershipRepository interface {
	Create(ctx context.Context, m *Membership) error
	// Delete removes the membership of userID in conversationID. Returns
	// ErrNotFound when no such row exists.
	Delete(ctx context.Context, conversationID, userID string) error
	Exists(ctx context.Context, conversationID, userID string) (bool, error)
	ListForConversation(ctx context.Context, conversationID string) ([]*Membership, error)
	MemberIDs(ctx context.Context, conversationID string) ([]string, error)
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	ListForConversation(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	UpdateContent(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
}

// ReceiptRepository defines persistence operations for read receipts.
type ReceiptRepository interface {
	// Create returns ErrDuplicate when the (message, user) pair is already
	// acknowledged.
	Create(ctx context.Context, r *ReadReceipt) error
	ListForMessage(ctx context.Context, messageID string) ([]*ReadReceipt, error)
}
