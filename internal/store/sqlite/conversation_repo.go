package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatcore/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

// Create inserts the conversation together with the creator's membership.
// Both rows land in one transaction so the conversation is reachable the
// moment it exists.
func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation, creatorID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	fillConversation(c)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, kind, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.Kind, c.Name, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("insert conversation: %w", mapErr(err))
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO memberships (id, conversation_id, user_id, joined_at)
		VALUES (?, ?, ?, ?)
	`, uuid.NewString(), c.ID, creatorID, c.CreatedAt); err != nil {
		return fmt.Errorf("insert creator membership: %w", mapErr(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CreateDetached inserts the conversation row with no memberships. Until a
// membership row arrives the conversation is invisible to every check.
func (r *ConversationRepo) CreateDetached(ctx context.Context, c *domain.Conversation) error {
	fillConversation(c)
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, kind, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.Kind, c.Name, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("insert conversation: %w", mapErr(err))
	}
	return nil
}

func fillConversation(c *domain.Conversation) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
}

func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, kind, name, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`, id).Scan(
		&c.ID,
		&c.Kind,
		&c.Name,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.kind, c.name, c.created_at, c.updated_at
		FROM conversations c
		JOIN memberships m ON m.conversation_id = c.id
		WHERE m.user_id = ?
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c := &domain.Conversation{}
		if err := rows.Scan(
			&c.ID,
			&c.Kind,
			&c.Name,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *ConversationRepo) SetName(ctx context.Context, id string, name *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET name = ?, updated_at = ?
		WHERE id = ?
	`, name, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set conversation name: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Touch bumps updated_at, used when new activity lands in the conversation.
func (r *ConversationRepo) Touch(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET updated_at = ?
		WHERE id = ?
	`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// SweepOrphans removes conversations that never gained (or have lost all)
// memberships. Such rows are invisible to every access check, so deleting
// them is unobservable to clients.
func (r *ConversationRepo) SweepOrphans(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM conversations
		WHERE created_at < ?
		AND NOT EXISTS (
			SELECT 1 FROM memberships m WHERE m.conversation_id = conversations.id
		)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep orphans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
