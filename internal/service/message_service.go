package service

import (
	"context"
	"errors"
	"fmt"

	"chatcore/internal/access"
	"chatcore/internal/domain"
	"chatcore/internal/metrics"
)

const maxContentRunes = 5000

type MessageService struct {
	conversations domain.ConversationRepository
	memberships   domain.MembershipRepository
	messages      domain.MessageRepository
	gate          *access.Gate
	rec           metrics.Recorder

	PageSize int
}

func NewMessageService(
	conversations domain.ConversationRepository,
	memberships domain.MembershipRepository,
	messages domain.MessageRepository,
	gate *access.Gate,
	rec metrics.Recorder,
	pageSize int,
) *MessageService {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &MessageService{
		conversations: conversations,
		memberships:   memberships,
		messages:      messages,
		gate:          gate,
		rec:           rec,
		PageSize:      pageSize,
	}
}

// Send appends a message to the conversation log. The sender is always the
// caller, and the caller must hold a membership at send time. New activity
// bumps the conversation's updated_at.
func (s *MessageService) Send(ctx context.Context, callerID, conversationID, content string) (*domain.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", domain.ErrInvalidInput)
	}
	if len([]rune(content)) > maxContentRunes {
		return nil, fmt.Errorf("%w: message content exceeds %d characters", domain.ErrInvalidInput, maxContentRunes)
	}

	if err := s.gate.RequireMember(ctx, conversationID, callerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.rec.RecordPolicyDenial("message", "insert")
		}
		return nil, err
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       callerID,
		Content:        content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.conversations.Touch(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	s.rec.RecordMessageSent()
	return msg, nil
}

// List returns up to limit messages in chronological order; members only.
func (s *MessageService) List(ctx context.Context, callerID, conversationID string, limit int) ([]*domain.Message, error) {
	if err := s.gate.RequireMember(ctx, conversationID, callerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.rec.RecordPolicyDenial("message", "view")
		}
		return nil, err
	}

	if limit <= 0 || limit > s.PageSize {
		limit = s.PageSize
	}
	msgs, err := s.messages.ListForConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	// DB returns newest first; present oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Edit replaces the content of the caller's own message. Authorship, not
// membership, is the check: an author who has left the conversation keeps
// edit rights over what they wrote.
func (s *MessageService) Edit(ctx context.Context, callerID, messageID, content string) (*domain.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", domain.ErrInvalidInput)
	}
	if len([]rune(content)) > maxContentRunes {
		return nil, fmt.Errorf("%w: message content exceeds %d characters", domain.ErrInvalidInput, maxContentRunes)
	}

	msg, err := s.authored(ctx, callerID, messageID, "update")
	if err != nil {
		return nil, err
	}

	if err := s.messages.UpdateContent(ctx, messageID, content); err != nil {
		return nil, err
	}
	return s.messages.GetByID(ctx, msg.ID)
}

// Delete removes the caller's own message. Same authorship rule as Edit.
func (s *MessageService) Delete(ctx context.Context, callerID, messageID string) error {
	if _, err := s.authored(ctx, callerID, messageID, "delete"); err != nil {
		return err
	}
	return s.messages.Delete(ctx, messageID)
}

// authored loads the message and verifies the caller wrote it. A message
// written by someone else looks exactly like a message that does not exist.
func (s *MessageService) authored(ctx context.Context, callerID, messageID, op string) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, domain.ErrNotFound
	}
	if msg.SenderID != callerID {
		s.rec.RecordPolicyDenial("message", op)
		return nil, domain.ErrNotFound
	}
	return msg, nil
}

// MemberIDs returns the user ids of the conversation's current members, for
// change-feed broadcasts.
func (s *MessageService) MemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	return s.memberships.MemberIDs(ctx, conversationID)
}
