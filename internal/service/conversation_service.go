package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatcore/internal/access"
	"chatcore/internal/domain"
	"chatcore/internal/metrics"
)

type ConversationService struct {
	conversations domain.ConversationRepository
	gate          *access.Gate
	rec           metrics.Recorder
}

func NewConversationService(conversations domain.ConversationRepository, gate *access.Gate, rec metrics.Recorder) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		gate:          gate,
		rec:           rec,
	}
}

type ConversationCreateInput struct {
	Kind string
	Name *string
}

// Create opens a new conversation for the caller. Any authenticated caller
// may create one; creation itself grants nothing, so the creator's
// membership is inserted in the same transaction to make the row reachable
// immediately.
func (s *ConversationService) Create(ctx context.Context, callerID string, in ConversationCreateInput) (*domain.Conversation, error) {
	switch in.Kind {
	case domain.KindDirect, domain.KindGroup:
	default:
		return nil, fmt.Errorf("%w: kind must be %q or %q", domain.ErrInvalidInput, domain.KindDirect, domain.KindGroup)
	}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if trimmed == "" {
			in.Name = nil
		} else {
			in.Name = &trimmed
		}
	}

	conv := &domain.Conversation{
		Kind: in.Kind,
		Name: in.Name,
	}
	if err := s.conversations.Create(ctx, conv, callerID); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get returns the conversation iff the caller is a member. Non-members get
// the same not-found answer as for an id that does not exist.
func (s *ConversationService) Get(ctx context.Context, conversationID, callerID string) (*domain.Conversation, error) {
	if err := s.gate.RequireMember(ctx, conversationID, callerID); err != nil {
		s.recordDenial(err, "conversation", "view")
		return nil, err
	}
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	return conv, nil
}

// ListForCaller returns the conversations the caller holds a membership in,
// most recently active first.
func (s *ConversationService) ListForCaller(ctx context.Context, callerID string) ([]*domain.Conversation, error) {
	return s.conversations.ListForUser(ctx, callerID)
}

// Rename updates the conversation name; members only.
func (s *ConversationService) Rename(ctx context.Context, conversationID, callerID string, name *string) (*domain.Conversation, error) {
	conv, err := s.Get(ctx, conversationID, callerID)
	if err != nil {
		s.recordDenial(err, "conversation", "update")
		return nil, err
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			name = nil
		} else {
			name = &trimmed
		}
	}
	if err := s.conversations.SetName(ctx, conversationID, name); err != nil {
		return nil, err
	}
	conv.Name = name
	return conv, nil
}

func (s *ConversationService) recordDenial(err error, entity, op string) {
	if errors.Is(err, domain.ErrNotFound) {
		s.rec.RecordPolicyDenial(entity, op)
	}
}
