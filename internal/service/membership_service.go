package service

import (
	"context"
	"errors"

	"chatcore/internal/access"
	"chatcore/internal/domain"
	"chatcore/internal/metrics"
)

// MembershipService mutates the join table that all access derives from.
//
// The invite model is flat: any current member may add any other user, and
// there is no admin role. Members remove only themselves.
type MembershipService struct {
	memberships domain.MembershipRepository
	gate        *access.Gate
	rec         metrics.Recorder
}

func NewMembershipService(memberships domain.MembershipRepository, gate *access.Gate, rec metrics.Recorder) *MembershipService {
	return &MembershipService{
		memberships: memberships,
		gate:        gate,
		rec:         rec,
	}
}

// Add inserts a membership row. Allowed when the row names the caller
// (self-join) or when the caller is already a member (invite). A duplicate
// insert is the already-joined condition and succeeds as a no-op.
func (s *MembershipService) Add(ctx context.Context, callerID, conversationID, userID string) (*domain.Membership, error) {
	if userID != callerID {
		if err := s.gate.RequireMember(ctx, conversationID, callerID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.rec.RecordPolicyDenial("membership", "insert")
			}
			return nil, err
		}
	}

	m := &domain.Membership{
		ConversationID: conversationID,
		UserID:         userID,
	}
	if err := s.memberships.Create(ctx, m); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return m, nil
		}
		return nil, err
	}
	return m, nil
}

// Leave removes the caller's own membership. Removing anyone else is denied
// for everyone, members included.
func (s *MembershipService) Leave(ctx context.Context, callerID, conversationID, userID string) error {
	if userID != callerID {
		s.rec.RecordPolicyDenial("membership", "delete")
		return domain.ErrNotFound
	}
	return s.memberships.Delete(ctx, conversationID, userID)
}

// List returns the membership rows of a conversation; members only.
func (s *MembershipService) List(ctx context.Context, callerID, conversationID string) ([]*domain.Membership, error) {
	if err := s.gate.RequireMember(ctx, conversationID, callerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.rec.RecordPolicyDenial("membership", "view")
		}
		return nil, err
	}
	return s.memberships.ListForConversation(ctx, conversationID)
}
