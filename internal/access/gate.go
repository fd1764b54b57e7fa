// Package access implements the membership predicate that every policy
// decision in the system goes through.
package access

import (
	"context"
	"fmt"

	"chatcore/internal/domain"
)

// Gate answers "does this user currently hold a membership row for this
// conversation". It reads the membership table through its own repository
// handle, unfiltered by the caller's own visibility, which is what lets
// conversation-level checks consult memberships without the two policies
// recursing into each other.
//
// The check is side-effect-free and depends only on the membership table at
// evaluation time.
type Gate struct {
	memberships domain.MembershipRepository
}

func NewGate(memberships domain.MembershipRepository) *Gate {
	return &Gate{memberships: memberships}
}

// Member reports whether userID holds a membership row for conversationID.
func (g *Gate) Member(ctx context.Context, conversationID, userID string) (bool, error) {
	ok, err := g.memberships.Exists(ctx, conversationID, userID)
	if err != nil {
		return false, fmt.Errorf("membership check: %w", err)
	}
	return ok, nil
}

// RequireMember returns domain.ErrNotFound when userID is not a member of
// conversationID. Non-members get the same answer as for a conversation that
// does not exist; absence and inaccessibility are indistinguishable.
func (g *Gate) RequireMember(ctx context.Context, conversationID, userID string) error {
	ok, err := g.Member(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}
