package service

import (
	"context"
	"fmt"
	"strings"

	"chatcore/internal/domain"
)

// ProfileService exposes the profile directory. Profiles are created only by
// signup; here they can be read by anyone authenticated and updated only by
// their owner.
type ProfileService struct {
	profiles domain.ProfileRepository
}

func NewProfileService(profiles domain.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles}
}

func (s *ProfileService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (s *ProfileService) List(ctx context.Context, offset, limit int) ([]*domain.Profile, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.profiles.List(ctx, offset, limit)
}

type ProfileUpdateInput struct {
	DisplayName string
	AvatarURL   *string
}

// UpdateOwn updates the caller's profile. There is no path for updating
// anyone else's.
func (s *ProfileService) UpdateOwn(ctx context.Context, callerID string, in ProfileUpdateInput) (*domain.Profile, error) {
	p, err := s.Get(ctx, callerID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return nil, fmt.Errorf("%w: display name is required", domain.ErrInvalidInput)
	}
	p.DisplayName = name
	p.AvatarURL = in.AvatarURL

	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
