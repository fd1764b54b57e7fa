package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatcore/internal/domain"
	"chatcore/internal/security"
)

// AuthService handles signup and login. Signup is the one place profiles are
// created: the identity row and its profile land in the same transaction, so
// a failed profile insert aborts the signup entirely.
type AuthService struct {
	identities domain.IdentityRepository
	tokens     *security.TokenService
	hash       *security.PasswordHasher
}

func NewAuthService(identities domain.IdentityRepository, tokens *security.TokenService, hash *security.PasswordHasher) *AuthService {
	return &AuthService{
		identities: identities,
		tokens:     tokens,
		hash:       hash,
	}
}

type SignupInput struct {
	Email       string
	Password    string
	DisplayName string
	AvatarURL   *string
}

type LoginInput struct {
	Email    string
	Password string
}

type TokenResponse struct {
	AccessToken string
	TokenType   string
	Identity    *domain.Identity
}

// Signup registers a new identity. The profile's display name falls back to
// the email when none is supplied.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.Identity, *domain.Profile, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		return nil, nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}

	if existing, err := s.identities.GetByEmail(ctx, in.Email); err != nil {
		return nil, nil, fmt.Errorf("check email: %w", err)
	} else if existing != nil {
		return nil, nil, domain.ErrConflict
	}

	hashed, err := s.hash.Hash(in.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	ident := &domain.Identity{
		Email:          in.Email,
		HashedPassword: hashed,
	}
	profile := &domain.Profile{
		DisplayName: strings.TrimSpace(in.DisplayName),
		AvatarURL:   in.AvatarURL,
	}

	if err := s.identities.CreateWithProfile(ctx, ident, profile); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, nil, domain.ErrConflict
		}
		return nil, nil, err
	}
	return ident, profile, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenResponse, error) {
	ident, err := s.identities.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	if ident == nil {
		return nil, domain.ErrUnauthorized
	}

	if err := s.hash.Verify(in.Password, ident.HashedPassword); err != nil {
		return nil, domain.ErrUnauthorized
	}

	token, err := s.tokens.CreateForIdentity(ident.ID)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		Identity:    ident,
	}, nil
}
