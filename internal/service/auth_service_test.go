package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"chatcore/internal/domain"
	"chatcore/internal/security"
	"chatcore/internal/service"
)

type MockIdentityRepo struct {
	mock.Mock
}

func (m *MockIdentityRepo) CreateWithProfile(ctx context.Context, ident *domain.Identity, profile *domain.Profile) error {
	args := m.Called(ctx, ident, profile)
	return args.Error(0)
}

func (m *MockIdentityRepo) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *MockIdentityRepo) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func TestSignup(t *testing.T) {
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4) // low cost for tests

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockIdentityRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher)

		mockRepo.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, nil)
		mockRepo.On("CreateWithProfile", mock.Anything, mock.MatchedBy(func(i *domain.Identity) bool {
			return i.Email == "new@example.com" && i.HashedPassword != "password1"
		}), mock.Anything).Return(nil)

		ident, profile, err := svc.Signup(context.Background(), service.SignupInput{
			Email:       "new@example.com",
			Password:    "password1",
			DisplayName: "New User",
		})
		assert.NoError(t, err)
		assert.NotNil(t, ident)
		assert.Equal(t, "new@example.com", ident.Email)
		assert.Equal(t, "New User", profile.DisplayName)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		mockRepo := new(MockIdentityRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher)

		existing := &domain.Identity{Email: "taken@example.com"}
		mockRepo.On("GetByEmail", mock.Anything, "taken@example.com").Return(existing, nil)

		_, _, err := svc.Signup(context.Background(), service.SignupInput{
			Email:    "taken@example.com",
			Password: "password1",
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("RaceLostToConcurrentSignup", func(t *testing.T) {
		mockRepo := new(MockIdentityRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher)

		mockRepo.On("GetByEmail", mock.Anything, "race@example.com").Return(nil, nil)
		mockRepo.On("CreateWithProfile", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrDuplicate)

		_, _, err := svc.Signup(context.Background(), service.SignupInput{
			Email:    "race@example.com",
			Password: "password1",
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("MissingFields", func(t *testing.T) {
		mockRepo := new(MockIdentityRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher)

		_, _, err := svc.Signup(context.Background(), service.SignupInput{Email: "x@example.com"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestLogin(t *testing.T) {
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4)

	hashed, err := hasher.Hash("correct horse")
	assert.NoError(t, err)
	ident := &domain.Identity{ID: "id-1", Email: "alice@example.com", HashedPassword: hashed}

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockIdentityRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher)

		mockRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(ident, nil)

		resp, err := svc.Login(context.Background(), service.LoginInput{
			Email:    "alice@example.com",
			Password: "correct horse",
		})
		assert.NoError(t, err)
		assert.Equal(t, "bearer", resp.TokenType)
		assert.NotEmpty(t, resp.AccessToken)

		sub, err := tokenSvc.Subject(resp.AccessToken)
		assert.NoError(t, err)
		assert.Equal(t, "id-1", sub)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		mockRepo := new(MockIdentityRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher)

		mockRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(ident, nil)

		_, err := svc.Login(context.Background(), service.LoginInput{
			Email:    "alice@example.com",
			Password: "battery staple",
		})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		mockRepo := new(MockIdentityRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher)

		mockRepo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, nil)

		_, err := svc.Login(context.Background(), service.LoginInput{
			Email:    "ghost@example.com",
			Password: "whatever",
		})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}
