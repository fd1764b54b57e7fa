package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatcore/internal/domain"
)

type IdentityRepo struct {
	db *sql.DB
}

func NewIdentityRepo(db *sql.DB) *IdentityRepo {
	return &IdentityRepo{db: db}
}

var _ domain.IdentityRepository = (*IdentityRepo)(nil)

func (r *IdentityRepo) CreateWithProfile(ctx context.Context, ident *domain.Identity, profile *domain.Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ident.CreatedAt = now

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO identities (id, email, hashed_password, created_at)
		VALUES ($1, $2, $3, $4)
	`, ident.ID, ident.Email, ident.HashedPassword, ident.CreatedAt); err != nil {
		return fmt.Errorf("insert identity: %w", mapErr(err))
	}

	profile.ID = ident.ID
	if profile.DisplayName == "" {
		profile.DisplayName = ident.Email
	}
	profile.CreatedAt = now
	profile.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (id, display_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, profile.ID, profile.DisplayName, profile.AvatarURL, profile.CreatedAt, profile.UpdatedAt); err != nil {
		return fmt.Errorf("insert profile: %w", mapErr(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *IdentityRepo) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.scanIdentity(ctx, `
		SELECT id, email, hashed_password, created_at
		FROM identities
		WHERE id = $1
	`, id)
}

func (r *IdentityRepo) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.scanIdentity(ctx, `
		SELECT id, email, hashed_password, created_at
		FROM identities
		WHERE email = $1
	`, email)
}

func (r *IdentityRepo) scanIdentity(ctx context.Context, query string, arg any) (*domain.Identity, error) {
	ident := &domain.Identity{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&ident.ID,
		&ident.Email,
		&ident.HashedPassword,
		&ident.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return ident, nil
}
