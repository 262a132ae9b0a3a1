package repository

import (
	"context"
	"database/sql"
	"time"

	"account-service/internal/query"
	"account-service/internal/resource"
	"account-service/internal/resource/memory"
	"account-service/internal/resource/postgres"
	"account-service/internal/user/domain"
)

// Repository is the generic storage contract for users.
type Repository = resource.Repository[domain.User]

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) Repository {
	return postgres.New(db, Schema)
}

// NewMemoryRepository returns an empty in-memory user repository.
func NewMemoryRepository() Repository {
	return memory.New(Schema)
}

// Store adds the account lookups and state transitions the password lifecycle needs
// on top of a generic user repository. Each transition is a single UpdateByID.
type Store struct {
	Repository
}

// NewStore wraps repo.
func NewStore(repo Repository) *Store {
	return &Store{Repository: repo}
}

// GetByEmail returns the active user with the given email, or nil if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return resource.FindOne(ctx, s.Repository, query.Filter{Field: "email", Op: query.OpEq, Value: domain.NormalizeEmail(email)})
}

// GetByResetToken returns the active user whose reset token hash equals hash and has not expired at now, or nil.
func (s *Store) GetByResetToken(ctx context.Context, hash string, now time.Time) (*domain.User, error) {
	return resource.FindOne(ctx, s.Repository, resetTokenLive(hash, now)...)
}

// ConsumeResetToken stores a new password hash for user id only while its reset token still
// hashes to tokenHash and is unexpired at now, clearing the token in the same write.
// Returns nil if the token was already consumed, replaced or expired.
func (s *Store) ConsumeResetToken(ctx context.Context, id, tokenHash string, now time.Time, passwordHash string, changedAt time.Time) (*domain.User, error) {
	return s.UpdateByID(ctx, id, passwordChanges(passwordHash, changedAt), resetTokenLive(tokenHash, now)...)
}

// SetPassword stores a new hash, stamps the change time and clears any pending reset token.
// Returns nil if the user no longer exists.
func (s *Store) SetPassword(ctx context.Context, id, hash string, changedAt time.Time) (*domain.User, error) {
	return s.UpdateByID(ctx, id, passwordChanges(hash, changedAt))
}

// SetResetToken stores a reset token hash and its expiry together.
func (s *Store) SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) (*domain.User, error) {
	return s.UpdateByID(ctx, id, resource.Changes{
		"passwordResetToken":   hash,
		"passwordResetExpires": expiresAt,
	})
}

// ClearResetToken removes a pending reset token and its expiry together.
func (s *Store) ClearResetToken(ctx context.Context, id string) (*domain.User, error) {
	return s.UpdateByID(ctx, id, resource.Changes{
		"passwordResetToken":   nil,
		"passwordResetExpires": nil,
	})
}

// Deactivate soft-deletes the user. Reports false if no active user has id.
func (s *Store) Deactivate(ctx context.Context, id string) (bool, error) {
	u, err := s.UpdateByID(ctx, id, resource.Changes{"active": false})
	return u != nil, err
}

func passwordChanges(hash string, changedAt time.Time) resource.Changes {
	return resource.Changes{
		"password":             hash,
		"passwordChangedAt":    changedAt,
		"passwordResetToken":   nil,
		"passwordResetExpires": nil,
	}
}

func resetTokenLive(hash string, now time.Time) []query.Filter {
	return []query.Filter{
		{Field: "passwordResetToken", Op: query.OpEq, Value: hash},
		{Field: "passwordResetExpires", Op: query.OpGt, Value: now},
	}
}
