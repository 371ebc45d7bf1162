// Package session keeps refresh and password reset tokens. Tokens are hashed
// before they reach the repository, so callers always pass plaintext refresh
// tokens and already hashed reset tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MaxtDesign/MaxtPM/internal/ids"
	"github.com/MaxtDesign/MaxtPM/internal/models"
	"github.com/MaxtDesign/MaxtPM/internal/repository"
	"github.com/MaxtDesign/MaxtPM/internal/security"
)

type Store struct {
	tokens     repository.TokenStore
	refreshTTL time.Duration
	now        func() time.Time
}

func NewStore(tokens repository.TokenStore, refreshTTL time.Duration) *Store {
	return &Store{
		tokens:     tokens,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for expiry decisions.
func (s *Store) WithClock(now func() time.Time) *Store {
	clone := *s
	clone.now = now
	return &clone
}

func (s *Store) SaveRefreshToken(ctx context.Context, userID, token string) error {
	record := models.RefreshToken{
		ID:        ids.New(),
		UserID:    userID,
		TokenHash: security.HashRefreshToken(token),
		ExpiresAt: s.now().Add(s.refreshTTL).UTC(),
	}
	if err := s.tokens.SaveRefreshToken(ctx, record); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// IsRefreshTokenValid reports whether token is stored and unexpired. An
// expired record is removed on the way.
func (s *Store) IsRefreshTokenValid(ctx context.Context, token string) (bool, error) {
	hash := security.HashRefreshToken(token)
	record, err := s.tokens.GetRefreshToken(ctx, hash)
	if errors.Is(err, repository.ErrRefreshTokenNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get refresh token: %w", err)
	}
	if record.Expired(s.now()) {
		if err := s.tokens.DeleteRefreshToken(ctx, hash); err != nil && !errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return false, fmt.Errorf("delete expired refresh token: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// DeleteRefreshToken returns repository.ErrRefreshTokenNotFound when no
// record matched, which is how a lost rotation race shows up.
func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	return s.tokens.DeleteRefreshToken(ctx, security.HashRefreshToken(token))
}

func (s *Store) DeleteAllRefreshTokens(ctx context.Context, userID string) (int64, error) {
	deleted, err := s.tokens.DeleteUserRefreshTokens(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete refresh tokens: %w", err)
	}
	return deleted, nil
}

func (s *Store) CreatePasswordResetToken(ctx context.Context, userID, hashedToken string, expiresAt time.Time) error {
	record := models.PasswordResetToken{
		ID:        ids.New(),
		UserID:    userID,
		TokenHash: hashedToken,
		ExpiresAt: expiresAt.UTC(),
	}
	if err := s.tokens.CreatePasswordResetToken(ctx, record); err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	return nil
}

func (s *Store) FindPasswordResetToken(ctx context.Context, hashedToken string) (models.PasswordResetToken, error) {
	return s.tokens.GetPasswordResetToken(ctx, hashedToken, s.now())
}

// ConsumePasswordResetToken deletes the reset record, stores the new password
// hash and drops every session of the owner as a single unit. When the record
// is gone or expired nothing changes and repository.ErrResetTokenNotFound is
// returned.
func (s *Store) ConsumePasswordResetToken(ctx context.Context, hashedToken string, passwordHash []byte) (models.PasswordResetToken, error) {
	return s.tokens.ConsumePasswordResetToken(ctx, hashedToken, passwordHash, s.now())
}

func (s *Store) PurgeExpired(ctx context.Context) (repository.PurgeResult, error) {
	result, err := s.tokens.PurgeExpiredTokens(ctx, s.now())
	if err != nil {
		return repository.PurgeResult{}, fmt.Errorf("purge expired tokens: %w", err)
	}
	return result, nil
}
