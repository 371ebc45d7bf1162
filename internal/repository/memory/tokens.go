package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/MaxtDesign/MaxtPM/internal/models"
	"github.com/MaxtDesign/MaxtPM/internal/repository"
)

func (s *Store) SaveRefreshToken(_ context.Context, token models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refresh[token.TokenHash]; ok {
		return fmt.Errorf("%w: refresh_tokens_token_hash_key", repository.ErrConflict)
	}
	token.CreatedAt = s.now().UTC()
	s.refresh[token.TokenHash] = token
	return nil
}

func (s *Store) GetRefreshToken(_ context.Context, tokenHash string) (models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.refresh[tokenHash]
	if !ok {
		return models.RefreshToken{}, repository.ErrRefreshTokenNotFound
	}
	return token, nil
}

func (s *Store) DeleteRefreshToken(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refresh[tokenHash]; !ok {
		return repository.ErrRefreshTokenNotFound
	}
	delete(s.refresh, tokenHash)
	return nil
}

func (s *Store) DeleteUserRefreshTokens(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteUserRefreshTokens(userID), nil
}

func (s *Store) deleteUserRefreshTokens(userID string) int64 {
	var deleted int64
	for hash, token := range s.refresh {
		if token.UserID == userID {
			delete(s.refresh, hash)
			deleted++
		}
	}
	return deleted
}

func (s *Store) CountUserRefreshTokens(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, token := range s.refresh {
		if token.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreatePasswordResetToken(_ context.Context, token models.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resets[token.TokenHash]; ok {
		return fmt.Errorf("%w: password_reset_tokens_token_hash_key", repository.ErrConflict)
	}
	token.CreatedAt = s.now().UTC()
	s.resets[token.TokenHash] = token
	return nil
}

func (s *Store) GetPasswordResetToken(_ context.Context, tokenHash string, now time.Time) (models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.resets[tokenHash]
	if !ok || token.Expired(now) {
		return models.PasswordResetToken{}, repository.ErrResetTokenNotFound
	}
	return token, nil
}

func (s *Store) ConsumePasswordResetToken(_ context.Context, tokenHash string, passwordHash []byte, now time.Time) (models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.resets[tokenHash]
	if !ok || token.Expired(now) {
		return models.PasswordResetToken{}, repository.ErrResetTokenNotFound
	}

	if err := s.checkpoint("reset:update-password"); err != nil {
		return models.PasswordResetToken{}, err
	}
	user, ok := s.users[token.UserID]
	if !ok {
		return models.PasswordResetToken{}, repository.ErrUserNotFound
	}
	if err := s.checkpoint("reset:revoke-sessions"); err != nil {
		return models.PasswordResetToken{}, err
	}

	user.PasswordHash = append([]byte(nil), passwordHash...)
	user.UpdatedAt = now.UTC()
	s.users[user.ID] = user
	delete(s.resets, tokenHash)
	s.deleteUserRefreshTokens(user.ID)
	return token, nil
}

func (s *Store) PurgeExpiredTokens(_ context.Context, now time.Time) (repository.PurgeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result repository.PurgeResult
	for hash, token := range s.refresh {
		if token.Expired(now) {
			delete(s.refresh, hash)
			result.RefreshTokens++
		}
	}
	for hash, token := range s.resets {
		if token.Expired(now) {
			delete(s.resets, hash)
			result.ResetTokens++
		}
	}
	return result, nil
}
