package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaxtDesign/MaxtPM/internal/models"
	"github.com/MaxtDesign/MaxtPM/internal/repository"
	"github.com/MaxtDesign/MaxtPM/internal/repository/memory"
	"github.com/MaxtDesign/MaxtPM/internal/security"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newStore(t *testing.T) (*Store, *memory.Store, *clock) {
	t.Helper()
	repo := memory.NewStore()
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(repo, 7*24*time.Hour).WithClock(c.Now), repo, c
}

func TestRefreshTokenLifecycle(t *testing.T) {
	s, repo, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRefreshToken(ctx, "u_1", "token-a"))

	record, err := repo.GetRefreshToken(ctx, security.HashRefreshToken("token-a"))
	require.NoError(t, err)
	assert.NotEqual(t, "token-a", record.TokenHash)
	assert.Equal(t, time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC), record.ExpiresAt)

	valid, err := s.IsRefreshTokenValid(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = s.IsRefreshTokenValid(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, valid)

	require.NoError(t, s.DeleteRefreshToken(ctx, "token-a"))
	assert.ErrorIs(t, s.DeleteRefreshToken(ctx, "token-a"), repository.ErrRefreshTokenNotFound)
}

func TestExpiredRefreshTokenIsRemoved(t *testing.T) {
	s, repo, c := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRefreshToken(ctx, "u_1", "token-a"))
	c.Advance(7*24*time.Hour + time.Second)

	valid, err := s.IsRefreshTokenValid(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, valid)

	count, _ := repo.CountUserRefreshTokens(ctx, "u_1")
	assert.Zero(t, count)
}

func TestDeleteAllRefreshTokens(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRefreshToken(ctx, "u_1", "a"))
	require.NoError(t, s.SaveRefreshToken(ctx, "u_1", "b"))
	require.NoError(t, s.SaveRefreshToken(ctx, "u_2", "c"))

	deleted, err := s.DeleteAllRefreshTokens(ctx, "u_1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	valid, _ := s.IsRefreshTokenValid(ctx, "c")
	assert.True(t, valid)
}

func TestPasswordResetTokens(t *testing.T) {
	s, repo, c := newStore(t)
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, models.User{ID: "u_1", Email: "a@x.com", PasswordHash: []byte("old"), Role: models.UserRoleTenant, IsActive: true}, nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveRefreshToken(ctx, "u_1", "session"))

	hashed := security.HashResetToken("reset")
	require.NoError(t, s.CreatePasswordResetToken(ctx, "u_1", hashed, c.Now().Add(time.Hour)))

	record, err := s.FindPasswordResetToken(ctx, hashed)
	require.NoError(t, err)
	assert.Equal(t, "u_1", record.UserID)

	_, err = s.ConsumePasswordResetToken(ctx, hashed, []byte("new"))
	require.NoError(t, err)

	user, _ := repo.GetUserByID(ctx, "u_1")
	assert.Equal(t, []byte("new"), user.PasswordHash)
	valid, _ := s.IsRefreshTokenValid(ctx, "session")
	assert.False(t, valid)

	_, err = s.FindPasswordResetToken(ctx, hashed)
	assert.ErrorIs(t, err, repository.ErrResetTokenNotFound)
}

func TestResetTokenExpires(t *testing.T) {
	s, _, c := newStore(t)
	ctx := context.Background()

	hashed := security.HashResetToken("reset")
	require.NoError(t, s.CreatePasswordResetToken(ctx, "u_1", hashed, c.Now().Add(time.Hour)))
	c.Advance(time.Hour)

	_, err := s.FindPasswordResetToken(ctx, hashed)
	assert.ErrorIs(t, err, repository.ErrResetTokenNotFound)
	_, err = s.ConsumePasswordResetToken(ctx, hashed, []byte("new"))
	assert.ErrorIs(t, err, repository.ErrResetTokenNotFound)
}

func TestPurgeExpired(t *testing.T) {
	s, _, c := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRefreshToken(ctx, "u_1", "old"))
	require.NoError(t, s.CreatePasswordResetToken(ctx, "u_1", "h", c.Now().Add(time.Hour)))
	c.Advance(8 * 24 * time.Hour)
	require.NoError(t, s.SaveRefreshToken(ctx, "u_1", "fresh"))

	result, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.RefreshTokens)
	assert.EqualValues(t, 1, result.ResetTokens)

	valid, _ := s.IsRefreshTokenValid(ctx, "fresh")
	assert.True(t, valid)
}
