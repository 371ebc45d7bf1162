package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaxtDesign/MaxtPM/internal/models"
	"github.com/MaxtDesign/MaxtPM/internal/repository"
	"github.com/MaxtDesign/MaxtPM/internal/repository/memory"
	"github.com/MaxtDesign/MaxtPM/internal/session"
)

func TestPurgeNowRemovesOnlyExpired(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveRefreshToken(ctx, models.RefreshToken{ID: "r1", UserID: "u_1", TokenHash: "old", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.SaveRefreshToken(ctx, models.RefreshToken{ID: "r2", UserID: "u_1", TokenHash: "live", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.CreatePasswordResetToken(ctx, models.PasswordResetToken{ID: "p1", UserID: "u_1", TokenHash: "old", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.CreatePasswordResetToken(ctx, models.PasswordResetToken{ID: "p2", UserID: "u_1", TokenHash: "live", ExpiresAt: now.Add(time.Hour)}))

	scheduler := NewScheduler(session.NewStore(store, 7*24*time.Hour), "", zerolog.Nop())
	result, err := scheduler.PurgeNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.PurgeResult{RefreshTokens: 1, ResetTokens: 1}, result)

	_, err = store.GetRefreshToken(ctx, "live")
	assert.NoError(t, err)
	_, err = store.GetPasswordResetToken(ctx, "live", now)
	assert.NoError(t, err)
}

type failingPurger struct{}

func (failingPurger) PurgeExpired(context.Context) (repository.PurgeResult, error) {
	return repository.PurgeResult{}, errors.New("db down")
}

func TestPurgeNowReportsError(t *testing.T) {
	_, err := NewScheduler(failingPurger{}, "", zerolog.Nop()).PurgeNow(context.Background())
	assert.Error(t, err)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	assert.Error(t, NewScheduler(failingPurger{}, "not a schedule", zerolog.Nop()).Start())

	s := NewScheduler(failingPurger{}, "0 */15 * * * *", zerolog.Nop())
	require.NoError(t, s.Start())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
