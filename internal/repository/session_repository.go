package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MaxtDesign/MaxtPM/internal/models"
)

func (s *Postgres) SaveRefreshToken(ctx context.Context, token models.RefreshToken) error {
	const query = `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := s.pool.Exec(ctx, query, token.ID, token.UserID, token.TokenHash, token.ExpiresAt)
	return mapPgErr(err)
}

func (s *Postgres) GetRefreshToken(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	const query = `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	var token models.RefreshToken
	if err := s.pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
	); err != nil {
		return models.RefreshToken{}, notFound(err, ErrRefreshTokenNotFound)
	}
	return token, nil
}

func (s *Postgres) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	cmd, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRefreshTokenNotFound
	}
	return nil
}

func (s *Postgres) DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	cmd, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (s *Postgres) CountUserRefreshTokens(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM refresh_tokens WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (s *Postgres) PurgeExpiredTokens(ctx context.Context, now time.Time) (PurgeResult, error) {
	var result PurgeResult
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
		if err != nil {
			return err
		}
		result.RefreshTokens = cmd.RowsAffected()

		cmd, err = tx.Exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at <= $1`, now)
		if err != nil {
			return err
		}
		result.ResetTokens = cmd.RowsAffected()
		return nil
	})
	return result, err
}
