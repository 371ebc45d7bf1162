package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MaxtDesign/MaxtPM/internal/models"
)

const resetColumns = `id, user_id, token_hash, expires_at, created_at`

func scanResetToken(row scanner) (models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	return token, err
}

func (s *Postgres) CreatePasswordResetToken(ctx context.Context, token models.PasswordResetToken) error {
	const query = `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := s.pool.Exec(ctx, query, token.ID, token.UserID, token.TokenHash, token.ExpiresAt)
	return mapPgErr(err)
}

func (s *Postgres) GetPasswordResetToken(ctx context.Context, tokenHash string, now time.Time) (models.PasswordResetToken, error) {
	query := `SELECT ` + resetColumns + ` FROM password_reset_tokens WHERE token_hash = $1 AND expires_at > $2`

	token, err := scanResetToken(s.pool.QueryRow(ctx, query, tokenHash, now))
	if err != nil {
		return models.PasswordResetToken{}, notFound(err, ErrResetTokenNotFound)
	}
	return token, nil
}

func (s *Postgres) ConsumePasswordResetToken(ctx context.Context, tokenHash string, passwordHash []byte, now time.Time) (models.PasswordResetToken, error) {
	query := `
		DELETE FROM password_reset_tokens
		WHERE token_hash = $1 AND expires_at > $2
		RETURNING ` + resetColumns

	var token models.PasswordResetToken
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		token, err = scanResetToken(tx.QueryRow(ctx, query, tokenHash, now))
		if err != nil {
			return notFound(err, ErrResetTokenNotFound)
		}

		if err := s.checkpoint("reset:update-password"); err != nil {
			return err
		}
		if err := updatePasswordTx(ctx, tx, token.UserID, passwordHash); err != nil {
			return err
		}

		if err := s.checkpoint("reset:revoke-sessions"); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, token.UserID)
		return err
	})
	if err != nil {
		return models.PasswordResetToken{}, err
	}
	return token, nil
}
