package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MaxtDesign/MaxtPM/internal/models"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, company_id, is_active, created_at, updated_at`

func scanUser(row scanner) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.CompanyID,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *Postgres) CreateUser(ctx context.Context, user models.User, company *models.Company) (models.User, error) {
	const insertCompany = `
		INSERT INTO companies (id, name, address, phone, email, website, logo, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	const insertUser = `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, role, company_id, is_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
		)
		RETURNING created_at, updated_at
	`

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if company != nil {
			address, err := json.Marshal(company.Address)
			if err != nil {
				return fmt.Errorf("encode address: %w", err)
			}
			if err := tx.QueryRow(ctx, insertCompany,
				company.ID,
				company.Name,
				address,
				company.Phone,
				company.Email,
				company.Website,
				company.Logo,
			).Scan(&company.CreatedAt, &company.UpdatedAt); err != nil {
				return err
			}
			user.CompanyID = &company.ID
		}

		if err := s.checkpoint("register:create-user"); err != nil {
			return err
		}

		return tx.QueryRow(ctx, insertUser,
			user.ID,
			user.Email,
			user.PasswordHash,
			user.FirstName,
			user.LastName,
			user.Role,
			user.CompanyID,
			user.IsActive,
		).Scan(&user.CreatedAt, &user.UpdatedAt)
	})
	if err != nil {
		return models.User{}, mapPgErr(err)
	}
	return user, nil
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	user, err := scanUser(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		return models.User{}, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

func (s *Postgres) GetUserByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return models.User{}, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

func (s *Postgres) UpdatePassword(ctx context.Context, userID string, passwordHash []byte) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := updatePasswordTx(ctx, tx, userID, passwordHash); err != nil {
			return err
		}
		if err := s.checkpoint("password:revoke-sessions"); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
		return err
	})
}

func updatePasswordTx(ctx context.Context, tx pgx.Tx, userID string, passwordHash []byte) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := tx.Exec(ctx, query, userID, passwordHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Postgres) SetUserActive(ctx context.Context, userID string, active bool) (models.User, error) {
	query := `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns

	var user models.User
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRow(ctx, query, userID, active))
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if active {
			return nil
		}
		_, err = tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
		return err
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Postgres) ListUsersByCompany(ctx context.Context, companyID string) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE company_id = $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
