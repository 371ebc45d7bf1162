package repository

import (
	"context"
	"errors"
	"time"

	"github.com/MaxtDesign/MaxtPM/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrCompanyNotFound      = errors.New("company not found")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrResetTokenNotFound   = errors.New("password reset token not found")
	ErrConflict             = errors.New("conflict")
)

type UserStore interface {
	// CreateUser inserts user, and company first when it is non-nil, in one
	// transaction. A duplicate email yields ErrConflict.
	CreateUser(ctx context.Context, user models.User, company *models.Company) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	// UpdatePassword replaces the hash and deletes every refresh token of the
	// user in one transaction.
	UpdatePassword(ctx context.Context, userID string, passwordHash []byte) error
	// SetUserActive toggles the account; deactivation also deletes the user's
	// refresh tokens.
	SetUserActive(ctx context.Context, userID string, active bool) (models.User, error)
	ListUsersByCompany(ctx context.Context, companyID string) ([]models.User, error)
}

type CompanyStore interface {
	GetCompany(ctx context.Context, id string) (models.Company, error)
	UpdateCompanyLogo(ctx context.Context, id string, logo string) (models.Company, error)
}

type TokenStore interface {
	SaveRefreshToken(ctx context.Context, token models.RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (models.RefreshToken, error)
	// DeleteRefreshToken returns ErrRefreshTokenNotFound when nothing matched.
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
	DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error)
	CountUserRefreshTokens(ctx context.Context, userID string) (int, error)

	CreatePasswordResetToken(ctx context.Context, token models.PasswordResetToken) error
	// GetPasswordResetToken only matches records still valid at now.
	GetPasswordResetToken(ctx context.Context, tokenHash string, now time.Time) (models.PasswordResetToken, error)
	// ConsumePasswordResetToken deletes the valid record matching tokenHash,
	// sets the owner's password hash and deletes the owner's refresh tokens,
	// all in one transaction.
	ConsumePasswordResetToken(ctx context.Context, tokenHash string, passwordHash []byte, now time.Time) (models.PasswordResetToken, error)

	PurgeExpiredTokens(ctx context.Context, now time.Time) (PurgeResult, error)
}

type PurgeResult struct {
	RefreshTokens int64
	ResetTokens   int64
}

type Store interface {
	UserStore
	CompanyStore
	TokenStore
	Ping(ctx context.Context) error
}
