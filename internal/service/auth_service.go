package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MaxtDesign/MaxtPM/internal/config"
	"github.com/MaxtDesign/MaxtPM/internal/ids"
	"github.com/MaxtDesign/MaxtPM/internal/models"
	"github.com/MaxtDesign/MaxtPM/internal/repository"
	"github.com/MaxtDesign/MaxtPM/internal/security"
	"github.com/MaxtDesign/MaxtPM/internal/session"
)

// Notifier delivers account emails. SendPasswordReset is synchronous and its
// error matters; the Notify methods are fire and forget.
type Notifier interface {
	SendPasswordReset(ctx context.Context, to, firstName, resetURL string) error
	NotifyWelcome(ctx context.Context, to, firstName string)
	NotifyPasswordChanged(ctx context.Context, to, firstName string)
}

type AuthService struct {
	users     repository.UserStore
	companies repository.CompanyStore
	sessions  *session.Store
	tokens    *security.TokenIssuer
	notifier  Notifier
	cfg       *config.AppConfig
	log       zerolog.Logger
	now       func() time.Time
}

func NewAuthService(
	store repository.Store,
	sessions *session.Store,
	tokens *security.TokenIssuer,
	notifier Notifier,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:     store,
		companies: store,
		sessions:  sessions,
		tokens:    tokens,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

type RegisterInput struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	CompanyName    string
	CompanyAddress *models.Address
	CompanyPhone   string
	CompanyEmail   string
}

// AuthResult is returned by Register and Login. Company is set when the user
// belongs to one.
type AuthResult struct {
	User    models.User
	Company *models.Company
	Tokens  models.AuthTokens
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	email := security.NormalizeEmail(input.Email)

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return AuthResult{}, ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := checkPassword(input.Password); err != nil {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPasswordWithCost(input.Password, s.cfg.Security.BcryptCost)
	if err != nil {
		return AuthResult{}, err
	}

	var company *models.Company
	if strings.TrimSpace(input.CompanyName) != "" && input.CompanyAddress != nil {
		companyEmail := input.CompanyEmail
		if companyEmail == "" {
			companyEmail = email
		}
		company = &models.Company{
			ID:      ids.New(),
			Name:    strings.TrimSpace(input.CompanyName),
			Address: *input.CompanyAddress,
			Phone:   input.CompanyPhone,
			Email:   companyEmail,
		}
	}

	user, err := s.users.CreateUser(ctx, models.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         models.UserRolePropertyManager,
		IsActive:     true,
	}, company)
	if err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, repository.ErrConflict) {
			return AuthResult{}, ErrUserAlreadyExists
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}

	s.notifier.NotifyWelcome(ctx, user.Email, user.FirstName)
	s.log.Info().Str("user_id", user.ID).Bool("with_company", company != nil).Msg("user registered")

	return AuthResult{User: user, Company: company, Tokens: tokens}, nil
}

type LoginInput struct {
	Email    string
	Password string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, security.NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	// The password is checked before the account state so that an inactive
	// account is only revealed to someone who knows its password.
	if !security.VerifyPassword(input.Password, user.PasswordHash) {
		return AuthResult{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return AuthResult{}, ErrAccountInactive
	}

	company, err := s.companyOf(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: user, Company: company, Tokens: tokens}, nil
}

// Refresh rotates a refresh token. The presented token is deleted before the
// new pair is issued; when two requests race with the same token only the one
// whose delete removed the row succeeds.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.AuthTokens, error) {
	valid, err := s.sessions.IsRefreshTokenValid(ctx, refreshToken)
	if err != nil {
		return models.AuthTokens{}, err
	}
	if !valid {
		return models.AuthTokens{}, ErrInvalidRefreshToken
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return models.AuthTokens{}, ErrInvalidRefreshToken
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.AuthTokens{}, ErrUserNotFound
		}
		return models.AuthTokens{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return models.AuthTokens{}, ErrUserNotFound
	}

	if err := s.sessions.DeleteRefreshToken(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return models.AuthTokens{}, ErrInvalidRefreshToken
		}
		return models.AuthTokens{}, fmt.Errorf("delete refresh token: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes refreshToken when one is given. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	err := s.sessions.DeleteRefreshToken(ctx, refreshToken)
	if err != nil && !errors.Is(err, repository.ErrRefreshTokenNotFound) {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	deleted, err := s.sessions.DeleteAllRefreshTokens(ctx, userID)
	if err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Int64("sessions", deleted).Msg("logged out everywhere")
	return nil
}

// ForgotPassword answers nil for unknown emails so the caller cannot tell
// whether an account exists. For a known email a failed send is reported.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, security.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	token, err := security.NewResetToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.cfg.Security.ResetTokenTTL)
	if err := s.sessions.CreatePasswordResetToken(ctx, user.ID, security.HashResetToken(token), expiresAt); err != nil {
		return err
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, user.FirstName, s.resetURL(token)); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("send password reset email")
		return ErrEmailSendFailed
	}
	return nil
}

func (s *AuthService) resetURL(token string) string {
	return strings.TrimRight(s.cfg.App.URL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	hashed := security.HashResetToken(token)
	if _, err := s.sessions.FindPasswordResetToken(ctx, hashed); err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("find reset token: %w", err)
	}

	if err := checkPassword(password); err != nil {
		return err
	}
	passwordHash, err := security.HashPasswordWithCost(password, s.cfg.Security.BcryptCost)
	if err != nil {
		return err
	}

	record, err := s.sessions.ConsumePasswordResetToken(ctx, hashed, passwordHash)
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	user, err := s.users.GetUserByID(ctx, record.UserID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", record.UserID).Msg("load user after password reset")
		return nil
	}
	s.notifier.NotifyPasswordChanged(ctx, user.Email, user.FirstName)
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if !security.VerifyPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCurrentPassword
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := security.HashPasswordWithCost(newPassword, s.cfg.Security.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.notifier.NotifyPasswordChanged(ctx, user.Email, user.FirstName)
	return nil
}

type Profile struct {
	User    models.User
	Company *models.Company
}

func (s *AuthService) Profile(ctx context.Context, userID string) (Profile, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, fmt.Errorf("lookup user: %w", err)
	}
	company, err := s.companyOf(ctx, user)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: user, Company: company}, nil
}

// SetUserActive enables or disables an account. Disabling drops all of the
// user's sessions in the same transaction.
func (s *AuthService) SetUserActive(ctx context.Context, userID string, active bool) (models.User, error) {
	user, err := s.users.SetUserActive(ctx, userID, active)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("set user active: %w", err)
	}
	s.log.Info().Str("user_id", userID).Bool("active", active).Msg("user status changed")
	return user, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user models.User) (models.AuthTokens, error) {
	accessToken, err := s.tokens.IssueAccessToken(user.AuthUser())
	if err != nil {
		return models.AuthTokens{}, err
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return models.AuthTokens{}, err
	}
	if err := s.sessions.SaveRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return models.AuthTokens{}, err
	}
	return models.AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokens.AccessTTL() / time.Second),
	}, nil
}

func (s *AuthService) companyOf(ctx context.Context, user models.User) (*models.Company, error) {
	if user.CompanyID == nil {
		return nil, nil
	}
	company, err := s.companies.GetCompany(ctx, *user.CompanyID)
	if err != nil {
		if errors.Is(err, repository.ErrCompanyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup company: %w", err)
	}
	return &company, nil
}

func checkPassword(password string) error {
	check := security.ValidatePasswordStrength(password)
	if !check.Valid {
		return &PasswordPolicyError{Violations: check.Violations}
	}
	return nil
}
