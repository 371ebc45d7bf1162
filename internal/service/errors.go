package service

import (
	"errors"
	"strings"
)

var (
	ErrUserAlreadyExists      = errors.New("user already exists")
	ErrWeakPassword           = errors.New("password does not meet security requirements")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrAccountInactive        = errors.New("account is inactive")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrUserNotFound           = errors.New("user not found")
	ErrInvalidResetToken      = errors.New("invalid or expired reset token")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrEmailSendFailed        = errors.New("failed to send password reset email")

	ErrCompanyNotFound    = errors.New("company not found")
	ErrUnsupportedImage   = errors.New("unsupported image type")
	ErrImageTooLarge      = errors.New("image too large")
	ErrStorageUnavailable = errors.New("object storage unavailable")
)

// PasswordPolicyError lists every rule a password broke.
type PasswordPolicyError struct {
	Violations []string
}

func (e *PasswordPolicyError) Error() string {
	return ErrWeakPassword.Error() + ": " + strings.Join(e.Violations, "; ")
}

func (e *PasswordPolicyError) Unwrap() error {
	return ErrWeakPassword
}
