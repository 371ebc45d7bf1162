package models

import "time"

// RefreshToken is one active session. Only the SHA-256 of the issued token
// is persisted.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t PasswordResetToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// AuthTokens is handed to the client and never stored as such.
type AuthTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}
