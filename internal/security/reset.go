package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const resetTokenBytes = 32

// NewResetToken returns 256 random bits as 64 hex characters.
func NewResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashResetToken is the value persisted in place of a reset token.
func HashResetToken(token string) string {
	return sha256Hex(token)
}

// HashRefreshToken is the value persisted in place of a refresh token.
func HashRefreshToken(token string) string {
	return sha256Hex(token)
}

func sha256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
