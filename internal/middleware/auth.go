package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MaxtDesign/MaxtPM/internal/models"
	"github.com/MaxtDesign/MaxtPM/internal/repository"
	"github.com/MaxtDesign/MaxtPM/internal/response"
	"github.com/MaxtDesign/MaxtPM/internal/security"
)

const (
	identityKey    = "identity"
	accessTokenKey = "access_token"
)

// UserLookup is the slice of the user store the middleware needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

// Authenticate requires a valid bearer access token that belongs to an
// existing, active user.
func Authenticate(tokens *security.TokenIssuer, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			response.Fail(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token is required", nil)
			return
		}

		identity, err := resolve(c, tokens, users, tokenStr)
		switch {
		case errors.Is(err, security.ErrInvalidToken):
			response.Fail(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired access token", nil)
			return
		case errors.Is(err, errInactive), errors.Is(err, repository.ErrUserNotFound):
			response.Fail(c, http.StatusUnauthorized, "USER_NOT_FOUND", "User not found or account is inactive", nil)
			return
		case err != nil:
			response.Fail(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired access token", nil)
			return
		}

		c.Set(accessTokenKey, tokenStr)
		c.Set(identityKey, identity)
		c.Next()
	}
}

// OptionalAuthenticate attaches an identity when a usable token is present
// and lets the request through either way.
func OptionalAuthenticate(tokens *security.TokenIssuer, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr := bearerToken(c); tokenStr != "" {
			if identity, err := resolve(c, tokens, users, tokenStr); err == nil {
				c.Set(accessTokenKey, tokenStr)
				c.Set(identityKey, identity)
			}
		}
		c.Next()
	}
}

// CurrentIdentity returns the caller attached by Authenticate.
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := value.(models.Identity)
	return identity, ok
}

var errInactive = errors.New("user inactive")

func resolve(c *gin.Context, tokens *security.TokenIssuer, users UserLookup, tokenStr string) (models.Identity, error) {
	claims, err := tokens.VerifyAccessToken(tokenStr)
	if err != nil {
		return models.Identity{}, err
	}
	user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		return models.Identity{}, err
	}
	if !user.IsActive {
		return models.Identity{}, errInactive
	}
	// Role and company come from the store, not the token, so a change takes
	// effect before the token expires.
	return user.Identity(), nil
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
