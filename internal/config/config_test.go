package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("PROPEASE_SECURITY_JWTACCESSSECRET", "access-secret")
	t.Setenv("PROPEASE_SECURITY_JWTREFRESHSECRET", "refresh-secret")
	t.Setenv("PROPEASE_SMTP_PORT", "2525")
	t.Setenv("PROPEASE_ALLOWCORSORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 15*time.Minute, cfg.Security.JWTAccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Security.JWTRefreshTTL)
	assert.Equal(t, time.Hour, cfg.Security.ResetTokenTTL)
	assert.Equal(t, MinBcryptCost, cfg.Security.BcryptCost)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "mail:outbox", cfg.Mail.Stream)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowCORSOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadRejectsSharedSecret(t *testing.T) {
	t.Setenv("PROPEASE_SECURITY_JWTACCESSSECRET", "same")
	t.Setenv("PROPEASE_SECURITY_JWTREFRESHSECRET", "same")

	_, err := Load()
	assert.ErrorContains(t, err, "must differ")
}

func TestValidate(t *testing.T) {
	valid := AppConfig{
		Security: SecurityConfig{JWTAccessSecret: "a", JWTRefreshSecret: "b", BcryptCost: 12},
		App:      AppInfo{URL: "http://localhost:5173"},
	}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.Security.JWTRefreshSecret = ""
	assert.Error(t, missing.Validate())

	cheap := valid
	cheap.Security.BcryptCost = 10
	assert.ErrorContains(t, cheap.Validate(), "bcryptcost")

	noURL := valid
	noURL.App.URL = ""
	assert.Error(t, noURL.Validate())
}
