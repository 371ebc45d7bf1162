package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MaxtDesign/MaxtPM/internal/config"
	"github.com/MaxtDesign/MaxtPM/internal/models"
	"github.com/MaxtDesign/MaxtPM/internal/repository/memory"
	"github.com/MaxtDesign/MaxtPM/internal/security"
	"github.com/MaxtDesign/MaxtPM/internal/session"
)

const strongPassword = "Password1"

type sentMail struct {
	kind string
	to   string
	name string
	url  string
}

type fakeNotifier struct {
	mu       sync.Mutex
	sent     []sentMail
	resetErr error
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, to, name, resetURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.resetErr != nil {
		return n.resetErr
	}
	n.sent = append(n.sent, sentMail{kind: "reset", to: to, name: name, url: resetURL})
	return nil
}

func (n *fakeNotifier) NotifyWelcome(_ context.Context, to, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: "welcome", to: to, name: name})
}

func (n *fakeNotifier) NotifyPasswordChanged(_ context.Context, to, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: "changed", to: to, name: name})
}

func (n *fakeNotifier) last(kind string) (sentMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i], true
		}
	}
	return sentMail{}, false
}

type fixture struct {
	svc      *AuthService
	store    *memory.Store
	sessions *session.Store
	tokens   *security.TokenIssuer
	mail     *fakeNotifier
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			JWTAccessSecret:  "access-secret-for-tests",
			JWTRefreshSecret: "refresh-secret-for-tests",
			JWTAccessTTL:     15 * time.Minute,
			JWTRefreshTTL:    7 * 24 * time.Hour,
			ResetTokenTTL:    time.Hour,
			BcryptCost:       bcrypt.MinCost,
		},
		App: config.AppInfo{Name: "PropEase", URL: "https://app.propease.test/"},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testConfig()
	store := memory.NewStore()
	sessions := session.NewStore(store, cfg.Security.JWTRefreshTTL)
	tokens := security.NewTokenIssuer(cfg.Security)
	mail := &fakeNotifier{}
	return &fixture{
		svc:      NewAuthService(store, sessions, tokens, mail, cfg, zerolog.Nop()),
		store:    store,
		sessions: sessions,
		tokens:   tokens,
		mail:     mail,
	}
}

func (f *fixture) register(t *testing.T, email string) AuthResult {
	t.Helper()
	result, err := f.svc.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  strongPassword,
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	return result
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.Register(ctx, RegisterInput{
		Email:          "  Ada@Example.COM ",
		Password:       strongPassword,
		FirstName:      "Ada",
		LastName:       "Lovelace",
		CompanyName:    "Acme Properties",
		CompanyAddress: &models.Address{Street: "1 Main", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US"},
	})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", result.User.Email)
	assert.Equal(t, models.UserRolePropertyManager, result.User.Role)
	assert.True(t, result.User.IsActive)
	assert.True(t, security.VerifyPassword(strongPassword, result.User.PasswordHash))

	require.NotNil(t, result.Company)
	require.NotNil(t, result.User.CompanyID)
	assert.Equal(t, result.Company.ID, *result.User.CompanyID)
	assert.Equal(t, "ada@example.com", result.Company.Email)
	assert.Equal(t, "", result.Company.Phone)

	assert.EqualValues(t, 900, result.Tokens.ExpiresIn)
	claims, err := f.tokens.VerifyAccessToken(result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
	require.NotNil(t, claims.CompanyID)
	assert.Equal(t, result.Company.ID, *claims.CompanyID)

	valid, err := f.sessions.IsRefreshTokenValid(ctx, result.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.True(t, valid)

	welcome, ok := f.mail.last("welcome")
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", welcome.to)
}

func TestRegisterWithoutAddressSkipsCompany(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Register(context.Background(), RegisterInput{
		Email:       "a@x.com",
		Password:    strongPassword,
		FirstName:   "Ada",
		LastName:    "Lovelace",
		CompanyName: "Acme",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Company)
	assert.Nil(t, result.User.CompanyID)
	assert.Zero(t, f.store.CountCompanies())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com")

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "A@X.com", Password: strongPassword})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	assert.Equal(t, 1, f.store.CountUsers())
}

func TestRegisterWeakPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "weak"})
	require.ErrorIs(t, err, ErrWeakPassword)

	var policyErr *PasswordPolicyError
	require.True(t, errors.As(err, &policyErr))
	assert.ElementsMatch(t, []string{
		security.ViolationTooShort,
		security.ViolationNoUppercase,
		security.ViolationNoDigit,
	}, policyErr.Violations)
	assert.Zero(t, f.store.CountUsers())
}

func TestRegisterStoreFailureCreatesNothing(t *testing.T) {
	f := newFixture(t)
	f.store.InjectFault("register:create-user", errors.New("crash"))

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Email:          "a@x.com",
		Password:       strongPassword,
		CompanyName:    "Acme",
		CompanyAddress: &models.Address{City: "Springfield"},
	})
	require.Error(t, err)
	assert.Zero(t, f.store.CountUsers())
	assert.Zero(t, f.store.CountCompanies())
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "a@x.com")

	result, err := f.svc.Login(context.Background(), LoginInput{Email: "A@x.com", Password: strongPassword})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, result.User.ID)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEqual(t, registered.Tokens.RefreshToken, result.Tokens.RefreshToken)

	count, _ := f.store.CountUserRefreshTokens(context.Background(), registered.User.ID)
	assert.Equal(t, 2, count)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com")

	_, unknown := f.svc.Login(context.Background(), LoginInput{Email: "nobody@x.com", Password: strongPassword})
	_, wrong := f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "Password2"})

	assert.ErrorIs(t, unknown, ErrInvalidCredentials)
	assert.ErrorIs(t, wrong, ErrInvalidCredentials)
	assert.Equal(t, unknown.Error(), wrong.Error())
}

func TestLoginInactive(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "a@x.com")
	_, err := f.svc.SetUserActive(context.Background(), registered.User.ID, false)
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: strongPassword})
	assert.ErrorIs(t, err, ErrAccountInactive)

	_, err = f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "Wrong1234"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "a@x.com")

	tokens, err := f.svc.Refresh(ctx, registered.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, registered.Tokens.RefreshToken, tokens.RefreshToken)

	_, err = f.svc.Refresh(ctx, registered.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = f.svc.Refresh(ctx, tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "a@x.com")

	const workers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		losses int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Refresh(context.Background(), registered.Tokens.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, ErrInvalidRefreshToken) {
				losses++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, losses)
}

func TestRefreshRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "a@x.com")

	_, err := f.svc.Refresh(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// An access token is not a refresh token even if somebody stored it.
	require.NoError(t, f.sessions.SaveRefreshToken(ctx, registered.User.ID, registered.Tokens.AccessToken))
	_, err = f.svc.Refresh(ctx, registered.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = f.store.SetUserActive(ctx, registered.User.ID, false)
	require.NoError(t, err)
	require.NoError(t, f.sessions.SaveRefreshToken(ctx, registered.User.ID, registered.Tokens.RefreshToken))
	_, err = f.svc.Refresh(ctx, registered.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "a@x.com")

	require.NoError(t, f.svc.Logout(ctx, registered.Tokens.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, registered.Tokens.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, ""))

	_, err := f.svc.Refresh(ctx, registered.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogoutAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "a@x.com")
	second, err := f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: strongPassword})
	require.NoError(t, err)

	require.NoError(t, f.svc.LogoutAll(ctx, registered.User.ID))

	for _, token := range []string{registered.Tokens.RefreshToken, second.Tokens.RefreshToken} {
		_, err := f.svc.Refresh(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "a@x.com")

	require.NoError(t, f.svc.ForgotPassword(ctx, "A@x.com"))
	mail, ok := f.mail.last("reset")
	require.True(t, ok)
	assert.Equal(t, "a@x.com", mail.to)
	assert.True(t, strings.HasPrefix(mail.url, "https://app.propease.test/reset-password?token="))

	parsed, err := url.Parse(mail.url)
	require.NoError(t, err)
	token := parsed.Query().Get("token")
	assert.Len(t, token, 64)
	assert.Equal(t, 1, f.store.CountResetTokens())

	err = f.svc.ResetPassword(ctx, token, "weak")
	assert.ErrorIs(t, err, ErrWeakPassword)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "NewPassword2"))
	_, ok = f.mail.last("changed")
	assert.True(t, ok)

	_, err = f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "NewPassword2"})
	assert.NoError(t, err)
	_, err = f.svc.Refresh(ctx, registered.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "Another3Pass"), ErrInvalidResetToken)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "nobody@x.com"))
	assert.Zero(t, f.store.CountResetTokens())
	_, ok := f.mail.last("reset")
	assert.False(t, ok)
}

func TestForgotPasswordSendFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com")
	f.mail.resetErr = errors.New("smtp down")

	err := f.svc.ForgotPassword(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, ErrEmailSendFailed)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "a@x.com")

	hashed := security.HashResetToken("expired-token")
	require.NoError(t, f.sessions.CreatePasswordResetToken(ctx, registered.User.ID, hashed, time.Now().Add(-time.Minute)))

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "expired-token", "NewPassword2"), ErrInvalidResetToken)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "never-issued", "NewPassword2"), ErrInvalidResetToken)
}

func TestResetPasswordCrashKeepsOldState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "a@x.com")
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))
	mail, _ := f.mail.last("reset")
	parsed, _ := url.Parse(mail.url)
	token := parsed.Query().Get("token")

	f.store.InjectFault("reset:revoke-sessions", errors.New("crash"))
	require.Error(t, f.svc.ResetPassword(ctx, token, "NewPassword2"))

	_, err := f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: strongPassword})
	assert.NoError(t, err)
	valid, _ := f.sessions.IsRefreshTokenValid(ctx, registered.Tokens.RefreshToken)
	assert.True(t, valid)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "NewPassword2"))
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "a@x.com")
	id := registered.User.ID

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, id, "Wrong1234", "NewPassword2"), ErrInvalidCurrentPassword)
	assert.ErrorIs(t, f.svc.ChangePassword(ctx, id, strongPassword, "short"), ErrWeakPassword)
	assert.ErrorIs(t, f.svc.ChangePassword(ctx, "missing", strongPassword, "NewPassword2"), ErrUserNotFound)

	require.NoError(t, f.svc.ChangePassword(ctx, id, strongPassword, "NewPassword2"))

	_, err := f.svc.Refresh(ctx, registered.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "NewPassword2"})
	assert.NoError(t, err)
	_, ok := f.mail.last("changed")
	assert.True(t, ok)
}

func TestChangePasswordWrongCurrentLeavesState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "a@x.com")
	id := registered.User.ID

	before, err := f.store.GetUserByID(ctx, id)
	require.NoError(t, err)
	tokensBefore, err := f.store.CountUserRefreshTokens(ctx, id)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, id, "Wrong1234", "NewPassword2"), ErrInvalidCurrentPassword)

	after, err := f.store.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	tokensAfter, err := f.store.CountUserRefreshTokens(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, tokensBefore, tokensAfter)

	_, err = f.svc.Refresh(ctx, registered.Tokens.RefreshToken)
	assert.NoError(t, err)
	_, err = f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: strongPassword})
	assert.NoError(t, err)
	_, sent := f.mail.last("changed")
	assert.False(t, sent)
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result, err := f.svc.Register(ctx, RegisterInput{
		Email:          "a@x.com",
		Password:       strongPassword,
		CompanyName:    "Acme",
		CompanyAddress: &models.Address{City: "Springfield"},
		CompanyPhone:   "555-0100",
	})
	require.NoError(t, err)

	profile, err := f.svc.Profile(ctx, result.User.ID)
	require.NoError(t, err)
	require.NotNil(t, profile.Company)
	assert.Equal(t, "Acme", profile.Company.Name)
	assert.Equal(t, "555-0100", profile.Company.Phone)

	_, err = f.svc.Profile(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSetUserActiveRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "a@x.com")

	user, err := f.svc.SetUserActive(ctx, registered.User.ID, false)
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	valid, _ := f.sessions.IsRefreshTokenValid(ctx, registered.Tokens.RefreshToken)
	assert.False(t, valid)

	_, err = f.svc.SetUserActive(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
