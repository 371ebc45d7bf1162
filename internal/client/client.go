// Package client is the session manager used by API consumers such as
// propctl. It keeps the tokens in a TokenStore, renews them transparently and
// reports the outcome of every account operation as a Notice.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

type Options struct {
	BaseURL string
	Store   TokenStore
	// Notifier receives user-facing notices; nil discards them.
	Notifier Notifier
	// OnLoggedOut runs when the session ends, whether asked for or because
	// it could not be renewed.
	OnLoggedOut func()
	// Base is the underlying transport, http.DefaultTransport when nil.
	Base    http.RoundTripper
	Timeout time.Duration
	Log     zerolog.Logger
	Now     func() time.Time
}

type Client struct {
	baseURL     string
	store       TokenStore
	notifier    Notifier
	onLoggedOut func()
	http        *http.Client
	raw         *http.Client
	log         zerolog.Logger
	now         func() time.Time
	endMu       sync.Mutex
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("client: base url is empty")
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(Notice) {})
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}

	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		store:       opts.Store,
		notifier:    opts.Notifier,
		onLoggedOut: opts.OnLoggedOut,
		raw:         &http.Client{Transport: base, Timeout: opts.Timeout},
		log:         opts.Log,
		now:         opts.Now,
	}
	c.http = &http.Client{
		Timeout: opts.Timeout,
		Transport: &Transport{
			Base:    base,
			Store:   opts.Store,
			Refresh: c.refreshTokens,
			Expired: c.expire,
		},
	}
	return c, nil
}

// HTTPClient returns an http.Client that authenticates with the current
// session, for calls to endpoints this package does not wrap.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// User returns the signed-in user, or nil.
func (c *Client) User() *User {
	session, err := c.store.Load()
	if err != nil || !session.Complete() {
		return nil
	}
	return session.User
}

func (c *Client) IsAuthenticated() bool {
	return c.User() != nil
}

// Init restores a stored session. An expired access token is renewed before
// the stored user is trusted; when that fails the session is dropped without
// a notice.
func (c *Client) Init(ctx context.Context) (*User, error) {
	session, err := c.store.Load()
	if err != nil {
		c.log.Warn().Err(err).Msg("load stored session")
		return nil, c.store.Clear()
	}
	if !session.Complete() {
		return nil, nil
	}
	if !c.expired(session.AccessToken) {
		return session.User, nil
	}

	if err := c.refreshTokens(ctx); err != nil {
		c.log.Debug().Err(err).Msg("stored session could not be renewed")
		return nil, c.store.Clear()
	}
	user, err := c.fetchProfile(ctx)
	if err != nil {
		c.log.Debug().Err(err).Msg("load profile after renewal")
		return nil, c.store.Clear()
	}
	return user, nil
}

// expired reads exp without checking the signature; the server remains the
// judge of validity. Unparseable tokens count as expired.
func (c *Client) expired(token string) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.After(c.now())
}

type authPayload struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var out authPayload
	err := c.call(ctx, c.raw, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		c.fail(err, "Login failed. Please try again.")
		return nil, err
	}
	if err := c.signIn(out); err != nil {
		return nil, err
	}
	c.succeed("Login successful!")
	return &out.User, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var out authPayload
	if err := c.call(ctx, c.raw, http.MethodPost, "/auth/register", req, &out); err != nil {
		c.fail(err, "Registration failed. Please try again.")
		return nil, err
	}
	if err := c.signIn(out); err != nil {
		return nil, err
	}
	c.succeed("Registration successful! Welcome to PropEase!")
	return &out.User, nil
}

// Logout revokes the stored refresh token on the server when it can and
// always ends the local session.
func (c *Client) Logout(ctx context.Context) error {
	session, err := c.store.Load()
	if err == nil && session.RefreshToken != "" {
		body := map[string]string{"refreshToken": session.RefreshToken}
		if err := c.call(ctx, c.http, http.MethodPost, "/auth/logout", body, nil); err != nil {
			c.log.Debug().Err(err).Msg("server logout failed")
		}
	}
	if err := c.endSession(); err != nil {
		return err
	}
	c.succeed("Logged out successfully")
	return nil
}

func (c *Client) LogoutAll(ctx context.Context) error {
	if err := c.call(ctx, c.http, http.MethodPost, "/auth/logout-all", nil, nil); err != nil {
		c.fail(err, "Failed to logout from all devices")
		return err
	}
	if err := c.endSession(); err != nil {
		return err
	}
	c.succeed("Logged out from all devices successfully")
	return nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	if err := c.call(ctx, c.raw, http.MethodPost, "/auth/forgot-password", map[string]string{"email": email}, nil); err != nil {
		c.fail(err, "Failed to send password reset email")
		return err
	}
	c.succeed("If an account with that email exists, a password reset link has been sent.")
	return nil
}

func (c *Client) ResetPassword(ctx context.Context, token, password, confirmPassword string) error {
	err := c.call(ctx, c.raw, http.MethodPost, "/auth/reset-password", map[string]string{
		"token":           token,
		"password":        password,
		"confirmPassword": confirmPassword,
	}, nil)
	if err != nil {
		c.fail(err, "Failed to reset password")
		return err
	}
	c.succeed("Password reset successfully! You can now log in with your new password.")
	return nil
}

// ChangePassword ends the local session on success since the server has
// revoked every refresh token.
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword, confirmPassword string) error {
	err := c.call(ctx, c.http, http.MethodPost, "/auth/change-password", map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
		"confirmPassword": confirmPassword,
	}, nil)
	if err != nil {
		c.fail(err, "Failed to change password")
		return err
	}
	c.succeed("Password changed successfully! Please log in again.")
	return c.endSession()
}

// RefreshUser reloads the profile. Failure ends the session.
func (c *Client) RefreshUser(ctx context.Context) (*User, error) {
	user, err := c.fetchProfile(ctx)
	if err != nil {
		c.log.Debug().Err(err).Msg("refresh user")
		if endErr := c.endSession(); endErr != nil {
			return nil, endErr
		}
		return nil, err
	}
	return user, nil
}

func (c *Client) fetchProfile(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.call(ctx, c.http, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	session, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	session.User = &out.User
	if err := c.store.Save(session); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// refreshTokens trades the stored refresh token for a new pair. It bypasses
// the retrying transport.
func (c *Client) refreshTokens(ctx context.Context) error {
	session, err := c.store.Load()
	if err != nil {
		return err
	}
	if session.RefreshToken == "" {
		return ErrNoSession
	}

	var out struct {
		Tokens Tokens `json:"tokens"`
	}
	body := map[string]string{"refreshToken": session.RefreshToken}
	if err := c.call(ctx, c.raw, http.MethodPost, "/auth/refresh", body, &out); err != nil {
		return err
	}
	session.AccessToken = out.Tokens.AccessToken
	session.RefreshToken = out.Tokens.RefreshToken
	return c.store.Save(session)
}

func (c *Client) signIn(out authPayload) error {
	return c.store.Save(Session{
		AccessToken:  out.Tokens.AccessToken,
		RefreshToken: out.Tokens.RefreshToken,
		User:         &out.User,
	})
}

// expire is the transport's reaction to a refresh that failed.
func (c *Client) expire() {
	if err := c.endSession(); err != nil {
		c.log.Warn().Err(err).Msg("clear expired session")
	}
}

// endSession clears the store. OnLoggedOut runs only when there was a
// session to end, so overlapping calls report the logout once.
func (c *Client) endSession() error {
	c.endMu.Lock()
	defer c.endMu.Unlock()

	session, loadErr := c.store.Load()
	if err := c.store.Clear(); err != nil {
		return err
	}
	active := loadErr != nil || session.AccessToken != "" || session.RefreshToken != "" || session.User != nil
	if active && c.onLoggedOut != nil {
		c.onLoggedOut()
	}
	return nil
}

func (c *Client) succeed(message string) {
	c.notifier.Notify(Notice{Level: LevelSuccess, Message: message})
}

// fail reports the server's message when there is one, else fallback.
func (c *Client) fail(err error, fallback string) {
	message := fallback
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		message = apiErr.Message
	}
	c.notifier.Notify(Notice{Level: LevelError, Message: message})
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, hc *http.Client, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&env); err != nil {
		return &APIError{Status: resp.StatusCode, Code: "BAD_RESPONSE", Message: ""}
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}
