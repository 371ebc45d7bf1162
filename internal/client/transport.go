package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"
)

// ErrNoSession means there is no refresh token to renew the session with.
var ErrNoSession = errors.New("client: not signed in")

type retryKey struct{}

// Transport attaches the stored access token to every request. A 401 on a
// request that is neither a retry nor the refresh call triggers one token
// refresh, shared by all requests failing at the same time, and one retry.
type Transport struct {
	Base  http.RoundTripper
	Store TokenStore
	// Refresh renews the stored tokens.
	Refresh func(ctx context.Context) error
	// Expired runs once after the server rejects a refresh.
	Expired func()

	group singleflight.Group
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	session, err := t.Store.Load()
	if err != nil {
		return nil, err
	}

	resp, err := t.base().RoundTrip(authorize(req, session.AccessToken))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Context().Value(retryKey{}) != nil || isRefreshCall(req) || session.RefreshToken == "" {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// The body is gone and cannot be sent again.
		return resp, nil
	}

	if err := t.renew(req.Context(), session.AccessToken); err != nil {
		return resp, nil
	}

	retry := req.Clone(context.WithValue(req.Context(), retryKey{}, true))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	drain(resp)

	session, err = t.Store.Load()
	if err != nil {
		return nil, err
	}
	return t.base().RoundTrip(authorize(retry, session.AccessToken))
}

// renew refreshes unless another request already replaced stale.
func (t *Transport) renew(ctx context.Context, stale string) error {
	_, err, _ := t.group.Do("refresh", func() (any, error) {
		session, err := t.Store.Load()
		if err != nil {
			return nil, err
		}
		if session.AccessToken == "" {
			return nil, ErrNoSession
		}
		if session.AccessToken != stale {
			return nil, nil
		}
		// Waiters share this refresh, so one caller going away must not
		// abort it. The refresh client carries its own timeout.
		if err := t.Refresh(context.WithoutCancel(ctx)); err != nil {
			if t.Expired != nil && rejected(err) {
				t.Expired()
			}
			return nil, err
		}
		return nil, nil
	})
	return err
}

// rejected reports whether the server refused the refresh token, as opposed
// to the refresh not getting through.
func rejected(err error) bool {
	if errors.Is(err, ErrNoSession) {
		return true
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status >= http.StatusBadRequest &&
		apiErr.Status < http.StatusInternalServerError &&
		apiErr.Status != http.StatusTooManyRequests
}

func authorize(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return out
}

func isRefreshCall(req *http.Request) bool {
	return strings.HasSuffix(req.URL.Path, "/auth/refresh")
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
