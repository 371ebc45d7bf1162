// Package ratelimit counts failed attempts per policy and key. Callers
// Reserve an attempt before doing work and Refund it when the attempt
// succeeded, so successful requests never use up the budget while concurrent
// failures can never exceed it.
package ratelimit

import (
	"context"
	"time"
)

type Rule struct {
	Name    string
	Limit   int
	Window  time.Duration
	Code    string
	Message string
}

var (
	Login = Rule{
		Name:    "login",
		Limit:   10,
		Window:  15 * time.Minute,
		Code:    "LOGIN_RATE_LIMIT_EXCEEDED",
		Message: "Too many login attempts, please try again later.",
	}
	Registration = Rule{
		Name:    "register",
		Limit:   5,
		Window:  time.Hour,
		Code:    "REGISTRATION_RATE_LIMIT_EXCEEDED",
		Message: "Too many registration attempts, please try again later.",
	}
	PasswordReset = Rule{
		Name:    "password-reset",
		Limit:   3,
		Window:  time.Hour,
		Code:    "PASSWORD_RESET_RATE_LIMIT_EXCEEDED",
		Message: "Too many password reset attempts, please try again later.",
	}
	Refresh = Rule{
		Name:    "refresh",
		Limit:   20,
		Window:  15 * time.Minute,
		Code:    "REFRESH_TOKEN_RATE_LIMIT_EXCEEDED",
		Message: "Too many token refresh attempts, please try again later.",
	}
)

type Status struct {
	// Allowed is set by Reserve when the attempt fit in the budget.
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is how long until the budget is fully or partly restored.
	Reset time.Duration
}

// Exceeded reports whether another attempt must be refused.
func (s Status) Exceeded() bool {
	return s.Remaining <= 0
}

type Limiter interface {
	// Reserve takes one attempt from the budget, or reports Allowed false
	// without taking anything when none is left.
	Reserve(ctx context.Context, rule Rule, key string) (Status, error)
	// Refund returns an attempt taken by Reserve.
	Refund(ctx context.Context, rule Rule, key string) error
}
