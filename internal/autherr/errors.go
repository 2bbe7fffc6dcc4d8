// Package autherr is the error taxonomy shared by every auth layer.
// Store and transport errors are wrapped into these kinds at the
// service boundary; handlers only ever map from here to HTTP codes.
package autherr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("already exists")
	ErrNotFound           = errors.New("not found")

	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrWrongTokenType = errors.New("wrong token type")

	ErrNoChallenge   = errors.New("no pending challenge")
	ErrOTPExpired    = errors.New("otp expired")
	ErrOTPMismatch   = errors.New("otp mismatch")
	ErrPasswordReuse = errors.New("new password matches the old one")

	ErrNotifier = errors.New("notifier dispatch failed")
)

// ValidationError reports user-correctable input problems.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RateLimitedError carries the machine-readable wait until the next
// allowed attempt.
type RateLimitedError struct {
	RetryAfter int // seconds
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %ds", e.RetryAfter)
}

// Internal wraps unexpected store/collaborator failures so callers can
// report a 500-class error without leaking the cause to the client.
func Internal(op string, err error) error {
	return fmt.Errorf("internal: %s: %w", op, err)
}

func IsInternal(err error) bool {
	var ve *ValidationError
	var rl *RateLimitedError
	switch {
	case errors.As(err, &ve), errors.As(err, &rl):
		return false
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrWrongTokenType),
		errors.Is(err, ErrNoChallenge),
		errors.Is(err, ErrOTPExpired),
		errors.Is(err, ErrOTPMismatch),
		errors.Is(err, ErrPasswordReuse):
		return false
	}
	return true
}
