package service

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/snaptranslate/auth-service/internal/autherr"
	"github.com/snaptranslate/auth-service/internal/events"
	"github.com/snaptranslate/auth-service/internal/hash"
	"github.com/snaptranslate/auth-service/internal/logging"
	"github.com/snaptranslate/auth-service/internal/models"
)

// RequestPasswordReset sends a reset code to a known account. Unlike
// registration, a failed dispatch is fatal here: the code is the user's
// only path forward.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	l := logging.FromContext(ctx).With("svc", "auth.request_password_reset")

	if _, err := s.Store.FindUserByEmail(ctx, email); err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return autherr.ErrNotFound
		}
		return autherr.Internal("find user", err)
	}

	if err := s.OTP.Request(ctx, email, models.PurposeResetPassword, "", ""); err != nil {
		if errors.Is(err, autherr.ErrNotifier) {
			l.Error("reset_otp_dispatch_failed", "error", err)
			return autherr.Internal("dispatch reset code", err)
		}
		return err
	}
	l.Info("reset_challenge_created")
	return nil
}

// VerifyPasswordResetOTP is the optional pre-check step. It does not
// consume the challenge; the same code stays valid for ResetPassword.
func (s *AuthService) VerifyPasswordResetOTP(ctx context.Context, email, code string) error {
	_, err := s.OTP.Verify(ctx, email, models.PurposeResetPassword, code)
	return err
}

// ResetPassword re-validates the code, enforces the strength policy,
// rejects reuse of the current password, swaps the hash, then consumes
// the challenge.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "auth.reset_password")

	user, err := s.Store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return autherr.ErrNotFound
		}
		return autherr.Internal("find user", err)
	}

	if _, err := s.OTP.Verify(ctx, email, models.PurposeResetPassword, code); err != nil {
		return err
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if hash.CheckPassword(user.PasswordHash, newPassword) {
		return autherr.ErrPasswordReuse
	}

	newHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return autherr.Internal("hash password", err)
	}
	if err := s.Store.UpdateUserFields(ctx, email, map[string]any{"password_hash": newHash}); err != nil {
		return autherr.Internal("update password", err)
	}
	if err := s.OTP.Consume(ctx, email, models.PurposeResetPassword); err != nil {
		return autherr.Internal("consume challenge", err)
	}

	s.publish(ctx, events.UserEvent{Type: events.TypePasswordReset, Email: email})
	l.Info("password_reset_successful")
	return nil
}

// ChangePassword is the logged-in variant: the old password stands in
// for an OTP.
func (s *AuthService) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "auth.change_password")

	user, err := s.Store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return autherr.ErrNotFound
		}
		return autherr.Internal("find user", err)
	}
	if !hash.CheckPassword(user.PasswordHash, oldPassword) {
		return autherr.ErrInvalidCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	newHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return autherr.Internal("hash password", err)
	}
	if err := s.Store.UpdateUserFields(ctx, email, map[string]any{"password_hash": newHash}); err != nil {
		return autherr.Internal("update password", err)
	}
	l.Info("password_changed")
	return nil
}

// CheckOldPassword backs the settings screen's confirmation prompt.
func (s *AuthService) CheckOldPassword(ctx context.Context, email, oldPassword string) (bool, error) {
	user, err := s.Store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return false, autherr.ErrNotFound
		}
		return false, autherr.Internal("find user", err)
	}
	return hash.CheckPassword(user.PasswordHash, oldPassword), nil
}

const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

func validatePassword(pw string) error {
	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	if len(pw) < 8 || !upper || !lower || !digit || !symbol {
		return autherr.Validation("password",
			"must be at least 8 characters with upper and lower case letters, a digit and a symbol")
	}
	return nil
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at+1:], ".") {
		return autherr.Validation("email", "must be a valid email address")
	}
	return nil
}
