// Package otp manages the one-time-code challenges behind email
// verification and password reset. One live challenge exists per
// (email, purpose); requesting again replaces it in place, rate-limited
// by a resend cooldown.
package otp

import (
	"context"
	"errors"
	"time"

	"github.com/snaptranslate/auth-service/internal/autherr"
	"github.com/snaptranslate/auth-service/internal/logging"
	"github.com/snaptranslate/auth-service/internal/models"
	"github.com/snaptranslate/auth-service/internal/notify"
	"github.com/snaptranslate/auth-service/internal/repo"
)

const (
	CodeLength     = 6
	TTL            = 10 * time.Minute
	ResendCooldown = 60 * time.Second
)

type Manager struct {
	Store    *repo.Store
	Notifier notify.Notifier

	// Now is swappable for expiry/cooldown tests.
	Now func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Request upserts a fresh challenge and dispatches its code. The
// username and passwordHash are stored only for the register purpose,
// where the challenge carries the provisional account. The challenge is
// persisted before dispatch, so a failed send (returned wrapping
// autherr.ErrNotifier) still leaves a code the user can have re-sent.
func (m *Manager) Request(ctx context.Context, email, purpose, username, passwordHash string) error {
	l := logging.FromContext(ctx).With("svc", "otp.request", "purpose", purpose)

	code, err := generateCode(CodeLength)
	if err != nil {
		return autherr.Internal("generate code", err)
	}

	// The cooldown read and the upsert share one transaction (with a
	// row lock on postgres), so concurrent resends serialize and
	// exactly one wins the window.
	err = m.Store.WithTx(ctx, func(tx *repo.Store) error {
		existing, err := tx.FindChallengeLocked(ctx, email, purpose)
		if err != nil && !errors.Is(err, autherr.ErrNotFound) {
			return err
		}
		now := m.now()
		if existing != nil && now.Sub(existing.LastSentAt) < ResendCooldown {
			remaining := int(ResendCooldown.Seconds()) - int(now.Sub(existing.LastSentAt).Seconds())
			return &autherr.RateLimitedError{RetryAfter: remaining}
		}
		return tx.UpsertChallenge(ctx, &models.OTPChallenge{
			Email:        email,
			Purpose:      purpose,
			Code:         code,
			Username:     username,
			PasswordHash: passwordHash,
			CreatedAt:    now,
			LastSentAt:   now,
		})
	})
	if err != nil {
		return err
	}

	subject, body := mailFor(purpose, code)
	if err := m.Notifier.Send(ctx, email, subject, body); err != nil {
		l.Warn("otp_dispatch_failed", "error", err)
		return err
	}
	l.Info("otp_dispatched")
	return nil
}

// Verify checks the code without consuming it, so a pre-check step can
// precede the terminal action. An expired record is deleted on sight; a
// mismatched code keeps the record so the user may retry within the
// window.
func (m *Manager) Verify(ctx context.Context, email, purpose, code string) (*models.OTPChallenge, error) {
	challenge, err := m.Store.FindChallenge(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return nil, autherr.ErrNoChallenge
		}
		return nil, err
	}

	if m.now().After(challenge.CreatedAt.Add(TTL)) {
		if err := m.Store.DeleteChallenge(ctx, email, purpose); err != nil {
			return nil, err
		}
		return nil, autherr.ErrOTPExpired
	}

	if challenge.Code != code {
		return nil, autherr.ErrOTPMismatch
	}
	return challenge, nil
}

// Consume deletes the challenge once its terminal action completed.
func (m *Manager) Consume(ctx context.Context, email, purpose string) error {
	return m.Store.DeleteChallenge(ctx, email, purpose)
}

func mailFor(purpose, code string) (subject, body string) {
	if purpose == models.PurposeResetPassword {
		return notify.ResetMail(code)
	}
	return notify.VerificationMail(code)
}
