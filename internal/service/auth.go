// Package service is the auth orchestrator. It composes the credential
// store, OTP manager, token issuer and refresh registry into the
// user-facing flows, and is the only layer that wraps collaborator
// failures into the autherr taxonomy.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/snaptranslate/auth-service/internal/autherr"
	"github.com/snaptranslate/auth-service/internal/events"
	"github.com/snaptranslate/auth-service/internal/hash"
	"github.com/snaptranslate/auth-service/internal/logging"
	"github.com/snaptranslate/auth-service/internal/models"
	"github.com/snaptranslate/auth-service/internal/otp"
	"github.com/snaptranslate/auth-service/internal/registry"
	"github.com/snaptranslate/auth-service/internal/repo"
	"github.com/snaptranslate/auth-service/internal/stats"
	"github.com/snaptranslate/auth-service/internal/tokens"
)

type AuthService struct {
	Store    *repo.Store
	Issuer   *tokens.Issuer
	Registry *registry.Registry
	OTP      *otp.Manager

	// Events and Stats are optional collaborators; a nil value just
	// disables them.
	Events events.Publisher
	Stats  stats.Store
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Register starts the Unregistered -> PendingOTP transition: it
// validates input, checks email/username uniqueness against existing
// users, and parks the provisional account on a register challenge. No
// User row is created until the code verifies.
func (s *AuthService) Register(ctx context.Context, email, username, password string) error {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if err := validateEmail(email); err != nil {
		return err
	}
	if username == "" {
		return autherr.Validation("username", "must not be empty")
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	if _, err := s.Store.FindUserByEmail(ctx, email); err == nil {
		return fmt.Errorf("email %w", autherr.ErrConflict)
	} else if !errors.Is(err, autherr.ErrNotFound) {
		return autherr.Internal("find user by email", err)
	}
	if _, err := s.Store.FindUserByUsername(ctx, username); err == nil {
		return fmt.Errorf("username %w", autherr.ErrConflict)
	} else if !errors.Is(err, autherr.ErrNotFound) {
		return autherr.Internal("find user by username", err)
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return autherr.Internal("hash password", err)
	}

	err = s.OTP.Request(ctx, email, models.PurposeRegister, username, pwHash)
	if err != nil {
		// The challenge is stored even when dispatch fails, so the
		// user can ask for a resend; registration itself succeeds.
		if errors.Is(err, autherr.ErrNotifier) {
			l.Error("register_otp_dispatch_failed", "error", err)
			return nil
		}
		return err
	}

	l.Info("register_challenge_created")
	return nil
}

// VerifyEmail completes registration: on a matching code the User row
// is created verified, the challenge is consumed, and the new account
// is logged in on the spot.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.verify_email")

	challenge, err := s.OTP.Verify(ctx, email, models.PurposeRegister, code)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        challenge.Email,
		Username:     challenge.Username,
		PasswordHash: challenge.PasswordHash,
		Roles:        []string{"user"},
		IsVerified:   true,
	}
	if err := s.Store.InsertUser(ctx, &user); err != nil {
		if errors.Is(err, autherr.ErrConflict) {
			return nil, err
		}
		return nil, autherr.Internal("insert user", err)
	}

	if err := s.OTP.Consume(ctx, email, models.PurposeRegister); err != nil {
		return nil, autherr.Internal("consume challenge", err)
	}

	pair, err := s.issuePair(ctx, user.Email, user.Roles)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.UserEvent{
		Type:     events.TypeUserRegistered,
		Email:    user.Email,
		Username: user.Username,
	})
	l.Info("user_verified")
	return pair, nil
}

// Login accepts an email address or username as the identifier. Every
// failure mode maps to the same invalid-credentials error so callers
// cannot probe which accounts exist.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if identifier == "" || password == "" {
		return nil, autherr.ErrInvalidCredentials
	}

	user, err := s.Store.FindUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return nil, autherr.ErrInvalidCredentials
		}
		return nil, autherr.Internal("find user", err)
	}
	if user.IsBanned {
		l.Warn("login_rejected_banned")
		return nil, autherr.ErrInvalidCredentials
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, autherr.ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user.Email, user.Roles)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.UserEvent{
		Type:     events.TypeUserLoggedIn,
		Email:    user.Email,
		Username: user.Username,
	})
	l.Info("login_successful")
	return pair, nil
}

// Refresh rotates a refresh token: cryptographic and temporal checks
// first, then the registry consumes the old jti. Any failure is the
// same Unauthorized; the caller must re-authenticate. Roles on the new
// access token are re-read from the user so role changes take effect at
// the next rotation.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := s.Issuer.VerifyRefresh(rawRefresh)
	if err != nil {
		l.Warn("refresh_rejected", "reason", err.Error())
		return nil, autherr.ErrUnauthorized
	}

	user, err := s.Store.FindUserByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return nil, autherr.ErrUnauthorized
		}
		return nil, autherr.Internal("find user", err)
	}
	if user.IsBanned {
		return nil, autherr.ErrUnauthorized
	}

	newRefresh, _, err := s.Registry.Rotate(ctx, claims.ID, claims.Subject)
	if err != nil {
		if errors.Is(err, autherr.ErrUnauthorized) {
			l.Warn("refresh_replay_rejected")
			return nil, autherr.ErrUnauthorized
		}
		return nil, autherr.Internal("rotate refresh token", err)
	}

	access, err := s.Issuer.IssueAccess(user.Email, user.Roles)
	if err != nil {
		return nil, autherr.Internal("issue access token", err)
	}

	l.Info("refresh_successful")
	return &TokenPair{AccessToken: access, RefreshToken: newRefresh}, nil
}

// Logout revokes the refresh token's jti when the token is present and
// parseable, and reports success either way; the transport clears the
// cookie regardless.
func (s *AuthService) Logout(ctx context.Context, rawRefresh string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if rawRefresh == "" {
		return nil
	}
	claims, err := s.Issuer.VerifyRefresh(rawRefresh)
	if err != nil {
		l.Warn("logout_with_unusable_token", "reason", err.Error())
		return nil
	}
	if err := s.Registry.Revoke(ctx, claims.ID); err != nil {
		return autherr.Internal("revoke refresh token", err)
	}
	l.Info("logout_successful")
	return nil
}

func (s *AuthService) issuePair(ctx context.Context, subject string, roles []string) (*TokenPair, error) {
	access, err := s.Issuer.IssueAccess(subject, roles)
	if err != nil {
		return nil, autherr.Internal("issue access token", err)
	}
	refresh, _, err := s.Registry.Issue(ctx, subject)
	if err != nil {
		return nil, autherr.Internal("issue refresh token", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) publish(ctx context.Context, event events.UserEvent) {
	if s.Events == nil {
		return
	}
	event.At = time.Now()

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Events.Publish(pubCtx, event.Email, event); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "type", event.Type, "error", err)
	}
}
