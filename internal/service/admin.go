package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/snaptranslate/auth-service/internal/autherr"
	"github.com/snaptranslate/auth-service/internal/logging"
	"github.com/snaptranslate/auth-service/internal/models"
	"github.com/snaptranslate/auth-service/internal/stats"
)

const defaultListLimit = 50

func (s *AuthService) ListUsers(ctx context.Context, skip, limit int) ([]models.User, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}
	users, err := s.Store.ListUsers(ctx, skip, limit)
	if err != nil {
		return nil, autherr.Internal("list users", err)
	}
	return users, nil
}

// UpdateUser applies admin edits. Nil pointers mean "leave unchanged".
func (s *AuthService) UpdateUser(ctx context.Context, email string, isBanned *bool, roles []string) error {
	l := logging.FromContext(ctx).With("svc", "auth.update_user", "target", email)

	fields := map[string]any{}
	if isBanned != nil {
		fields["is_banned"] = *isBanned
	}
	if roles != nil {
		// The roles column is JSON-serialized; map-based updates bypass
		// gorm's serializer, so encode here.
		encoded, err := json.Marshal(roles)
		if err != nil {
			return autherr.Internal("encode roles", err)
		}
		fields["roles"] = string(encoded)
	}
	if len(fields) == 0 {
		return autherr.Validation("fields", "nothing to update")
	}

	if err := s.Store.UpdateUserFields(ctx, email, fields); err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return autherr.ErrNotFound
		}
		var ve *autherr.ValidationError
		if errors.As(err, &ve) {
			return err
		}
		return autherr.Internal("update user", err)
	}
	l.Info("user_updated")
	return nil
}

// Profile returns the user behind an access token's subject.
func (s *AuthService) Profile(ctx context.Context, email string) (*models.User, error) {
	user, err := s.Store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return nil, autherr.ErrNotFound
		}
		return nil, autherr.Internal("find user", err)
	}
	return user, nil
}

// CheckAvailability reports whether an email or username is still free.
func (s *AuthService) CheckAvailability(ctx context.Context, field, value string) (bool, error) {
	if value == "" {
		return false, autherr.Validation("value", "must not be empty")
	}
	var err error
	switch field {
	case "email":
		_, err = s.Store.FindUserByEmail(ctx, value)
	case "username":
		_, err = s.Store.FindUserByUsername(ctx, value)
	default:
		return false, autherr.Validation("field", "must be email or username")
	}
	if errors.Is(err, autherr.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, autherr.Internal("availability lookup", err)
	}
	return false, nil
}

func (s *AuthService) RecordUsage(ctx context.Context, stat stats.UsageStat) error {
	if s.Stats == nil {
		return autherr.Internal("record usage", errors.New("stats store not configured"))
	}
	if err := s.Stats.Record(ctx, stat); err != nil {
		return autherr.Internal("record usage", err)
	}
	return nil
}

func (s *AuthService) UsageSummary(ctx context.Context) ([]stats.UserSummary, error) {
	if s.Stats == nil {
		return nil, autherr.Internal("usage summary", errors.New("stats store not configured"))
	}
	summary, err := s.Stats.Summary(ctx)
	if err != nil {
		return nil, autherr.Internal("usage summary", err)
	}
	return summary, nil
}
