package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/snaptranslate/auth-service/internal/autherr"
	"github.com/snaptranslate/auth-service/internal/models"
)

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByIdentifier resolves a login identifier that may be either
// an email address or a username.
func (s *Store) FindUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).
		Where("email = ? OR username = ?", identifier, identifier).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) InsertUser(ctx context.Context, user *models.User) error {
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return autherr.ErrConflict
		}
		return err
	}
	return nil
}

// UpdateUserFields applies a partial update keyed by email. Unknown
// emails report ErrNotFound so admin edits cannot silently no-op.
func (s *Store) UpdateUserFields(ctx context.Context, email string, fields map[string]any) error {
	if len(fields) == 0 {
		return autherr.Validation("fields", "nothing to update")
	}
	fields["updated_at"] = time.Now()
	result := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return autherr.ErrNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context, skip, limit int) ([]models.User, error) {
	var users []models.User
	err := s.DB.WithContext(ctx).
		Order("id").
		Offset(skip).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
