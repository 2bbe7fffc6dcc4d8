package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/snaptranslate/auth-service/internal/autherr"
	"github.com/snaptranslate/auth-service/internal/models"
)

func (s *Store) InsertRefresh(ctx context.Context, jti, subject string) error {
	record := models.RefreshToken{JTI: jti, Subject: subject}
	return s.DB.WithContext(ctx).Create(&record).Error
}

func (s *Store) FindRefreshByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	var record models.RefreshToken
	if err := s.DB.WithContext(ctx).Where("jti = ?", jti).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// DeleteRefreshByJTI returns how many rows were removed. Zero means the
// jti was already consumed or never issued; the registry turns that
// into the replay rejection.
func (s *Store) DeleteRefreshByJTI(ctx context.Context, jti string) (int64, error) {
	result := s.DB.WithContext(ctx).Where("jti = ?", jti).Delete(&models.RefreshToken{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
