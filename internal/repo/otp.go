package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/snaptranslate/auth-service/internal/autherr"
	"github.com/snaptranslate/auth-service/internal/models"
)

func (s *Store) FindChallenge(ctx context.Context, email, purpose string) (*models.OTPChallenge, error) {
	return s.findChallenge(ctx, email, purpose, false)
}

// FindChallengeLocked takes a row lock on the challenge so concurrent
// resend requests serialize on the cooldown check. Must run inside
// WithTx.
func (s *Store) FindChallengeLocked(ctx context.Context, email, purpose string) (*models.OTPChallenge, error) {
	return s.findChallenge(ctx, email, purpose, true)
}

func (s *Store) findChallenge(ctx context.Context, email, purpose string, lock bool) (*models.OTPChallenge, error) {
	var challenge models.OTPChallenge
	q := s.DB.WithContext(ctx)
	// sqlite has no FOR UPDATE and serializes writers on its own; the
	// row lock only matters on postgres.
	if lock && s.DB.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("email = ? AND purpose = ?", email, purpose).First(&challenge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrNotFound
		}
		return nil, err
	}
	return &challenge, nil
}

// UpsertChallenge replaces the single live challenge for the
// (email, purpose) pair in place. A replaced code can never verify
// again because only the stored row is consulted.
func (s *Store) UpsertChallenge(ctx context.Context, challenge *models.OTPChallenge) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}, {Name: "purpose"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"code", "username", "password_hash", "created_at", "last_sent_at",
		}),
	}).Create(challenge).Error
}

// DeleteChallenge tolerates a missing row.
func (s *Store) DeleteChallenge(ctx context.Context, email, purpose string) error {
	return s.DB.WithContext(ctx).
		Where("email = ? AND purpose = ?", email, purpose).
		Delete(&models.OTPChallenge{}).Error
}
