// Package repo is the gorm-backed persistence layer. Every store
// method takes a context and reports not-found and duplicate rows in
// the autherr taxonomy; callers never see gorm errors.
package repo

import (
	"context"

	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{DB: db} }

// WithTx runs fn against a transactional view of the store. It is the
// single arbitration point for the compare-and-delete semantics the
// refresh registry and the OTP cooldown need.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{DB: tx})
	})
}
