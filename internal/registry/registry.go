// Package registry is the whitelist authority for refresh tokens. A
// signed refresh token is usable only while its jti still has a row
// here; signatures alone cannot express single-use, so rotation and
// revocation come down to rows appearing and disappearing.
package registry

import (
	"context"

	"github.com/snaptranslate/auth-service/internal/autherr"
	"github.com/snaptranslate/auth-service/internal/repo"
	"github.com/snaptranslate/auth-service/internal/tokens"
)

type Registry struct {
	Store  *repo.Store
	Issuer *tokens.Issuer
}

// Issue mints a refresh token with a fresh jti and whitelists it.
func (r *Registry) Issue(ctx context.Context, subject string) (string, string, error) {
	jti := tokens.NewJTI()
	token, err := r.Issuer.IssueRefresh(subject, jti)
	if err != nil {
		return "", "", err
	}
	if err := r.Store.InsertRefresh(ctx, jti, subject); err != nil {
		return "", "", err
	}
	return token, jti, nil
}

// Rotate consumes oldJTI and whitelists a replacement in one atomic
// unit. The delete removing zero rows is the replay signal: the token
// was already used once (or never issued), so two concurrent rotations
// of the same stale token cannot both succeed.
func (r *Registry) Rotate(ctx context.Context, oldJTI, subject string) (string, string, error) {
	newJTI := tokens.NewJTI()
	token, err := r.Issuer.IssueRefresh(subject, newJTI)
	if err != nil {
		return "", "", err
	}

	err = r.Store.WithTx(ctx, func(tx *repo.Store) error {
		rows, err := tx.DeleteRefreshByJTI(ctx, oldJTI)
		if err != nil {
			return err
		}
		if rows == 0 {
			return autherr.ErrUnauthorized
		}
		return tx.InsertRefresh(ctx, newJTI, subject)
	})
	if err != nil {
		return "", "", err
	}
	return token, newJTI, nil
}

// Revoke tolerates an already-missing record so logout stays
// idempotent.
func (r *Registry) Revoke(ctx context.Context, jti string) error {
	_, err := r.Store.DeleteRefreshByJTI(ctx, jti)
	return err
}
