package registry

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/snaptranslate/auth-service/internal/autherr"
	"github.com/snaptranslate/auth-service/internal/models"
	"github.com/snaptranslate/auth-service/internal/repo"
	"github.com/snaptranslate/auth-service/internal/tokens"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.RefreshToken{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return &Registry{
		Store: repo.New(db),
		Issuer: &tokens.Issuer{
			AccessSecret:  []byte("test-access-secret"),
			RefreshSecret: []byte("test-refresh-secret"),
		},
	}
}

func TestRegistry_IssueWhitelists(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	token, jti, err := reg.Issue(ctx, "e@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	record, err := reg.Store.FindRefreshByJTI(ctx, jti)
	require.NoError(t, err)
	assert.Equal(t, "e@x.com", record.Subject)

	claims, err := reg.Issuer.VerifyRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, jti, claims.ID)
}

func TestRegistry_RotateConsumesOldJTI(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	_, jti, err := reg.Issue(ctx, "e@x.com")
	require.NoError(t, err)

	newToken, newJTI, err := reg.Rotate(ctx, jti, "e@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, newToken)
	assert.NotEqual(t, jti, newJTI)

	_, err = reg.Store.FindRefreshByJTI(ctx, jti)
	assert.ErrorIs(t, err, autherr.ErrNotFound)

	_, err = reg.Store.FindRefreshByJTI(ctx, newJTI)
	require.NoError(t, err)
}

func TestRegistry_RotateReplayFails(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	_, jti, err := reg.Issue(ctx, "e@x.com")
	require.NoError(t, err)

	_, _, err = reg.Rotate(ctx, jti, "e@x.com")
	require.NoError(t, err)

	// Replaying the consumed jti must fail even though the old token
	// would still pass signature and expiry checks.
	_, _, err = reg.Rotate(ctx, jti, "e@x.com")
	assert.ErrorIs(t, err, autherr.ErrUnauthorized)
}

func TestRegistry_RotateUnknownJTI(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	_, _, err := reg.Rotate(context.Background(), "never-issued", "e@x.com")
	assert.ErrorIs(t, err, autherr.ErrUnauthorized)
}

func TestRegistry_RevokeIdempotent(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	_, jti, err := reg.Issue(ctx, "e@x.com")
	require.NoError(t, err)

	require.NoError(t, reg.Revoke(ctx, jti))
	require.NoError(t, reg.Revoke(ctx, jti))

	_, err = reg.Store.FindRefreshByJTI(ctx, jti)
	assert.ErrorIs(t, err, autherr.ErrNotFound)
}
