package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/snaptranslate/auth-service/internal/autherr"
	"github.com/snaptranslate/auth-service/internal/events"
	"github.com/snaptranslate/auth-service/internal/models"
	"github.com/snaptranslate/auth-service/internal/otp"
	"github.com/snaptranslate/auth-service/internal/registry"
	"github.com/snaptranslate/auth-service/internal/repo"
	"github.com/snaptranslate/auth-service/internal/tokens"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string // mail bodies
	fail bool
}

func (f *fakeNotifier) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return autherr.ErrNotifier
	}
	f.sent = append(f.sent, body)
	return nil
}

var codeRe = regexp.MustCompile(`\b([0-9]{6})\b`)

func (f *fakeNotifier) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	match := codeRe.FindStringSubmatch(f.sent[len(f.sent)-1])
	require.NotNil(t, match)
	return match[1]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.UserEvent
}

func (f *fakePublisher) Publish(_ context.Context, _ string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ue, ok := event.(events.UserEvent); ok {
		f.events = append(f.events, ue)
	}
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*AuthService, *fakeNotifier, *fakePublisher, *testClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.OTPChallenge{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	store := repo.New(db)
	issuer := &tokens.Issuer{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	clock := &testClock{now: time.Now()}

	svc := &AuthService{
		Store:    store,
		Issuer:   issuer,
		Registry: &registry.Registry{Store: store, Issuer: issuer},
		OTP:      &otp.Manager{Store: store, Notifier: notifier, Now: clock.Now},
		Events:   publisher,
	}
	return svc, notifier, publisher, clock
}

func TestRegisterVerifyScenario(t *testing.T) {
	t.Parallel()

	svc, notifier, publisher, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "e@x.com", "user1", "Passw0rd!"))
	code := notifier.lastCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "111111"
	}
	_, err := svc.VerifyEmail(ctx, "e@x.com", wrong)
	assert.ErrorIs(t, err, autherr.ErrOTPMismatch)

	// No user yet; the mismatch kept the challenge alive.
	_, err = svc.Store.FindUserByEmail(ctx, "e@x.com")
	assert.ErrorIs(t, err, autherr.ErrNotFound)

	pair, err := svc.VerifyEmail(ctx, "e@x.com", code)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	user, err := svc.Store.FindUserByEmail(ctx, "e@x.com")
	require.NoError(t, err)
	assert.True(t, user.IsVerified)
	assert.Equal(t, "user1", user.Username)
	assert.Equal(t, []string{"user"}, user.Roles)

	claims, err := svc.Issuer.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "e@x.com", claims.Subject)
	assert.Equal(t, []string{"user"}, claims.Roles)

	// Challenge consumed: the code is single-use.
	_, err = svc.VerifyEmail(ctx, "e@x.com", code)
	assert.ErrorIs(t, err, autherr.ErrNoChallenge)

	assert.Contains(t, publisher.types(), events.TypeUserRegistered)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		username string
		password string
	}{
		{name: "bad email", email: "not-an-email", username: "user1", password: "Passw0rd!"},
		{name: "empty username", email: "e@x.com", username: "", password: "Passw0rd!"},
		{name: "short password", email: "e@x.com", username: "user1", password: "Pa0!"},
		{name: "no upper", email: "e@x.com", username: "user1", password: "passw0rd!"},
		{name: "no digit", email: "e@x.com", username: "user1", password: "Password!"},
		{name: "no symbol", email: "e@x.com", username: "user1", password: "Passw0rd1"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := svc.Register(ctx, tt.email, tt.username, tt.password)
			var ve *autherr.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestRegisterConflicts(t *testing.T) {
	t.Parallel()

	svc, notifier, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "e@x.com", "user1", "Passw0rd!"))
	_, err := svc.VerifyEmail(ctx, "e@x.com", notifier.lastCode(t))
	require.NoError(t, err)

	err = svc.Register(ctx, "e@x.com", "other", "Passw0rd!")
	assert.ErrorIs(t, err, autherr.ErrConflict)

	err = svc.Register(ctx, "other@x.com", "user1", "Passw0rd!")
	assert.ErrorIs(t, err, autherr.ErrConflict)
}

func TestRegisterDispatchFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	svc, notifier, _, _ := newTestService(t)
	notifier.fail = true
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "e@x.com", "user1", "Passw0rd!"))

	// The challenge exists even though no mail went out.
	challenge, err := svc.Store.FindChallenge(ctx, "e@x.com", models.PurposeRegister)
	require.NoError(t, err)
	assert.NotEmpty(t, challenge.Code)
}

func registerAndVerify(t *testing.T, svc *AuthService, notifier *fakeNotifier, email, username, password string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, email, username, password))
	_, err := svc.VerifyEmail(ctx, email, notifier.lastCode(t))
	require.NoError(t, err)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	svc, notifier, publisher, _ := newTestService(t)
	ctx := context.Background()
	registerAndVerify(t, svc, notifier, "e@x.com", "user1", "Passw0rd!")

	// Either identifier works.
	for _, identifier := range []string{"e@x.com", "user1"} {
		pair, err := svc.Login(ctx, identifier, "Passw0rd!")
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
	}

	_, err := svc.Login(ctx, "e@x.com", "WrongPass1!")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)

	// Unknown user gets the same error as a wrong password.
	_, err = svc.Login(ctx, "nobody@x.com", "Passw0rd!")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)

	assert.Contains(t, publisher.types(), events.TypeUserLoggedIn)
}

func TestLoginBanned(t *testing.T) {
	t.Parallel()

	svc, notifier, _, _ := newTestService(t)
	ctx := context.Background()
	registerAndVerify(t, svc, notifier, "e@x.com", "user1", "Passw0rd!")

	banned := true
	require.NoError(t, svc.UpdateUser(ctx, "e@x.com", &banned, nil))

	_, err := svc.Login(ctx, "e@x.com", "Passw0rd!")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
}

func TestRefreshRotationAndReplay(t *testing.T) {
	t.Parallel()

	svc, notifier, _, _ := newTestService(t)
	ctx := context.Background()
	registerAndVerify(t, svc, notifier, "e@x.com", "user1", "Passw0rd!")

	pair, err := svc.Login(ctx, "e@x.com", "Passw0rd!")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The consumed token is dead even though its signature is fine.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrUnauthorized)

	// The replacement still works.
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsWrongInputs(t *testing.T) {
	t.Parallel()

	svc, notifier, _, _ := newTestService(t)
	ctx := context.Background()
	registerAndVerify(t, svc, notifier, "e@x.com", "user1", "Passw0rd!")

	pair, err := svc.Login(ctx, "e@x.com", "Passw0rd!")
	require.NoError(t, err)

	// An access token is not a refresh token.
	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, autherr.ErrUnauthorized)

	_, err = svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, autherr.ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	svc, notifier, _, _ := newTestService(t)
	ctx := context.Background()
	registerAndVerify(t, svc, notifier, "e@x.com", "user1", "Passw0rd!")

	pair, err := svc.Login(ctx, "e@x.com", "Passw0rd!")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrUnauthorized)

	// Best effort: unusable tokens still log out cleanly.
	require.NoError(t, svc.Logout(ctx, "garbage"))
	require.NoError(t, svc.Logout(ctx, ""))
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()

	svc, notifier, publisher, _ := newTestService(t)
	ctx := context.Background()
	registerAndVerify(t, svc, notifier, "e@x.com", "user1", "Passw0rd!")

	err := svc.RequestPasswordReset(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, autherr.ErrNotFound)

	require.NoError(t, svc.RequestPasswordReset(ctx, "e@x.com"))
	code := notifier.lastCode(t)

	// The pre-check does not consume the code.
	require.NoError(t, svc.VerifyPasswordResetOTP(ctx, "e@x.com", code))

	// Reusing the current password is rejected and the hash stays put.
	err = svc.ResetPassword(ctx, "e@x.com", code, "Passw0rd!")
	assert.ErrorIs(t, err, autherr.ErrPasswordReuse)
	_, err = svc.Login(ctx, "e@x.com", "Passw0rd!")
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, "e@x.com", code, "NewPassw0rd!"))

	_, err = svc.Login(ctx, "e@x.com", "Passw0rd!")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "e@x.com", "NewPassw0rd!")
	require.NoError(t, err)

	// The challenge was consumed by the successful reset.
	err = svc.ResetPassword(ctx, "e@x.com", code, "AnotherPassw0rd1!")
	assert.ErrorIs(t, err, autherr.ErrNoChallenge)

	assert.Contains(t, publisher.types(), events.TypePasswordReset)
}

func TestPasswordResetDispatchFailureIsFatal(t *testing.T) {
	t.Parallel()

	svc, notifier, _, _ := newTestService(t)
	ctx := context.Background()
	registerAndVerify(t, svc, notifier, "e@x.com", "user1", "Passw0rd!")

	notifier.fail = true
	err := svc.RequestPasswordReset(ctx, "e@x.com")
	require.Error(t, err)
	assert.True(t, autherr.IsInternal(err))
}

func TestPasswordResetExpiredCode(t *testing.T) {
	t.Parallel()

	svc, notifier, _, clock := newTestService(t)
	ctx := context.Background()
	registerAndVerify(t, svc, notifier, "e@x.com", "user1", "Passw0rd!")

	require.NoError(t, svc.RequestPasswordReset(ctx, "e@x.com"))
	code := notifier.lastCode(t)

	clock.Advance(10*time.Minute + time.Second)
	err := svc.ResetPassword(ctx, "e@x.com", code, "NewPassw0rd!")
	assert.ErrorIs(t, err, autherr.ErrOTPExpired)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	svc, notifier, _, _ := newTestService(t)
	ctx := context.Background()
	registerAndVerify(t, svc, notifier, "e@x.com", "user1", "Passw0rd!")

	err := svc.ChangePassword(ctx, "e@x.com", "WrongOld1!", "NewPassw0rd!")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, "e@x.com", "Passw0rd!", "weak")
	var ve *autherr.ValidationError
	assert.ErrorAs(t, err, &ve)

	require.NoError(t, svc.ChangePassword(ctx, "e@x.com", "Passw0rd!", "NewPassw0rd!"))
	_, err = svc.Login(ctx, "e@x.com", "NewPassw0rd!")
	require.NoError(t, err)
}

func TestCheckOldPasswordAndAvailability(t *testing.T) {
	t.Parallel()

	svc, notifier, _, _ := newTestService(t)
	ctx := context.Background()
	registerAndVerify(t, svc, notifier, "e@x.com", "user1", "Passw0rd!")

	valid, err := svc.CheckOldPassword(ctx, "e@x.com", "Passw0rd!")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = svc.CheckOldPassword(ctx, "e@x.com", "nope")
	require.NoError(t, err)
	assert.False(t, valid)

	_, err = svc.CheckOldPassword(ctx, "nobody@x.com", "Passw0rd!")
	assert.ErrorIs(t, err, autherr.ErrNotFound)

	available, err := svc.CheckAvailability(ctx, "email", "e@x.com")
	require.NoError(t, err)
	assert.False(t, available)

	available, err = svc.CheckAvailability(ctx, "username", "newcomer")
	require.NoError(t, err)
	assert.True(t, available)

	_, err = svc.CheckAvailability(ctx, "role", "x")
	var ve *autherr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestAdminUpdateAndList(t *testing.T) {
	t.Parallel()

	svc, notifier, _, _ := newTestService(t)
	ctx := context.Background()
	registerAndVerify(t, svc, notifier, "e@x.com", "user1", "Passw0rd!")

	require.NoError(t, svc.UpdateUser(ctx, "e@x.com", nil, []string{"user", "admin"}))

	user, err := svc.Profile(ctx, "e@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "admin"}, user.Roles)

	err = svc.UpdateUser(ctx, "nobody@x.com", nil, []string{"user"})
	assert.ErrorIs(t, err, autherr.ErrNotFound)

	err = svc.UpdateUser(ctx, "e@x.com", nil, nil)
	var ve *autherr.ValidationError
	assert.ErrorAs(t, err, &ve)

	users, err := svc.ListUsers(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "e@x.com", users[0].Email)
}
