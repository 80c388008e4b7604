package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthService(store *fakeStore) *AuthService {
	svc := NewAuthService(store, "test-secret", time.Hour, nil)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	store := newFakeStore()
	svc := newTestAuthService(store)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "  Alice@Example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
	assert.NotEmpty(t, token)

	_, _, err = svc.Register(ctx, "alice@example.com", "another password")
	assert.ErrorIs(t, err, domain.ErrUserExists)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	loggedIn, token, err := svc.Login(ctx, "ALICE@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotNil(t, loggedIn.LastLogin)

	p, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.False(t, p.IsAdmin())
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestAuthService(newFakeStore())
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "not-an-email", "long enough")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = svc.Register(ctx, "Bob <bob@example.com>", "long enough")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = svc.Register(ctx, "bob@example.com", "short")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLoginExternalCreatesPasswordlessUser(t *testing.T) {
	store := newFakeStore()
	svc := newTestAuthService(store)
	ctx := context.Background()

	user, token, err := svc.LoginExternal(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Empty(t, user.PasswordHash)

	again, _, err := svc.LoginExternal(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)

	// no password means password login is impossible
	_, _, err = svc.Login(ctx, "carol@example.com", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestParseTokenRejects(t *testing.T) {
	store := newFakeStore()
	svc := newTestAuthService(store)
	user := &domain.User{ID: 1, Email: "a@example.com", Role: domain.RoleAdmin}

	token, expiresAt, err := svc.IssueToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	p, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())

	other := NewAuthService(store, "other-secret", time.Hour, nil)
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ParseToken(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateReloadsUser(t *testing.T) {
	store := newFakeStore()
	svc := newTestAuthService(store)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "dave@example.com", "password123")
	require.NoError(t, err)

	p, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)

	store.users[user.ID].Role = domain.RoleAdmin
	p, err = svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())

	require.NoError(t, store.DeleteUser(ctx, user.ID))
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCreateAdmin(t *testing.T) {
	svc := newTestAuthService(newFakeStore())

	admin, err := svc.CreateAdmin(context.Background(), "root@example.com", "supersecret")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
}
