package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionmatch/internal/models"
	"visionmatch/internal/utils"
)

func setupAuth(t *testing.T) (*AuthService, *memUsers, *memBlacklist, *utils.TokenManager) {
	t.Helper()
	users := newMemUsers()
	blacklist := &memBlacklist{}
	tokens := utils.NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	return NewAuthService(users, blacklist, tokens, nil), users, blacklist, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, users, _, tokens := setupAuth(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, &models.User{Email: "  Meera@Example.com ", Password: "hunter22", Role: models.RoleCreator})
	require.NoError(t, err)

	claims, err := tokens.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "meera@example.com", claims.Email)
	assert.Equal(t, "creator", claims.Role)

	stored, err := users.FindUserByEmail(ctx, "meera@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, "hunter22", stored.PasswordHash)
	assert.Empty(t, stored.Password)

	_, err = svc.Register(ctx, &models.User{Email: "meera@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.Register(ctx, &models.User{Email: "admin@example.com", Password: "x", Role: "admin"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	user, _, err := svc.Login(ctx, "MEERA@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCreator, user.Role)
	assert.NotNil(t, users.users[user.ID].LastLoginAt)

	_, _, err = svc.Login(ctx, "meera@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotatesAndRevokes(t *testing.T) {
	svc, _, blacklist, _ := setupAuth(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, &models.User{Email: "client@example.com", Password: "secret", Role: models.RoleClient})
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.JTI, next.JTI)

	revoked, err := blacklist.IsBlacklisted(ctx, pair.JTI)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Refresh(ctx, next.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogout(t *testing.T) {
	svc, _, blacklist, _ := setupAuth(t)
	ctx := context.Background()

	require.NoError(t, svc.Logout(ctx, "jti-1"))
	revoked, err := blacklist.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.ErrorIs(t, svc.Logout(ctx, ""), ErrInvalidToken)
}

func TestMe(t *testing.T) {
	svc, users, _, _ := setupAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &models.User{Email: "me@example.com", Password: "secret"})
	require.NoError(t, err)
	stored, err := users.FindUserByEmail(ctx, "me@example.com")
	require.NoError(t, err)

	user, err := svc.Me(ctx, stored.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", user.Email)

	_, err = svc.Me(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Me(ctx, "6f1c2c1e-1111-4b6a-9d0e-2d4c5a6b7c8d")
	assert.ErrorIs(t, err, ErrNotFound)
}
