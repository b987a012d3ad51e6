package auth_test

import (
	"strings"
	"testing"
	"time"

	"securecart/internal/models"
	"securecart/internal/services/auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService(t *testing.T) {
	ts := auth.NewTokenService("test-secret-that-is-long-enough-for-hs256", 7*24*time.Hour)
	user := &models.User{ID: uuid.New(), Username: "analyst", Email: "analyst@securecart.io", Role: models.RoleAnalyst}

	pair, err := ts.Generate(user, "access-jti", "refresh-jti", time.Hour, true)
	require.NoError(t, err)
	assert.True(t, pair.RefreshExpiresAt.After(pair.ExpiresAt))

	t.Run("access token round trip", func(t *testing.T) {
		claims, err := ts.Parse(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "access-jti", claims.ID)
		assert.Equal(t, user.ID.String(), claims.UserID)
		assert.Equal(t, models.TokenTypeAccess, claims.TokenType)
		assert.True(t, claims.RememberMe)
		assert.True(t, claims.HasPermission(models.PermissionFraudReview))
	})

	t.Run("refresh token carries no permissions", func(t *testing.T) {
		claims, err := ts.Parse(pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "refresh-jti", claims.ID)
		assert.Equal(t, models.TokenTypeRefresh, claims.TokenType)
		assert.Empty(t, claims.Permissions)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := auth.NewTokenService("another-secret-that-is-long-enough", time.Hour)
		_, err := other.Parse(pair.AccessToken)
		assert.ErrorIs(t, err, auth.ErrMalformed)
	})

	t.Run("tampered", func(t *testing.T) {
		parts := strings.Split(pair.AccessToken, ".")
		parts[1] = parts[1][:len(parts[1])-2] + "xx"
		_, err := ts.Parse(strings.Join(parts, "."))
		assert.ErrorIs(t, err, auth.ErrMalformed)
	})

	t.Run("expired", func(t *testing.T) {
		old, err := ts.Generate(user, "a", "r", -time.Minute, false)
		require.NoError(t, err)
		_, err = ts.Parse(old.AccessToken)
		assert.ErrorIs(t, err, auth.ErrExpired)
	})
}
