package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/config"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
)

func newManager() *JWTManager {
	return NewJWTManager(config.JWTConfig{
		Secret:          "test-secret-test-secret-test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		Issuer:          "appointly-test",
	})
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := newManager()
	providerID := uuid.New()
	in := &domain.Claims{
		UserID:     uuid.New(),
		Email:      "doc@example.com",
		Role:       domain.RoleProvider,
		ProviderID: &providerID,
	}

	pair, err := m.GenerateTokenPair(in)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Minute), pair.ExpiresAt, 5*time.Second)

	out, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, in.UserID, out.UserID)
	assert.Equal(t, in.Email, out.Email)
	assert.Equal(t, domain.RoleProvider, out.Role)
	require.NotNil(t, out.ProviderID)
	assert.Equal(t, providerID, *out.ProviderID)

	refreshed, err := m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, in.UserID, refreshed.UserID)
}

func TestJWTManager_TokenTypeMismatch(t *testing.T) {
	m := newManager()
	pair, err := m.GenerateTokenPair(&domain.Claims{UserID: uuid.New(), Role: domain.RoleClient})
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenTypeMismatch)

	_, err = m.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenTypeMismatch)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := newManager()

	t.Run("expired", func(t *testing.T) {
		short := NewJWTManager(config.JWTConfig{
			Secret:          m.cfg.Secret,
			AccessTokenTTL:  -time.Minute,
			RefreshTokenTTL: time.Hour,
			Issuer:          m.cfg.Issuer,
		})
		pair, err := short.GenerateTokenPair(&domain.Claims{UserID: uuid.New(), Role: domain.RoleClient})
		require.NoError(t, err)
		_, err = m.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager(config.JWTConfig{
			Secret:          "another-secret-another-secret-xx",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
			Issuer:          m.cfg.Issuer,
		})
		pair, err := other.GenerateTokenPair(&domain.Claims{UserID: uuid.New(), Role: domain.RoleClient})
		require.NoError(t, err)
		_, err = m.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("unknown role", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, appointlyClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    m.cfg.Issuer,
				Subject:   uuid.NewString(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
			Role:      "superuser",
			TokenType: accessTokenType,
		})
		signed, err := tok.SignedString([]byte(m.cfg.Secret))
		require.NoError(t, err)
		_, err = m.ValidateAccessToken(signed)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ValidateAccessToken("not.a.jwt")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
