package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/config"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/repository/memory"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/metrics"
)

type authHarness struct {
	store *memory.Store
	jwt   *auth.JWTManager
	svc   *AuthService
}

func newAuthHarness(t *testing.T, cfg config.AuthConfig) *authHarness {
	t.Helper()
	log := zaptest.NewLogger(t)
	m := metrics.NewCollector("test")
	store := memory.NewStore()
	audit := NewAuditService(store.Audit(), m, log)
	t.Cleanup(audit.Shutdown)

	jwt := auth.NewJWTManager(config.JWTConfig{
		Secret:          "test-secret-test-secret-test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		Issuer:          "appointly-test",
	})
	svc := NewAuthService(store.Users(), store.Providers(), jwt, cfg, audit, m, log)
	svc.bcryptCost = bcrypt.MinCost
	return &authHarness{store: store, jwt: jwt, svc: svc}
}

func TestRegister(t *testing.T) {
	h := newAuthHarness(t, config.AuthConfig{})
	ctx := context.Background()

	u, err := h.svc.Register(ctx, &RegisterCommand{Name: "Ann", Email: " Ann@Example.com ", Password: "secret"}, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClient, u.Role, "role defaults to client")
	assert.Equal(t, "ann@example.com", u.Email)
	assert.NotEqual(t, "secret", u.PasswordHash)

	_, err = h.svc.Register(ctx, &RegisterCommand{Name: "Ann", Email: "ann@example.com", Password: "secret"}, "")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	_, err = h.svc.Register(ctx, &RegisterCommand{Name: "A", Email: "nope", Password: "123", Role: "root"}, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 4, "every field problem is reported")

	_, err = h.svc.Register(ctx, &RegisterCommand{Name: "Boss", Email: "boss@example.com", Password: "secret", Role: domain.RoleAdmin}, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRegister_AdminSignupAllowed(t *testing.T) {
	h := newAuthHarness(t, config.AuthConfig{AllowAdminSignup: true})
	u, err := h.svc.Register(context.Background(), &RegisterCommand{Name: "Boss", Email: "boss@example.com", Password: "secret", Role: domain.RoleAdmin}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)
}

func TestRegister_ProviderGetsProfile(t *testing.T) {
	h := newAuthHarness(t, config.AuthConfig{})
	ctx := context.Background()

	u, err := h.svc.Register(ctx, &RegisterCommand{Name: "Doc", Email: "doc@example.com", Password: "secret", Role: domain.RoleProvider}, "")
	require.NoError(t, err)

	pr, err := h.store.Providers().GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, pr.Availability)

	pair, err := h.svc.Login(ctx, "DOC@example.com", "secret", "10.0.0.1")
	require.NoError(t, err)

	claims, err := h.jwt.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleProvider, claims.Role)
	require.NotNil(t, claims.ProviderID)
	assert.Equal(t, pr.ID, *claims.ProviderID)
}

func TestLogin(t *testing.T) {
	h := newAuthHarness(t, config.AuthConfig{})
	ctx := context.Background()

	u, err := h.svc.Register(ctx, &RegisterCommand{Name: "Ann", Email: "ann@example.com", Password: "secret"}, "")
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, "ann@example.com", "wrong", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = h.svc.Login(ctx, "ghost@example.com", "secret", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	pair, err := h.svc.Login(ctx, "ann@example.com", "secret", "")
	require.NoError(t, err)

	claims, err := h.jwt.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Nil(t, claims.ProviderID)

	refreshed, err := h.svc.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = h.svc.RefreshToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "access tokens cannot refresh")
}
