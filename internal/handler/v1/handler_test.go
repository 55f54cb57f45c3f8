package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/config"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/repository/memory"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/service"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/lock"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type testAPI struct {
	router *gin.Engine
	store  *memory.Store
	jwt    *auth.JWTManager
	ready  error

	client      string
	otherClient string
	admin       string
	provider    string
	other       string

	providerID      uuid.UUID
	otherProviderID uuid.UUID
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	cfg := &config.Config{
		App:     config.AppConfig{Name: "appointly-test", Version: "test"},
		Tracing: config.TracingConfig{ServiceName: "appointly-test"},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		},
		RateLimit: config.RateLimitConfig{AuthRequestsPerMinute: 1000},
		JWT: config.JWTConfig{
			Secret:          "handler-test-secret-handler-test-secret",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
			Issuer:          "appointly-test",
		},
		Auth: config.AuthConfig{MinPasswordLength: 6},
	}
	log := zaptest.NewLogger(t)
	m := metrics.NewCollector("test")
	store := memory.NewStore()

	auditSvc := service.NewAuditService(store.Audit(), m, log)
	t.Cleanup(auditSvc.Shutdown)

	api := &testAPI{store: store, jwt: auth.NewJWTManager(cfg.JWT)}
	api.router = NewRouter(RouterDeps{
		Config:    cfg,
		Log:       log,
		Metrics:   m,
		JWT:       api.jwt,
		Auth:      service.NewAuthService(store.Users(), store.Providers(), api.jwt, cfg.Auth, auditSvc, m, log),
		Providers: service.NewProviderService(store.Providers(), store.Users(), auditSvc, m, log),
		Appointments: service.NewAppointmentService(
			store.Appointments(), store.Providers(), lock.NewLocal(), auditSvc, m,
			service.SchedulingOptions{LockTimeout: time.Second}, log,
		),
		Ready: func(context.Context) error { return api.ready },
	})

	api.client = api.token(t, "c@example.com", domain.RoleClient, nil)
	api.otherClient = api.token(t, "d@example.com", domain.RoleClient, nil)
	api.admin = api.token(t, "admin@example.com", domain.RoleAdmin, nil)
	api.provider = api.token(t, "p@example.com", domain.RoleProvider, &api.providerID)
	api.other = api.token(t, "q@example.com", domain.RoleProvider, &api.otherProviderID)
	return api
}

// token stores a user, plus a provider profile when dst is given, and
// returns an access token for it.
func (a *testAPI) token(t *testing.T, email string, role domain.Role, dst *uuid.UUID) string {
	t.Helper()
	ctx := context.Background()
	u := &domain.User{Name: email, Email: email, Role: role}
	require.NoError(t, a.store.Users().Create(ctx, u))

	claims := &domain.Claims{UserID: u.ID, Email: email, Role: role}
	if dst != nil {
		pr := &provider.Provider{UserID: u.ID, Specialty: "physio"}
		require.NoError(t, a.store.Providers().Create(ctx, pr))
		*dst = pr.ID
		claims.ProviderID = &pr.ID
	}
	pair, err := a.jwt.GenerateTokenPair(claims)
	require.NoError(t, err)
	return pair.AccessToken
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Data
}

func (a *testAPI) book(t *testing.T, token string, start, end time.Time) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, http.MethodPost, "/api/v1/appointments", token, gin.H{
		"provider_id": a.providerID.String(),
		"service":     "massage",
		"start":       start,
		"end":         end,
	})
}

func TestAppointments_BookAndConflict(t *testing.T) {
	api := newTestAPI(t)

	w := api.book(t, api.client, at(10, 0), at(10, 30))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booked := decode[appointment.Appointment](t, w)
	assert.Equal(t, appointment.StatusBooked, booked.Status)
	assert.Equal(t, api.providerID, booked.ProviderID)

	w = api.book(t, api.otherClient, at(10, 15), at(10, 45))
	assert.Equal(t, http.StatusConflict, w.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "SLOT_UNAVAILABLE", errResp.Code)

	w = api.book(t, api.otherClient, at(10, 30), at(11, 0))
	assert.Equal(t, http.StatusCreated, w.Code, "touching intervals do not overlap")

	w = api.do(t, http.MethodGet, "/api/v1/appointments/provider/"+api.providerID.String(), api.provider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]appointment.Appointment](t, w), 2)
}

func TestAppointments_BookValidation(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/appointments", api.client, gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var verr ValidationErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verr))
	assert.ElementsMatch(t, []string{
		"provider_id: is required",
		"service: is required",
		"start: is required",
	}, verr.Fields)

	w = api.book(t, api.client, at(11, 0), at(10, 0))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), appointment.ErrInvalidRange.Error())

	w = api.do(t, http.MethodPost, "/api/v1/appointments", api.client, gin.H{
		"provider_id": uuid.NewString(),
		"service":     "massage",
		"start":       at(9, 0),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAppointments_RoleGates(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusUnauthorized, api.book(t, "", at(9, 0), at(9, 30)).Code)
	assert.Equal(t, http.StatusForbidden, api.book(t, api.provider, at(9, 0), at(9, 30)).Code)
	assert.Equal(t, http.StatusForbidden, api.book(t, api.admin, at(9, 0), at(9, 30)).Code)

	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodGet, "/api/v1/appointments/all", api.client, nil).Code)
	assert.Equal(t, http.StatusForbidden,
		api.do(t, http.MethodGet, "/api/v1/appointments/provider/"+api.providerID.String(), api.client, nil).Code)
}

func TestAppointments_Lifecycle(t *testing.T) {
	api := newTestAPI(t)

	w := api.book(t, api.client, at(10, 0), at(10, 30))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[appointment.Appointment](t, w).ID.String()
	path := "/api/v1/appointments/" + id

	t.Run("other client cannot touch it", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodPut, path, api.otherClient, gin.H{"notes": "x"}).Code)
		assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodPost, path+"/cancel", api.otherClient, nil).Code)
		assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodDelete, path, api.otherClient, nil).Code)
	})

	t.Run("other provider cannot touch it", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodPut, path, api.other, gin.H{"notes": "x"}).Code)
	})

	t.Run("empty patch is rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPut, path, api.client, gin.H{}).Code)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		w := api.do(t, http.MethodPut, path, api.client, gin.H{"status": "done"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "status: must be one of")
	})

	t.Run("owning provider reschedules", func(t *testing.T) {
		w := api.do(t, http.MethodPut, path, api.provider, gin.H{
			"start":  at(14, 0),
			"end":    at(14, 30),
			"status": "rescheduled",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := decode[appointment.Appointment](t, w)
		assert.True(t, got.Start.Equal(at(14, 0)))
		assert.Equal(t, appointment.StatusRescheduled, got.Status)
	})

	t.Run("cancel twice", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			w := api.do(t, http.MethodPost, path+"/cancel", api.client, gin.H{"reason": "sick"})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			got := decode[appointment.Appointment](t, w)
			assert.Equal(t, appointment.StatusCanceled, got.Status)
			assert.Equal(t, "sick", got.Notes)
		}
	})

	t.Run("listings", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/appointments/me", api.client, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]appointment.Appointment](t, w), 1)

		w = api.do(t, http.MethodGet, "/api/v1/appointments/me", api.provider, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]appointment.Appointment](t, w), 1)

		w = api.do(t, http.MethodGet, "/api/v1/appointments/me", api.otherClient, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode[[]appointment.Appointment](t, w))

		w = api.do(t, http.MethodGet, "/api/v1/appointments/all", api.admin, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]appointment.Appointment](t, w), 1)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, api.do(t, http.MethodDelete, path, api.client, nil).Code)
		assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, path, api.client, nil).Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodDelete, "/api/v1/appointments/nope", api.client, nil).Code)
	})
}

func TestProviders(t *testing.T) {
	api := newTestAPI(t)
	base := "/api/v1/providers/"

	w := api.do(t, http.MethodGet, "/api/v1/providers", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]provider.Provider](t, w), 2)

	w = api.do(t, http.MethodGet, base+api.providerID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[provider.Provider](t, w)
	require.NotNil(t, got.User)
	assert.Equal(t, "p@example.com", got.User.Email)

	slots := []gin.H{{"start": at(9, 0), "end": at(12, 0)}}

	w = api.do(t, http.MethodPut, base+api.providerID.String()+"/availability", api.provider, gin.H{"slots": slots})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[provider.Provider](t, w).Availability, 1)

	w = api.do(t, http.MethodPut, base+api.providerID.String()+"/availability", api.other, gin.H{"slots": slots})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPut, base+api.providerID.String()+"/availability", api.provider, gin.H{
		"slots": []gin.H{{"start": at(12, 0), "end": at(9, 0)}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPut, base+api.providerID.String()+"/availability", api.provider, gin.H{
		"slots": []gin.H{{"start": at(12, 0)}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "slots[0].end: is required")

	w = api.do(t, http.MethodPut, base+api.providerID.String(), api.provider, gin.H{"specialty": "dentist"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dentist", decode[provider.Provider](t, w).Specialty)

	w = api.do(t, http.MethodPost, "/api/v1/providers", api.client, gin.H{"specialty": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/providers", api.provider, gin.H{"specialty": "x"})
	assert.Equal(t, http.StatusConflict, w.Code, "one profile per user")

	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodDelete, base+api.providerID.String(), api.provider, nil).Code)
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodDelete, base+api.providerID.String(), api.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, base+api.providerID.String(), "", nil).Code)
}

func TestAuth_RegisterLoginRefresh(t *testing.T) {
	api := newTestAPI(t)
	base := "/api/v1/auth/"

	w := api.do(t, http.MethodPost, base+"register", "", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var verr ValidationErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verr))
	assert.ElementsMatch(t, []string{"name: is required", "email: is required", "password: is required"}, verr.Fields)

	w = api.do(t, http.MethodPost, base+"register", "", gin.H{"name": "A", "email": "a@example.com", "password": "123"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verr))
	assert.Len(t, verr.Fields, 2, "service reports name and password together")

	reg := gin.H{"name": "Ann", "email": "Ann@Example.com", "password": "secret1", "role": "provider"}
	w = api.do(t, http.MethodPost, base+"register", "", reg)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := decode[domain.User](t, w)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.NotContains(t, w.Body.String(), "password")

	assert.Equal(t, http.StatusConflict, api.do(t, http.MethodPost, base+"register", "", reg).Code)

	w = api.do(t, http.MethodPost, base+"register", "", gin.H{"name": "Root", "email": "root@example.com", "password": "secret1", "role": "admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, base+"login", "", gin.H{"email": "ann@example.com", "password": "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodPost, base+"login", "", gin.H{"email": "ann@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	pair := decode[domain.TokenPair](t, w)
	require.NotEmpty(t, pair.AccessToken)

	claims, err := api.jwt.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, claims.ProviderID, "provider registration creates a profile")

	w = api.do(t, http.MethodPost, base+"refresh", "", gin.H{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, base+"refresh", "", gin.H{"refresh_token": pair.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/ready", "", nil).Code)

	api.ready = errors.New("db down")
	assert.Equal(t, http.StatusServiceUnavailable, api.do(t, http.MethodGet, "/ready", "", nil).Code)

	w := api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{appointment.ErrAppointmentNotFound, http.StatusNotFound},
		{provider.ErrProviderNotFound, http.StatusNotFound},
		{appointment.ErrAppointmentConflict, http.StatusConflict},
		{domain.ErrEmailTaken, http.StatusConflict},
		{appointment.ErrInvalidRange, http.StatusBadRequest},
		{provider.ErrOutsideAvailability, http.StatusBadRequest},
		{appointment.ErrInvalidStatusTransition, http.StatusBadRequest},
		{service.ErrForbidden, http.StatusForbidden},
		{auth.ErrTokenExpired, http.StatusUnauthorized},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{&service.ValidationError{Fields: []string{"a: b"}}, http.StatusBadRequest},
		{errors.Join(errors.New("waiting"), lock.ErrNotAcquired), http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondServiceError(c, tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
