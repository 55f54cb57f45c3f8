package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "appointly-api", cfg.App.Name)
	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 3*time.Second, cfg.Lock.AcquireTimeout)
	assert.False(t, cfg.Scheduling.ExcludeCanceled)
	assert.False(t, cfg.Scheduling.StrictTransitions)
	assert.False(t, cfg.Scheduling.EnforceAvailability)
	assert.False(t, cfg.Auth.AllowAdminSignup)
	assert.Equal(t, 6, cfg.Auth.MinPasswordLength)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SCHEDULING_EXCLUDE_CANCELED", "true")
	t.Setenv("SCHEDULING_STRICT_TRANSITIONS", "1")
	t.Setenv("LOCK_ACQUIRE_TIMEOUT", "750ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Redis.Enabled())
	assert.True(t, cfg.Scheduling.ExcludeCanceled)
	assert.True(t, cfg.Scheduling.StrictTransitions)
	assert.Equal(t, 750*time.Millisecond, cfg.Lock.AcquireTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing secret",
			env:  map[string]string{"JWT_SECRET": "", "STORAGE_DRIVER": "memory"},
			want: "JWT_SECRET is required",
		},
		{
			name: "unknown driver",
			env:  map[string]string{"JWT_SECRET": "s", "STORAGE_DRIVER": "sqlite"},
			want: `STORAGE_DRIVER "sqlite" is not supported`,
		},
		{
			name: "memory in production",
			env: map[string]string{
				"JWT_SECRET":     "0123456789abcdef0123456789abcdef",
				"STORAGE_DRIVER": "memory",
				"APP_ENV":        "production",
			},
			want: "STORAGE_DRIVER=memory is not allowed in production",
		},
		{
			name: "admin signup in production",
			env: map[string]string{
				"JWT_SECRET":              "0123456789abcdef0123456789abcdef",
				"STORAGE_DRIVER":          "postgres",
				"DB_PASSWORD":             "pw",
				"APP_ENV":                 "production",
				"AUTH_ALLOW_ADMIN_SIGNUP": "true",
			},
			want: "AUTH_ALLOW_ADMIN_SIGNUP is not allowed in production",
		},
		{
			name: "non-positive lock timeout",
			env:  map[string]string{"JWT_SECRET": "s", "STORAGE_DRIVER": "memory", "LOCK_ACQUIRE_TIMEOUT": "0s"},
			want: "LOCK_ACQUIRE_TIMEOUT must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
