package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/busstops")
	t.Setenv("JWT_ACCESS_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8000", cfg.ServerPort)
	require.Equal(t, 15*time.Minute, cfg.JWTAccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.JWTRefreshTTL)
	require.Equal(t, 10, cfg.BruteForceMaxAttempts)
	require.Equal(t, 300*time.Second, cfg.BruteForceWindow)
	require.Equal(t, 600*time.Second, cfg.BruteForceLockout)
	require.Equal(t, 5, cfg.RateLimitLogin)
	require.Equal(t, 10, cfg.RateLimitUpload)
	require.Equal(t, 100, cfg.RateLimitDefault)
	require.Equal(t, 300*time.Second, cfg.RateLimitBlock)
	require.Equal(t, []string{"*"}, cfg.AllowedHosts)
	require.Equal(t, []string{"jpg", "jpeg", "png", "webp"}, cfg.AllowedPhotoExtensions)
	require.Equal(t, int64(10*1024*1024), cfg.MaxUploadSize)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_LIMIT_WINDOW", "30")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("ALLOWED_HOSTS", "api.example.com, localhost ,")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	require.Equal(t, 5*time.Minute, cfg.JWTAccessTTL)
	require.Equal(t, []string{"api.example.com", "localhost"}, cfg.AllowedHosts)
	require.False(t, cfg.MetricsEnabled)
}

func TestValidate(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("JWT_ACCESS_SECRET", "a")
		t.Setenv("JWT_REFRESH_SECRET", "b")
		_, err := Load()
		require.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("identical secrets are rejected", func(t *testing.T) {
		setRequired(t)
		t.Setenv("JWT_REFRESH_SECRET", "access-secret")
		_, err := Load()
		require.ErrorContains(t, err, "must differ")
	})

	t.Run("invalid port", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PORT", "http")
		_, err := Load()
		require.ErrorContains(t, err, "PORT")
	})

	t.Run("invalid pool bounds", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DB_MAX_CONNS", "2")
		t.Setenv("DB_MIN_CONNS", "5")
		_, err := Load()
		require.ErrorContains(t, err, "DB_MAX_CONNS")
	})
}
