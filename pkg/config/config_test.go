package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, GatewayPostgres, cfg.Gateway.Driver)
	assert.Equal(t, 5*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, int64(5*1024*1024), cfg.Documents.MaxFileSizeBytes)
	assert.Equal(t, []string{"application/pdf", "image/jpeg", "image/png", "image/webp"}, cfg.Documents.AllowedMIMEs)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GATEWAY_DRIVER", " Supabase ")
	t.Setenv("GATEWAY_TIMEOUT", "750ms")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co/")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, GatewaySupabase, cfg.Gateway.Driver)
	assert.Equal(t, 750*time.Millisecond, cfg.Gateway.Timeout)
	assert.Equal(t, "https://project.supabase.co", cfg.Supabase.URL)
	assert.InDelta(t, 2.5, cfg.RateLimit.RequestsPerSecond, 0.0001)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Hour, parseDuration("2h", time.Minute))
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
