package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Server.RateLimitPerMinute)
	require.NoError(t, cfg.Validate())
}

func TestRateLimitConfigurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  rate_limit_per_minute: 240\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 240, cfg.Server.RateLimitPerMinute)
	require.NoError(t, cfg.Validate())
}

func TestRateLimitEnvOverride(t *testing.T) {
	t.Setenv("LABELPRESS_RATE_LIMIT", "15")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Server.RateLimitPerMinute)
}

func TestValidateRejectsZeroRateLimit(t *testing.T) {
	cfg := defaults()
	cfg.Server.RateLimitPerMinute = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}
