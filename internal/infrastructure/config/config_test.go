package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Engine.MaxExecutionTime)
	assert.Equal(t, 3, cfg.Engine.MaxConcurrent)
	assert.Equal(t, 100, cfg.Engine.CacheSize)
	assert.True(t, cfg.Engine.EnableCache)
	assert.Equal(t, "medium", cfg.Engine.SecurityLevel)
	assert.Equal(t, 4, cfg.Sandbox.PoolSize)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ENGINE_MAX_CONCURRENT", "7")
	t.Setenv("ENGINE_SECURITY_LEVEL", "high")
	t.Setenv("ENGINE_CACHE_TTL", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Engine.MaxConcurrent)
	assert.Equal(t, "high", cfg.Engine.SecurityLevel)
	assert.Equal(t, 90*time.Second, cfg.Engine.CacheTTL)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("engine:\n  max_concurrent: 9\n  security_level: low\nserver:\n  port: \"9999\"\n  host: 127.0.0.1\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Engine.MaxConcurrent)
	assert.Equal(t, "low", cfg.Engine.SecurityLevel)
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("ENGINE_MAX_CONCURRENT", "not-a-number")

	cfg := LoadOrDefault()
	assert.Equal(t, 3, cfg.Engine.MaxConcurrent)
}
