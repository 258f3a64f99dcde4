package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "memory", cfg.Queue.Type)
	assert.Equal(t, 3*time.Second, cfg.Engine.TickInterval)
	assert.Equal(t, 5, cfg.Engine.NodeMaxAttempts)
	assert.Equal(t, "openrouter", cfg.LLM.DefaultProvider)
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"server": {"host": "0.0.0.0", "port": 9090},
		"storage": {"type": "postgres"},
		"engine": {"node_max_attempts": 3}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, 3, cfg.Engine.NodeMaxAttempts)

	// Untouched sections keep their defaults
	assert.Equal(t, "memory", cfg.Queue.Type)
	assert.Equal(t, "reelflow", cfg.Storage.Postgres.Database)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REELFLOW_STORAGE_TYPE", "dynamodb")
	t.Setenv("REELFLOW_OPENROUTER_API_KEY", "sk-test")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "dynamodb", cfg.Storage.Type)
	assert.Equal(t, "sk-test", cfg.LLM.Providers["openrouter"].APIKey)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Server.Port = 7777
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, loaded.Server.Port)
}
