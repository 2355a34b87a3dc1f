package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LAWCHAT_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8790", cfg.Backend.BaseURL)
	require.Equal(t, "Temple Law Chat", cfg.App.Title)
	require.Equal(t, 25, cfg.Client.PageSize)
	require.Equal(t, []string{"gpt-4o-mini", "gpt-4o", "gpt-4-turbo", "gpt-3.5-turbo"}, cfg.Client.Models)
	require.Equal(t, "http://localhost:8790", cfg.Origin())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[backend]
base_url = "https://chat.example.edu/api"
timeout_seconds = 15

[client]
models = ["m1", "m2"]

[redis]
enabled = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("LAWCHAT_CONFIG", path)
	t.Setenv("LAWCHAT_API_TIMEOUT_SECONDS", "5")
	t.Setenv("LAWCHAT_MODELS", " a , ,b ")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://chat.example.edu/api", cfg.Backend.BaseURL)
	require.Equal(t, "https://chat.example.edu", cfg.Origin())
	require.Equal(t, 5, cfg.Backend.TimeoutSeconds)
	require.Equal(t, []string{"a", "b"}, cfg.Client.Models)
	require.True(t, cfg.Redis.Enabled)
}

func TestLoad_TrailingSlashTrimmed(t *testing.T) {
	t.Setenv("LAWCHAT_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("LAWCHAT_API_BASE", "http://localhost:9000/")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9000", cfg.Backend.BaseURL)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Backend.BaseURL = "not a url"
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Backend.TimeoutSeconds = 0
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	require.NoError(t, cfg.Validate())
}
