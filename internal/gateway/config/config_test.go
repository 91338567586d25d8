package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLocalDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("AUTH_TOKENS", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("PORT", "")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Port)
	assert.Equal(t, "fake", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash-lite", cfg.LLM.Model)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, 1024, cfg.LLM.ChatMaxTokens)
	assert.True(t, cfg.Auth.AllowAnonymous)
	assert.Equal(t, "tmp/uigen.db", cfg.SQLitePath)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 100, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "version", cfg.ManualEditMode)
	assert.Equal(t, "http://localhost:3000", cfg.FrontendURL)
}

func TestLoadProductionRequiresCredentials(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("AUTH_TOKENS", "abc=alice")

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	t.Setenv("GOOGLE_API_KEY", "key-1")
	t.Setenv("AUTH_TOKENS", "")
	_, err = Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_TOKENS")

	t.Setenv("AUTH_TOKENS", "abc=alice")
	t.Setenv("PORT", "9000")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "60000")
	t.Setenv("ARTIFACT_S3_ENDPOINT", "s3.example.com")
	t.Setenv("ARTIFACT_S3_USE_SSL", "false")
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "key-1", cfg.LLM.APIKey)
	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.False(t, cfg.Auth.AllowAnonymous)
	assert.True(t, cfg.Artifact.Enabled)
	assert.False(t, cfg.Artifact.UseSSL)
	assert.Equal(t, "uigen-bundles", cfg.Artifact.Bucket)
}

func TestLoadFlagsAndConfigFile(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("PORT", "")
	t.Setenv("MANUAL_EDIT_MODE", "")
	path := filepath.Join(t.TempDir(), "uigen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("MANUAL_EDIT_MODE: in_place\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("port", ":8081", "")
	flags.String("config", "", "")
	require.NoError(t, flags.Parse([]string{"--port", "7070", "--config", path}))

	cfg, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Port)
	assert.Equal(t, "in_place", cfg.ManualEditMode)
}

func TestNormalizePort(t *testing.T) {
	assert.Equal(t, ":80", normalizePort("80"))
	assert.Equal(t, "127.0.0.1:80", normalizePort("127.0.0.1:80"))
}
