package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			App:      AppConfig{Environment: "development"},
			Logger:   LoggerConfig{Level: "info"},
			Database: DatabaseConfig{Path: "/tmp/mirror.db", DataPath: "/tmp"},
			Upstream: UpstreamConfig{BaseURL: "https://catalog.example.com", PageSize: 200},
			Sync:     SyncConfig{Enabled: true},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("bad environment", func(t *testing.T) {
		cfg := base()
		cfg.App.Environment = "prod"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := base()
		cfg.Logger.Level = "verbose"
		assert.Error(t, cfg.Validate())
	})

	t.Run("sync enabled requires upstream url", func(t *testing.T) {
		cfg := base()
		cfg.Upstream.BaseURL = ""
		assert.Error(t, cfg.Validate())

		cfg.Sync.Enabled = false
		assert.NoError(t, cfg.Validate())
	})

	t.Run("page size bounds", func(t *testing.T) {
		cfg := base()
		cfg.Upstream.PageSize = 0
		assert.Error(t, cfg.Validate())
		cfg.Upstream.PageSize = 5000
		assert.Error(t, cfg.Validate())
	})
}

func TestExpandPath(t *testing.T) {
	abs, err := expandPath("data/cache", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := expandPath("~/mirror", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "mirror"), expanded)

	fallback, err := expandPath("", "/srv/default")
	require.NoError(t, err)
	assert.Equal(t, "/srv/default", fallback)
}

func TestGetConfigValuePrecedence(t *testing.T) {
	t.Setenv("MIRROR_TEST_KEY", "from-env")

	assert.Equal(t, "from-flag", getConfigValue("from-flag", "MIRROR_TEST_KEY", "default"))
	assert.Equal(t, "from-env", getConfigValue("", "MIRROR_TEST_KEY", "default"))
	assert.Equal(t, "default", getConfigValue("", "MIRROR_TEST_UNSET", "default"))
}

func TestGetTypedConfigValues(t *testing.T) {
	t.Setenv("MIRROR_TEST_BOOL", "yes")
	assert.True(t, getBoolConfigValue("", "MIRROR_TEST_BOOL", false))
	assert.False(t, getBoolConfigValue("no", "MIRROR_TEST_BOOL", true))

	t.Setenv("MIRROR_TEST_INT", "42")
	assert.Equal(t, 42, getIntConfigValue("", "MIRROR_TEST_INT", 7))
	assert.Equal(t, 7, getIntConfigValue("not-a-number", "", 7))

	t.Setenv("MIRROR_TEST_FLOAT", "2.5")
	assert.Equal(t, 2.5, getFloatConfigValue("", "MIRROR_TEST_FLOAT", 1))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# comment\nMIRROR_ENVFILE_A=hello\nMIRROR_ENVFILE_B=\"quoted\"\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	t.Setenv("MIRROR_ENVFILE_A", "") // ensure unset semantics
	os.Unsetenv("MIRROR_ENVFILE_A")
	os.Unsetenv("MIRROR_ENVFILE_B")
	t.Cleanup(func() {
		os.Unsetenv("MIRROR_ENVFILE_A")
		os.Unsetenv("MIRROR_ENVFILE_B")
	})

	require.NoError(t, loadEnvFile(envPath))
	assert.Equal(t, "hello", os.Getenv("MIRROR_ENVFILE_A"))
	assert.Equal(t, "quoted", os.Getenv("MIRROR_ENVFILE_B"))
}

func TestDurationDefaults(t *testing.T) {
	// Duration strings must parse with time.ParseDuration.
	for _, s := range []string{"15s", "30s", "60s", "10s", "15m", "24h"} {
		_, err := time.ParseDuration(s)
		assert.NoError(t, err, s)
	}
}
