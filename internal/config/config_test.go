package config

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"CELERIX_DATA_DIR", "CELERIX_PORT", "CELERIX_HTTP_PORT", "CELERIX_DISABLE_TLS", "CELERIX_SEED_FILE", "CELERIX_DATA_KEY", "CELERIX_LOG_LEVEL"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "7001", cfg.Port)
	assert.Equal(t, "7002", cfg.HTTPPort)
	assert.False(t, cfg.DisableTLS)
	assert.Empty(t, cfg.SeedFile)
	assert.Empty(t, cfg.DataKey)
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CELERIX_DATA_DIR", "/var/lib/celerix")
	t.Setenv("CELERIX_PORT", "9001")
	t.Setenv("CELERIX_HTTP_PORT", "9002")
	t.Setenv("CELERIX_DISABLE_TLS", "true")
	t.Setenv("CELERIX_SEED_FILE", "seed.json")
	t.Setenv("CELERIX_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/celerix", cfg.DataDir)
	assert.Equal(t, "9001", cfg.Port)
	assert.Equal(t, "9002", cfg.HTTPPort)
	assert.True(t, cfg.DisableTLS)
	assert.Equal(t, "seed.json", cfg.SeedFile)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("CELERIX_DISABLE_TLS", "maybe")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CELERIX_DISABLE_TLS", "false")
	t.Setenv("CELERIX_LOG_LEVEL", "loud")
	_, err = Load()
	assert.Error(t, err)
}
