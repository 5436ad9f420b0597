package options

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	options, err := Load(nil, missingEnv(t))
	require.NoError(t, err)
	assert.Equal(t, "info", options.LogLevel)
	assert.Equal(t, time.Second, options.Heartbeat)
	assert.False(t, options.Headless)
	assert.Empty(t, options.MetricsAddr)
}

func TestLoadPrecedence(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RESPITE_LOG_LEVEL=debug\nRESPITE_STATE_DIR=/from/dotenv\n"), 0o600))
	t.Setenv("RESPITE_HEADLESS", "true")
	t.Setenv("RESPITE_STATE_DIR", "/from/env")
	t.Cleanup(func() { os.Unsetenv("RESPITE_LOG_LEVEL") })

	options, err := Load([]string{"--log-level", "warn", "--metrics-addr", ":9108"}, envFile)
	require.NoError(t, err)
	assert.Equal(t, "warn", options.LogLevel, "flags win over .env")
	assert.Equal(t, "/from/env", options.StateDir, ".env never overrides the environment")
	assert.True(t, options.Headless)
	assert.Equal(t, ":9108", options.MetricsAddr)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load([]string{"--heartbeat", "0s"}, missingEnv(t))
	assert.ErrorContains(t, err, "heartbeat must be positive")

	_, err = Load([]string{"--no-such-flag"}, missingEnv(t))
	assert.ErrorContains(t, err, "parse flags")

	_, err = Load([]string{"--help"}, missingEnv(t))
	assert.ErrorIs(t, err, pflag.ErrHelp)
}
