package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	require.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	require.Equal(t, 16384, cfg.ReactorCapacity)
	require.Equal(t, 4096, cfg.MaxInFlightConns)
	require.Equal(t, 60*time.Second, cfg.CPUTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	os.Setenv("LISTEN_ADDR", "0.0.0.0:9090")
	os.Setenv("TIMEOUT_CPU", "5s")
	defer os.Unsetenv("LISTEN_ADDR")
	defer os.Unsetenv("TIMEOUT_CPU")

	cfg := FromEnv()
	require.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	require.Equal(t, 5*time.Second, cfg.CPUTimeout)
}

func TestFromEnvIgnoresInvalidDuration(t *testing.T) {
	os.Setenv("TIMEOUT_IO", "not-a-duration")
	defer os.Unsetenv("TIMEOUT_IO")

	cfg := FromEnv()
	require.Equal(t, 120*time.Second, cfg.IOTimeout)
}
