package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "amplipi.local", cfg.AmpliPiHost)
	require.Equal(t, 0, cfg.DefaultZone1)
	require.Equal(t, -1, cfg.DefaultZone2)
	require.Equal(t, 0, cfg.DefaultSource)
	require.Equal(t, 5000, cfg.RefreshIntervalMs)
	require.Equal(t, 100, cfg.DebounceMs)
	require.Equal(t, 5000, cfg.AmpliPiConnectTimeoutMs)
	require.Equal(t, 10000, cfg.AmpliPiTimeoutMs)
	require.Equal(t, DisplayHeadless, cfg.DisplayBackend)
	require.Equal(t, TouchNone, cfg.TouchDriver)
	require.Equal(t, "@every 10s", cfg.HeartbeatSchedule)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DISPLAY_BACKEND", "hdmi")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "DISPLAY_BACKEND")
}

func TestLoadClampsDebounceAndZones(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DEBOUNCE_MS", "20")
	t.Setenv("AMPLIPI_ZONE1", "9")
	t.Setenv("AMPLIPI_ZONE2", "null")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 100, cfg.DebounceMs)
	require.Equal(t, 3, cfg.DefaultZone1)
	require.Equal(t, -1, cfg.DefaultZone2)
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keypad.yaml")
	content := "amplipi_host: 10.0.0.5\namplipi_zone2: 2\nrefresh_interval_ms: 2500\njwt_secret: " + testSecret + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("KEYPAD_CONFIG_FILE", path)
	t.Setenv("REFRESH_INTERVAL_MS", "4000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "10.0.0.5", cfg.AmpliPiHost)
	require.Equal(t, 2, cfg.DefaultZone2)
	// environment wins over the file
	require.Equal(t, 4000, cfg.RefreshIntervalMs)
}

func TestLoadMissingOverlayFile(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("KEYPAD_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}
