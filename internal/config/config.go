package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Display backends.
const (
	DisplayILI9341  = "ili9341"
	DisplayWindow   = "window"
	DisplayHeadless = "headless"
)

// Touch drivers.
const (
	TouchXPT2046 = "xpt2046"
	TouchGT1151  = "gt1151"
	TouchWindow  = "window"
	TouchNone    = "none"
)

// Config holds the keypad and control server configuration.
type Config struct {
	Host                     string
	Port                     string
	SQLiteDBPath             string
	NodeEnv                  string
	AllowTestMode            bool
	JWTSecret                string
	JWTAccessTokenExpirySec  int
	JWTRefreshTokenExpirySec int
	PairingTTLSeconds        int

	// AmpliPi controller settings. Host is the default used until a host is
	// persisted in the device settings table.
	AmpliPiHost             string
	AmpliPiConnectTimeoutMs int
	AmpliPiTimeoutMs        int
	MDNSTimeoutMs           int
	MDNSCacheTTLSeconds     int

	// Zone/source defaults. DefaultZone2 = -1 disables the second zone.
	DefaultZone1  int
	DefaultZone2  int
	DefaultSource int

	// Keypad loop timing
	RefreshIntervalMs int
	DebounceMs        int
	PollIntervalMs    int

	// Hardware
	DisplayBackend string
	TouchDriver    string
	SPIPort        string
	SPISpeedKHz    int
	PanelDCPin     string
	PanelResetPin  string
	TouchSPIPort   string
	TouchIRQPin    string
	I2CBus         string
	AssetsDir      string
	WindowScale    int

	// Housekeeping schedules (robfig/cron syntax)
	HeartbeatSchedule  string
	ResolveSchedule    string
	AuditPruneSchedule string
	AuditRetentionDays int
}

// Load reads configuration from environment variables with defaults.
// When KEYPAD_CONFIG_FILE points at a YAML file its keys act as a second
// source; environment variables always win.
func Load() (Config, error) {
	src := source{}
	if path := os.Getenv("KEYPAD_CONFIG_FILE"); path != "" {
		overlay, err := loadOverlay(path)
		if err != nil {
			return Config{}, err
		}
		src.overlay = overlay
	}

	cfg := Config{
		Host:                     src.envString("HOST", "0.0.0.0"),
		Port:                     src.envString("PORT", "9000"),
		SQLiteDBPath:             src.envString("SQLITE_DB_PATH", "./data/amplipi-keypad.db"),
		NodeEnv:                  src.envString("NODE_ENV", "development"),
		AllowTestMode:            src.envBool("ALLOW_TEST_MODE", false),
		JWTSecret:                src.envString("JWT_SECRET", ""),
		JWTAccessTokenExpirySec:  src.envInt("JWT_ACCESS_TOKEN_EXPIRY", 3600),
		JWTRefreshTokenExpirySec: src.envInt("JWT_REFRESH_TOKEN_EXPIRY", 2592000),
		PairingTTLSeconds:        src.envInt("PAIRING_TTL_SECONDS", 300),
		AmpliPiHost:              src.envString("AMPLIPI_HOST", "amplipi.local"),
		AmpliPiConnectTimeoutMs:  src.envInt("AMPLIPI_CONNECT_TIMEOUT_MS", 5000),
		AmpliPiTimeoutMs:         src.envInt("AMPLIPI_TIMEOUT_MS", 10000),
		MDNSTimeoutMs:            src.envInt("MDNS_TIMEOUT_MS", 3000),
		MDNSCacheTTLSeconds:      src.envInt("MDNS_CACHE_TTL_SECONDS", 300),
		DefaultZone1:             src.envInt("AMPLIPI_ZONE1", 0),
		DefaultZone2:             src.envZone("AMPLIPI_ZONE2", -1),
		DefaultSource:            src.envInt("AMPLIPI_SOURCE", 0),
		RefreshIntervalMs:        src.envInt("REFRESH_INTERVAL_MS", 5000),
		DebounceMs:               src.envInt("DEBOUNCE_MS", 100),
		PollIntervalMs:           src.envInt("POLL_INTERVAL_MS", 20),
		DisplayBackend:           strings.ToLower(src.envString("DISPLAY_BACKEND", DisplayHeadless)),
		TouchDriver:              strings.ToLower(src.envString("TOUCH_DRIVER", TouchNone)),
		SPIPort:                  src.envString("SPI_PORT", "SPI0.0"),
		SPISpeedKHz:              src.envInt("SPI_SPEED_KHZ", 32000),
		PanelDCPin:               src.envString("PANEL_DC_PIN", "GPIO25"),
		PanelResetPin:            src.envString("PANEL_RESET_PIN", "GPIO24"),
		TouchSPIPort:             src.envString("TOUCH_SPI_PORT", "SPI0.1"),
		TouchIRQPin:              src.envString("TOUCH_IRQ_PIN", "GPIO17"),
		I2CBus:                   src.envString("I2C_BUS", "1"),
		AssetsDir:                src.envString("ASSETS_DIR", "./assets"),
		WindowScale:              src.envInt("WINDOW_SCALE", 2),
		HeartbeatSchedule:        src.envString("HEARTBEAT_SCHEDULE", "@every 10s"),
		ResolveSchedule:          src.envString("RESOLVE_SCHEDULE", "@every 1m"),
		AuditPruneSchedule:       src.envString("AUDIT_PRUNE_SCHEDULE", "@daily"),
		AuditRetentionDays:       src.envInt("AUDIT_RETENTION_DAYS", 30),
	}

	if len(strings.TrimSpace(cfg.JWTSecret)) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	switch cfg.DisplayBackend {
	case DisplayILI9341, DisplayWindow, DisplayHeadless:
	default:
		return Config{}, fmt.Errorf("DISPLAY_BACKEND must be one of %s, %s, %s", DisplayILI9341, DisplayWindow, DisplayHeadless)
	}

	switch cfg.TouchDriver {
	case TouchXPT2046, TouchGT1151, TouchWindow, TouchNone:
	default:
		return Config{}, fmt.Errorf("TOUCH_DRIVER must be one of %s, %s, %s, %s", TouchXPT2046, TouchGT1151, TouchWindow, TouchNone)
	}

	if cfg.DebounceMs < 100 || cfg.DebounceMs > 200 {
		log.Printf("WARNING: DEBOUNCE_MS=%d outside 100-200, clamping", cfg.DebounceMs)
		cfg.DebounceMs = clamp(cfg.DebounceMs, 100, 200)
	}
	if cfg.RefreshIntervalMs <= 0 {
		cfg.RefreshIntervalMs = 5000
	}
	if cfg.PollIntervalMs <= 0 {
		cfg.PollIntervalMs = 20
	}
	if cfg.WindowScale < 1 {
		cfg.WindowScale = 1
	}

	cfg.DefaultZone1 = clamp(cfg.DefaultZone1, 0, 3)
	cfg.DefaultZone2 = clamp(cfg.DefaultZone2, -1, 3)
	cfg.DefaultSource = clamp(cfg.DefaultSource, 0, 3)

	return cfg, nil
}

// source resolves keys from the environment first and the YAML overlay second.
type source struct {
	overlay map[string]string
}

func loadOverlay(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	overlay := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		overlay[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return overlay, nil
}

func (s source) lookup(key string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return s.overlay[key]
}

func (s source) envString(key, fallback string) string {
	val := s.lookup(key)
	if val == "" {
		return fallback
	}
	return val
}

func (s source) envInt(key string, fallback int) int {
	val := s.lookup(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) envBool(key string, fallback bool) bool {
	val := s.lookup(key)
	if val == "" {
		return fallback
	}
	return strings.EqualFold(val, "true")
}

// envZone reads a zone id where the literal "null" (the legacy on-device
// spelling) means disabled.
func (s source) envZone(key string, fallback int) int {
	val := s.lookup(key)
	if val == "" {
		return fallback
	}
	if strings.EqualFold(val, "null") {
		return -1
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
