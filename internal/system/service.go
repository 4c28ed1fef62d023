package system

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"runtime"
	"time"

	"github.com/strefethen/amplipi-keypad-go/internal/amplipi"
	"github.com/strefethen/amplipi-keypad-go/internal/config"
	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

// Version is the keypad version, set at build time or defaulted.
var Version = "1.0.0"

// SchedulerStatusProvider provides scheduler running status.
type SchedulerStatusProvider interface {
	IsRunning() bool
}

// SnapshotProvider returns the last published keypad snapshot.
type SnapshotProvider interface {
	Latest() (keypad.Snapshot, bool)
}

// HostProvider reports the address the AmpliPi client talks to.
type HostProvider interface {
	Host() string
}

// AmpliPiProber fetches the AmpliPi root listing on demand.
type AmpliPiProber interface {
	Status(ctx context.Context) (*amplipi.Status, error)
}

// HealthProvider reports component health.
type HealthProvider interface {
	IsHealthy() bool
}

// DBPair interface for dependency injection (matches db.DBPair).
type DBPair interface {
	Reader() *sql.DB
	Writer() *sql.DB
}

// Providers bundles the live components the service reports on. Any field
// may be nil.
type Providers struct {
	Snapshots SnapshotProvider
	AmpliPi   HostProvider
	Probe     AmpliPiProber
	Scheduler SchedulerStatusProvider
	Audit     HealthProvider
}

// Service provides system information and dashboard data.
// Uses reader connection only as this service only performs SELECT queries.
type Service struct {
	cfg       config.Config
	logger    *log.Logger
	reader    *sql.DB
	providers Providers
	startTime time.Time
}

// NewService creates a new system service.
func NewService(cfg config.Config, dbPair DBPair, logger *log.Logger, providers Providers) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		cfg:       cfg,
		logger:    logger,
		reader:    dbPair.Reader(),
		providers: providers,
		startTime: time.Now(),
	}
}

// SystemInfo holds system information.
type SystemInfo struct {
	Version          string  `json:"version"`
	Uptime           int64   `json:"uptime_seconds"`
	MemoryUsageMB    float64 `json:"memory_mb"`
	Goroutines       int     `json:"goroutines"`
	SQLiteConnected  bool    `json:"sqlite_connected"`
	SchedulerRunning bool    `json:"scheduler_running"`
	AuditHealthy     bool    `json:"audit_healthy"`
	DisplayBackend   string  `json:"display_backend"`
	TouchDriver      string  `json:"touch_driver"`
	ConfiguredHost   string  `json:"amplipi_host"`
	ResolvedHost     string  `json:"amplipi_address"`
	Warning          bool    `json:"warning"`
	Screen           string  `json:"screen,omitempty"`
	Calibrated       bool    `json:"calibrated"`
}

// AttentionItem represents an item that needs user attention.
type AttentionItem struct {
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	ResolveHint string         `json:"resolve_hint,omitempty"`
}

// ZoneSummary is one zone as shown on the dashboard.
type ZoneSummary struct {
	ZoneID int     `json:"zone_id"`
	Known  bool    `json:"known"`
	Muted  bool    `json:"muted"`
	Volume float64 `json:"volume_percent"`
}

// DashboardData holds data for the dashboard view.
type DashboardData struct {
	NowPlaying     *keypad.Metadata `json:"now_playing,omitempty"`
	Zones          []ZoneSummary    `json:"zones"`
	AttentionItems []AttentionItem  `json:"attention_items"`
}

// GetSystemInfo returns current system information.
func (s *Service) GetSystemInfo() (*SystemInfo, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	sqliteConnected := true
	if err := s.reader.Ping(); err != nil {
		sqliteConnected = false
	}

	info := &SystemInfo{
		Version:         Version,
		Uptime:          int64(time.Since(s.startTime).Seconds()),
		MemoryUsageMB:   float64(memStats.Alloc) / 1024 / 1024,
		Goroutines:      runtime.NumGoroutine(),
		SQLiteConnected: sqliteConnected,
		AuditHealthy:    true,
		DisplayBackend:  s.cfg.DisplayBackend,
		TouchDriver:     s.cfg.TouchDriver,
		ConfiguredHost:  s.configuredHost(),
		Calibrated:      s.calibrated(),
	}
	if s.providers.Scheduler != nil {
		info.SchedulerRunning = s.providers.Scheduler.IsRunning()
	}
	if s.providers.Audit != nil {
		info.AuditHealthy = s.providers.Audit.IsHealthy()
	}
	if s.providers.AmpliPi != nil {
		info.ResolvedHost = s.providers.AmpliPi.Host()
	}
	if snap, ok := s.latest(); ok {
		info.Warning = snap.Warning
		info.Screen = snap.Screen.String()
	}
	return info, nil
}

// GetDashboardData summarizes what the keypad currently shows and what needs
// attention.
func (s *Service) GetDashboardData() (*DashboardData, error) {
	dashboard := &DashboardData{
		Zones:          []ZoneSummary{},
		AttentionItems: []AttentionItem{},
	}

	snap, ok := s.latest()
	if ok {
		md := snap.Metadata
		dashboard.NowPlaying = &md
		for _, z := range snap.Zones {
			dashboard.Zones = append(dashboard.Zones, ZoneSummary{
				ZoneID: z.ID,
				Known:  z.Known,
				Muted:  z.Muted,
				Volume: z.VolumePercent,
			})
		}
		if snap.Warning {
			dashboard.AttentionItems = append(dashboard.AttentionItems, AttentionItem{
				Type:        "amplipi_unreachable",
				Severity:    "error",
				Message:     keypad.WarningText,
				Details:     map[string]any{"host": s.configuredHost()},
				ResolveHint: "Check that the AmpliPi is powered and on the same network",
			})
		}
	} else {
		dashboard.AttentionItems = append(dashboard.AttentionItems, AttentionItem{
			Type:     "keypad_starting",
			Severity: "info",
			Message:  "The keypad has not drawn its first frame yet",
		})
	}

	if s.providers.Audit != nil && !s.providers.Audit.IsHealthy() {
		dashboard.AttentionItems = append(dashboard.AttentionItems, AttentionItem{
			Type:        "audit_unhealthy",
			Severity:    "warning",
			Message:     "Audit events are failing to write",
			ResolveHint: "Check free space on the SD card",
		})
	}
	if s.needsCalibration() {
		dashboard.AttentionItems = append(dashboard.AttentionItems, AttentionItem{
			Type:        "touch_uncalibrated",
			Severity:    "warning",
			Message:     "Touch calibration has not been stored",
			Details:     map[string]any{"touch_driver": s.cfg.TouchDriver},
			ResolveHint: "Use Recalibrate on the settings screen",
		})
	}

	return dashboard, nil
}

func (s *Service) latest() (keypad.Snapshot, bool) {
	if s.providers.Snapshots == nil {
		return keypad.Snapshot{}, false
	}
	return s.providers.Snapshots.Latest()
}

// configuredHost returns the persisted host, falling back to the env default.
func (s *Service) configuredHost() string {
	var host sql.NullString
	err := s.reader.QueryRow(`SELECT amplipi_host FROM device_settings WHERE id = 1`).Scan(&host)
	if err != nil || !host.Valid || host.String == "" {
		return s.cfg.AmpliPiHost
	}
	return host.String
}

func (s *Service) calibrated() bool {
	var n int
	if err := s.reader.QueryRow(`SELECT COUNT(*) FROM touch_calibration WHERE id = 1`).Scan(&n); err != nil {
		s.logger.Printf("Failed to read calibration state: %v", err)
		return false
	}
	return n > 0
}

// needsCalibration is true for the resistive panel only; the capacitive and
// simulated drivers report screen coordinates directly.
func (s *Service) needsCalibration() bool {
	return s.cfg.TouchDriver == config.TouchXPT2046 && !s.calibrated()
}

// ErrNoProbe is returned by ProbeAmpliPi when no prober was provided.
var ErrNoProbe = errors.New("amplipi probe not configured")

// AmpliPiProbe is what a live request to the AmpliPi found.
type AmpliPiProbe struct {
	Host      string
	LatencyMS int64
	Sources   int
	Zones     int
	Streams   int
}

// ProbeAmpliPi fetches the AmpliPi root listing now, bypassing the keypad
// loop. Errors are the client's typed errors.
func (s *Service) ProbeAmpliPi(ctx context.Context) (*AmpliPiProbe, error) {
	if s.providers.Probe == nil {
		return nil, ErrNoProbe
	}
	probe := &AmpliPiProbe{}
	if s.providers.AmpliPi != nil {
		probe.Host = s.providers.AmpliPi.Host()
	}
	start := time.Now()
	status, err := s.providers.Probe.Status(ctx)
	if err != nil {
		return nil, err
	}
	probe.LatencyMS = time.Since(start).Milliseconds()
	probe.Sources = len(status.Sources)
	probe.Zones = len(status.Zones)
	probe.Streams = len(status.Streams)
	return probe, nil
}
