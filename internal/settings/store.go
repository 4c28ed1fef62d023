package settings

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/strefethen/amplipi-keypad-go/internal/hw"
	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

// Device is the persisted keypad configuration.
type Device struct {
	Host      string
	Zone1     int
	Zone2     int
	Source    int
	UpdatedAt time.Time
}

// Config returns the zone/source part the keypad loop uses.
func (d Device) Config() keypad.DeviceConfig {
	return keypad.DeviceConfig{Zone1: d.Zone1, Zone2: d.Zone2, Source: d.Source}
}

// DBPair interface for dependency injection (matches db.DBPair).
type DBPair interface {
	Reader() *sql.DB
	Writer() *sql.DB
}

// Store persists device settings and touch calibration.
// Uses separate reader/writer connections for optimal SQLite concurrency.
type Store struct {
	reader   *sql.DB
	writer   *sql.DB
	defaults Device
	logger   *log.Logger

	mu       sync.Mutex
	onChange []func(Device)
}

// NewStore creates a settings store. defaults are returned until a row has
// been saved and again after Reset.
func NewStore(dbPair DBPair, defaults Device, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		reader:   dbPair.Reader(),
		writer:   dbPair.Writer(),
		defaults: clampDevice(defaults),
		logger:   logger,
	}
}

var _ keypad.SettingsStore = (*Store)(nil)

// OnChange registers fn to run after every successful save.
func (s *Store) OnChange(fn func(Device)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Load returns the persisted settings, or the defaults when none exist.
func (s *Store) Load(ctx context.Context) (Device, error) {
	var d Device
	var updatedAt string
	err := s.reader.QueryRowContext(ctx, `
		SELECT amplipi_host, zone1_id, zone2_id, source_id, updated_at
		FROM device_settings
		WHERE id = 1
	`).Scan(&d.Host, &d.Zone1, &d.Zone2, &d.Source, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaults, nil
	}
	if err != nil {
		return Device{}, err
	}
	d.UpdatedAt = parseTime(updatedAt)
	return d, nil
}

// Save clamps and persists d, then notifies OnChange listeners. An empty
// host keeps the current one.
func (s *Store) Save(ctx context.Context, d Device) (Device, error) {
	if strings.TrimSpace(d.Host) == "" {
		current, err := s.Load(ctx)
		if err != nil {
			return Device{}, err
		}
		d.Host = current.Host
	}
	d = clampDevice(d)
	d.UpdatedAt = time.Now().UTC()

	_, err := s.writer.ExecContext(ctx, `
		INSERT INTO device_settings (id, amplipi_host, zone1_id, zone2_id, source_id, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amplipi_host = excluded.amplipi_host,
			zone1_id = excluded.zone1_id,
			zone2_id = excluded.zone2_id,
			source_id = excluded.source_id,
			updated_at = excluded.updated_at
	`, d.Host, d.Zone1, d.Zone2, d.Source, d.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return Device{}, err
	}
	s.logger.Printf("Saved device settings: host=%s zone1=%d zone2=%d source=%d", d.Host, d.Zone1, d.Zone2, d.Source)

	s.mu.Lock()
	listeners := append([]func(Device){}, s.onChange...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(d)
	}
	return d, nil
}

// SaveDevice persists zones and source from the keypad Settings screen,
// keeping the configured host. Listeners are not notified; the keypad has
// already applied the change itself.
func (s *Store) SaveDevice(ctx context.Context, cfg keypad.DeviceConfig) error {
	current, err := s.Load(ctx)
	if err != nil {
		return err
	}
	current.Zone1, current.Zone2, current.Source = cfg.Zone1, cfg.Zone2, cfg.Source
	current = clampDevice(current)

	_, err = s.writer.ExecContext(ctx, `
		INSERT INTO device_settings (id, amplipi_host, zone1_id, zone2_id, source_id, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			zone1_id = excluded.zone1_id,
			zone2_id = excluded.zone2_id,
			source_id = excluded.source_id,
			updated_at = excluded.updated_at
	`, current.Host, current.Zone1, current.Zone2, current.Source, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Reset forgets the persisted device settings so the next start uses the
// configured defaults.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.writer.ExecContext(ctx, `DELETE FROM device_settings`); err != nil {
		return err
	}
	s.logger.Printf("Device settings reset to defaults")
	return nil
}

// LoadCalibration returns the stored touch calibration. ok is false when
// none has been saved.
func (s *Store) LoadCalibration(ctx context.Context) (hw.Calibration, bool, error) {
	var c hw.Calibration
	err := s.reader.QueryRowContext(ctx, `
		SELECT x_scale, y_scale, x_offset, y_offset
		FROM touch_calibration
		WHERE id = 1
	`).Scan(&c.XScale, &c.YScale, &c.XOffset, &c.YOffset)
	if errors.Is(err, sql.ErrNoRows) {
		return hw.Calibration{}, false, nil
	}
	if err != nil {
		return hw.Calibration{}, false, err
	}
	return c, true, nil
}

func (s *Store) SaveCalibration(ctx context.Context, c hw.Calibration) error {
	_, err := s.writer.ExecContext(ctx, `
		INSERT INTO touch_calibration (id, x_scale, y_scale, x_offset, y_offset, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			x_scale = excluded.x_scale,
			y_scale = excluded.y_scale,
			x_offset = excluded.x_offset,
			y_offset = excluded.y_offset,
			updated_at = excluded.updated_at
	`, c.XScale, c.YScale, c.XOffset, c.YOffset, time.Now().UTC().Format(time.RFC3339))
	return err
}

// ClearCalibration removes the stored calibration; the next start runs the
// calibration flow.
func (s *Store) ClearCalibration(ctx context.Context) error {
	if _, err := s.writer.ExecContext(ctx, `DELETE FROM touch_calibration`); err != nil {
		return err
	}
	s.logger.Printf("Touch calibration cleared")
	return nil
}

func clampDevice(d Device) Device {
	cfg := d.Config().Clamped()
	d.Zone1, d.Zone2, d.Source = cfg.Zone1, cfg.Zone2, cfg.Source
	return d
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t, _ = time.Parse("2006-01-02 15:04:05", value)
	}
	return t
}
