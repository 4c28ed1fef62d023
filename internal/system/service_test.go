package system

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/amplipi-keypad-go/internal/amplipi"
	"github.com/strefethen/amplipi-keypad-go/internal/config"
	"github.com/strefethen/amplipi-keypad-go/internal/db"
	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

type staticSnapshots struct {
	snap keypad.Snapshot
	ok   bool
}

func (s staticSnapshots) Latest() (keypad.Snapshot, bool) { return s.snap, s.ok }

type staticHost string

func (h staticHost) Host() string { return string(h) }

type staticBool bool

func (b staticBool) IsRunning() bool { return bool(b) }
func (b staticBool) IsHealthy() bool { return bool(b) }

func newTestService(t *testing.T, cfg config.Config, providers Providers) (*Service, *db.DBPair) {
	t.Helper()
	pair, err := db.Init(filepath.Join(t.TempDir(), "system.db"))
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })
	return NewService(cfg, pair, log.New(io.Discard, "", 0), providers), pair
}

func TestGetSystemInfo(t *testing.T) {
	cfg := config.Config{AmpliPiHost: "amplipi.local", DisplayBackend: config.DisplayHeadless, TouchDriver: config.TouchGT1151}
	svc, pair := newTestService(t, cfg, Providers{
		Snapshots: staticSnapshots{snap: keypad.Snapshot{Screen: keypad.ScreenSettings, Warning: true}, ok: true},
		AmpliPi:   staticHost("192.168.1.40"),
		Scheduler: staticBool(true),
		Audit:     staticBool(false),
	})

	info, err := svc.GetSystemInfo()
	require.NoError(t, err)
	assert.Equal(t, Version, info.Version)
	assert.True(t, info.SQLiteConnected)
	assert.True(t, info.SchedulerRunning)
	assert.False(t, info.AuditHealthy)
	assert.Equal(t, "amplipi.local", info.ConfiguredHost)
	assert.Equal(t, "192.168.1.40", info.ResolvedHost)
	assert.True(t, info.Warning)
	assert.Equal(t, "setting", info.Screen)
	assert.False(t, info.Calibrated)

	_, err = pair.Writer().ExecContext(context.Background(),
		`INSERT INTO device_settings (id, amplipi_host, zone1_id, zone2_id, source_id, updated_at) VALUES (1, '10.0.0.9', 0, -1, 0, '')`)
	require.NoError(t, err)
	info, err = svc.GetSystemInfo()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", info.ConfiguredHost)
}

func TestGetDashboardData(t *testing.T) {
	snap := keypad.Snapshot{
		Dual:     true,
		Warning:  true,
		Metadata: keypad.Metadata{SourceName: "Radio", Artist: "A", Song: "S"},
		Zones: []keypad.ZoneState{
			{ID: 1, Known: true, VolumePercent: 40},
			{ID: 2, Known: true, Muted: true},
		},
	}
	cfg := config.Config{AmpliPiHost: "amplipi.local", TouchDriver: config.TouchXPT2046}
	svc, _ := newTestService(t, cfg, Providers{Snapshots: staticSnapshots{snap: snap, ok: true}})

	data, err := svc.GetDashboardData()
	require.NoError(t, err)
	require.NotNil(t, data.NowPlaying)
	assert.Equal(t, "Radio", data.NowPlaying.SourceName)
	require.Len(t, data.Zones, 2)
	assert.Equal(t, 40.0, data.Zones[0].Volume)
	assert.True(t, data.Zones[1].Muted)

	types := []string{}
	for _, item := range data.AttentionItems {
		types = append(types, item.Type)
	}
	assert.Equal(t, []string{"amplipi_unreachable", "touch_uncalibrated"}, types)
}

func TestGetDashboardDataBeforeFirstFrame(t *testing.T) {
	svc, _ := newTestService(t, config.Config{TouchDriver: config.TouchNone}, Providers{})

	data, err := svc.GetDashboardData()
	require.NoError(t, err)
	assert.Nil(t, data.NowPlaying)
	require.Len(t, data.AttentionItems, 1)
	assert.Equal(t, "keypad_starting", data.AttentionItems[0].Type)
}

func TestRoutes(t *testing.T) {
	svc, _ := newTestService(t, config.Config{AmpliPiHost: "amplipi.local"}, Providers{})
	router := chi.NewRouter()
	RegisterRoutes(router, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/system/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "system_info", info["object"])
	assert.Nil(t, info["amplipi_address"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var dash map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))
	assert.Equal(t, "dashboard", dash["object"])
	assert.Nil(t, dash["now_playing"])
}

func TestVersionDefault(t *testing.T) {
	require.NotEmpty(t, Version)
}

type probeFunc func(ctx context.Context) (*amplipi.Status, error)

func (f probeFunc) Status(ctx context.Context) (*amplipi.Status, error) { return f(ctx) }

func TestProbeAmpliPiRoute(t *testing.T) {
	tests := []struct {
		name   string
		probe  AmpliPiProber
		status int
		code   string
	}{
		{"no probe", nil, http.StatusServiceUnavailable, "KEYPAD_NOT_READY"},
		{"ok", probeFunc(func(context.Context) (*amplipi.Status, error) {
			return &amplipi.Status{Sources: make([]amplipi.Source, 4), Zones: make([]amplipi.Zone, 6)}, nil
		}), http.StatusOK, ""},
		{"timeout", probeFunc(func(context.Context) (*amplipi.Status, error) {
			return nil, &amplipi.TimeoutError{Method: http.MethodGet, Path: "/api/"}
		}), http.StatusGatewayTimeout, "AMPLIPI_TIMEOUT"},
		{"unreachable", probeFunc(func(context.Context) (*amplipi.Status, error) {
			return nil, &amplipi.UnreachableError{Method: http.MethodGet, Path: "/api/", Err: errors.New("connection refused")}
		}), http.StatusBadGateway, "AMPLIPI_UNREACHABLE"},
		{"rejected", probeFunc(func(context.Context) (*amplipi.Status, error) {
			return nil, &amplipi.RejectedError{Method: http.MethodGet, Path: "/api/", StatusCode: 500}
		}), http.StatusBadGateway, "AMPLIPI_REJECTED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, config.Config{}, Providers{AmpliPi: staticHost("10.0.0.2"), Probe: tt.probe})
			router := chi.NewRouter()
			RegisterRoutes(router, svc)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/system/amplipi", nil))
			require.Equal(t, tt.status, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.code == "" {
				assert.Equal(t, "amplipi_probe", body["object"])
				assert.Equal(t, "10.0.0.2", body["host"])
				assert.Equal(t, float64(6), body["zones"])
				return
			}
			assert.Equal(t, tt.code, body["error"].(map[string]any)["code"])
		})
	}
}
