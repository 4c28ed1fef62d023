package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/strefethen/amplipi-keypad-go/internal/amplipi"
	"github.com/strefethen/amplipi-keypad-go/internal/audit"
	"github.com/strefethen/amplipi-keypad-go/internal/auth"
	"github.com/strefethen/amplipi-keypad-go/internal/config"
	"github.com/strefethen/amplipi-keypad-go/internal/db"
	"github.com/strefethen/amplipi-keypad-go/internal/discovery"
	"github.com/strefethen/amplipi-keypad-go/internal/events"
	"github.com/strefethen/amplipi-keypad-go/internal/hw"
	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
	"github.com/strefethen/amplipi-keypad-go/internal/scheduler"
	"github.com/strefethen/amplipi-keypad-go/internal/server"
	"github.com/strefethen/amplipi-keypad-go/internal/settings"
	"github.com/strefethen/amplipi-keypad-go/internal/sim"
	"github.com/strefethen/amplipi-keypad-go/internal/system"
	"github.com/strefethen/amplipi-keypad-go/internal/ui"
)

const windowTitle = "AmpliPi Keypad"

// App owns every long-lived component of the keypad process.
type App struct {
	cfg    config.Config
	logger *log.Logger

	db       *db.DBPair
	store    *settings.Store
	resolver *discovery.Resolver
	client   *amplipi.Client
	fb       *ui.Framebuffer
	renderer *ui.Renderer
	window   *sim.Screen
	touch    *hw.Touchscreen
	ctrl     *keypad.Controller
	hub      *events.Hub
	audit    *audit.Service
	runner   *scheduler.Runner
	server   *http.Server

	shutdownHandler func(context.Context) error
	closers         []io.Closer
	closeOnce       sync.Once
}

// New opens the database, resolves the AmpliPi, brings up the display and
// touch backends named in cfg and builds the control server. Nothing runs
// until Run.
func New(ctx context.Context, cfg config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg

	pair, err := db.Init(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = pair
	a.closers = append(a.closers, pair)

	a.store = settings.NewStore(pair, settings.Device{
		Host:   cfg.AmpliPiHost,
		Zone1:  cfg.DefaultZone1,
		Zone2:  cfg.DefaultZone2,
		Source: cfg.DefaultSource,
	}, a.logger)
	device, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load device settings: %w", err)
	}

	a.resolver = discovery.NewResolver(millis(cfg.MDNSTimeoutMs), time.Duration(cfg.MDNSCacheTTLSeconds)*time.Second, a.logger)
	a.client = amplipi.NewClient(a.resolve(ctx, device.Host), millis(cfg.AmpliPiConnectTimeoutMs), millis(cfg.AmpliPiTimeoutMs), a.logger)

	if needsHost(cfg) {
		if err := hw.Init(); err != nil {
			return err
		}
	}
	panel, err := a.openDisplay()
	if err != nil {
		return err
	}
	a.fb = ui.NewFramebuffer(keypad.DisplayWidth, keypad.DisplayHeight, panel)
	icons, err := ui.LoadIcons(cfg.AssetsDir, a.logger)
	if err != nil {
		return fmt.Errorf("load icons: %w", err)
	}
	a.renderer = ui.NewRenderer(a.fb, icons, a.logger)

	touch, err := a.openTouch(ctx)
	if err != nil {
		return err
	}

	a.audit = audit.NewService(pair, cfg.AuditRetentionDays, a.logger)
	a.hub = events.NewHub(a.logger)

	a.ctrl = keypad.NewController(a.client, a.renderer, keypad.Options{
		Device:          device.Config(),
		RefreshInterval: millis(cfg.RefreshIntervalMs),
		Debounce:        millis(cfg.DebounceMs),
		PollInterval:    millis(cfg.PollIntervalMs),
		Touch:           touch,
		Store:           a.store,
		Restarter:       &hw.ExecRestarter{Before: a.Close, Logger: a.logger},
		Auditor:         a.audit,
		Publisher:       a.hub,
		Logger:          a.logger,
	})
	a.store.OnChange(a.deviceChanged)

	a.runner = scheduler.NewRunner(a.logger)
	if err := a.addJobs(); err != nil {
		return err
	}

	sys := system.NewService(cfg, pair, a.logger, system.Providers{
		Snapshots: a.hub,
		AmpliPi:   a.client,
		Probe:     a.client,
		Scheduler: a.runner,
		Audit:     a.audit,
	})
	handler, shutdown := server.NewHandler(cfg, server.Deps{
		DB:        pair,
		Keypad:    a.ctrl,
		Hub:       a.hub,
		Screen:    a.fb,
		Settings:  a.store,
		Audit:     a.audit,
		Scheduler: a.runner,
		System:    sys,
		Pairing: auth.Hooks{
			ShowCode: func(code string, ttl time.Duration) {
				if err := a.ctrl.Notify("Pair code "+code, ttl); err != nil {
					a.logger.Printf("Failed to show pairing code: %v", err)
				}
			},
			Paired: a.clientPaired,
		},
		Logger: a.logger,
	})
	a.shutdownHandler = shutdown
	a.server = &http.Server{
		Addr:              cfg.Host + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

func (a *App) openDisplay() (ui.Panel, error) {
	switch a.cfg.DisplayBackend {
	case config.DisplayILI9341:
		panel, closer, err := hw.OpenILI9341(a.cfg.SPIPort, a.cfg.SPISpeedKHz, a.cfg.PanelDCPin, a.cfg.PanelResetPin)
		if err != nil {
			return nil, fmt.Errorf("open display: %w", err)
		}
		a.closers = append(a.closers, closer)
		return panel, nil
	case config.DisplayWindow:
		a.window = sim.NewScreen(keypad.DisplayWidth, keypad.DisplayHeight)
		return a.window, nil
	default:
		return ui.NopPanel{}, nil
	}
}

// openTouch returns nil when no touch input is configured. An XPT2046 with
// no stored calibration is left uncalibrated; Run calibrates it before the
// controller starts.
func (a *App) openTouch(ctx context.Context) (keypad.TouchSource, error) {
	var raw hw.RawReader
	switch a.cfg.TouchDriver {
	case config.TouchXPT2046:
		t, closer, err := hw.OpenXPT2046(a.cfg.TouchSPIPort, a.cfg.TouchIRQPin)
		if err != nil {
			return nil, fmt.Errorf("open touch: %w", err)
		}
		a.closers = append(a.closers, closer)
		raw = t
	case config.TouchGT1151:
		t, closer, err := hw.OpenGT1151(a.cfg.I2CBus, keypad.DisplayWidth, keypad.DisplayHeight)
		if err != nil {
			return nil, fmt.Errorf("open touch: %w", err)
		}
		a.closers = append(a.closers, closer)
		raw = t
	case config.TouchWindow:
		if a.window == nil {
			return nil, errors.New("window touch requires the window display backend")
		}
		return a.window, nil
	default:
		return nil, nil
	}

	cal, ok, err := a.store.LoadCalibration(ctx)
	if err != nil {
		return nil, fmt.Errorf("load calibration: %w", err)
	}
	if !ok {
		cal = hw.Identity
	}
	a.touch = hw.NewTouchscreen(raw, keypad.DisplayWidth, keypad.DisplayHeight, cal)
	return a.touch, nil
}

func (a *App) needsCalibration(ctx context.Context) bool {
	if a.touch == nil || a.cfg.TouchDriver != config.TouchXPT2046 {
		return false
	}
	_, ok, err := a.store.LoadCalibration(ctx)
	return err == nil && !ok
}

// calibrate runs the crosshair sequence on the panel and stores the result.
func (a *App) calibrate(ctx context.Context) error {
	a.logger.Printf("No touch calibration stored, starting calibration")
	cal, err := hw.Calibrate(ctx, a.fb, a.touch, millis(a.cfg.PollIntervalMs), a.logger)
	if err != nil {
		return fmt.Errorf("calibrate touch: %w", err)
	}
	a.touch.SetCalibration(cal)
	if err := a.store.SaveCalibration(ctx, cal); err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	a.record(audit.EventCalibrated, "Touch calibration stored", map[string]any{
		"x_scale":  cal.XScale,
		"y_scale":  cal.YScale,
		"x_offset": cal.XOffset,
		"y_offset": cal.YOffset,
	})
	return nil
}

func (a *App) addJobs() error {
	jobs := []scheduler.Job{
		scheduler.HeartbeatJob(a.cfg.HeartbeatSchedule, a.client, nil, a.logger),
		(&scheduler.HostRefresher{
			Resolver: a.resolver,
			Target:   a.client,
			Host:     a.configuredHost,
			Unreachable: func() bool {
				snap, ok := a.hub.Latest()
				return ok && snap.Warning
			},
			Changed: a.hostChanged,
			Logger:  a.logger,
		}).Job(a.cfg.ResolveSchedule),
		scheduler.AuditPruneJob(a.cfg.AuditPruneSchedule, a.audit),
	}
	for _, job := range jobs {
		if err := a.runner.AddJob(job); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name, err)
		}
	}
	return nil
}

// Run starts the scheduler, the control server and the keypad loop and
// blocks until ctx is cancelled or one of them fails. With the window
// display it must be called from the main goroutine.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.record(audit.EventSystemStartup, "Keypad started", map[string]any{
		"display": a.cfg.DisplayBackend,
		"touch":   a.cfg.TouchDriver,
		"host":    a.client.Host(),
	})

	errCh := make(chan error, 3)
	go func() {
		a.logger.Printf("amplipi-keypad listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: %w", err)
		}
	}()

	a.runner.Start()

	go func() {
		if a.needsCalibration(ctx) {
			if err := a.calibrate(ctx); err != nil {
				errCh <- err
				return
			}
		}
		if err := a.ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("keypad: %w", err)
		}
	}()

	var runErr error
	if a.window != nil {
		go func() {
			select {
			case err := <-errCh:
				errCh <- err
				cancel()
			case <-ctx.Done():
			}
		}()
		if err := sim.RunWindow(ctx, a.window, windowTitle, a.cfg.WindowScale); err != nil {
			a.logger.Printf("Window closed: %v", err)
		}
		cancel()
		select {
		case runErr = <-errCh:
		default:
		}
	} else {
		select {
		case runErr = <-errCh:
		case <-ctx.Done():
		}
	}

	a.shutdown()
	return runErr
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.shutdownHandler(ctx); err != nil {
		a.logger.Printf("shutdown error: %v", err)
	}
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Printf("shutdown error: %v", err)
	}
	a.runner.Stop()
}

// Close releases the database and hardware handles. It is safe to call more
// than once and runs ahead of a restart exec.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i].Close(); err != nil {
				a.logger.Printf("close error: %v", err)
			}
		}
	})
}

// deviceChanged applies settings saved through the control API.
func (a *App) deviceChanged(d settings.Device) {
	if err := a.ctrl.ApplyDevice(d.Config()); err != nil {
		a.logger.Printf("Failed to apply device settings: %v", err)
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*millis(a.cfg.MDNSTimeoutMs)+time.Second)
		defer cancel()
		addr := a.resolve(ctx, d.Host)
		if addr != a.client.Host() {
			a.client.SetHost(addr)
			a.hostChanged(d.Host, "", addr)
		}
	}()
}

// resolve falls back to the unresolved name so the client still has a
// target; the keypad raises its warning when that fails.
func (a *App) resolve(ctx context.Context, host string) string {
	addr, err := a.resolver.Resolve(ctx, host)
	if err != nil {
		a.logger.Printf("Failed to resolve %s: %v", host, err)
		return host
	}
	return addr
}

func (a *App) configuredHost() string {
	d, err := a.store.Load(context.Background())
	if err != nil {
		return a.cfg.AmpliPiHost
	}
	return d.Host
}

func (a *App) hostChanged(name, oldAddr, newAddr string) {
	a.record(audit.EventHostResolved, fmt.Sprintf("%s resolved to %s", name, newAddr), map[string]any{
		"host":     name,
		"previous": oldAddr,
		"address":  newAddr,
	})
}

func (a *App) clientPaired(id auth.Identity) {
	a.record(audit.EventClientPaired, "Paired "+id.DeviceName, map[string]any{
		"device_id":   id.DeviceID,
		"device_name": id.DeviceName,
		"scope":       string(id.Scope),
	})
}

func (a *App) record(eventType audit.EventType, message string, payload map[string]any) {
	if _, err := a.audit.RecordEvent(audit.WriteEventInput{
		Type:    string(eventType),
		Message: message,
		Payload: payload,
	}); err != nil {
		a.logger.Printf("Failed to record %s: %v", eventType, err)
	}
}

func needsHost(cfg config.Config) bool {
	return cfg.DisplayBackend == config.DisplayILI9341 ||
		cfg.TouchDriver == config.TouchXPT2046 ||
		cfg.TouchDriver == config.TouchGT1151
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
