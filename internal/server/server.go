package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/strefethen/amplipi-keypad-go/internal/api"
	"github.com/strefethen/amplipi-keypad-go/internal/audit"
	"github.com/strefethen/amplipi-keypad-go/internal/auth"
	"github.com/strefethen/amplipi-keypad-go/internal/config"
	"github.com/strefethen/amplipi-keypad-go/internal/events"
	"github.com/strefethen/amplipi-keypad-go/internal/openapi"
	"github.com/strefethen/amplipi-keypad-go/internal/scheduler"
	"github.com/strefethen/amplipi-keypad-go/internal/settings"
	"github.com/strefethen/amplipi-keypad-go/internal/system"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestLoggerMiddleware logs all incoming HTTP requests
func requestLoggerMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Websocket upgrades need the raw writer's Hijacker.
			if r.URL.Path == "/v1/events" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			logger.Printf("%s %s %d %s", r.Method, r.URL.Path, wrapped.status, time.Since(start).Round(time.Millisecond))
		})
	}
}

// Pinger reports database reachability.
type Pinger interface {
	Ping() error
}

// Deps are the live components the control server exposes. Keypad, DB and
// Settings are required.
type Deps struct {
	DB        Pinger
	Keypad    Keypad
	Hub       *events.Hub
	Screen    ScreenSource
	Settings  *settings.Store
	Audit     *audit.Service
	Scheduler *scheduler.Runner
	System    *system.Service
	Pairing   auth.Hooks
	Logger    *log.Logger
}

// NewHandler builds the HTTP handler and returns a shutdown function.
func NewHandler(cfg config.Config, deps Deps) (http.Handler, func(context.Context) error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(requestLoggerMiddleware(logger))
	router.Use(api.RequestIDMiddleware)
	router.Use(api.Recoverer(logger))
	issuer := auth.NewIssuer(cfg)
	router.Use(auth.Middleware(issuer, auth.TestModeEnabled(cfg)))

	var hub SnapshotSource
	var eventsHandler http.Handler
	if deps.Hub != nil {
		hub = deps.Hub
		eventsHandler = http.HandlerFunc(deps.Hub.ServeWS)
	}
	state := NewStateAdapter(hub, deps.Keypad)

	registerHealthRoutes(router, deps.DB, state)
	openapi.RegisterRoutes(router)

	pairingTTL := time.Duration(cfg.PairingTTLSeconds) * time.Second
	if pairingTTL <= 0 {
		pairingTTL = 5 * time.Minute
	}
	pairingStore := auth.NewPairingStore(pairingTTL)
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	pairingStore.StartCleanup(shutdownCtx, time.Minute)
	auth.RegisterRoutes(router, pairingStore, issuer, deps.Pairing, logger)

	registerKeypadRoutes(router, deps.Keypad, state, deps.Screen, eventsHandler)
	settings.RegisterRoutes(router, deps.Settings)

	if deps.Audit != nil {
		audit.RegisterRoutes(router, deps.Audit)
	}
	if deps.Scheduler != nil {
		scheduler.RegisterRoutes(router, deps.Scheduler)
	}
	if deps.System != nil {
		system.RegisterRoutes(router, deps.System)
	}

	shutdown := func(ctx context.Context) error {
		shutdownCancel()
		return nil
	}

	return router, shutdown
}

func registerHealthRoutes(router chi.Router, db Pinger, state SnapshotSource) {
	router.Method(http.MethodGet, "/v1/health", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		_, drawn := state.Latest()
		response := map[string]any{
			"status":    "healthy",
			"service":   "amplipi-keypad",
			"database":  db.Ping() == nil,
			"keypad":    drawn,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		return api.WriteJSON(w, http.StatusOK, response)
	}))
	router.Method(http.MethodGet, "/v1/health/live", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}))
	router.Method(http.MethodGet, "/v1/health/ready", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if err := db.Ping(); err != nil {
			return api.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "reason": "database"})
		}
		if _, ok := state.Latest(); !ok {
			return api.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "reason": "keypad"})
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}))
}
