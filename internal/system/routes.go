package system

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/amplipi-keypad-go/internal/amplipi"
	"github.com/strefethen/amplipi-keypad-go/internal/api"
	"github.com/strefethen/amplipi-keypad-go/internal/apperrors"
)

// RegisterRoutes wires system routes to the router.
func RegisterRoutes(router chi.Router, service *Service) {
	router.Method(http.MethodGet, "/v1/system/info", api.Handler(getSystemInfo(service)))
	router.Method(http.MethodGet, "/v1/dashboard", api.Handler(getDashboard(service)))
	router.Method(http.MethodGet, "/v1/system/amplipi", api.Handler(probeAmpliPi(service)))
}

func probeAmpliPi(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		probe, err := service.ProbeAmpliPi(r.Context())
		if err != nil {
			return upstreamError(err)
		}
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":     "amplipi_probe",
			"host":       probe.Host,
			"latency_ms": probe.LatencyMS,
			"sources":    probe.Sources,
			"zones":      probe.Zones,
			"streams":    probe.Streams,
		})
	}
}

// upstreamError maps the AmpliPi client's errors onto the response envelope.
func upstreamError(err error) error {
	var (
		timeout     *amplipi.TimeoutError
		unreachable *amplipi.UnreachableError
		rejected    *amplipi.RejectedError
	)
	switch {
	case errors.Is(err, ErrNoProbe):
		return apperrors.NewServiceUnavailableError(apperrors.ErrorCodeKeypadNotReady, "AmpliPi client not configured")
	case errors.As(err, &timeout):
		return apperrors.NewUpstreamError(apperrors.ErrorCodeAmpliPiTimeout, err.Error(), http.StatusGatewayTimeout,
			&apperrors.Remediation{Action: "retry", UserAction: "The AmpliPi is slow to answer; try again"})
	case errors.As(err, &unreachable):
		return apperrors.NewUpstreamError(apperrors.ErrorCodeAmpliPiUnreachable, err.Error(), http.StatusBadGateway,
			&apperrors.Remediation{Action: "update_settings", Endpoint: "/v1/settings/device", UserAction: "Check the AmpliPi host and network"})
	case errors.As(err, &rejected):
		return apperrors.NewUpstreamError(apperrors.ErrorCodeAmpliPiRejected, err.Error(), http.StatusBadGateway, nil)
	case amplipi.IsMalformed(err):
		return apperrors.NewUpstreamError(apperrors.ErrorCodeAmpliPiRejected, err.Error(), http.StatusBadGateway, nil)
	}
	return apperrors.NewInternalError("AmpliPi probe failed")
}

// getSystemInfo handles GET /v1/system/info
func getSystemInfo(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		info, err := service.GetSystemInfo()
		if err != nil {
			return apperrors.NewInternalError("Failed to get system info")
		}

		return api.WriteResource(w, http.StatusOK, formatSystemInfo(info))
	}
}

// getDashboard handles GET /v1/dashboard
func getDashboard(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		data, err := service.GetDashboardData()
		if err != nil {
			return apperrors.NewInternalError("Failed to get dashboard data")
		}

		return api.WriteResource(w, http.StatusOK, formatDashboardData(data))
	}
}

// formatSystemInfo formats SystemInfo for JSON response.
func formatSystemInfo(info *SystemInfo) map[string]any {
	result := map[string]any{
		"object":            "system_info",
		"version":           info.Version,
		"uptime_seconds":    info.Uptime,
		"memory_mb":         info.MemoryUsageMB,
		"goroutines":        info.Goroutines,
		"sqlite_connected":  info.SQLiteConnected,
		"scheduler_running": info.SchedulerRunning,
		"audit_healthy":     info.AuditHealthy,
		"display_backend":   info.DisplayBackend,
		"touch_driver":      info.TouchDriver,
		"amplipi_host":      info.ConfiguredHost,
		"warning":           info.Warning,
		"calibrated":        info.Calibrated,
	}

	if info.ResolvedHost != "" {
		result["amplipi_address"] = info.ResolvedHost
	} else {
		result["amplipi_address"] = nil
	}
	if info.Screen != "" {
		result["screen"] = info.Screen
	}

	return result
}

// formatDashboardData formats DashboardData for JSON response.
func formatDashboardData(data *DashboardData) map[string]any {
	zones := make([]map[string]any, 0, len(data.Zones))
	for _, z := range data.Zones {
		zones = append(zones, map[string]any{
			"zone_id":        z.ZoneID,
			"known":          z.Known,
			"muted":          z.Muted,
			"volume_percent": z.Volume,
		})
	}

	result := map[string]any{
		"object":          "dashboard",
		"zones":           zones,
		"attention_items": formatAttentionItems(data.AttentionItems),
	}

	// Always include "now_playing" (null before the first frame)
	if data.NowPlaying != nil {
		result["now_playing"] = map[string]any{
			"source_name": data.NowPlaying.SourceName,
			"artist":      data.NowPlaying.Artist,
			"song":        data.NowPlaying.Song,
			"album":       data.NowPlaying.Album,
			"status":      data.NowPlaying.Status,
		}
	} else {
		result["now_playing"] = nil
	}

	return result
}

// formatAttentionItems formats a slice of AttentionItem for JSON response.
func formatAttentionItems(items []AttentionItem) []map[string]any {
	result := make([]map[string]any, 0, len(items))
	for _, item := range items {
		formatted := map[string]any{
			"type":     item.Type,
			"severity": item.Severity,
			"message":  item.Message,
		}
		if item.Details != nil {
			formatted["details"] = item.Details
		}
		if item.ResolveHint != "" {
			formatted["resolve_hint"] = item.ResolveHint
		}
		result = append(result, formatted)
	}
	return result
}
