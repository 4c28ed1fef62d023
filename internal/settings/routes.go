package settings

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/amplipi-keypad-go/internal/api"
	"github.com/strefethen/amplipi-keypad-go/internal/apperrors"
	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

// RegisterRoutes wires settings routes to the router.
func RegisterRoutes(router chi.Router, store *Store) {
	router.Method(http.MethodGet, "/v1/settings/device", api.Handler(getDeviceSettings(store)))
	router.Method(http.MethodPut, "/v1/settings/device", api.Handler(updateDeviceSettings(store)))
	router.Method(http.MethodGet, "/v1/settings/calibration", api.Handler(getCalibration(store)))
	router.Method(http.MethodDelete, "/v1/settings/calibration", api.Handler(deleteCalibration(store)))
}

// getDeviceSettings handles GET /v1/settings/device
func getDeviceSettings(store *Store) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		d, err := store.Load(r.Context())
		if err != nil {
			return apperrors.NewInternalError("Failed to load device settings")
		}
		return api.WriteResource(w, http.StatusOK, formatDevice(d))
	}
}

// UpdateDeviceInput represents the request body for updating device settings.
// Zone2 of -1 disables the second zone.
type UpdateDeviceInput struct {
	Host   *string `json:"host,omitempty"`
	Zone1  *int    `json:"zone1,omitempty"`
	Zone2  *int    `json:"zone2,omitempty"`
	Source *int    `json:"source,omitempty"`
}

// updateDeviceSettings handles PUT /v1/settings/device
func updateDeviceSettings(store *Store) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var input UpdateDeviceInput
		if err := api.DecodeJSON(r, &input); err != nil {
			return err
		}
		if err := validateDeviceInput(input); err != nil {
			return err
		}

		current, err := store.Load(r.Context())
		if err != nil {
			return apperrors.NewInternalError("Failed to load device settings")
		}
		if input.Host != nil {
			current.Host = strings.TrimSpace(*input.Host)
		}
		if input.Zone1 != nil {
			current.Zone1 = *input.Zone1
		}
		if input.Zone2 != nil {
			current.Zone2 = *input.Zone2
		}
		if input.Source != nil {
			current.Source = *input.Source
		}

		saved, err := store.Save(r.Context(), current)
		if err != nil {
			return apperrors.NewInternalError("Failed to update device settings")
		}
		return api.WriteResource(w, http.StatusOK, formatDevice(saved))
	}
}

func validateDeviceInput(input UpdateDeviceInput) error {
	if input.Host != nil && strings.TrimSpace(*input.Host) == "" {
		return apperrors.NewValidationError("host must not be empty", map[string]any{"field": "host"})
	}
	ranges := []struct {
		field  string
		value  *int
		lo, hi int
	}{
		{"zone1", input.Zone1, keypad.MinZoneID, keypad.MaxZoneID},
		{"zone2", input.Zone2, keypad.ZoneDisabled, keypad.MaxZoneID},
		{"source", input.Source, keypad.MinSourceID, keypad.MaxSourceID},
	}
	for _, rg := range ranges {
		if rg.value == nil {
			continue
		}
		if *rg.value < rg.lo || *rg.value > rg.hi {
			return apperrors.NewValidationError(rg.field+" out of range", map[string]any{
				"field": rg.field,
				"min":   rg.lo,
				"max":   rg.hi,
			})
		}
	}
	return nil
}

// getCalibration handles GET /v1/settings/calibration
func getCalibration(store *Store) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		cal, ok, err := store.LoadCalibration(r.Context())
		if err != nil {
			return apperrors.NewInternalError("Failed to load calibration")
		}
		if !ok {
			return apperrors.NewAppError(apperrors.ErrorCodeCalibrationNotFound, "No touch calibration stored", http.StatusNotFound, nil, nil)
		}
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":   "calibration",
			"x_scale":  cal.XScale,
			"y_scale":  cal.YScale,
			"x_offset": cal.XOffset,
			"y_offset": cal.YOffset,
		})
	}
}

// deleteCalibration handles DELETE /v1/settings/calibration. The calibration
// flow runs on the next start.
func deleteCalibration(store *Store) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := store.ClearCalibration(r.Context()); err != nil {
			return apperrors.NewInternalError("Failed to clear calibration")
		}
		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object":  "calibration",
			"deleted": true,
		})
	}
}

// formatDevice formats Device for JSON response.
func formatDevice(d Device) map[string]any {
	result := map[string]any{
		"object":    "device_settings",
		"host":      d.Host,
		"zone1":     d.Zone1,
		"zone2":     d.Zone2,
		"source":    d.Source,
		"dual_zone": d.Zone2 != keypad.ZoneDisabled,
		"persisted": !d.UpdatedAt.IsZero(),
	}
	if !d.UpdatedAt.IsZero() {
		result["updated_at"] = d.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return result
}
