package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/strefethen/amplipi-keypad-go/internal/api"
	"github.com/strefethen/amplipi-keypad-go/internal/apperrors"
)

// Hooks lets the keypad take part in pairing. Either field may be nil.
type Hooks struct {
	// ShowCode puts a fresh pairing code on the panel for ttl.
	ShowCode func(code string, ttl time.Duration)
	// Paired runs after a client exchanges a valid code for tokens.
	Paired func(Identity)
}

// RegisterRoutes mounts pairing, refresh and whoami.
func RegisterRoutes(router chi.Router, store *PairingStore, issuer *Issuer, hooks Hooks, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}

	router.Method(http.MethodPost, "/v1/auth/pair/start", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		code, err := store.Start()
		if err != nil {
			return apperrors.NewInternalError("Failed to generate pairing code")
		}
		// The code only goes to the panel. With no panel it has to come
		// from the log.
		if hooks.ShowCode != nil {
			hooks.ShowCode(code, store.TTL())
		} else {
			logger.Printf("[%s] pairing code %s", api.GetRequestID(r), code)
		}

		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object":          "pairing_start",
			"pairing_hint":    "Enter the code shown on the keypad display",
			"expires_in_sec":  int(store.TTL().Seconds()),
			"max_attempts":    MaxPairingAttempts,
			"display_enabled": hooks.ShowCode != nil,
		})
	}))

	router.Method(http.MethodPost, "/v1/auth/pair/complete", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var body struct {
			PairCode   string `json:"pair_code"`
			DeviceName string `json:"device_name"`
			Scope      string `json:"scope"`
		}
		if err := api.DecodeJSON(r, &body); err != nil {
			return err
		}
		body.DeviceName = strings.TrimSpace(body.DeviceName)
		if body.PairCode == "" {
			return apperrors.NewValidationError("pair_code is required", nil)
		}
		if body.DeviceName == "" {
			return apperrors.NewValidationError("device_name is required", nil)
		}
		scope, err := ParseScope(body.Scope)
		if err != nil {
			return apperrors.NewValidationError(err.Error(), map[string]any{
				"scope":   body.Scope,
				"allowed": []Scope{ScopeControl, ScopeMonitor},
			})
		}

		if err := store.Redeem(body.PairCode); err != nil {
			return pairingError(err)
		}

		id := Identity{DeviceID: uuid.NewString(), DeviceName: body.DeviceName, Scope: scope}
		tokens, err := issuer.Issue(id)
		if err != nil {
			return apperrors.NewInternalError("Failed to generate token pair")
		}
		if hooks.Paired != nil {
			hooks.Paired(id)
		}

		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":         "token_pair",
			"device_id":      id.DeviceID,
			"scope":          id.Scope,
			"access_token":   tokens.AccessToken,
			"refresh_token":  tokens.RefreshToken,
			"expires_in_sec": int(tokens.ExpiresIn.Seconds()),
		})
	}))

	router.Method(http.MethodPost, "/v1/auth/refresh", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := api.DecodeJSON(r, &body); err != nil {
			return err
		}
		if body.RefreshToken == "" {
			return apperrors.NewValidationError("refresh_token is required", nil)
		}

		access, expiresIn, err := issuer.Refresh(body.RefreshToken)
		switch {
		case errors.Is(err, ErrTokenExpired):
			return apperrors.NewUnauthorizedError("Refresh token has expired", apperrors.ErrorCodeAuthTokenExpired)
		case errors.Is(err, ErrTokenType):
			return apperrors.NewUnauthorizedError("Expected a refresh token", apperrors.ErrorCodeAuthTokenInvalid)
		case err != nil:
			return apperrors.NewUnauthorizedError("Invalid refresh token", apperrors.ErrorCodeAuthTokenInvalid)
		}

		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":         "token_refresh",
			"access_token":   access,
			"expires_in_sec": int(expiresIn.Seconds()),
		})
	}))

	router.Method(http.MethodGet, "/v1/auth/whoami", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			return apperrors.NewUnauthorizedError("No identity on request")
		}
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":      "identity",
			"device_id":   id.DeviceID,
			"device_name": id.DeviceName,
			"scope":       id.Scope,
		})
	}))
}

func pairingError(err error) error {
	switch {
	case errors.Is(err, ErrPairingExpired):
		return apperrors.NewUnauthorizedError("Pairing code has expired", apperrors.ErrorCodeAuthPairingExpired)
	case errors.Is(err, ErrPairingLocked):
		return apperrors.NewRateLimitError("Too many wrong codes; start pairing again", apperrors.ErrorCodeAuthPairingLocked)
	default:
		return apperrors.NewUnauthorizedError("Invalid pairing code", apperrors.ErrorCodeAuthPairingInvalid)
	}
}
