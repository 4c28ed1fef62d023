package server

import (
	"bytes"
	"errors"
	"image/png"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/amplipi-keypad-go/internal/api"
	"github.com/strefethen/amplipi-keypad-go/internal/apperrors"
	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

const (
	screenWidth  = 240
	screenHeight = 320

	defaultNoticeTTL = 5 * time.Second
	maxNoticeLength  = 64
)

// registerKeypadRoutes wires the live keypad routes.
func registerKeypadRoutes(router chi.Router, kp Keypad, state SnapshotSource, screen ScreenSource, events http.Handler) {
	router.Method(http.MethodGet, "/v1/state", api.Handler(getState(state)))
	router.Method(http.MethodPost, "/v1/touch", api.Handler(postTouch(kp)))
	router.Method(http.MethodPost, "/v1/notice", api.Handler(postNotice(kp)))
	if screen != nil {
		router.Method(http.MethodGet, "/v1/screen.png", api.Handler(getScreen(screen)))
	}
	if events != nil {
		router.Handle("/v1/events", events)
	}
}

// getState handles GET /v1/state
func getState(state SnapshotSource) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		snap, ok := state.Latest()
		if !ok {
			return apperrors.NewServiceUnavailableError(apperrors.ErrorCodeKeypadNotReady, "Keypad has not drawn its first frame")
		}
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":   "keypad_state",
			"snapshot": snap,
		})
	}
}

// TouchInput represents the request body for POST /v1/touch.
type TouchInput struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

// postTouch handles POST /v1/touch. The touch is queued for the keypad loop,
// which handles it exactly as a panel press.
func postTouch(kp Keypad) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var input TouchInput
		if err := api.DecodeJSON(r, &input); err != nil {
			return err
		}
		if input.X == nil || input.Y == nil {
			return apperrors.NewValidationError("x and y are required", nil)
		}
		x, y := *input.X, *input.Y
		if x < 0 || x >= screenWidth || y < 0 || y >= screenHeight {
			return apperrors.NewValidationError("touch outside the display", map[string]any{
				"x": x, "y": y, "width": screenWidth, "height": screenHeight,
			})
		}

		if err := kp.Inject(x, y); err != nil {
			return queueError(err)
		}
		return api.WriteAction(w, http.StatusAccepted, map[string]any{
			"object": "touch",
			"x":      x,
			"y":      y,
			"queued": true,
		})
	}
}

// NoticeInput represents the request body for POST /v1/notice.
type NoticeInput struct {
	Text  string `json:"text"`
	TTLMs *int   `json:"ttl_ms,omitempty"`
}

// postNotice handles POST /v1/notice
func postNotice(kp Keypad) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var input NoticeInput
		if err := api.DecodeJSON(r, &input); err != nil {
			return err
		}
		text := strings.TrimSpace(input.Text)
		if text == "" {
			return apperrors.NewValidationError("text is required", nil)
		}
		if len(text) > maxNoticeLength {
			return apperrors.NewValidationError("text too long", map[string]any{"max_length": maxNoticeLength})
		}
		ttl := defaultNoticeTTL
		if input.TTLMs != nil {
			ttl = time.Duration(*input.TTLMs) * time.Millisecond
		}

		if err := kp.Notify(text, ttl); err != nil {
			return queueError(err)
		}
		return api.WriteAction(w, http.StatusAccepted, map[string]any{
			"object": "notice",
			"text":   text,
			"queued": true,
		})
	}
}

// getScreen handles GET /v1/screen.png
func getScreen(screen ScreenSource) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var buf bytes.Buffer
		if err := png.Encode(&buf, screen.Snapshot()); err != nil {
			return apperrors.NewInternalError("Failed to encode screenshot")
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return nil
	}
}

func queueError(err error) error {
	if errors.Is(err, keypad.ErrInboxFull) {
		return apperrors.NewRateLimitError("Keypad is busy, try again", apperrors.ErrorCodeKeypadQueueFull)
	}
	return apperrors.NewInternalError("Failed to queue keypad input")
}
