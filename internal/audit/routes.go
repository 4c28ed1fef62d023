package audit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/amplipi-keypad-go/internal/api"
	"github.com/strefethen/amplipi-keypad-go/internal/apperrors"
	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

// MaxMessageLength caps messages posted by clients.
const MaxMessageLength = 2000

// DefaultSummaryWindow is how far back /v1/audit/summary looks without ?since.
const DefaultSummaryWindow = 24 * time.Hour

var levelNames = []string{"INFO", "WARN", "ERROR"}

func parseLevel(s string) (EventLevel, error) {
	for _, name := range levelNames {
		if s == name {
			return EventLevel(s), nil
		}
	}
	return "", apperrors.NewValidationError("invalid level", map[string]any{"level": s, "valid_levels": levelNames})
}

// RegisterRoutes mounts the audit trail under /v1/audit.
func RegisterRoutes(router chi.Router, service *Service) {
	router.Route("/v1/audit", func(r chi.Router) {
		r.Method(http.MethodGet, "/events", api.Handler(listEvents(service)))
		r.Method(http.MethodPost, "/events", api.Handler(createEvent(service)))
		r.Method(http.MethodGet, "/events/{event_id}", api.Handler(showEvent(service)))
		r.Method(http.MethodGet, "/summary", api.Handler(summarize(service)))
	})
}

func listEvents(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		filters, err := parseFilters(r)
		if err != nil {
			return err
		}
		events, total, hasMore, err := service.QueryEvents(filters)
		if err != nil {
			return apperrors.NewInternalError("Failed to query audit events")
		}

		data := make([]map[string]any, len(events))
		for i := range events {
			data[i] = eventResource(&events[i])
		}
		w.Header().Set("x-total-count", strconv.Itoa(total))
		return api.WriteList(w, r.URL.Path, data, hasMore)
	}
}

func showEvent(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		id := chi.URLParam(r, "event_id")
		event, err := service.GetEvent(id)
		var missing *EventNotFoundError
		switch {
		case errors.As(err, &missing):
			return apperrors.NewAppError(apperrors.ErrorCodeEventNotFound, "Event not found", http.StatusNotFound,
				map[string]any{"event_id": id}, nil)
		case err != nil:
			return apperrors.NewInternalError("Failed to get audit event")
		}
		return api.WriteResource(w, http.StatusOK, eventResource(event))
	}
}

// createEvent lets a paired client annotate the trail, e.g. the terminal
// monitor noting that it drove a touch.
func createEvent(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req struct {
			Type    string         `json:"type"`
			Level   string         `json:"level,omitempty"`
			Message string         `json:"message"`
			Screen  *string        `json:"screen,omitempty"`
			ZoneID  *int           `json:"zone_id,omitempty"`
			Payload map[string]any `json:"payload,omitempty"`
		}
		if err := api.DecodeJSON(r, &req); err != nil {
			return err
		}

		switch {
		case req.Type == "":
			return apperrors.NewValidationError("type is required", nil)
		case !validEventTypes[req.Type]:
			return apperrors.NewValidationError("invalid event type", map[string]any{"type": req.Type})
		case len(req.Message) > MaxMessageLength:
			return apperrors.NewValidationError("message too long", map[string]any{
				"max_length":    MaxMessageLength,
				"actual_length": len(req.Message),
			})
		}
		if req.Screen != nil {
			if _, err := keypad.ParseScreen(*req.Screen); err != nil {
				return apperrors.NewValidationError("invalid screen", map[string]any{"screen": *req.Screen})
			}
		}

		input := WriteEventInput{
			Type:    req.Type,
			Message: req.Message,
			Screen:  req.Screen,
			ZoneID:  req.ZoneID,
			Payload: req.Payload,
		}
		if id := api.GetRequestID(r); id != "" {
			input.RequestID = &id
		}
		if req.Level != "" {
			level, err := parseLevel(req.Level)
			if err != nil {
				return err
			}
			input.Level = &level
		}

		event, err := service.RecordEvent(input)
		if err != nil {
			return apperrors.NewInternalError("Failed to record audit event")
		}
		return api.WriteResource(w, http.StatusCreated, eventResource(event))
	}
}

func summarize(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		since := time.Now().Add(-DefaultSummaryWindow)
		if raw := r.URL.Query().Get("since"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return apperrors.NewValidationError("invalid 'since' datetime, expected RFC 3339", map[string]any{"since": raw})
			}
			since = t
		}
		counts, err := service.Summary(since)
		if err != nil {
			return apperrors.NewInternalError("Failed to summarize audit events")
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":  "audit_summary",
			"since":   since.UTC().Format(time.RFC3339),
			"total":   total,
			"by_type": counts,
		})
	}
}

// parseFilters reads the list query: type, level, screen, zone_id, from,
// to, limit and offset.
func parseFilters(r *http.Request) (EventQueryFilters, error) {
	q := r.URL.Query()
	filters := EventQueryFilters{Limit: DefaultQueryLimit}

	if v := q.Get("type"); v != "" {
		filters.Type = &v
	}
	if v := q.Get("level"); v != "" {
		level, err := parseLevel(v)
		if err != nil {
			return filters, err
		}
		filters.Level = &level
	}
	if v := q.Get("screen"); v != "" {
		if _, err := keypad.ParseScreen(v); err != nil {
			return filters, apperrors.NewValidationError("invalid screen", map[string]any{"screen": v})
		}
		filters.Screen = &v
	}
	if v := q.Get("zone_id"); v != "" {
		zone, err := strconv.Atoi(v)
		if err != nil || zone < keypad.MinZoneID || zone > keypad.MaxZoneID {
			return filters, apperrors.NewValidationError("invalid zone_id", map[string]any{"zone_id": v})
		}
		filters.ZoneID = &zone
	}
	for name, dst := range map[string]**string{"from": &filters.StartDate, "to": &filters.EndDate} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			return filters, apperrors.NewValidationError("invalid '"+name+"' datetime, expected RFC 3339", map[string]any{name: v})
		}
		*dst = &v
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > MaxQueryLimit {
			return filters, apperrors.NewValidationError("invalid limit, must be between 1 and 1000", map[string]any{"limit": v})
		}
		filters.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filters, apperrors.NewValidationError("invalid offset, must be >= 0", map[string]any{"offset": v})
		}
		filters.Offset = offset
	}
	return filters, nil
}

func eventResource(event *AuditEvent) map[string]any {
	out := map[string]any{
		"object":    "audit_event",
		"event_id":  event.EventID,
		"timestamp": event.Timestamp.UTC().Format(time.RFC3339),
		"type":      event.Type,
		"level":     string(event.Level),
		"message":   event.Message,
	}
	if event.RequestID != nil {
		out["request_id"] = *event.RequestID
	}
	if event.Screen != nil {
		out["screen"] = *event.Screen
	}
	if event.ZoneID != nil {
		out["zone_id"] = *event.ZoneID
	}
	if len(event.Payload) > 0 {
		out["payload"] = event.Payload
	}
	return out
}
