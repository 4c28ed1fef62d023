package audit

import (
	"time"

	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

// EventLevel represents the severity level of an audit event.
type EventLevel string

const (
	EventLevelDebug EventLevel = "DEBUG"
	EventLevelInfo  EventLevel = "INFO"
	EventLevelWarn  EventLevel = "WARN"
	EventLevelError EventLevel = "ERROR"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventTouchAction    EventType = keypad.EventTouchAction
	EventAPIWriteFailed EventType = keypad.EventAPIWriteFailed
	EventAPIFetchFailed EventType = keypad.EventAPIFetchFailed
	EventSettingsSaved  EventType = keypad.EventSettingsSaved
	EventDeviceReset    EventType = keypad.EventDeviceReset
	EventHostResolved   EventType = "HOST_RESOLVED"
	EventClientPaired   EventType = "CLIENT_PAIRED"
	EventCalibrated     EventType = "TOUCH_CALIBRATED"
	EventSystemStartup  EventType = "SYSTEM_STARTUP"
	EventSystemError    EventType = "SYSTEM_ERROR"
)

var validEventTypes = map[string]bool{
	string(EventTouchAction):    true,
	string(EventAPIWriteFailed): true,
	string(EventAPIFetchFailed): true,
	string(EventSettingsSaved):  true,
	string(EventDeviceReset):    true,
	string(EventHostResolved):   true,
	string(EventClientPaired):   true,
	string(EventCalibrated):     true,
	string(EventSystemStartup):  true,
	string(EventSystemError):    true,
}

// AuditEvent represents a single audit event.
type AuditEvent struct {
	EventID   string         `json:"event_id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Level     EventLevel     `json:"level"`
	RequestID *string        `json:"request_id,omitempty"`
	Screen    *string        `json:"screen,omitempty"`
	ZoneID    *int           `json:"zone_id,omitempty"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload"`
}

// WriteEventInput contains the fields for creating a new audit event.
type WriteEventInput struct {
	Type      string         `json:"type"`
	Level     *EventLevel    `json:"level,omitempty"`
	RequestID *string        `json:"request_id,omitempty"`
	Screen    *string        `json:"screen,omitempty"`
	ZoneID    *int           `json:"zone_id,omitempty"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// EventQueryFilters contains optional filters for querying events.
type EventQueryFilters struct {
	Type      *string     `json:"type,omitempty"`
	Level     *EventLevel `json:"level,omitempty"`
	StartDate *string     `json:"start_date,omitempty"` // ISO 8601 format
	EndDate   *string     `json:"end_date,omitempty"`   // ISO 8601 format
	Screen    *string     `json:"screen,omitempty"`
	ZoneID    *int        `json:"zone_id,omitempty"`
	Limit     int         `json:"limit,omitempty"`
	Offset    int         `json:"offset,omitempty"`
}
