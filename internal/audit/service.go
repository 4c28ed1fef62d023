package audit

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

const (
	DefaultRetentionDays   = 30
	DefaultQueryLimit      = 100
	MaxQueryLimit          = 1000
	MaxConsecutiveFailures = 3
)

// Service is the keypad's audit trail. It turns controller events into rows
// and reports itself unhealthy after MaxConsecutiveFailures database errors
// in a row.
type Service struct {
	logger    *log.Logger
	repo      *Repository
	retention time.Duration
	now       func() time.Time

	mu       sync.RWMutex
	failures int
}

// NewService creates the audit service. retentionDays <= 0 means
// DefaultRetentionDays.
func NewService(dbPair DBPair, retentionDays int, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Service{
		logger:    logger,
		repo:      NewRepository(dbPair),
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

var _ keypad.Auditor = (*Service)(nil)

// Record stores a controller event. It never blocks the keypad on an error;
// failures are only logged.
func (s *Service) Record(event keypad.AuditEvent) {
	level := EventLevelInfo
	if event.Failed {
		level = EventLevelWarn
	}
	screen := event.Screen.String()
	_, err := s.RecordEvent(WriteEventInput{
		Type:    event.Type,
		Level:   &level,
		Screen:  &screen,
		ZoneID:  event.Zone,
		Message: event.Message,
		Payload: event.Payload,
	})
	if err != nil {
		s.logger.Printf("Failed to record %s: %v", event.Type, err)
	}
}

// RecordEvent writes one event. A missing level means INFO.
func (s *Service) RecordEvent(input WriteEventInput) (*AuditEvent, error) {
	if input.Level == nil {
		level := EventLevelInfo
		input.Level = &level
	}
	event, err := s.repo.InsertEvent(input)
	if err = s.track(err); err != nil {
		return nil, fmt.Errorf("record %s: %w", input.Type, err)
	}
	return event, nil
}

// QueryEvents returns one page of events, newest first, with the total
// match count and whether more pages follow.
func (s *Service) QueryEvents(filters EventQueryFilters) ([]AuditEvent, int, bool, error) {
	switch {
	case filters.Limit <= 0:
		filters.Limit = DefaultQueryLimit
	case filters.Limit > MaxQueryLimit:
		filters.Limit = MaxQueryLimit
	}
	events, total, err := s.repo.QueryEvents(filters)
	if err = s.track(err); err != nil {
		return nil, 0, false, fmt.Errorf("query audit events: %w", err)
	}
	return events, total, filters.Offset+len(events) < total, nil
}

// GetEvent returns one event or an *EventNotFoundError.
func (s *Service) GetEvent(eventID string) (*AuditEvent, error) {
	event, err := s.repo.GetEvent(eventID)
	if err = s.track(err); err != nil {
		return nil, fmt.Errorf("get audit event: %w", err)
	}
	if event == nil {
		return nil, &EventNotFoundError{EventID: eventID}
	}
	return event, nil
}

// Summary counts events per type recorded at or after since.
func (s *Service) Summary(since time.Time) (map[string]int, error) {
	counts, err := s.repo.CountByType(since)
	if err = s.track(err); err != nil {
		return nil, fmt.Errorf("summarize audit events: %w", err)
	}
	return counts, nil
}

// Prune drops events older than the retention window. The scheduler calls
// it on its cron spec.
func (s *Service) Prune() (int64, error) {
	count, err := s.repo.Prune(s.now().Add(-s.retention))
	if err = s.track(err); err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	if count > 0 {
		s.logger.Printf("Pruned %d audit events older than %s", count, s.retention)
	}
	return count, nil
}

// IsHealthy is false once MaxConsecutiveFailures calls failed in a row.
func (s *Service) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures < MaxConsecutiveFailures
}

func (s *Service) track(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failures++
	} else {
		s.failures = 0
	}
	return err
}

// EventNotFoundError is returned by GetEvent for an unknown id.
type EventNotFoundError struct {
	EventID string
}

func (e *EventNotFoundError) Error() string {
	return "audit event not found: " + e.EventID
}
