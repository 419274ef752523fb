package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edurecord/student-records-compliance/interfaces"
	"github.com/edurecord/student-records-compliance/types"
)

// ZerologSink writes audit events to the process log. Suitable for
// development and as a secondary sink; production deployments persist events
// through the MongoDB sink.
type ZerologSink struct{}

// NewZerologSink creates a new log-backed audit sink.
func NewZerologSink() *ZerologSink {
	return &ZerologSink{}
}

// Append logs the event with its core fields.
func (s *ZerologSink) Append(ctx context.Context, event *types.AuditEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	logEvent := log.Info().
		Str("auditId", event.ID).
		Time("timestamp", event.Timestamp).
		Str("action", event.Action).
		Str("outcome", event.Outcome).
		Str("region", event.Region).
		Str("resourceType", event.ResourceType)

	if event.Actor != "" {
		logEvent = logEvent.Str("actor", event.Actor)
	}
	if event.ResourceID != "" {
		logEvent = logEvent.Str("resourceId", event.ResourceID)
	}
	for k, v := range event.Detail {
		logEvent = logEvent.Str(k, v)
	}

	logEvent.Msg("Audit event")
	return nil
}

// MemorySink retains events in memory and supports filtered queries. Used
// in tests and as the default sink for in-process audit-log generation.
type MemorySink struct {
	mu     sync.RWMutex
	events []*types.AuditEvent
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append stores a copy of the event. The stored event is never mutated.
func (s *MemorySink) Append(ctx context.Context, event *types.AuditEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	copied := *event
	if event.Detail != nil {
		copied.Detail = make(map[string]string, len(event.Detail))
		for k, v := range event.Detail {
			copied.Detail[k] = v
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, &copied)
	return nil
}

// Events returns events matching the filters, in append order.
func (s *MemorySink) Events(ctx context.Context, filters map[string]string) ([]*types.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*types.AuditEvent
	for _, event := range s.events {
		if eventMatches(event, filters) {
			matched = append(matched, event)
		}
	}
	return matched, nil
}

// Len returns the number of stored events.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func eventMatches(event *types.AuditEvent, filters map[string]string) bool {
	for key, want := range filters {
		var got string
		switch key {
		case "actor":
			got = event.Actor
		case "action":
			got = event.Action
		case "region":
			got = event.Region
		case "outcome":
			got = event.Outcome
		case "resourceId":
			got = event.ResourceID
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}

var (
	_ interfaces.AuditSink    = (*ZerologSink)(nil)
	_ interfaces.AuditSink    = (*MemorySink)(nil)
	_ interfaces.AuditQuerier = (*MemorySink)(nil)
)
