package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	internalaudit "github.com/axialab/authcore/internal/audit"
)

// AuditEvent describes one security-relevant transition. The core emits
// events; formatting and persistence belong to the injected sink.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	SubjectID string            `json:"subject_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives emitted audit events. Implementations must tolerate
// concurrent calls.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink writes audit events into a buffered channel, for hosts that
// forward them to their own pipeline.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line to the given writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// Event types emitted by the Service.
const (
	auditEventLogin                 = "login"
	auditEventLogout                = "logout"
	auditEventRegister              = "register"
	auditEventRefresh               = "refresh"
	auditEventRefreshReuse          = "refresh_reuse"
	auditEventCodeIssue             = "code_issue"
	auditEventCodeVerify            = "code_verify"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetComplete = "password_reset_complete"
	auditEventRateLimited           = "rate_limited"
)

// sinkAdapter bridges the public AuditSink to the internal dispatcher's
// event model.
type sinkAdapter struct {
	sink AuditSink
}

func (a sinkAdapter) Emit(ctx context.Context, event internalaudit.Event) {
	a.sink.Emit(ctx, AuditEvent{
		Timestamp: event.Timestamp,
		EventType: event.EventType,
		SubjectID: event.SubjectID,
		IP:        event.IP,
		Success:   event.Success,
		Error:     event.Error,
		Metadata:  event.Metadata,
	})
}

func (s *Service) emitAudit(ctx context.Context, eventType, subjectID string, success bool, failure error) {
	if s == nil || s.audit == nil {
		return
	}

	event := internalaudit.Event{
		Timestamp: time.Now(),
		EventType: eventType,
		SubjectID: subjectID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}

	s.audit.Emit(ctx, event)
}
