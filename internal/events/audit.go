package events

import (
	"context"
	"strconv"

	"github.com/nerrad567/procwarden/internal/audit"
	"github.com/nerrad567/procwarden/internal/process"
)

// AuditWriter is the part of audit.Repository the sink needs.
type AuditWriter interface {
	Create(ctx context.Context, log *audit.AuditLog) error
}

// AuditSink records every lifecycle event in the audit trail.
type AuditSink struct {
	repo AuditWriter
}

// NewAuditSink creates a sink writing to repo.
func NewAuditSink(repo AuditWriter) *AuditSink {
	return &AuditSink{repo: repo}
}

// Name implements Sink.
func (s *AuditSink) Name() string { return "audit" }

// Deliver implements Sink.
func (s *AuditSink) Deliver(ctx context.Context, e process.Event) error {
	return s.repo.Create(ctx, auditEntry(e))
}

func auditEntry(e process.Event) *audit.AuditLog {
	entry := &audit.AuditLog{
		Action:     string(e.Type),
		EntityType: audit.EntityProcess,
		Source:     audit.SourceSupervisor,
		CreatedAt:  e.Timestamp,
		Details:    map[string]any{},
	}

	if e.Type == process.EventStopAll {
		entry.EntityType = audit.EntitySupervisor
		entry.Details["count"] = e.Count
		entry.Details["failures"] = e.Failures
	}
	if e.PID > 0 {
		entry.EntityID = strconv.Itoa(e.PID)
	}
	if e.Name != "" {
		entry.Details["name"] = e.Name
	}
	if e.Binary != "" {
		entry.Details["binary"] = e.Binary
	}
	if e.Error != "" {
		entry.Details["error"] = e.Error
	}
	if o := e.Outcome; o != nil {
		entry.Details["already_exited"] = o.AlreadyExited
		entry.Details["forced"] = o.Forced
		entry.Details["timed_out"] = o.TimedOut
		entry.Details["duration_ms"] = o.Duration.Milliseconds()
	}
	if len(entry.Details) == 0 {
		entry.Details = nil
	}
	return entry
}
