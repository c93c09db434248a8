// Package audit emits batch-run audit events. The sink is strictly
// fire-and-forget: a failed audit write is reported to the diagnostic
// writer and dropped, and never aborts the operation that emitted it.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/kittipats/sheetsync/internal/domain"
	"github.com/kittipats/sheetsync/internal/recordstore"
)

// Event is one audit entry.
type Event struct {
	OccurredAt time.Time
	Actor      string
	Action     string
	Target     string
	Details    map[string]any
}

// Sink receives audit events. Implementations must not return errors to
// callers; Logger guarantees callers never see one.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Logger wraps a Sink with the swallow-errors policy and the event
// helpers the batch commands use.
type Logger struct {
	sink  Sink
	actor string
	diag  io.Writer
	now   func() time.Time
}

// NewLogger returns a Logger emitting as the given actor. Sink write
// failures are reported to diag.
func NewLogger(sink Sink, actor string, diag io.Writer) *Logger {
	return &Logger{sink: sink, actor: actor, diag: diag, now: time.Now}
}

// Log emits one event. Never returns an error.
func (l *Logger) Log(ctx context.Context, action, target string, details map[string]any) {
	if l == nil || l.sink == nil {
		return
	}
	event := Event{
		OccurredAt: l.now().UTC(),
		Actor:      l.actor,
		Action:     action,
		Target:     target,
		Details:    details,
	}
	if err := l.sink.Write(ctx, event); err != nil {
		fmt.Fprintf(l.diag, "warning: audit write failed for %s: %v\n", action, err)
	}
}

// LogRunStarted records the start of a batch command.
func (l *Logger) LogRunStarted(ctx context.Context, command string) {
	l.Log(ctx, command+".started", command, nil)
}

// LogRunFinished records the end of a batch command with its summary
// counts.
func (l *Logger) LogRunFinished(ctx context.Context, command string, summary map[string]any) {
	l.Log(ctx, command+".finished", command, summary)
}

// LogGroupMerged records one completed duplicate-group merge.
func (l *Logger) LogGroupMerged(ctx context.Context, survivor string, victims []string) {
	l.Log(ctx, "merge.group", survivor, map[string]any{
		"survivor": survivor,
		"victims":  victims,
	})
}

// RecordSink writes audit events into the record store's audit_logs
// table.
type RecordSink struct {
	records recordstore.Store
}

// NewRecordSink returns a Sink over the given record store.
func NewRecordSink(records recordstore.Store) *RecordSink {
	return &RecordSink{records: records}
}

// Write implements Sink.
func (s *RecordSink) Write(ctx context.Context, event Event) error {
	occurred := event.OccurredAt.Format(time.RFC3339Nano)
	key := occurred + "|" + event.Actor + "|" + event.Action + "|" + event.Target

	fields := map[string]any{
		"occurred_at": occurred,
		"actor":       event.Actor,
		"action":      event.Action,
		"target":      event.Target,
	}
	if event.Details != nil {
		payload, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		fields["details"] = string(payload)
	}

	if _, err := s.records.Upsert(ctx, domain.EntityAuditLog, key, fields); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}
