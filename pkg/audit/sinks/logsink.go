// Package sinks provides the built-in audit.Sink implementations: a
// structured-logging sink, a rotating JSON-Lines file sink, and an
// optional relational sink.
package sinks

import (
	"context"
	"log/slog"

	"github.com/llm-devops/workflow-core/pkg/audit"
)

// LogSink writes every event as a structured log line. It never fails,
// mirroring the teacher's non-blocking, always-accept dispatch to its
// logging layer.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink wraps logger (or slog.Default() if nil).
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(_ context.Context, event audit.Event) error {
	s.logger.Info("audit event",
		"event_id", event.ID,
		"event_type", event.EventType,
		"workflow_id", event.WorkflowID,
		"step_id", event.StepID,
		"trace_id", event.TraceID,
		"span_id", event.SpanID,
		"payload", event.Payload,
	)
	return nil
}

// Flush is a no-op: slog writes are unbuffered from this sink's
// perspective.
func (s *LogSink) Flush(_ context.Context) error { return nil }
