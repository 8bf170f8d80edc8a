package tracing

import (
	"context"
	"log/slog"
	"sync"
)

// Exporter receives finished spans for external reporting. Implementations
// must not block the caller for long; Export runs synchronously on the
// caller's goroutine, not from a background queue. The scheduler does not
// call an Exporter itself.
type Exporter interface {
	Export(ctx context.Context, span *Span)
}

// LogExporter writes each finished span as a structured log line. It never
// fails: a broken downstream log sink must not break tracing.
type LogExporter struct {
	logger *slog.Logger
}

// NewLogExporter wraps logger (or slog.Default() if nil).
func NewLogExporter(logger *slog.Logger) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger}
}

func (e *LogExporter) Export(_ context.Context, span *Span) {
	e.logger.Info("span finished",
		"trace_id", span.TraceID,
		"span_id", span.SpanID,
		"parent_span_id", span.ParentSpanID,
		"workflow_id", span.WorkflowID,
		"step_id", span.StepID,
		"task_type", span.TaskType,
		"attempt_number", span.AttemptNumber,
		"duration_ms", span.Duration().Milliseconds(),
		"status", span.Status,
		"outcome", span.Outcome,
	)
}

// CompositeExporter fans a span out to every wrapped exporter concurrently,
// so a slow or failing exporter cannot delay the others.
type CompositeExporter struct {
	exporters []Exporter
}

// NewCompositeExporter wraps the given exporters.
func NewCompositeExporter(exporters ...Exporter) *CompositeExporter {
	return &CompositeExporter{exporters: exporters}
}

func (e *CompositeExporter) Export(ctx context.Context, span *Span) {
	var wg sync.WaitGroup
	for _, exp := range e.exporters {
		exp := exp
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { _ = recover() }()
			exp.Export(ctx, span)
		}()
	}
	wg.Wait()
}
