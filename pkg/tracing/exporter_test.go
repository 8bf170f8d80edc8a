package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogExporter_WritesSpanFields(t *testing.T) {
	var buf bytes.Buffer
	exp := NewLogExporter(slog.New(slog.NewTextHandler(&buf, nil)))

	span := NewRootSpan("wf-1")
	span.End(nil, "completed")
	exp.Export(context.Background(), span)

	assert.Contains(t, buf.String(), "wf-1")
	assert.Contains(t, buf.String(), "completed")
}

type countingExporter struct {
	mu    sync.Mutex
	count int
}

func (e *countingExporter) Export(_ context.Context, _ *Span) {
	e.mu.Lock()
	e.count++
	e.mu.Unlock()
}

func TestCompositeExporter_FansOutToEveryExporter(t *testing.T) {
	a := &countingExporter{}
	b := &countingExporter{}
	composite := NewCompositeExporter(a, b)

	composite.Export(context.Background(), NewRootSpan("wf"))

	assert.Equal(t, 1, a.count)
	assert.Equal(t, 1, b.count)
}

type panickingExporter struct{}

func (panickingExporter) Export(_ context.Context, _ *Span) { panic("boom") }

func TestCompositeExporter_OnePanickingExporterDoesNotBlockOthers(t *testing.T) {
	a := &countingExporter{}
	composite := NewCompositeExporter(panickingExporter{}, a)

	composite.Export(context.Background(), NewRootSpan("wf"))

	assert.Equal(t, 1, a.count)
}
