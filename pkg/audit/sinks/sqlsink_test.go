package sinks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-devops/workflow-core/pkg/audit"
)

func TestSQLSink_WritePersistsAndSurvivesReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "audit.db")

	sink, err := NewSQLSink(dsn)
	require.NoError(t, err)

	event := audit.Event{
		ID:         "1",
		WorkflowID: "wf-1",
		StepID:     "step-a",
		EventType:  audit.EventStepCompleted,
		Timestamp:  time.Now(),
		TraceID:    "trace-1",
		SpanID:     "span-1",
		Payload:    map[string]any{"attempt": 1},
	}
	require.NoError(t, sink.Write(context.Background(), event))
	require.NoError(t, sink.Close())

	reopened, err := NewSQLSink(dsn)
	require.NoError(t, err)
	defer reopened.Close()

	var count int
	row := reopened.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM audit_events WHERE id = ?", "1")
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLSink_DuplicateIDFailsOnPrimaryKey(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "audit.db")
	sink, err := NewSQLSink(dsn)
	require.NoError(t, err)
	defer sink.Close()

	event := audit.Event{ID: "dup", WorkflowID: "wf", EventType: audit.EventStepStarted, Timestamp: time.Now()}
	require.NoError(t, sink.Write(context.Background(), event))
	assert.Error(t, sink.Write(context.Background(), event))
}

func TestSQLSink_FlushIsANoOp(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "audit.db")
	sink, err := NewSQLSink(dsn)
	require.NoError(t, err)
	defer sink.Close()

	assert.NoError(t, sink.Flush(context.Background()))
}
