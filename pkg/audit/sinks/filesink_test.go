package sinks

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-devops/workflow-core/pkg/audit"
)

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			n++
		}
	}
	return n
}

func TestFileSink_WriteAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path, 0, 5)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Write(context.Background(), audit.Event{ID: "1", EventType: audit.EventWorkflowSubmitted}))
	require.NoError(t, sink.Write(context.Background(), audit.Event{ID: "2", EventType: audit.EventWorkflowCompleted}))

	assert.Equal(t, 2, countLines(t, path))
}

func TestFileSink_RotatesPastMaxBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path, 80, 2)
	require.NoError(t, err)
	defer sink.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, sink.Write(context.Background(), audit.Event{ID: "event-with-some-length", EventType: audit.EventStepStarted}))
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "expected at least one rotated backup file")
}

func TestFileSink_NewFileSinkRejectsUnwritablePath(t *testing.T) {
	_, err := NewFileSink(filepath.Join(t.TempDir(), "no-such-dir", "audit.jsonl"), 0, 1)
	assert.Error(t, err)
}

func TestFileSink_FlushSyncsWithoutError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path, 0, 5)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Write(context.Background(), audit.Event{ID: "1"}))
	assert.NoError(t, sink.Flush(context.Background()))
}
