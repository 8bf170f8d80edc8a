package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-devops/workflow-core/pkg/reliability/loadshed"
	"github.com/llm-devops/workflow-core/pkg/workflow"
)

func writeWorkflowFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadWorkflowFile_ParsesStepsAndDependencies(t *testing.T) {
	path := writeWorkflowFile(t, `
id: wf-1
on_failure: isolate_failures
steps:
  - id: fetch
    task_type: echo
    config:
      message: hi
    priority: high
  - id: summarize
    task_type: llm_call
    dependencies: [fetch]
    max_retries: 3
    timeout: 30s
`)

	wf, err := loadWorkflowFile(path)
	require.NoError(t, err)

	assert.Equal(t, "wf-1", wf.ID)
	assert.Equal(t, workflow.IsolateFailures, wf.OnFailure)
	require.Len(t, wf.Steps, 2)

	fetch := wf.Steps[0]
	assert.Equal(t, "fetch", fetch.ID)
	assert.Equal(t, "echo", fetch.TaskType)
	assert.Equal(t, loadshed.PriorityHigh, fetch.Priority)
	assert.Empty(t, fetch.Dependencies)

	summarize := wf.Steps[1]
	assert.Equal(t, []string{"fetch"}, summarize.Dependencies)
	assert.Equal(t, 3, summarize.MaxRetries)
	assert.Equal(t, 30*time.Second, summarize.Timeout)
	assert.Equal(t, loadshed.PriorityNormal, summarize.Priority, "unset priority defaults to normal")
}

func TestLoadWorkflowFile_DefaultsOnFailureToFailFast(t *testing.T) {
	path := writeWorkflowFile(t, "id: wf-2\nsteps: []\n")

	wf, err := loadWorkflowFile(path)
	require.NoError(t, err)
	assert.Equal(t, workflow.FailFast, wf.OnFailure)
}

func TestLoadWorkflowFile_InvalidTimeoutIsAnError(t *testing.T) {
	path := writeWorkflowFile(t, `
id: wf-3
steps:
  - id: a
    task_type: echo
    timeout: not-a-duration
`)

	_, err := loadWorkflowFile(path)
	assert.Error(t, err)
}

func TestLoadWorkflowFile_MissingFileIsAnError(t *testing.T) {
	_, err := loadWorkflowFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadWorkflowFile_MalformedYAMLIsAnError(t *testing.T) {
	path := writeWorkflowFile(t, "id: [unterminated")
	_, err := loadWorkflowFile(path)
	assert.Error(t, err)
}

func TestParsePriority(t *testing.T) {
	cases := map[string]loadshed.Priority{
		"background": loadshed.PriorityBackground,
		"low":        loadshed.PriorityLow,
		"high":       loadshed.PriorityHigh,
		"critical":   loadshed.PriorityCritical,
		"":           loadshed.PriorityNormal,
		"bogus":      loadshed.PriorityNormal,
	}
	for input, want := range cases {
		assert.Equal(t, want, parsePriority(input), "input %q", input)
	}
}
