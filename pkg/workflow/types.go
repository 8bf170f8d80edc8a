// Package workflow implements the DAG scheduler: dependency resolution,
// dispatch, retry, pause/resume/cancel, and deadlock detection over a
// directed acyclic graph of steps.
package workflow

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/llm-devops/workflow-core/pkg/reliability/loadshed"
)

// StepStatus is the lifecycle state of a single step within a workflow run.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepReady     StepStatus = "ready"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
	StepCancelled StepStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible for a step.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepCompleted, StepFailed, StepSkipped, StepCancelled:
		return true
	default:
		return false
	}
}

// WorkflowStatus is the lifecycle state of an entire workflow run.
type WorkflowStatus string

const (
	WorkflowRunning    WorkflowStatus = "running"
	WorkflowPaused     WorkflowStatus = "paused"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowFailed     WorkflowStatus = "failed"
	WorkflowCancelled  WorkflowStatus = "cancelled"
	WorkflowDeadlocked WorkflowStatus = "deadlocked"
)

// FailurePolicy controls how a step failure propagates to its downstream
// dependents.
type FailurePolicy string

const (
	// FailFast aborts the whole workflow as soon as one step fails.
	FailFast FailurePolicy = "fail_fast"
	// IsolateFailures skips only the downstream closure of a failed step,
	// letting independent branches keep running.
	IsolateFailures FailurePolicy = "isolate_failures"
)

// StepDefinition is the caller-supplied, immutable description of a step.
type StepDefinition struct {
	ID           string
	TaskType     string
	Config       map[string]any
	Dependencies []string
	MaxRetries   int
	Timeout      time.Duration
	// Priority governs admission under load shedding. Its zero value is
	// loadshed.PriorityBackground, the most aggressively shed tier, so
	// callers that care about load-shedding behavior should always set it
	// explicitly rather than relying on the zero value.
	Priority loadshed.Priority
}

// Step is the mutable runtime record for a StepDefinition within one
// workflow run. All mutable fields are guarded by mu; callers must use the
// accessor methods rather than touching fields directly.
type Step struct {
	Def StepDefinition

	mu      sync.RWMutex
	status  StepStatus
	output  any
	errMsg  string
	attempt int
}

func newStep(def StepDefinition) *Step {
	return &Step{Def: def, status: StepPending}
}

func (s *Step) Status() StepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Step) setStatus(status StepStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Step) Output() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.output
}

func (s *Step) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

func (s *Step) Attempt() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempt
}

// markRunning transitions Pending/Ready -> Running and bumps the attempt
// counter. It errors if the step is not in a startable state.
func (s *Step) markRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StepPending && s.status != StepReady {
		return fmt.Errorf("step %s: cannot start from status %s", s.Def.ID, s.status)
	}
	s.status = StepRunning
	s.attempt++
	return nil
}

// complete transitions Running -> Completed with the given output.
func (s *Step) complete(output any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StepRunning {
		return fmt.Errorf("step %s: cannot complete from status %s", s.Def.ID, s.status)
	}
	s.status = StepCompleted
	s.output = output
	return nil
}

// fail transitions Running -> Failed, recording the error.
func (s *Step) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StepRunning {
		return fmt.Errorf("step %s: cannot fail from status %s", s.Def.ID, s.status)
	}
	s.status = StepFailed
	s.errMsg = err.Error()
	return nil
}

// skip marks a still-pending step as skipped, recording why.
func (s *Step) skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return
	}
	s.status = StepSkipped
	s.errMsg = reason
}

// cancel marks a non-terminal step as cancelled.
func (s *Step) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return
	}
	s.status = StepCancelled
}

// Workflow is the immutable DAG definition supplied at submission time.
type Workflow struct {
	ID        string
	Steps     []StepDefinition
	OnFailure FailurePolicy
	CreatedAt time.Time
}

// StepSnapshot is the serializable view of a single step's runtime state.
type StepSnapshot struct {
	ID      string     `json:"id"`
	Status  StepStatus `json:"status"`
	Output  any        `json:"output,omitempty"`
	Error   string     `json:"error,omitempty"`
	Attempt int        `json:"attempt"`
}

// WorkflowSnapshot is a point-in-time, JSON-serializable capture of a
// running or finished workflow. It exists so an operator-supplied
// persistence sink can durably checkpoint progress; the engine itself does
// not write snapshots to disk.
type WorkflowSnapshot struct {
	WorkflowID string         `json:"workflow_id"`
	Status     WorkflowStatus `json:"status"`
	Steps      []StepSnapshot `json:"steps"`
	CapturedAt time.Time      `json:"captured_at"`
}

// MarshalSnapshot renders a WorkflowSnapshot as indented JSON.
func (w WorkflowSnapshot) MarshalSnapshot() ([]byte, error) {
	return json.MarshalIndent(w, "", "  ")
}
