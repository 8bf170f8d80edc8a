package workflow

import "github.com/pkg/errors"

// Structural errors are rejected at submission time, before any step runs.
var (
	ErrCycle             = errors.New("workflow: dependency graph contains a cycle")
	ErrSelfDependency    = errors.New("workflow: step depends on itself")
	ErrUnknownDependency = errors.New("workflow: step depends on an unknown step")
	ErrEmptyTaskType     = errors.New("workflow: step has an empty task type")
	ErrDuplicateStepID   = errors.New("workflow: duplicate step id")
)

// Execution-class errors fail a step attempt. ErrStepTimeout is classified
// as transient and is retried while the step's retry budget lasts;
// ErrUnknownTask is not transient and fails the step on its first attempt.
var (
	ErrStepTimeout = errors.New("workflow: step exceeded its timeout")
	ErrUnknownTask = errors.New("workflow: no executor registered for task type")
)

// ErrShed is an admission-class error: the step never ran because the
// load shedder rejected it at its configured priority. It does not
// consume a retry attempt.
var ErrShed = errors.New("workflow: step shed under load")

// Workflow-terminal errors mark the run's outcome. ErrDeadlock and
// ErrCancelled end the run; ErrRetriesExhausted fails its step and ends the
// run under FailFast, while under IsolateFailures independent steps keep
// running and the run ends Failed once every step is terminal.
var (
	ErrDeadlock         = errors.New("workflow: deadlock detected, no progress possible")
	ErrRetriesExhausted = errors.New("workflow: step failed after exhausting its retry budget")
	ErrCancelled        = errors.New("workflow: workflow was cancelled")
)

// Control-surface errors are returned directly to the caller; they never
// corrupt workflow state.
var (
	ErrNotFound   = errors.New("workflow: no such workflow")
	ErrNotPaused  = errors.New("workflow: resume requested but workflow is not paused")
	ErrNotRunning = errors.New("workflow: pause requested but workflow is not running")
)
