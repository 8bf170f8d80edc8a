package workflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/llm-devops/workflow-core/pkg/tracing"
)

// StepInput is everything a StepExecutor needs to do its work. Config has
// already had {{step_id.output}} placeholders resolved against completed
// predecessors; PredecessorOutputs is offered alongside for executors that
// want direct, untemplated access to a dependency's output.
type StepInput struct {
	Config             map[string]any
	PredecessorOutputs map[string]any
	Span               *tracing.Span
}

// StepExecutor performs the work for one task_type. It must honor ctx
// cancellation promptly: ctx is cancelled on step timeout and when the
// context passed to Scheduler.Run is cancelled, and executors are expected
// to poll it rather than run unboundedly. Scheduler.Cancel does not cancel
// it.
type StepExecutor func(ctx context.Context, in StepInput) (any, error)

// Registry maps task_type strings to the executor that handles them.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]StepExecutor
}

// NewRegistry returns an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]StepExecutor)}
}

// Register binds a task_type to an executor, overwriting any previous
// binding for the same type.
func (r *Registry) Register(taskType string, executor StepExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[taskType] = executor
}

func (r *Registry) lookup(taskType string) (StepExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[taskType]
	return e, ok
}

// isTransientError decides whether a failed attempt should consume a retry.
// Context cancellation is never retried (the caller asked to stop); a
// deadline exceeded on the step's own timeout context is. Everything else
// falls back to a conservative keyword match against common transient
// failure modes, the same heuristic the teacher's retry loop used for
// upstream LLM/network calls.
func isTransientError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range []string{
		"timeout", "timed out", "connection refused", "connection reset",
		"503", "502", "rate limit", "too many requests", "temporarily unavailable",
		"eof",
	} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// runStep invokes the bound executor for def.TaskType with a timeout
// derived from def.Timeout, falling back to defaultTimeout when the step
// doesn't declare its own. Returns ErrStepTimeout if the timeout fires and
// ErrUnknownTask if no executor is registered for the task type.
func runStep(ctx context.Context, registry *Registry, def StepDefinition, defaultTimeout time.Duration, in StepInput) (any, error) {
	executor, ok := registry.lookup(def.TaskType)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTask, "task_type %q", def.TaskType)
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := executor(runCtx, in)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, errors.Wrapf(ErrStepTimeout, "step %s after %s", def.ID, timeout)
		}
		return nil, err
	}
	return out, nil
}

// backoffFor returns the delay before the given retry attempt (1-indexed),
// doubling from base each time. See SPEC_FULL.md §9 decision 2.
func backoffFor(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}
