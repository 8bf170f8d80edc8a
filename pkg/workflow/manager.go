package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/llm-devops/workflow-core/pkg/audit"
	"github.com/llm-devops/workflow-core/pkg/reliability/bulkhead"
	"github.com/llm-devops/workflow-core/pkg/reliability/loadshed"
	"github.com/llm-devops/workflow-core/pkg/tracing"
)

// run is a Manager's bookkeeping record for one submitted workflow.
type run struct {
	scheduler  *Scheduler
	rootSpan   *tracing.Span
	mu         sync.Mutex
	status     WorkflowStatus
	err        error
	finishedAt time.Time
}

// Manager is the engine's control surface: submit a workflow, query its
// status, and pause/resume/cancel a run in flight. It owns no transport —
// callers wire it to whatever front-end (CLI, RPC, embedding application)
// they need; spec.md explicitly excludes a REST surface from this layer.
type Manager struct {
	executors *Registry
	bulkheads *bulkhead.Registry
	shedder   *loadshed.Shedder
	auditLog  *audit.EventLog

	schedulerConfig    SchedulerConfig
	retention          time.Duration
	defaultFailureMode FailurePolicy

	mu   sync.RWMutex
	runs map[string]*run
}

// NewManager builds a Manager over executors, applying any ManagerOptions.
func NewManager(executors *Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		executors:          executors,
		bulkheads:          bulkhead.NewRegistry(bulkhead.DefaultConfig()),
		schedulerConfig:    DefaultSchedulerConfig(),
		retention:          1 * time.Hour,
		defaultFailureMode: FailFast,
		runs:               make(map[string]*run),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit validates and starts a workflow run, returning its assigned ID
// immediately; the run proceeds asynchronously. If wf.ID is empty, a new
// ID is generated. traceparent, if non-empty, seeds the run's root span
// from an externally propagated W3C trace context.
func (m *Manager) Submit(ctx context.Context, wf Workflow, traceparent string) (string, error) {
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = time.Now()
	}
	if wf.OnFailure == "" {
		wf.OnFailure = m.defaultFailureMode
	}

	var rootSpan *tracing.Span
	if traceparent != "" {
		if traceID, parentSpanID, valid := tracing.ExtractTraceparent(traceparent); valid {
			rootSpan = tracing.FromTraceparent(wf.ID, traceID, parentSpanID)
		}
	}
	if rootSpan == nil {
		rootSpan = tracing.NewRootSpan(wf.ID)
	}

	sched, err := NewScheduler(wf, m.schedulerConfig, m.executors, m.bulkheads, m.shedder, m.auditLog, rootSpan)
	if err != nil {
		return "", err
	}

	r := &run{scheduler: sched, rootSpan: rootSpan, status: WorkflowRunning}

	m.mu.Lock()
	m.runs[wf.ID] = r
	m.mu.Unlock()

	go m.drive(ctx, r)

	return wf.ID, nil
}

func (m *Manager) drive(ctx context.Context, r *run) {
	status, err := r.scheduler.Run(ctx)

	r.mu.Lock()
	r.status = status
	r.err = err
	r.finishedAt = time.Now()
	r.mu.Unlock()

	m.evictExpired()
}

// Status returns a point-in-time snapshot of a submitted workflow's step
// states; once the run has finished, the snapshot's Status is the run's
// terminal status. Returns ErrNotFound if workflowID is unknown or has been
// evicted past its retention window.
func (m *Manager) Status(workflowID string) (WorkflowSnapshot, error) {
	m.mu.RLock()
	r, ok := m.runs[workflowID]
	m.mu.RUnlock()
	if !ok {
		return WorkflowSnapshot{}, ErrNotFound
	}
	snap := r.scheduler.Snapshot()
	r.mu.Lock()
	if !r.finishedAt.IsZero() {
		snap.Status = r.status
	}
	r.mu.Unlock()
	return snap, nil
}

// Pause requests that workflowID stop dispatching new steps. Returns
// ErrNotFound if unknown; succeeds unconditionally otherwise, including
// when the workflow is already paused or has finished (a no-op in that
// case).
func (m *Manager) Pause(workflowID string) error {
	r, err := m.lookup(workflowID)
	if err != nil {
		return err
	}
	r.scheduler.Pause()
	return nil
}

// Resume clears a pause request for workflowID. Returns ErrNotFound if
// unknown, ErrNotPaused if the workflow isn't currently paused (decision:
// resuming a non-paused workflow is a no-op control-surface error, not a
// panic or silent success — see SPEC_FULL.md §9).
func (m *Manager) Resume(workflowID string) error {
	r, err := m.lookup(workflowID)
	if err != nil {
		return err
	}
	return r.scheduler.Resume()
}

// Cancel requests that workflowID stop; in-flight steps are left to finish
// their current attempt, then every non-terminal step is marked Cancelled.
// Returns ErrNotFound if unknown.
func (m *Manager) Cancel(workflowID string) error {
	r, err := m.lookup(workflowID)
	if err != nil {
		return err
	}
	r.scheduler.Cancel()
	return nil
}

// Error returns the terminal error a finished run ended with, if any.
// Returns ErrNotFound if workflowID is unknown.
func (m *Manager) Error(workflowID string) (error, error) {
	r, err := m.lookup(workflowID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err, nil
}

func (m *Manager) lookup(workflowID string) (*run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[workflowID]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// evictExpired drops finished runs older than m.retention, bounding memory
// use for a long-lived Manager.
func (m *Manager) evictExpired() {
	if m.retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.runs {
		r.mu.Lock()
		finished := !r.finishedAt.IsZero() && r.finishedAt.Before(cutoff)
		r.mu.Unlock()
		if finished {
			delete(m.runs, id)
		}
	}
}
