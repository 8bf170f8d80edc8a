package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/llm-devops/workflow-core/pkg/audit"
	"github.com/llm-devops/workflow-core/pkg/reliability/bulkhead"
	"github.com/llm-devops/workflow-core/pkg/reliability/loadshed"
	"github.com/llm-devops/workflow-core/pkg/tracing"
)

// controlSignal is the cooperative pause/cancel instruction the dispatch
// loop polls between scheduling cycles.
type controlSignal int32

const (
	signalNone controlSignal = iota
	signalPause
	signalCancel
)

// SchedulerConfig tunes one workflow run's dispatch behavior.
type SchedulerConfig struct {
	// DefaultBulkhead names the bulkhead a step uses if its TaskType is
	// empty; otherwise a step runs under the bulkhead named after its
	// TaskType.
	DefaultBulkhead string
	// RetryBackoffBase is the delay before the first retry; each
	// subsequent retry doubles it. See SPEC_FULL.md §9 decision 2.
	RetryBackoffBase time.Duration
	// DefaultStepTimeout bounds a step's execution when its own
	// StepDefinition.Timeout is left at zero.
	DefaultStepTimeout time.Duration
}

// DefaultSchedulerConfig is a reasonable default for local/demo use.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{DefaultBulkhead: "default", RetryBackoffBase: time.Second, DefaultStepTimeout: 5 * time.Minute}
}

// Scheduler drives one workflow run to completion: dependency resolution
// via Kahn's algorithm, bulkhead-bounded dispatch, retry with backoff, and
// cascading skip/fail-fast propagation on step failure.
type Scheduler struct {
	workflow Workflow
	config   SchedulerConfig

	steps      map[string]*Step
	graph      map[string][]string // upstream -> downstreams
	inDegree   map[string]int
	readyQueue chan string

	registry  *Registry
	bulkheads *bulkhead.Registry
	shedder   *loadshed.Shedder
	auditLog  *audit.EventLog
	rootSpan  *tracing.Span

	mu            sync.Mutex
	activeWorkers int
	signal        atomic.Int32
}

// NewScheduler validates workflow's DAG and returns a Scheduler ready to
// Run. Structural problems (cycles, self-dependencies, unknown
// dependencies, empty task types, duplicate step IDs) are rejected here,
// before any step runs.
func NewScheduler(
	wf Workflow,
	config SchedulerConfig,
	registry *Registry,
	bulkheads *bulkhead.Registry,
	shedder *loadshed.Shedder,
	auditLog *audit.EventLog,
	rootSpan *tracing.Span,
) (*Scheduler, error) {
	s := &Scheduler{
		workflow:   wf,
		config:     config,
		steps:      make(map[string]*Step, len(wf.Steps)),
		graph:      make(map[string][]string),
		inDegree:   make(map[string]int, len(wf.Steps)),
		readyQueue: make(chan string, len(wf.Steps)),
		registry:   registry,
		bulkheads:  bulkheads,
		shedder:    shedder,
		auditLog:   auditLog,
		rootSpan:   rootSpan,
	}

	for _, def := range wf.Steps {
		if def.TaskType == "" {
			return nil, errors.Wrapf(ErrEmptyTaskType, "step %s", def.ID)
		}
		if _, exists := s.steps[def.ID]; exists {
			return nil, errors.Wrapf(ErrDuplicateStepID, "step %s", def.ID)
		}
		for _, dep := range def.Dependencies {
			if dep == def.ID {
				return nil, errors.Wrapf(ErrSelfDependency, "step %s", def.ID)
			}
		}
		s.steps[def.ID] = newStep(def)
		s.inDegree[def.ID] = 0
	}

	for _, def := range wf.Steps {
		for _, dep := range def.Dependencies {
			if _, ok := s.steps[dep]; !ok {
				return nil, errors.Wrapf(ErrUnknownDependency, "step %s depends on %s", def.ID, dep)
			}
			s.graph[dep] = append(s.graph[dep], def.ID)
			s.inDegree[def.ID]++
		}
	}

	if err := s.validateAcyclic(); err != nil {
		return nil, err
	}

	for id := range s.steps {
		if s.inDegree[id] == 0 {
			s.readyQueue <- id
		}
	}

	return s, nil
}

// validateAcyclic runs Kahn's algorithm over a scratch copy of the graph;
// if it cannot account for every step, at least one cycle exists.
func (s *Scheduler) validateAcyclic() error {
	inDegree := make(map[string]int, len(s.inDegree))
	for id, d := range s.inDegree {
		inDegree[id] = d
	}

	var queue []string
	for id, d := range inDegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, downstream := range s.graph[id] {
			inDegree[downstream]--
			if inDegree[downstream] == 0 {
				queue = append(queue, downstream)
			}
		}
	}

	if processed != len(s.steps) {
		return ErrCycle
	}
	return nil
}

// Pause requests that the dispatch loop stop starting new steps; steps
// already running are left to finish.
func (s *Scheduler) Pause() {
	s.signal.CompareAndSwap(int32(signalNone), int32(signalPause))
}

// Resume clears a pause request.
func (s *Scheduler) Resume() error {
	if !s.signal.CompareAndSwap(int32(signalPause), int32(signalNone)) {
		return ErrNotPaused
	}
	return nil
}

// Cancel requests that the run stop: no new steps are dispatched, and once
// the steps already running finish their current attempt, every
// non-terminal step is marked Cancelled. It does not cancel the contexts of
// running steps.
func (s *Scheduler) Cancel() {
	s.signal.Store(int32(signalCancel))
}

func (s *Scheduler) currentSignal() controlSignal {
	return controlSignal(s.signal.Load())
}

// Run drives the workflow to a terminal WorkflowStatus: Completed if every
// step finished Completed/Skipped, Failed if FailFast tripped or (under
// IsolateFailures) any step finished Failed, Cancelled if Cancel was
// called, or Deadlocked if no step could ever become ready.
func (s *Scheduler) Run(ctx context.Context) (WorkflowStatus, error) {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	sem := s.bulkheadFor(s.config.DefaultBulkhead)

	s.emit(runCtx, "", audit.EventWorkflowSubmitted, nil)

	for {
		if s.currentSignal() == signalCancel {
			wg.Wait()
			s.cancelRemaining()
			s.emit(ctx, "", audit.EventWorkflowCancelled, nil)
			return WorkflowCancelled, ErrCancelled
		}

		select {
		case err := <-errCh:
			wg.Wait()
			s.emit(ctx, "", audit.EventWorkflowFailed, map[string]any{"error": err.Error()})
			return WorkflowFailed, err

		case stepID := <-s.readyQueue:
			if s.currentSignal() == signalPause {
				// Don't lose the ready step: put it back and wait.
				s.readyQueue <- stepID
				time.Sleep(10 * time.Millisecond)
				continue
			}

			s.mu.Lock()
			s.activeWorkers++
			s.mu.Unlock()
			wg.Add(1)

			go s.runStepToCompletion(runCtx, stepID, sem, &wg, errCh)

		default:
			if s.currentSignal() == signalPause {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			s.mu.Lock()
			active := s.activeWorkers
			completed := s.completedCountLocked()
			s.mu.Unlock()

			if completed == len(s.steps) {
				wg.Wait()
				for _, def := range s.workflow.Steps {
					if step := s.steps[def.ID]; step.Status() == StepFailed {
						err := errors.Errorf("step %s: %s", def.ID, step.ErrorMessage())
						s.emit(ctx, "", audit.EventWorkflowFailed, map[string]any{"error": err.Error()})
						return WorkflowFailed, err
					}
				}
				s.emit(ctx, "", audit.EventWorkflowCompleted, nil)
				return WorkflowCompleted, nil
			}

			if active == 0 {
				wg.Wait()
				s.emit(ctx, "", audit.EventWorkflowDeadlocked, nil)
				return WorkflowDeadlocked, ErrDeadlock
			}

			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (s *Scheduler) completedCountLocked() int {
	completed := 0
	for _, step := range s.steps {
		if step.Status().IsTerminal() {
			completed++
		}
	}
	return completed
}

func (s *Scheduler) bulkheadFor(name string) *bulkhead.Bulkhead {
	return s.bulkheads.GetOrCreate(name)
}

// runStepToCompletion executes one step's full retry lifecycle, then
// unblocks or cascades to its downstream dependents.
func (s *Scheduler) runStepToCompletion(ctx context.Context, stepID string, sem *bulkhead.Bulkhead, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer func() {
		s.mu.Lock()
		s.activeWorkers--
		s.mu.Unlock()
	}()

	defer func() {
		if r := recover(); r != nil {
			step := s.steps[stepID]
			step.setStatus(StepFailed)
			s.mu.Lock()
			s.cascadeSkip(stepID, "panic during step execution")
			s.mu.Unlock()
		}
	}()

	step := s.steps[stepID]
	err := s.executeStepWithRetry(ctx, step)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.emit(ctx, stepID, audit.EventStepFailed, map[string]any{"error": err.Error()})
		s.cascadeSkip(stepID, err.Error())
		if s.workflow.OnFailure == FailFast {
			select {
			case errCh <- errors.Wrapf(err, "step %s", stepID):
			default:
			}
		}
		return
	}

	s.emit(ctx, stepID, audit.EventStepCompleted, nil)
	for _, downstream := range s.graph[stepID] {
		s.inDegree[downstream]--
		if s.inDegree[downstream] == 0 {
			s.steps[downstream].setStatus(StepReady)
			s.readyQueue <- downstream
		}
	}
}

// executeStepWithRetry resolves inputs, marks the step running, invokes
// its executor under the bulkhead, and retries transient failures with
// exponential backoff up to Def.MaxRetries.
func (s *Scheduler) executeStepWithRetry(ctx context.Context, step *Step) error {
	cfg, err := resolveConfig(step.Def.Config, s.steps)
	if err != nil {
		_ = step.markRunning()
		_ = step.fail(err)
		return err
	}

	if s.shedder != nil && !s.shedder.Admit(step.Def.Priority) {
		_ = step.markRunning()
		_ = step.fail(ErrShed)
		return ErrShed
	}

	if err := step.markRunning(); err != nil {
		return err
	}

	var lastErr error
	maxAttempts := step.Def.MaxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			s.emit(ctx, step.Def.ID, audit.EventStepRetried, map[string]any{"attempt": attempt})
			select {
			case <-time.After(backoffFor(s.config.RetryBackoffBase, attempt-1)):
			case <-ctx.Done():
				_ = step.fail(ctx.Err())
				return ctx.Err()
			}
			step.mu.Lock()
			step.status = StepRunning
			step.attempt++
			step.mu.Unlock()
		}

		span := s.rootSpan.NewChildSpan(step.Def.ID, step.Def.TaskType, attempt)
		s.emit(ctx, step.Def.ID, audit.EventStepStarted, map[string]any{"attempt": attempt})

		bh := s.bulkheadFor(s.bulkheadName(step.Def))
		out, execErr := bulkhead.Execute(ctx, bh, func(ctx context.Context) (any, error) {
			return runStep(ctx, s.registry, step.Def, s.config.DefaultStepTimeout, StepInput{
				Config:             cfg,
				PredecessorOutputs: s.predecessorOutputs(step.Def.Dependencies),
				Span:               span,
			})
		})

		if execErr == nil {
			span.End(nil, "completed")
			_ = step.complete(out)
			return nil
		}

		span.End(execErr, "failed")
		lastErr = execErr

		if attempt < maxAttempts && isTransientError(execErr) {
			continue
		}
		break
	}

	wrapped := errors.Wrapf(ErrRetriesExhausted, "step %s: %v", step.Def.ID, lastErr)
	_ = step.fail(wrapped)
	return wrapped
}

func (s *Scheduler) bulkheadName(def StepDefinition) string {
	if def.TaskType != "" {
		return def.TaskType
	}
	return s.config.DefaultBulkhead
}

func (s *Scheduler) predecessorOutputs(depIDs []string) map[string]any {
	out := make(map[string]any, len(depIDs))
	for _, id := range depIDs {
		if step, ok := s.steps[id]; ok {
			out[id] = step.Output()
		}
	}
	return out
}

// cascadeSkip marks every still-pending downstream of failedID as Skipped.
// Caller must hold s.mu.
func (s *Scheduler) cascadeSkip(failedID, reason string) {
	queue := []string{failedID}
	visited := make(map[string]bool)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		if visited[curr] {
			continue
		}
		visited[curr] = true

		for _, downstream := range s.graph[curr] {
			step := s.steps[downstream]
			if step.Status() == StepPending || step.Status() == StepReady {
				step.skip("skipped due to upstream failure in " + curr)
				queue = append(queue, downstream)
			}
		}
	}
}

func (s *Scheduler) cancelRemaining() {
	for _, step := range s.steps {
		step.cancel()
	}
}

func (s *Scheduler) emit(ctx context.Context, stepID, eventType string, payload map[string]any) {
	if s.auditLog == nil {
		return
	}
	_ = s.auditLog.Emit(ctx, audit.Event{
		ID:         uuid.NewString(),
		WorkflowID: s.workflow.ID,
		StepID:     stepID,
		EventType:  eventType,
		Timestamp:  time.Now(),
		Payload:    payload,
		TraceID:    s.rootSpan.TraceID,
		SpanID:     s.rootSpan.SpanID,
	})
}

// Snapshot captures the current state of every step for checkpointing.
func (s *Scheduler) Snapshot() WorkflowSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := make([]StepSnapshot, 0, len(s.steps))
	for _, def := range s.workflow.Steps {
		step := s.steps[def.ID]
		steps = append(steps, StepSnapshot{
			ID:      def.ID,
			Status:  step.Status(),
			Output:  step.Output(),
			Error:   step.ErrorMessage(),
			Attempt: step.Attempt(),
		})
	}

	status := WorkflowRunning
	switch s.currentSignal() {
	case signalPause:
		status = WorkflowPaused
	case signalCancel:
		status = WorkflowCancelled
	}

	return WorkflowSnapshot{
		WorkflowID: s.workflow.ID,
		Status:     status,
		Steps:      steps,
		CapturedAt: time.Now(),
	}
}
