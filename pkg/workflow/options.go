package workflow

import (
	"time"

	"github.com/llm-devops/workflow-core/pkg/audit"
	"github.com/llm-devops/workflow-core/pkg/reliability/bulkhead"
	"github.com/llm-devops/workflow-core/pkg/reliability/loadshed"
)

// ManagerOption configures a Manager at construction.
type ManagerOption func(*Manager)

// WithSchedulerConfig overrides the per-run scheduler configuration.
func WithSchedulerConfig(cfg SchedulerConfig) ManagerOption {
	return func(m *Manager) { m.schedulerConfig = cfg }
}

// WithBulkheadRegistry supplies the bulkhead registry steps dispatch
// through. Without this option a Manager creates its own with
// bulkhead.DefaultConfig() as the per-name default.
func WithBulkheadRegistry(reg *bulkhead.Registry) ManagerOption {
	return func(m *Manager) { m.bulkheads = reg }
}

// WithLoadShedder enables priority-aware admission control ahead of every
// step dispatch. Without this option a Manager never sheds load.
func WithLoadShedder(shedder *loadshed.Shedder) ManagerOption {
	return func(m *Manager) { m.shedder = shedder }
}

// WithAuditLog supplies the event log every workflow/step transition is
// emitted to. Without this option a Manager runs with no audit sinks
// (Emit becomes a no-op).
func WithAuditLog(log *audit.EventLog) ManagerOption {
	return func(m *Manager) { m.auditLog = log }
}

// WithRetentionPeriod bounds how long a terminal workflow's state stays
// queryable via Status before Manager evicts it.
func WithRetentionPeriod(d time.Duration) ManagerOption {
	return func(m *Manager) { m.retention = d }
}

// WithDefaultFailureMode sets the FailurePolicy a submitted workflow gets
// when it doesn't declare its own OnFailure. Without this option a Manager
// defaults to FailFast.
func WithDefaultFailureMode(mode FailurePolicy) ManagerOption {
	return func(m *Manager) { m.defaultFailureMode = mode }
}
