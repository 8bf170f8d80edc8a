// Package executors provides the built-in task_type StepExecutors: echo,
// sleep, and llm_call, registered against a workflow.Registry the way the
// teacher registers named experts against its ExpertRegistry.
package executors

import (
	"context"

	"github.com/llm-devops/workflow-core/pkg/workflow"
)

// Echo returns its resolved config verbatim as the step output. Useful for
// exercising dependency wiring and placeholder resolution without any
// external side effect.
func Echo(_ context.Context, in workflow.StepInput) (any, error) {
	return in.Config, nil
}
