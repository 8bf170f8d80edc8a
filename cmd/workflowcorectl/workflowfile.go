package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/llm-devops/workflow-core/pkg/reliability/loadshed"
	"github.com/llm-devops/workflow-core/pkg/workflow"
)

// stepFile is the YAML-decodable shape of one step in a workflow
// definition file; durations are plain strings (e.g. "30s") so the file
// stays human-editable.
type stepFile struct {
	ID           string         `yaml:"id"`
	TaskType     string         `yaml:"task_type"`
	Config       map[string]any `yaml:"config"`
	Dependencies []string       `yaml:"dependencies"`
	MaxRetries   int            `yaml:"max_retries"`
	Timeout      string         `yaml:"timeout"`
	Priority     string         `yaml:"priority"`
}

func parsePriority(s string) loadshed.Priority {
	switch s {
	case "background":
		return loadshed.PriorityBackground
	case "low":
		return loadshed.PriorityLow
	case "high":
		return loadshed.PriorityHigh
	case "critical":
		return loadshed.PriorityCritical
	default:
		return loadshed.PriorityNormal
	}
}

// workflowFile is the YAML-decodable shape of a whole workflow definition.
type workflowFile struct {
	ID        string     `yaml:"id"`
	OnFailure string     `yaml:"on_failure"`
	Steps     []stepFile `yaml:"steps"`
}

// loadWorkflowFile reads and converts a YAML workflow definition into the
// engine's workflow.Workflow type.
func loadWorkflowFile(path string) (workflow.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workflow.Workflow{}, errors.Wrapf(err, "reading workflow file %s", path)
	}

	var wf workflowFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return workflow.Workflow{}, errors.Wrapf(err, "parsing workflow file %s", path)
	}

	steps := make([]workflow.StepDefinition, 0, len(wf.Steps))
	for _, s := range wf.Steps {
		var timeout time.Duration
		if s.Timeout != "" {
			timeout, err = time.ParseDuration(s.Timeout)
			if err != nil {
				return workflow.Workflow{}, errors.Wrapf(err, "step %s: invalid timeout %q", s.ID, s.Timeout)
			}
		}
		steps = append(steps, workflow.StepDefinition{
			ID:           s.ID,
			TaskType:     s.TaskType,
			Config:       s.Config,
			Dependencies: s.Dependencies,
			MaxRetries:   s.MaxRetries,
			Timeout:      timeout,
			Priority:     parsePriority(s.Priority),
		})
	}

	onFailure := workflow.FailFast
	if wf.OnFailure == string(workflow.IsolateFailures) {
		onFailure = workflow.IsolateFailures
	}

	return workflow.Workflow{
		ID:        wf.ID,
		Steps:     steps,
		OnFailure: onFailure,
	}, nil
}
