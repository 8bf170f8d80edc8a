package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// placeholderPattern matches {{step_id.output}} references inside a step's
// config values.
var placeholderPattern = regexp.MustCompile(`\{\{([a-zA-Z0-9_\-]+)\.output\}\}`)

// resolveConfig returns a copy of cfg with every {{step_id.output}}
// placeholder substituted for the named predecessor's output. A value that
// is *exactly* one placeholder is replaced with the predecessor's raw
// output (preserving its type); a placeholder embedded in a larger string
// is replaced with its JSON-marshalled form. It errors if a referenced step
// does not exist or has not completed, guaranteeing the happens-before
// ordering the scheduler relies on.
func resolveConfig(cfg map[string]any, steps map[string]*Step) (map[string]any, error) {
	resolved := make(map[string]any, len(cfg))
	for k, v := range cfg {
		rv, err := resolveValue(v, steps)
		if err != nil {
			return nil, err
		}
		resolved[k] = rv
	}
	return resolved, nil
}

func resolveValue(v any, steps map[string]*Step) (any, error) {
	switch val := v.(type) {
	case string:
		if m := placeholderPattern.FindStringSubmatch(val); m != nil && m[0] == val {
			return lookupOutput(m[1], steps)
		}
		var resolveErr error
		out := placeholderPattern.ReplaceAllStringFunc(val, func(match string) string {
			stepID := placeholderPattern.FindStringSubmatch(match)[1]
			output, err := lookupOutput(stepID, steps)
			if err != nil {
				resolveErr = err
				return match
			}
			b, err := json.Marshal(output)
			if err != nil {
				return fmt.Sprintf("%v", output)
			}
			return string(b)
		})
		if resolveErr != nil {
			return nil, resolveErr
		}
		return out, nil
	case map[string]any:
		return resolveConfig(val, steps)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rv, err := resolveValue(item, steps)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func lookupOutput(stepID string, steps map[string]*Step) (any, error) {
	step, exists := steps[stepID]
	if !exists {
		return nil, fmt.Errorf("reference not found: step %q does not exist", stepID)
	}
	if step.Status() != StepCompleted {
		return nil, fmt.Errorf("reference invalid: step %q is not completed (status: %s)", stepID, step.Status())
	}
	return step.Output(), nil
}
