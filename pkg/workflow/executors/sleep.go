package executors

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/llm-devops/workflow-core/pkg/workflow"
)

const sleepChunk = 50 * time.Millisecond

// Sleep waits for config["duration_ms"] (default 1000ms), checking ctx in
// small chunks so a cancelled or timed-out context interrupts promptly
// rather than after the full duration elapses. Output is the number of
// milliseconds actually slept before returning.
func Sleep(ctx context.Context, in workflow.StepInput) (any, error) {
	durationMs := 1000
	if v, ok := in.Config["duration_ms"]; ok {
		switch n := v.(type) {
		case int:
			durationMs = n
		case int64:
			durationMs = int(n)
		case float64:
			durationMs = int(n)
		}
	}

	remaining := time.Duration(durationMs) * time.Millisecond
	slept := time.Duration(0)

	for remaining > 0 {
		step := sleepChunk
		if remaining < step {
			step = remaining
		}

		select {
		case <-ctx.Done():
			return slept.Milliseconds(), errors.Wrap(ctx.Err(), "sleep interrupted")
		case <-time.After(step):
			slept += step
			remaining -= step
		}
	}

	return slept.Milliseconds(), nil
}
