package executors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-devops/workflow-core/pkg/workflow"
)

func TestSleep_SleepsForConfiguredDuration(t *testing.T) {
	start := time.Now()
	out, err := Sleep(context.Background(), workflow.StepInput{Config: map[string]any{"duration_ms": 100}})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Equal(t, int64(100), out)
}

func TestSleep_DefaultsToOneSecondWhenUnset(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Sleep(ctx, workflow.StepInput{})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSleep_AcceptsFloat64DurationFromYAMLDecoding(t *testing.T) {
	out, err := Sleep(context.Background(), workflow.StepInput{Config: map[string]any{"duration_ms": float64(50)}})

	require.NoError(t, err)
	assert.Equal(t, int64(50), out)
}

func TestSleep_InterruptedByContextCancellationReturnsPartialProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(70 * time.Millisecond)
		cancel()
	}()

	out, err := Sleep(ctx, workflow.StepInput{Config: map[string]any{"duration_ms": 1000}})

	assert.ErrorIs(t, err, context.Canceled)
	slept, ok := out.(int64)
	require.True(t, ok)
	assert.Greater(t, slept, int64(0))
	assert.Less(t, slept, int64(1000))
}
