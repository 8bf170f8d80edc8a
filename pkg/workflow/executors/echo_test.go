package executors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llm-devops/workflow-core/pkg/workflow"
)

func TestEcho_ReturnsConfigVerbatim(t *testing.T) {
	cfg := map[string]any{"message": "hello", "count": 3}

	out, err := Echo(context.Background(), workflow.StepInput{Config: cfg})

	assert.NoError(t, err)
	assert.Equal(t, cfg, out)
}

func TestEcho_EmptyConfig(t *testing.T) {
	out, err := Echo(context.Background(), workflow.StepInput{})

	assert.NoError(t, err)
	assert.Nil(t, out)
}
