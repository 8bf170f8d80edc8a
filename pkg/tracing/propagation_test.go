package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectExtractTraceparent_RoundTrips(t *testing.T) {
	root := NewRootSpan("wf-1")
	header := InjectTraceparent(root)
	require.NotEmpty(t, header)

	traceID, parentSpanID, valid := ExtractTraceparent(header)
	assert.True(t, valid)
	assert.Equal(t, root.TraceID, traceID)
	assert.Equal(t, root.SpanID, parentSpanID)
}

func TestExtractTraceparent_EmptyHeaderIsInvalid(t *testing.T) {
	_, _, valid := ExtractTraceparent("")
	assert.False(t, valid)
}

func TestExtractTraceparent_MalformedHeaderIsInvalid(t *testing.T) {
	_, _, valid := ExtractTraceparent("not-a-traceparent")
	assert.False(t, valid)
}

func TestFromTraceparent_SeedsTraceIDAndParent(t *testing.T) {
	external := NewRootSpan("upstream")
	header := InjectTraceparent(external)
	traceID, parentSpanID, valid := ExtractTraceparent(header)
	require.True(t, valid)

	seeded := FromTraceparent("wf-2", traceID, parentSpanID)
	assert.Equal(t, traceID, seeded.TraceID)
	assert.Equal(t, parentSpanID, seeded.ParentSpanID)
	assert.Equal(t, "wf-2", seeded.WorkflowID)
	assert.NotEqual(t, external.SpanID, seeded.SpanID)
}
