package audit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	name       string
	fail       bool
	flushFail  bool
	written    []Event
	flushCalls int
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Write(_ context.Context, event Event) error {
	if s.fail {
		return fmt.Errorf("sink %s rejected", s.name)
	}
	s.written = append(s.written, event)
	return nil
}

func (s *fakeSink) Flush(_ context.Context) error {
	s.flushCalls++
	if s.flushFail {
		return fmt.Errorf("sink %s flush failed", s.name)
	}
	return nil
}

func TestEventLog_EmitFansOutToEverySink(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	log := NewEventLog(a, b)

	err := log.Emit(context.Background(), Event{ID: "1", EventType: EventWorkflowSubmitted})
	require.NoError(t, err)
	assert.Len(t, a.written, 1)
	assert.Len(t, b.written, 1)
}

func TestEventLog_SucceedsIfAtLeastOneSinkAccepts(t *testing.T) {
	good := &fakeSink{name: "good"}
	bad := &fakeSink{name: "bad", fail: true}
	log := NewEventLog(good, bad)

	err := log.Emit(context.Background(), Event{ID: "1"})
	assert.NoError(t, err)
	assert.Len(t, good.written, 1)
}

func TestEventLog_FailsOnlyWhenEverySinkRejects(t *testing.T) {
	bad1 := &fakeSink{name: "bad1", fail: true}
	bad2 := &fakeSink{name: "bad2", fail: true}
	log := NewEventLog(bad1, bad2)

	err := log.Emit(context.Background(), Event{ID: "1"})
	assert.ErrorIs(t, err, ErrWriteFailed)
}

func TestEventLog_RegisterAddsASinkAtRuntime(t *testing.T) {
	log := NewEventLog()
	sink := &fakeSink{name: "late"}
	log.Register(sink)

	require.NoError(t, log.Emit(context.Background(), Event{ID: "1"}))
	assert.Len(t, sink.written, 1)
}

func TestEventLog_EmitWithNoSinksIsANoOp(t *testing.T) {
	log := NewEventLog()
	assert.NoError(t, log.Emit(context.Background(), Event{ID: "1"}))
}

func TestEventLog_FlushCallsEverySink(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	log := NewEventLog(a, b)

	require.NoError(t, log.Flush(context.Background()))
	assert.Equal(t, 1, a.flushCalls)
	assert.Equal(t, 1, b.flushCalls)
}

func TestEventLog_FlushReturnsFirstErrorButStillFlushesEverySink(t *testing.T) {
	bad := &fakeSink{name: "bad", flushFail: true}
	good := &fakeSink{name: "good"}
	log := NewEventLog(bad, good)

	err := log.Flush(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, bad.flushCalls)
	assert.Equal(t, 1, good.flushCalls)
}
