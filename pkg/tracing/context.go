// Package tracing implements the workflow engine's distributed trace
// context: W3C traceparent extract/inject plus a lightweight span model
// carrying workflow_id/step_id/task_type/attempt_number attributes.
package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

// Status is the terminal outcome recorded on a finished span.
type Status int

const (
	StatusUnset Status = iota
	StatusOK
	StatusError
	StatusCancelled
)

// Span is one unit of traced work: a step attempt, or the workflow-level
// root. All fields are set at creation except EndTime/Status/Outcome,
// which End populates; mutation after End is not supported.
type Span struct {
	TraceID       string
	SpanID        string
	ParentSpanID  string
	WorkflowID    string
	StepID        string
	TaskType      string
	AttemptNumber int

	StartTime time.Time
	EndTime   time.Time
	Status    Status
	Outcome   string

	mu         sync.Mutex
	attributes map[string]string
}

func randomHex(nBytes int) string {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform has no entropy source;
		// fall back to a timestamp-derived value rather than panic.
		ts := time.Now().UnixNano()
		for i := range buf {
			buf[i] = byte(ts >> (8 * uint(i%8)))
		}
	}
	return hex.EncodeToString(buf)
}

func newTraceID() string { return randomHex(16) } // 32 hex chars, matches W3C trace-id
func newSpanID() string  { return randomHex(8) }   // 16 hex chars, matches W3C parent-id

// NewRootSpan starts a fresh trace for a workflow run with no parent.
func NewRootSpan(workflowID string) *Span {
	return &Span{
		TraceID:    newTraceID(),
		SpanID:     newSpanID(),
		WorkflowID: workflowID,
		StartTime:  time.Now(),
		attributes: make(map[string]string),
	}
}

// FromTraceparent seeds a root span's trace ID/parent span ID from an
// extracted W3C traceparent, for a workflow submitted with external trace
// context already in flight.
func FromTraceparent(workflowID, traceID, parentSpanID string) *Span {
	return &Span{
		TraceID:      traceID,
		SpanID:       newSpanID(),
		ParentSpanID: parentSpanID,
		WorkflowID:   workflowID,
		StartTime:    time.Now(),
		attributes:   make(map[string]string),
	}
}

// NewChildSpan starts a span for one step attempt under parent.
func (s *Span) NewChildSpan(stepID, taskType string, attemptNumber int) *Span {
	return &Span{
		TraceID:       s.TraceID,
		SpanID:        newSpanID(),
		ParentSpanID:  s.SpanID,
		WorkflowID:    s.WorkflowID,
		StepID:        stepID,
		TaskType:      taskType,
		AttemptNumber: attemptNumber,
		StartTime:     time.Now(),
		attributes:    make(map[string]string),
	}
}

// SetAttribute records a key/value pair on the span.
func (s *Span) SetAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[key] = value
}

// Attributes returns a copy of the span's recorded attributes.
func (s *Span) Attributes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = v
	}
	return out
}

// Duration returns the span's elapsed time; zero if it hasn't ended yet.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// End closes the span with the given outcome. err nil means StatusOK;
// a cancellation-class error is recorded as StatusCancelled, anything else
// as StatusError.
func (s *Span) End(err error, outcome string) {
	s.EndTime = time.Now()
	s.Outcome = outcome
	switch {
	case err == nil:
		s.Status = StatusOK
	case isCancellation(err):
		s.Status = StatusCancelled
	default:
		s.Status = StatusError
	}
}

// isCancellation reports whether err represents a cancelled operation
// rather than a genuine failure: only an error that is or wraps
// context.Canceled counts. A cancellation sentinel that does not wrap it
// (such as workflow.ErrCancelled) is recorded as StatusError.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
