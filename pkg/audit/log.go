package audit

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrWriteFailed is returned from EventLog.Emit only when every registered
// sink rejected the event.
var ErrWriteFailed = errors.New("audit: every sink rejected the event")

// Sink is one append-only destination for audit events. Write must be safe
// for concurrent use; the EventLog does not serialize calls across sinks,
// only relies on each sink to serialize its own internal state.
type Sink interface {
	Name() string
	Write(ctx context.Context, event Event) error
	Flush(ctx context.Context) error
}

// EventLog fans an event out to every registered sink. Emit succeeds if at
// least one sink accepts the event; it returns ErrWriteFailed only when all
// of them reject it, with the first sink's error added to the message for
// diagnosis.
type EventLog struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewEventLog creates an event log over the given sinks.
func NewEventLog(sinks ...Sink) *EventLog {
	return &EventLog{sinks: sinks}
}

// Register adds another sink at runtime.
func (l *EventLog) Register(sink Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, sink)
}

// Emit writes event to every sink. No EventLog lock is held while sinks are
// called, but the sinks are called one after another, so a slow sink delays
// the sinks after it.
func (l *EventLog) Emit(ctx context.Context, event Event) error {
	l.mu.RLock()
	sinks := make([]Sink, len(l.sinks))
	copy(sinks, l.sinks)
	l.mu.RUnlock()

	if len(sinks) == 0 {
		return nil
	}

	var accepted bool
	var firstErr error
	for _, sink := range sinks {
		if err := sink.Write(ctx, event); err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "sink %q", sink.Name())
			}
			continue
		}
		accepted = true
	}

	if !accepted {
		return errors.Wrap(ErrWriteFailed, firstErr.Error())
	}
	return nil
}

// Flush forces every registered sink to flush any buffered data. It
// returns the first error encountered but still attempts every sink.
func (l *EventLog) Flush(ctx context.Context) error {
	l.mu.RLock()
	sinks := make([]Sink, len(l.sinks))
	copy(sinks, l.sinks)
	l.mu.RUnlock()

	var firstErr error
	for _, sink := range sinks {
		if err := sink.Flush(ctx); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "flushing sink %q", sink.Name())
		}
	}
	return firstErr
}
