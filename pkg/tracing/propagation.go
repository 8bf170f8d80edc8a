package tracing

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// propagator implements the W3C Trace Context format, grounded on the same
// otel propagation package used for NATS message headers elsewhere in the
// dependency pack.
var propagator = propagation.TraceContext{}

// InjectTraceparent renders span's trace/span IDs as a standard W3C
// "traceparent" header value, suitable for attaching to any outbound
// request or message a step executor makes.
func InjectTraceparent(span *Span) string {
	sc, ok := span.otelSpanContext()
	if !ok {
		return ""
	}
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	carrier := propagation.MapCarrier{}
	propagator.Inject(ctx, carrier)
	return carrier.Get("traceparent")
}

// ExtractTraceparent parses a W3C traceparent header. An invalid or
// missing header is not an error condition: per SPEC_FULL.md §4.6 it is
// silently replaced with a fresh root trace, so callers get valid=false
// rather than an error.
func ExtractTraceparent(header string) (traceID, parentSpanID string, valid bool) {
	if header == "" {
		return "", "", false
	}
	carrier := propagation.MapCarrier{"traceparent": header}
	ctx := propagator.Extract(context.Background(), carrier)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}

func (s *Span) otelSpanContext() (trace.SpanContext, bool) {
	tid, err := trace.TraceIDFromHex(s.TraceID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	sid, err := trace.SpanIDFromHex(s.SpanID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
	}), true
}
