// Tracing helpers for the widget bridge.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracing with bridge-specific helpers.
type Tracer struct {
	tracer trace.Tracer
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
	}
	return globalTracer
}

// NewTracer creates a new tracer with the given name.
func NewTracer(name string) *Tracer {
	return &Tracer{tracer: otel.Tracer(name)}
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// CapabilitySpanOptions carries attributes for capability-call spans.
type CapabilitySpanOptions struct {
	Tool string
	URI  string
}

// StartCapabilitySpan starts a span for a delegated capability call.
func (t *Tracer) StartCapabilitySpan(ctx context.Context, method, serverID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "capability."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("widget.server", serverID)),
	)
}

// EndCapabilitySpan ends a capability span with attributes.
func (t *Tracer) EndCapabilitySpan(span trace.Span, opts CapabilitySpanOptions, err error) {
	if opts.Tool != "" {
		span.SetAttributes(attribute.String("widget.tool", opts.Tool))
	}
	if opts.URI != "" {
		span.SetAttributes(attribute.String("widget.resource", opts.URI))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// StartSessionSpan starts a span covering a widget session's lifetime.
func (t *Tracer) StartSessionSpan(ctx context.Context, widgetID string, protocol string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "widget.session",
		trace.WithAttributes(
			attribute.String("widget.id", widgetID),
			attribute.String("widget.protocol", protocol),
		),
	)
}

// EndSessionSpan ends a session span with the terminal lifecycle state.
func (t *Tracer) EndSessionSpan(span trace.Span, lifecycle string, errMessage string) {
	span.SetAttributes(attribute.String("widget.lifecycle", lifecycle))
	if errMessage != "" {
		span.SetStatus(codes.Error, errMessage)
	}
	span.End()
}
