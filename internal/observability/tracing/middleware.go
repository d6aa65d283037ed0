package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InvocationAttrs describes one Agent Runtime invocation for span tagging,
// per spec.md §6 Telemetry: "every LLM invocation is wrapped in a span with
// attributes {scout-name, provider, model, kind}."
type InvocationAttrs struct {
	ScoutName string
	Provider  string
	Model     string
	Kind      string
}

// StartInvocation opens a span around one Agent Runtime call. Grounded on
// the teacher's HTTP tracing middleware (tracer.Start + attribute.*,
// status-based error marking) retargeted from HTTP requests to LLM calls.
// Absence of a configured exporter does not change behaviour: otel's default
// no-op tracer makes this a cheap no-op span when telemetry is disabled.
func StartInvocation(ctx context.Context, attrs InvocationAttrs) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "agent.invoke",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("scout.name", attrs.ScoutName),
			attribute.String("agent.provider", attrs.Provider),
			attribute.String("agent.model", attrs.Model),
			attribute.String("scout.kind", attrs.Kind),
		),
	)
	return ctx, span
}

// EndInvocation records the invocation outcome and ends the span.
func EndInvocation(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		span.RecordError(err)
	}
	span.End()
}
