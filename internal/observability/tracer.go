package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new span with the given name and attributes
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartServerSpan creates a new server span (for incoming requests)
func StartServerSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// SpanFromContext returns the current span from context
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// SetSpanError marks the span as errored
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Common attribute keys for entgate spans
var (
	AttrTenantID   = attribute.Key("entgate.tenant_id")
	AttrProduct    = attribute.Key("entgate.product")
	AttrAction     = attribute.Key("entgate.action")
	AttrUserID     = attribute.Key("entgate.user_id")
	AttrGate       = attribute.Key("entgate.gate")
	AttrReasonCode = attribute.Key("entgate.reason_code")
	AttrAllowed    = attribute.Key("entgate.allowed")
	AttrDecisionID = attribute.Key("entgate.decision_id")
	AttrBatchSize  = attribute.Key("entgate.batch_size")
	AttrDurationMs = attribute.Key("entgate.duration_ms")
)
