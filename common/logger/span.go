package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "bunsen"

// SpanContext wraps an OTel span for managed lifecycle.
type SpanContext struct {
	ctx  context.Context
	span trace.Span
}

// StartSpan creates a new span as a child of the current trace context and
// tags it with the delivery fields carried by ctx, so a GitHub or LLM call
// can be found from the issue it served. The returned SpanContext must be
// ended with End().
//
// Example:
//
//	sc := logger.StartSpan(ctx, "github.get_issue", trace.WithSpanKind(trace.SpanKindClient))
//	defer sc.End()
//	ctx = sc.Context()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *SpanContext {
	if attrs := deliveryAttributes(GetLogFields(ctx)); len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, name, opts...)
	return &SpanContext{ctx: ctx, span: span}
}

func deliveryAttributes(f LogFields) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if f.DeliveryID != nil {
		attrs = append(attrs, attribute.String("github.delivery_id", *f.DeliveryID))
	}
	if f.EventType != nil {
		attrs = append(attrs, attribute.String("github.event", *f.EventType))
	}
	if f.Repo != nil {
		attrs = append(attrs, attribute.String("github.repository", *f.Repo))
	}
	if f.IssueNumber != nil {
		attrs = append(attrs, attribute.Int64("github.issue_number", *f.IssueNumber))
	}
	if f.InstallationID != nil {
		attrs = append(attrs, attribute.Int64("github.installation_id", *f.InstallationID))
	}
	return attrs
}

// Context returns the context with the span attached.
func (sc *SpanContext) Context() context.Context {
	return sc.ctx
}

// End completes the span. Safe to call multiple times.
func (sc *SpanContext) End() {
	if sc.span != nil {
		sc.span.End()
	}
}

// RecordError records an error on the span and marks it failed.
func (sc *SpanContext) RecordError(err error) {
	if sc.span != nil && err != nil {
		sc.span.RecordError(err)
		sc.span.SetStatus(codes.Error, err.Error())
	}
}

// SetOutcome records the dispatcher's decision on the span.
func (sc *SpanContext) SetOutcome(kind string) {
	if sc.span != nil {
		sc.span.SetAttributes(attribute.String("bunsen.action", kind))
	}
}
