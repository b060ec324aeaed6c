package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Tracer is the subset of the tracer package used by the consumer and producer.
// *tracer.Tracer satisfies it.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, trace.Span)
	RecordErrorOnSpan(span trace.Span, err error)
	SetAttributes(span trace.Span, attrs map[string]interface{})
	SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context
}
