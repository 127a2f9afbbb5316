package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/stampede/internal/scenario"
)

// StartRequestSpan starts a client span for one HTTP attempt. The span is
// named after the request's label, or its method when it has none, and is
// tagged with the VU and iteration found in ctx.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, method, url, label string) (context.Context, trace.Span) {
	spanName := method
	if label != "" {
		spanName = label
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", method),
		attribute.String("url.full", url),
	}
	if it, ok := scenario.IterationFrom(ctx); ok {
		attrs = append(attrs,
			attribute.Int64("stampede.vu", int64(it.VU)),
			attribute.Int64("stampede.iteration", int64(it.Number)),
		)
	}
	return tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
