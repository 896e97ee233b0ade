package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeadersRoundTrip(t *testing.T) {
	InstallPropagator()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), parent)

	headers := InjectKafkaHeaders(ctx, nil)
	found := false
	for _, h := range headers {
		if h.Key == TraceparentHeader {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected traceparent header, got %v", headers)
	}

	extracted := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), headers))
	if extracted.TraceID() != traceID || extracted.SpanID() != spanID {
		t.Fatalf("trace context lost: %v", extracted)
	}
}
