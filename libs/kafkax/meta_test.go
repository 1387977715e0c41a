package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestNewMessageCarriesMetaAndTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	msg := NewMessage(ctx, "quote-1", "evt-1", "notification.email.requested", []byte(`{}`))
	meta := ExtractEventMeta(msg)
	if meta.EventID != "evt-1" || meta.EventType != "notification.email.requested" {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if HeaderValue(msg.Headers, "traceparent") == "" {
		t.Fatal("expected traceparent header")
	}

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), msg))
	if got.TraceID() != traceID {
		t.Fatalf("trace id not propagated: %s", got.TraceID())
	}
}

func TestExtractEventMetaFallbacks(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{Topic: "notifications.email.requested.v1", Key: []byte("k1")})
	if meta.EventID != "k1" || meta.EventType != "notifications.email.requested.v1" {
		t.Fatalf("unexpected fallbacks %+v", meta)
	}
	if len(SplitBrokers(" a:9092, ,b:9092")) != 2 {
		t.Fatal("expected two brokers")
	}
}
