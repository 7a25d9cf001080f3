package telemetry

import (
	"context"
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nextlevelbuilder/fabot/internal/config"
)

func TestSpanReporter_RecordsErrorEvent(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	r := NewReporter(tp.Tracer("test"))

	r.Report(context.Background(), errors.New("copy failed"), KindChannelPost, map[string]any{
		"user_id":    int64(42),
		"channel_id": "-100123",
		"group":      true,
		"targets":    []int64{1, 2},
	})

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != KindChannelPost {
		t.Errorf("span name = %q", span.Name())
	}
	events := span.Events()
	if len(events) != 1 || events[0].Name != "exception" {
		t.Fatalf("expected one exception event, got %+v", events)
	}

	found := false
	for _, kv := range events[0].Attributes {
		if string(kv.Key) == "channel_id" && kv.Value.AsString() == "-100123" {
			found = true
		}
	}
	if !found {
		t.Error("channel_id attribute missing from error event")
	}
}

func TestSpanReporter_UsesActiveSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := tp.Tracer("test")
	r := NewReporter(tracer)

	ctx, span := tracer.Start(context.Background(), "update")
	r.Report(ctx, errors.New("boom"), KindChannelModeration, nil)
	span.End()

	spans := sr.Ended()
	if len(spans) != 1 || spans[0].Name() != "update" {
		t.Fatalf("report should attach to the active span, got %d spans", len(spans))
	}
}

func TestSpanReporter_NilErrorAndNilTracer(t *testing.T) {
	r := NewReporter(nil)
	r.Report(context.Background(), nil, KindUpdate, nil)
	r.Report(context.Background(), errors.New("x"), KindUpdate, map[string]any{"v": struct{}{}})
}

func TestSetup_DisabledIsNoop(t *testing.T) {
	p, err := Setup(context.Background(), config.TelemetryConfig{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if p.Tracer() == nil {
		t.Fatal("tracer must not be nil")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestSetup_UnknownProtocol(t *testing.T) {
	_, err := Setup(context.Background(), config.TelemetryConfig{
		Enabled:  true,
		Endpoint: "localhost:4317",
		Protocol: "carrier-pigeon",
	})
	if err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}
