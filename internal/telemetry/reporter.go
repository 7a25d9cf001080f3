// Package telemetry reports delivery-side failures with structured context.
//
// Every report is written to the structured log. When a tracer is configured
// the error is also recorded on the active span (or a short-lived span named
// after the report kind) so it reaches the OTLP backend.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Report kinds used as span names and the "kind" log attribute.
const (
	KindChannelPost       = "channel_post"
	KindChannelModeration = "channel_moderation"
	KindNotification      = "rejection_notification"
	KindUpdate            = "telegram_update"
)

// Reporter is the error collector used by the moderation pipeline.
// Report must never panic and never block on network I/O.
type Reporter interface {
	Report(ctx context.Context, err error, kind string, attrs map[string]any)
}

// SpanReporter logs through slog and records errors on OpenTelemetry spans.
type SpanReporter struct {
	tracer trace.Tracer
}

// NewReporter returns a reporter using tracer. A nil tracer disables span
// recording; reports still go to the log.
func NewReporter(tracer trace.Tracer) *SpanReporter {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("fabot")
	}
	return &SpanReporter{tracer: tracer}
}

func (r *SpanReporter) Report(ctx context.Context, err error, kind string, attrs map[string]any) {
	if err == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("telemetry: report panicked", "kind", kind, "panic", rec)
		}
	}()

	keys := sortedKeys(attrs)

	args := make([]any, 0, 4+2*len(keys))
	args = append(args, "kind", kind, "error", err)
	for _, k := range keys {
		args = append(args, k, attrs[k])
	}
	slog.Error("telemetry: error reported", args...)

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		_, span = r.tracer.Start(ctx, kind)
		defer span.End()
	}
	span.RecordError(err, trace.WithAttributes(toAttributes(kind, keys, attrs)...))
	span.SetStatus(codes.Error, err.Error())
}

func sortedKeys(attrs map[string]any) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toAttributes(kind string, keys []string, attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(keys)+1)
	out = append(out, attribute.String("fabot.kind", kind))
	for _, k := range keys {
		switch v := attrs[k].(type) {
		case string:
			out = append(out, attribute.String(k, v))
		case int:
			out = append(out, attribute.Int(k, v))
		case int64:
			out = append(out, attribute.Int64(k, v))
		case bool:
			out = append(out, attribute.Bool(k, v))
		case float64:
			out = append(out, attribute.Float64(k, v))
		case []int64:
			out = append(out, attribute.Int64Slice(k, v))
		case []string:
			out = append(out, attribute.StringSlice(k, v))
		case nil:
			// skip
		default:
			out = append(out, attribute.String(k, fmt.Sprint(v)))
		}
	}
	return out
}

// Discard drops every report. Useful for CLI commands that reuse
// moderation components without a telemetry pipeline.
type Discard struct{}

func (Discard) Report(context.Context, error, string, map[string]any) {}
