// Package tracing provides domain.Tracer implementations: an OpenTelemetry
// adapter and a no-op for callers that do not collect traces.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"querybatch/internal/domain"
)

// NoopTracer discards all spans.
type NoopTracer struct{}

type noopSpan struct{}

func (noopSpan) SetAttributes(map[string]any) {}
func (noopSpan) End()                         {}

// Start implements domain.Tracer.
func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, domain.Span) {
	return ctx, noopSpan{}
}

// Noop returns a tracer that records nothing.
func Noop() domain.Tracer { return NoopTracer{} }

var _ domain.Tracer = NoopTracer{}

// OTelTracer adapts an OpenTelemetry tracer to domain.Tracer.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTel returns a tracer backed by the globally registered OpenTelemetry
// provider. With no provider registered this degrades to no-op spans.
func NewOTel(name string) *OTelTracer {
	return &OTelTracer{tracer: otel.Tracer(name)}
}

// Start implements domain.Tracer.
func (t *OTelTracer) Start(ctx context.Context, name string) (context.Context, domain.Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, otelSpan{span: span}
}

var _ domain.Tracer = (*OTelTracer)(nil)

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) SetAttributes(attrs map[string]any) {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, toAttribute(k, v))
	}
	s.span.SetAttributes(kvs...)
}

func (s otelSpan) End() { s.span.End() }

func toAttribute(k string, v any) attribute.KeyValue {
	switch t := v.(type) {
	case string:
		return attribute.String(k, t)
	case bool:
		return attribute.Bool(k, t)
	case int:
		return attribute.Int(k, t)
	case int64:
		return attribute.Int64(k, t)
	case float64:
		return attribute.Float64(k, t)
	default:
		return attribute.String(k, fmt.Sprint(t))
	}
}
