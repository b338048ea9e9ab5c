package observability

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// otelSpan wraps an OpenTelemetry span to implement Span.
type otelSpan struct{ s oteltrace.Span }

func (o *otelSpan) End() { o.s.End() }

func (o *otelSpan) SetAttr(key, val string) {
	o.s.SetAttributes(attribute.String(key, val))
}

// otelTracer adapts an otel.Tracer to this package's Tracer interface.
type otelTracer struct{ t oteltrace.Tracer }

func (ot *otelTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, Span) {
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}
	ctx, s := ot.t.Start(ctx, name, oteltrace.WithAttributes(kv...))
	return ctx, &otelSpan{s: s}
}

// InstallOTelTracer wires a real OTLP-over-HTTP exporter when
// OTEL_EXPORTER_OTLP_ENDPOINT is set. It is a no-op otherwise, matching
// an env-gated, default-off pattern. Returns an error only
// if configured endpoint is unusable; callers typically ignore it and
// fall back to the no-op tracer.
func InstallOTelTracer() error {
	endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if endpoint == "" {
		return nil
	}

	exporter, err := otlptracehttp.New(context.Background(), otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return err
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		attribute.String("service.name", "auctionhouse"),
	))
	if err != nil {
		res = resource.Default()
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	SetTracer(&otelTracer{t: tp.Tracer("auctionhouse")})
	return nil
}
