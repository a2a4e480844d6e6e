package telemetry

import (
	"context"
	"net/http"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const defaultCollector = "localhost:4317"

// newResource identifies the binary and, when ENV is set, the deployment it
// runs in.
func newResource(serviceName, serviceVersion string) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	}
	if env := os.Getenv("ENV"); env != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(env))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// samplerFromEnv samples every trace unless OTEL_TRACES_SAMPLER_ARG holds a
// ratio in [0, 1]. Child spans follow the parent's decision.
func samplerFromEnv() trace.Sampler {
	ratio := 1.0
	if raw := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 1 {
			ratio = v
		}
	}
	return trace.ParentBased(trace.TraceIDRatioBased(ratio))
}

// InitTracerProvider exports spans over OTLP/gRPC to the collector named by
// OTEL_EXPORTER_OTLP_ENDPOINT and installs W3C trace-context propagation.
func InitTracerProvider(ctx context.Context, serviceName, serviceVersion string) (func(context.Context) error, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultCollector
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithSampler(samplerFromEnv()),
		trace.WithResource(newResource(serviceName, serviceVersion)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// WithHTTPRoute tags the active span with the matched ServeMux pattern.
// otelhttp runs before routing and cannot see it.
func WithHTTPRoute(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Pattern != "" {
			span := oteltrace.SpanFromContext(r.Context())
			span.SetAttributes(semconv.HTTPRoute(r.Pattern))
		}
		h(w, r)
	}
}
