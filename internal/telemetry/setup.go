package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const ServiceVersion = "0.1.0"

type Telemetry struct {
	MetricsHandler http.Handler
	shutdown       []func(context.Context) error
}

// Setup installs the global tracer and meter providers for a binary.
func Setup(ctx context.Context, serviceName string) (*Telemetry, error) {
	shutdownTracer, err := InitTracerProvider(ctx, serviceName, ServiceVersion)
	if err != nil {
		return nil, err
	}

	metricsHandler, shutdownMeter, err := InitMeterProvider(serviceName, ServiceVersion)
	if err != nil {
		_ = shutdownTracer(ctx)
		return nil, err
	}

	return &Telemetry{
		MetricsHandler: metricsHandler,
		shutdown:       []func(context.Context) error{shutdownMeter, shutdownTracer},
	}, nil
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

// HTTPClient returns a client whose outgoing requests carry trace context.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// InstrumentHandler wraps a mux so each request gets a server span named
// after its route pattern.
func InstrumentHandler(h http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(h, operation,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if r.Pattern != "" {
				return r.Pattern
			}
			return r.Method + " " + r.URL.Path
		}),
	)
}
