package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/isdmx/vibebox/config"
)

// ServiceName identifies this service in exported telemetry
const ServiceName = "vibebox"

// Shutdown flushes and stops the installed providers
type Shutdown func(context.Context) error

// Init installs global providers when telemetry is enabled.
// When disabled the global no-op providers stay in place.
func Init(ctx context.Context, cfg config.TelemetryConfig, log *zap.Logger) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	out, closeOut, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(ServiceName)),
	)
	if err != nil {
		closeOut()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tracerProvider, err := newTracerProvider(res, out)
	if err != nil {
		closeOut()
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	meterProvider, err := newMeterProvider(ctx, res, out)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		closeOut()
		return nil, fmt.Errorf("failed to initialize meter: %w", err)
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)

	log.Info("OpenTelemetry initialized",
		zap.String("service", ServiceName),
		zap.String("output", outputName(cfg.Output)))

	return func(ctx context.Context) error {
		err := errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)
		closeOut()
		return err
	}, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stderr, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening telemetry output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func outputName(path string) string {
	if path == "" {
		return "stderr"
	}
	return path
}

func newTracerProvider(res *resource.Resource, out io.Writer) (*trace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return nil, err
	}

	return trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
		trace.WithSampler(trace.AlwaysSample()),
	), nil
}

func newMeterProvider(_ context.Context, res *resource.Resource, out io.Writer) (*metric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(out))
	if err != nil {
		return nil, err
	}

	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exporter)),
	), nil
}
