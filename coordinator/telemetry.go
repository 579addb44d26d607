package coordinator

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/isdmx/vibebox/sandbox"
)

const instrumentationName = "github.com/isdmx/vibebox/coordinator"

// Execution outcomes recorded on the executions counter
const (
	outcomeSuccess     = "success"
	outcomeFailure     = "failure"
	outcomeUnsupported = "unsupported"
)

type instruments struct {
	executions metric.Int64Counter
	duration   metric.Float64Histogram
}

func newInstruments(meter metric.Meter, logger *zap.Logger) instruments {
	executions, err := meter.Int64Counter("vibebox.executions",
		metric.WithDescription("Listing file executions by language and outcome"))
	if err != nil {
		logger.Warn("failed to create executions counter", zap.Error(err))
		executions, _ = noop.Meter{}.Int64Counter("vibebox.executions")
	}

	duration, err := meter.Float64Histogram("vibebox.execution.duration",
		metric.WithDescription("Sandbox execution time as reported by the executor"),
		metric.WithUnit("ms"))
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
		duration, _ = noop.Meter{}.Float64Histogram("vibebox.execution.duration")
	}

	return instruments{executions: executions, duration: duration}
}

func (i instruments) record(ctx context.Context, language, outcome string, result *sandbox.ExecutionResult) {
	attrs := metric.WithAttributes(
		attribute.String("language", strings.ToLower(strings.TrimSpace(language))),
		attribute.String("outcome", outcome),
	)
	i.executions.Add(ctx, 1, attrs)
	if result != nil {
		i.duration.Record(ctx, float64(result.ExecutionTimeMs), attrs)
	}
}
