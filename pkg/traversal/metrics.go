package traversal

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for traversal operations.
var (
	tracer = otel.Tracer("corticai.traversal")
	meter  = otel.Meter("corticai.traversal")
)

var (
	opLatency    metric.Float64Histogram
	opTotal      metric.Int64Counter
	resultSize   metric.Int64Histogram
	edgesVisited metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		opLatency, err = meter.Float64Histogram(
			"traversal_duration_seconds",
			metric.WithDescription("Duration of traversal operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		opTotal, err = meter.Int64Counter(
			"traversal_total",
			metric.WithDescription("Total number of traversal operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		resultSize, err = meter.Int64Histogram(
			"traversal_result_size",
			metric.WithDescription("Number of nodes, paths or cycles returned per call"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesVisited, err = meter.Int64Histogram(
			"traversal_edges_expanded",
			metric.WithDescription("Edge expansions performed per call"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// outcome classifies a call result for the outcome metric attribute.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBudgetExceeded):
		return "budget_exceeded"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ErrNodeNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidDepth):
		return "invalid"
	default:
		return "error"
	}
}

// recordMetrics records metrics for one traversal call.
func recordMetrics(ctx context.Context, op string, duration time.Duration, results, expanded int, err error) {
	if initErr := initMetrics(); initErr != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome(err)),
	)
	opLatency.Record(ctx, duration.Seconds(), attrs)
	opTotal.Add(ctx, 1, attrs)
	edgesVisited.Record(ctx, int64(expanded), metric.WithAttributes(attribute.String("operation", op)))
	if err == nil {
		resultSize.Record(ctx, int64(results), metric.WithAttributes(attribute.String("operation", op)))
	}
}

// startSpan creates a span for a traversal operation.
func startSpan(ctx context.Context, op, startNode string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Traversal."+op,
		trace.WithAttributes(
			attribute.String("traversal.operation", op),
			attribute.String("traversal.start", startNode),
		),
	)
}

// endSpan sets the result attributes on a span and ends it.
func endSpan(span trace.Span, results, expanded int, err error) {
	span.SetAttributes(
		attribute.Int("traversal.results", results),
		attribute.Int("traversal.edges_expanded", expanded),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
