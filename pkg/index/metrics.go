package index

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for index operations.
var meter = otel.Meter("corticai.index")

// Metrics for index operations.
var (
	operationLatency metric.Float64Histogram
	operationTotal   metric.Int64Counter
	queryResults     metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		operationLatency, err = meter.Float64Histogram(
			"attribute_index_operation_duration_seconds",
			metric.WithDescription("Duration of attribute index operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		operationTotal, err = meter.Int64Counter(
			"attribute_index_operation_total",
			metric.WithDescription("Total number of attribute index operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryResults, err = meter.Int64Histogram(
			"attribute_index_query_results",
			metric.WithDescription("Number of entities returned per query"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordOperation records latency and count for one operation.
func recordOperation(op string, started time.Time, err error) {
	if initErr := initMetrics(); initErr != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.Bool("success", err == nil),
	)
	ctx := context.Background()
	operationLatency.Record(ctx, time.Since(started).Seconds(), attrs)
	operationTotal.Add(ctx, 1, attrs)
}

// recordQuery records an operation plus its result size.
func recordQuery(op string, started time.Time, results int) {
	recordOperation(op, started, nil)
	if initErr := initMetrics(); initErr != nil {
		return
	}
	queryResults.Record(context.Background(), int64(results),
		metric.WithAttributes(attribute.String("operation", op)))
}
