package executor

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Batch execution modes reported on metrics and spans.
const (
	modeParallel   = "parallel"
	modeSequential = "sequential"
)

// otelInstruments holds the executor's metric instruments. They are created
// once at construction and reused for every batch. A nil receiver (no meter
// configured) disables recording without any call-site checks.
type otelInstruments struct {
	// batchDuration records wall-clock batch duration in milliseconds.
	batchDuration metric.Float64Histogram

	// taskCounter counts tasks executed.
	taskCounter metric.Int64Counter

	// failureCounter counts failed tasks.
	failureCounter metric.Int64Counter
}

// newOtelInstruments creates the metric instruments, or returns nil when no
// meter is configured.
func newOtelInstruments(meter metric.Meter) (*otelInstruments, error) {
	if meter == nil {
		return nil, nil
	}

	inst := &otelInstruments{}
	var err error

	inst.batchDuration, err = meter.Float64Histogram(
		"recall.batch.duration",
		metric.WithDescription("Layer query batch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create batch duration histogram: %w", err)
	}

	inst.taskCounter, err = meter.Int64Counter(
		"recall.tasks",
		metric.WithDescription("Number of layer query tasks executed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create task counter: %w", err)
	}

	inst.failureCounter, err = meter.Int64Counter(
		"recall.task.failures",
		metric.WithDescription("Number of layer query tasks that timed out or errored"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create failure counter: %w", err)
	}

	return inst, nil
}

// recordBatch emits metrics for one completed batch. Safe on a nil
// receiver.
func (inst *otelInstruments) recordBatch(ctx context.Context, mode string, tasks, failed int, elapsed time.Duration) {
	if inst == nil {
		return
	}

	modeAttr := metric.WithAttributes(attribute.String("mode", mode))
	inst.batchDuration.Record(ctx, float64(elapsed.Milliseconds()), modeAttr)
	inst.taskCounter.Add(ctx, int64(tasks), modeAttr)
	if failed > 0 {
		inst.failureCounter.Add(ctx, int64(failed), modeAttr)
	}
}

// annotateBatchSpan attaches batch identity attributes to an execution
// span.
func annotateBatchSpan(span trace.Span, batchID string, tasks int) {
	span.SetAttributes(
		attribute.String("recall.batch_id", batchID),
		attribute.Int("recall.task_count", tasks),
	)
}
