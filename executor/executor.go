package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mnemos-ai/recall/layer"
)

// Defaults applied when Config leaves the corresponding field zero.
const (
	DefaultMaxConcurrent = 5
	DefaultTaskTimeout   = 10 * time.Second
)

// QueryTask is one unit of work in a batch: a bound layer query ready to
// run. Tasks are immutable once constructed and owned by the Execute call
// that receives them.
type QueryTask struct {
	// Layer names the backing layer; it must be unique within a batch
	// because results are keyed by it.
	Layer string

	// Run performs the query. It receives a context carrying the task's
	// deadline and should honor cancellation; calls that cannot are
	// abandoned on timeout (see layer.OffloadCall).
	Run func(ctx context.Context) ([]layer.Record, error)

	// Timeout overrides the executor's default per-task timeout when
	// positive.
	Timeout time.Duration
}

// ExecutionResult is the outcome of one QueryTask. Exactly one is produced
// per task; failed tasks carry an error message and a nil payload.
type ExecutionResult struct {
	// Layer is the name of the layer the task queried.
	Layer string `json:"layer"`

	// Success reports whether the query completed within its deadline
	// without error.
	Success bool `json:"success"`

	// Records is the query payload; nil when Success is false.
	Records []layer.Record `json:"records,omitempty"`

	// Error holds the failure message; empty when Success is true.
	Error string `json:"error,omitempty"`

	// Elapsed is the task's wall-clock time. For timed-out tasks this is
	// the time until the deadline fired, not the abandoned call's full
	// duration.
	Elapsed time.Duration `json:"elapsed"`
}

// Stats is a snapshot of the executor's running counters.
type Stats struct {
	// ParallelBatches counts batches executed via the fan-out path.
	ParallelBatches int `json:"parallel_batches"`

	// SequentialBatches counts batches executed one task at a time,
	// including fallbacks after fan-out failures.
	SequentialBatches int `json:"sequential_batches"`

	// TasksExecuted counts individual tasks run across all batches.
	TasksExecuted int `json:"tasks_executed"`

	// FailedTasks counts tasks that timed out or returned an error.
	FailedTasks int `json:"failed_tasks"`

	// Speedups holds durations saved by parallel execution, as reported
	// through RecordSpeedup.
	Speedups []time.Duration `json:"speedups,omitempty"`
}

// AverageSpeedup returns the mean recorded speedup, or zero when none have
// been reported.
func (s Stats) AverageSpeedup() time.Duration {
	if len(s.Speedups) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range s.Speedups {
		total += d
	}
	return total / time.Duration(len(s.Speedups))
}

// Config configures an Executor.
type Config struct {
	// MaxConcurrent bounds the number of tasks in flight at once.
	// Defaults to DefaultMaxConcurrent.
	MaxConcurrent int

	// TaskTimeout is the per-task deadline applied when a task does not
	// carry its own. Defaults to DefaultTaskTimeout.
	TaskTimeout time.Duration

	// DisableParallel forces every batch down the sequential path.
	DisableParallel bool

	// Logger records task failures and fallbacks. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Meter enables OpenTelemetry metrics when non-nil.
	Meter metric.Meter

	// Tracer enables per-batch spans when non-nil.
	Tracer trace.Tracer
}

// Executor runs query task batches. Construct with New; the zero value is
// not usable.
//
// Thread-safety: Execute, Stats, and RecordSpeedup are safe for concurrent
// use.
type Executor struct {
	maxConcurrent int
	taskTimeout   time.Duration
	parallel      bool
	logger        *slog.Logger
	tracer        trace.Tracer
	instruments   *otelInstruments

	// sem gates task launches; no fairness guarantee.
	sem chan struct{}

	mu    sync.Mutex
	stats Stats
}

// New creates an Executor from cfg, applying defaults for zero fields.
// It fails only if metric instrument creation fails.
func New(cfg Config) (*Executor, error) {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	instruments, err := newOtelInstruments(cfg.Meter)
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}

	return &Executor{
		maxConcurrent: cfg.MaxConcurrent,
		taskTimeout:   cfg.TaskTimeout,
		parallel:      !cfg.DisableParallel,
		logger:        cfg.Logger,
		tracer:        cfg.Tracer,
		instruments:   instruments,
		sem:           make(chan struct{}, cfg.MaxConcurrent),
	}, nil
}

// Execute runs every task in the batch and returns one ExecutionResult per
// task, keyed by layer name. Arrival order across layers is undefined.
//
// Task failures (timeout, error, panic) are recorded in the corresponding
// result and never propagate; Execute itself cannot fail. If the fan-out
// machinery panics, the batch transparently re-runs sequentially.
func (e *Executor) Execute(ctx context.Context, tasks []QueryTask) map[string]ExecutionResult {
	if len(tasks) == 0 {
		return map[string]ExecutionResult{}
	}

	batchID := uuid.NewString()
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "recall.execute")
		defer span.End()
		annotateBatchSpan(span, batchID, len(tasks))
	}

	if !e.parallel || len(tasks) < 2 {
		return e.executeSequential(ctx, tasks)
	}

	results, ok := e.executeParallel(ctx, tasks)
	if !ok {
		// Infrastructure failure in the fan-out path; the batch is
		// re-run sequentially rather than surfaced to the caller.
		e.logger.Warn("parallel execution failed, falling back to sequential", "batch_id", batchID)
		return e.executeSequential(ctx, tasks)
	}
	return results
}

// ExecuteSequential runs the batch one task at a time regardless of the
// executor's parallel setting, with the same per-task timeout and failure
// isolation as Execute. Callers use it when they know fan-out cannot pay
// for itself, such as a single-layer batch.
func (e *Executor) ExecuteSequential(ctx context.Context, tasks []QueryTask) map[string]ExecutionResult {
	if len(tasks) == 0 {
		return map[string]ExecutionResult{}
	}
	return e.executeSequential(ctx, tasks)
}

// executeParallel fans the batch out across goroutines gated by the
// semaphore. The ok return is false only on an infrastructure-level panic.
func (e *Executor) executeParallel(ctx context.Context, tasks []QueryTask) (results map[string]ExecutionResult, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			results, ok = nil, false
		}
	}()

	start := time.Now()
	slots := make([]ExecutionResult, len(tasks))

	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(i int, task QueryTask) {
			defer wg.Done()

			// Block until a concurrency slot frees up, unless the
			// whole batch is already cancelled.
			select {
			case e.sem <- struct{}{}:
				defer func() { <-e.sem }()
			case <-ctx.Done():
				slots[i] = ExecutionResult{
					Layer: task.Layer,
					Error: fmt.Sprintf("batch cancelled before start: %v", ctx.Err()),
				}
				return
			}

			slots[i] = e.runTask(ctx, task)
		}(i, tasks[i])
	}
	wg.Wait()

	results = make(map[string]ExecutionResult, len(tasks))
	var failed int
	for _, res := range slots {
		results[res.Layer] = res
		if !res.Success {
			failed++
		}
	}

	e.recordBatch(ctx, modeParallel, len(tasks), failed, time.Since(start))
	return results, true
}

// executeSequential runs tasks one at a time in batch order.
func (e *Executor) executeSequential(ctx context.Context, tasks []QueryTask) map[string]ExecutionResult {
	start := time.Now()
	results := make(map[string]ExecutionResult, len(tasks))

	var failed int
	for _, task := range tasks {
		res := e.runTask(ctx, task)
		results[res.Layer] = res
		if !res.Success {
			failed++
		}
	}

	e.recordBatch(ctx, modeSequential, len(tasks), failed, time.Since(start))
	return results
}

// runTask executes one task under its deadline and converts every failure
// mode into a failed ExecutionResult.
func (e *Executor) runTask(ctx context.Context, task QueryTask) ExecutionResult {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = e.taskTimeout
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	records, err := layer.OffloadCall(taskCtx, task.Run)
	elapsed := time.Since(start)

	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("layer %s timed out after %s", task.Layer, timeout)
		}
		e.logger.Debug("layer query failed",
			"layer", task.Layer, "elapsed", elapsed, "error", msg)
		return ExecutionResult{
			Layer:   task.Layer,
			Error:   msg,
			Elapsed: elapsed,
		}
	}

	return ExecutionResult{
		Layer:   task.Layer,
		Success: true,
		Records: records,
		Elapsed: elapsed,
	}
}

// RecordSpeedup logs the duration saved by a parallel batch whose caller
// measured both execution modes. Negative speedups are kept too: they show
// where fan-out overhead exceeded the win.
func (e *Executor) RecordSpeedup(sequential, parallel time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.Speedups = append(e.stats.Speedups, sequential-parallel)
}

// Stats returns a snapshot of the running counters.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := e.stats
	snapshot.Speedups = make([]time.Duration, len(e.stats.Speedups))
	copy(snapshot.Speedups, e.stats.Speedups)
	return snapshot
}

// recordBatch updates counters and emits metrics for one completed batch.
func (e *Executor) recordBatch(ctx context.Context, mode string, tasks, failed int, elapsed time.Duration) {
	e.mu.Lock()
	if mode == modeParallel {
		e.stats.ParallelBatches++
	} else {
		e.stats.SequentialBatches++
	}
	e.stats.TasksExecuted += tasks
	e.stats.FailedTasks += failed
	e.mu.Unlock()

	e.instruments.recordBatch(ctx, mode, tasks, failed, elapsed)
}
