// Package executor runs batches of independent layer query tasks with
// bounded concurrency, per-task timeouts, and failure isolation.
//
// A batch is a set of QueryTask values, one per layer. Execute fans the
// batch out across goroutines, gating launches on a counting semaphore so
// at most MaxConcurrent tasks are in flight. Each task runs under its own
// deadline; a timed-out or failing task is reported as a failed
// ExecutionResult and never disturbs its siblings. No task failure ever
// escapes Execute as an error.
//
// Batches of fewer than two tasks, and all batches when parallelism is
// disabled, run sequentially. If the fan-out machinery itself fails, the
// whole batch transparently falls back to sequential execution.
//
// The executor keeps running counts of parallel and sequential batches,
// failed tasks, and observed speedups, exposed through Stats. When built
// with an OpenTelemetry meter it additionally records batch duration and
// task outcome metrics.
package executor
