// Package seqflow runs pausable number-sequence workers: a prime scanner
// and a Fibonacci generator, each in its own supervised slot.
//
// A worker produces values one step at a time on its own goroutine and can
// be paused, resumed and cancelled from any other goroutine. Pausing never
// loses or repeats a value; cancelling a paused worker stops it without
// resuming it first. Starting a slot again supersedes its current worker.
//
// # Core Concepts
//
//  1. Producer (pkg/producer): a pure step function over a small state
//  2. Worker (pkg/worker): drives one producer with a throttle delay
//  3. Supervisor (pkg/supervisor): owns the current worker of one slot
//  4. Observer (pkg/api): receives values, progress and lifecycle changes
//  5. Runner: the two slots plus shared observers and optional history
//
// # Runner
//
// Runner is the convenient entry point. It parses user text, so invalid
// input comes back as a *ValidationError and never creates a worker:
//
//	r := seqflow.NewRunner(
//	    seqflow.WithObserver(seqflow.FuncObserver{
//	        Value: func(info seqflow.WorkerInfo, v string) { fmt.Println(info.Task, v) },
//	    }),
//	)
//	defer r.Stop()
//
//	_ = r.StartPrimes(ctx, "2", "100")
//	r.Primes.Pause()
//	r.Primes.Resume()
//	_ = r.Primes.Restart(ctx)
//
// # History
//
// With WithHistory every worker is recorded as a Run with its events.
// Stores are available for memory, SQLite, PostgreSQL, Redis and MongoDB.
//
// # Observability
//
// Besides the observers re-exported here, pkg/observability/prometheus
// exposes Prometheus metrics and pkg/observability/tracing records one
// OpenTelemetry span per worker.
//
// For a runnable program, see cmd/seqflow and the /examples directory.
package seqflow
