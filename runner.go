package seqflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/petrijr/seqflow/internal/persistence"
	"github.com/petrijr/seqflow/pkg/api"
	"github.com/petrijr/seqflow/pkg/producer"
	"github.com/petrijr/seqflow/pkg/supervisor"
	"github.com/petrijr/seqflow/pkg/worker"
)

// Task names of the two runner slots.
const (
	TaskPrimes    = supervisor.TaskPrimes
	TaskFibonacci = supervisor.TaskFibonacci
)

// ErrUnknownTask is returned when a task name matches neither slot.
var ErrUnknownTask = errors.New("seqflow: unknown task")

// ErrHistoryDisabled is returned by history queries on a runner built
// without WithHistory.
var ErrHistoryDisabled = errors.New("seqflow: history disabled")

// Slot is the task-independent view of one supervised slot.
type Slot interface {
	Task() string
	Restart(ctx context.Context) error
	Pause()
	Resume()
	Cancel()
	State() WorkerState
	IsRunning() bool
	Controls() Controls
	Current() supervisor.Worker
	Wait(ctx context.Context) error
	Close()
}

// SlotStatus is a point-in-time view of a slot.
type SlotStatus struct {
	Task     string
	WorkerID string // empty before the first start
	Params   string
	State    WorkerState
	Controls Controls
}

type runnerConfig struct {
	primeDelay     time.Duration
	fibonacciDelay time.Duration
	syncRestart    bool
	observers      []Observer
	history        HistoryStore
	skipValues     bool
	logger         *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerConfig)

// WithObserver adds observers that receive notifications from both slots.
func WithObserver(obs ...Observer) RunnerOption {
	return func(c *runnerConfig) { c.observers = append(c.observers, obs...) }
}

// WithHistory records every worker into store.
func WithHistory(store HistoryStore) RunnerOption {
	return func(c *runnerConfig) { c.history = store }
}

// WithoutValueHistory keeps run summaries but skips per-value events.
func WithoutValueHistory() RunnerOption {
	return func(c *runnerConfig) { c.skipValues = true }
}

// WithPrimeDelay sets the pause between prime steps.
func WithPrimeDelay(d time.Duration) RunnerOption {
	return func(c *runnerConfig) { c.primeDelay = d }
}

// WithFibonacciDelay sets the pause between Fibonacci steps.
func WithFibonacciDelay(d time.Duration) RunnerOption {
	return func(c *runnerConfig) { c.fibonacciDelay = d }
}

// WithSyncRestart makes a start wait until the superseded worker of the
// same slot has finished.
func WithSyncRestart() RunnerOption {
	return func(c *runnerConfig) { c.syncRestart = true }
}

// WithLogger sets the logger for workers, supervisors and history writes.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(c *runnerConfig) { c.logger = l }
}

// Runner bundles the primes and Fibonacci slots behind one observer and an
// optional history store.
//
// Typical usage:
//
//	r := seqflow.NewRunner(seqflow.WithObserver(obs))
//	defer r.Stop()
//
//	if err := r.StartPrimes(ctx, "2", "100"); err != nil {
//	    // err is a *ValidationError; nothing was started
//	}
//	r.Primes.Pause()
//	r.Primes.Resume()
type Runner struct {
	Primes    *supervisor.Supervisor[producer.PrimeBounds]
	Fibonacci *supervisor.Supervisor[producer.FibonacciBounds]

	// History is nil unless WithHistory was given.
	History HistoryStore

	logger *slog.Logger
}

// NewRunner constructs a Runner with idle slots.
func NewRunner(opts ...RunnerOption) *Runner {
	cfg := runnerConfig{
		primeDelay:     worker.DefaultPrimeDelay,
		fibonacciDelay: worker.DefaultFibonacciDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	observers := cfg.observers
	if cfg.history != nil {
		rec := persistence.NewRecorder(cfg.history, cfg.logger)
		rec.SkipValues = cfg.skipValues
		observers = append([]Observer{rec}, observers...)
	}
	obs := api.NewCompositeObserver(observers...)

	supOpts := []supervisor.Option{supervisor.WithLogger(cfg.logger)}
	if cfg.syncRestart {
		supOpts = append(supOpts, supervisor.WithSyncRestart())
	}
	wOpts := []worker.Option{worker.WithLogger(cfg.logger)}

	return &Runner{
		Primes: supervisor.New(TaskPrimes,
			supervisor.PrimeBuilder(cfg.primeDelay, wOpts...), obs, supOpts...),
		Fibonacci: supervisor.New(TaskFibonacci,
			supervisor.FibonacciBuilder(cfg.fibonacciDelay, wOpts...), obs, supOpts...),
		History: cfg.history,
		logger:  cfg.logger,
	}
}

// StartPrimes parses the textual bounds and (re)starts the primes slot.
// Empty text selects the defaults. Invalid text returns a *ValidationError
// and leaves the slot untouched.
func (r *Runner) StartPrimes(ctx context.Context, minText, maxText string) error {
	bounds, err := producer.ParsePrimeBounds(minText, maxText)
	if err != nil {
		return err
	}
	return r.Primes.Start(ctx, bounds)
}

// StartFibonacci parses the textual limit and (re)starts the Fibonacci
// slot. Empty text means unbounded.
func (r *Runner) StartFibonacci(ctx context.Context, maxText string) error {
	bounds, err := producer.ParseFibonacciBounds(maxText)
	if err != nil {
		return err
	}
	return r.Fibonacci.Start(ctx, bounds)
}

// Slot returns the slot for task.
func (r *Runner) Slot(task string) (Slot, error) {
	switch task {
	case TaskPrimes:
		return r.Primes, nil
	case TaskFibonacci:
		return r.Fibonacci, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}
}

// Slots returns both slots in display order.
func (r *Runner) Slots() []Slot {
	return []Slot{r.Primes, r.Fibonacci}
}

// Status snapshots both slots.
func (r *Runner) Status() []SlotStatus {
	slots := r.Slots()
	out := make([]SlotStatus, 0, len(slots))
	for _, s := range slots {
		st := SlotStatus{
			Task:     s.Task(),
			State:    s.State(),
			Controls: s.Controls(),
		}
		if w := s.Current(); w != nil {
			st.WorkerID = w.ID()
			if iw, ok := w.(interface{ Info() api.WorkerInfo }); ok {
				st.Params = iw.Info().Params
			}
		}
		out = append(out, st)
	}
	return out
}

// Runs lists recorded runs, oldest first. An empty task lists both slots.
func (r *Runner) Runs(ctx context.Context, task string) ([]*Run, error) {
	if r.History == nil {
		return nil, ErrHistoryDisabled
	}
	return r.History.ListRuns(ctx, RunListOptions{Task: task})
}

// Events lists the recorded events of one worker in order.
func (r *Runner) Events(ctx context.Context, workerID string) ([]WorkerEvent, error) {
	if r.History == nil {
		return nil, ErrHistoryDisabled
	}
	return r.History.ListEvents(ctx, workerID)
}

// Wait blocks until every worker of both slots has finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	for _, s := range r.Slots() {
		if err := s.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop cancels both slots and waits for their workers to exit.
// It is safe to call more than once.
func (r *Runner) Stop() {
	for _, s := range r.Slots() {
		s.Cancel()
	}
	for _, s := range r.Slots() {
		s.Close()
	}
	r.logger.Debug("runner stopped")
}
