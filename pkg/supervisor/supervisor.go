package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/petrijr/seqflow/pkg/api"
)

// ErrNeverStarted is returned by Restart when no parameters have been
// accepted yet.
var ErrNeverStarted = errors.New("supervisor: never started")

// Worker is the part of a pausable worker the supervisor drives.
type Worker interface {
	ID() string
	Start(ctx context.Context) error
	Pause()
	Resume()
	Cancel()
	State() api.WorkerState
	Done() <-chan struct{}
}

// Builder validates params and constructs an Idle worker for task.
// Invalid params must be reported as *api.ValidationError and no worker
// may be returned with it.
type Builder[P any] func(task string, params P, obs api.Observer) (Worker, error)

type config struct {
	syncRestart bool
	logger      *slog.Logger
}

// Option configures a Supervisor.
type Option func(*config)

// WithSyncRestart makes Start wait for the superseded worker to finish
// before the new one starts. By default the old worker is cancelled and
// left to stop on its own.
func WithSyncRestart() Option {
	return func(c *config) { c.syncRestart = true }
}

// WithLogger sets the logger used for restart logs.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Supervisor owns at most one current worker for a task and replaces it on
// every Start. It is safe for concurrent use.
type Supervisor[P any] struct {
	task     string
	build    Builder[P]
	observer api.Observer
	cfg      config

	// startMu serializes Start so the swap and the optional wait happen
	// as one unit, without holding mu while waiting.
	startMu sync.Mutex

	mu        sync.Mutex
	current   Worker
	params    P
	hasParams bool
	workers   []Worker // started and not yet known to be done
}

// New creates a Supervisor for task. A nil observer discards notifications.
func New[P any](task string, build Builder[P], obs api.Observer, opts ...Option) *Supervisor[P] {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if obs == nil {
		obs = api.NoopObserver{}
	}
	return &Supervisor[P]{
		task:     task,
		build:    build,
		observer: obs,
		cfg:      cfg,
	}
}

// Task returns the task name workers are built for.
func (s *Supervisor[P]) Task() string {
	return s.task
}

// Start validates params, builds a new worker, supersedes the current one
// and starts the new worker. On a build error nothing changes.
func (s *Supervisor[P]) Start(ctx context.Context, params P) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	w, err := s.build(s.task, params, s.observer)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.current
	s.mu.Unlock()

	if prev != nil && !prev.State().IsTerminal() {
		s.cfg.logger.DebugContext(ctx, "superseding worker",
			slog.String("task", s.task),
			slog.String("worker_id", prev.ID()),
			slog.String("next_worker_id", w.ID()),
		)
		prev.Cancel()
		if s.cfg.syncRestart {
			select {
			case <-prev.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	s.mu.Lock()
	s.current = w
	s.params = params
	s.hasParams = true
	s.workers = append(pruneDone(s.workers), w)
	s.mu.Unlock()

	return w.Start(ctx)
}

// Restart starts a new worker with the parameters of the last accepted Start.
func (s *Supervisor[P]) Restart(ctx context.Context) error {
	params, ok := s.LastParams()
	if !ok {
		return ErrNeverStarted
	}
	return s.Start(ctx, params)
}

// LastParams returns the parameters of the last accepted Start.
func (s *Supervisor[P]) LastParams() (P, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params, s.hasParams
}

// Pause forwards to the current worker, if any.
func (s *Supervisor[P]) Pause() {
	if w := s.Current(); w != nil {
		w.Pause()
	}
}

// Resume forwards to the current worker, if any.
func (s *Supervisor[P]) Resume() {
	if w := s.Current(); w != nil {
		w.Resume()
	}
}

// Cancel forwards to the current worker, if any.
func (s *Supervisor[P]) Cancel() {
	if w := s.Current(); w != nil {
		w.Cancel()
	}
}

// Current returns the current worker or nil.
func (s *Supervisor[P]) Current() Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// State returns the state of the current worker, or Idle without one.
func (s *Supervisor[P]) State() api.WorkerState {
	w := s.Current()
	if w == nil {
		return api.StateIdle
	}
	return w.State()
}

// IsRunning reports whether the current worker is Running or Paused.
func (s *Supervisor[P]) IsRunning() bool {
	st := s.State()
	return st == api.StateRunning || st == api.StatePaused
}

// Controls returns the controls enabled for the current state.
func (s *Supervisor[P]) Controls() api.Controls {
	return api.ControlsFor(s.State())
}

// Wait blocks until the current worker and every worker it superseded have
// finished, or ctx is done.
func (s *Supervisor[P]) Wait(ctx context.Context) error {
	s.mu.Lock()
	pending := append([]Worker(nil), s.workers...)
	s.mu.Unlock()

	for _, w := range pending {
		select {
		case <-w.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	s.workers = pruneDone(s.workers)
	s.mu.Unlock()
	return nil
}

// Close cancels the current worker and waits for all workers to finish.
func (s *Supervisor[P]) Close() {
	s.Cancel()
	_ = s.Wait(context.Background())
}

func pruneDone(ws []Worker) []Worker {
	out := ws[:0]
	for _, w := range ws {
		select {
		case <-w.Done():
		default:
			out = append(out, w)
		}
	}
	return out
}
