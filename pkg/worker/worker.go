package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/seqflow/pkg/api"
	"github.com/petrijr/seqflow/pkg/producer"
)

// ErrAlreadyStarted is returned by Start on a worker that has left Idle.
var ErrAlreadyStarted = errors.New("worker: already started")

// Default throttling delays between steps.
const (
	DefaultPrimeDelay     = 100 * time.Millisecond
	DefaultFibonacciDelay = 200 * time.Millisecond
)

// control is the tri-state flag shared between the caller and the loop.
type control int

const (
	controlRun control = iota
	controlPause
	controlCancel
)

// Config holds optional worker settings.
type Config struct {
	// Delay is the pause between two steps. Zero runs steps back to back.
	Delay time.Duration

	// Logger receives debug logs about suspension. Defaults to slog.Default().
	Logger *slog.Logger

	// ID overrides the generated worker ID.
	ID string

	// Params is reported to observers through api.WorkerInfo.
	Params string
}

// Option mutates a Config.
type Option func(*Config)

// WithDelay sets the throttling delay between steps.
func WithDelay(d time.Duration) Option {
	return func(c *Config) { c.Delay = d }
}

// WithLogger sets the logger used for suspension debug logs.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithID sets a fixed worker ID instead of a random UUID.
func WithID(id string) Option {
	return func(c *Config) { c.ID = id }
}

// WithParams attaches a description of the producer bounds.
func WithParams(params string) Option {
	return func(c *Config) { c.Params = params }
}

// Worker runs one producer on its own goroutine and can be paused, resumed
// and cancelled at any point. A Worker is single-use: once it reaches a
// terminal state a new one must be built.
type Worker[S any] struct {
	info     api.WorkerInfo
	producer producer.Producer[S]
	observer api.Observer
	delay    time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond // signalled when control changes
	state   api.WorkerState
	control control
	status  api.Status
	err     error

	interrupt     chan struct{} // closed on cancel, wakes the throttle sleep
	interruptOnce sync.Once
	done          chan struct{} // closed after the terminal notification
}

// New builds an Idle worker for task. A nil observer discards notifications.
func New[S any](task string, p producer.Producer[S], obs api.Observer, opts ...Option) *Worker[S] {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if obs == nil {
		obs = api.NoopObserver{}
	}

	w := &Worker[S]{
		info:      api.WorkerInfo{ID: cfg.ID, Task: task, Params: cfg.Params},
		producer:  p,
		observer:  obs,
		delay:     cfg.Delay,
		logger:    cfg.Logger,
		interrupt: make(chan struct{}),
		done:      make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// ID returns the unique worker ID.
func (w *Worker[S]) ID() string {
	return w.info.ID
}

// Task returns the logical task name.
func (w *Worker[S]) Task() string {
	return w.info.Task
}

// Info returns the identity passed to observers.
func (w *Worker[S]) Info() api.WorkerInfo {
	return w.info
}

// State returns the current lifecycle state.
func (w *Worker[S]) State() api.WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Done is closed once the terminal notification has been delivered.
func (w *Worker[S]) Done() <-chan struct{} {
	return w.done
}

// Result returns the terminal status and, for StatusFailed, the cause.
// Before the worker finishes it returns an empty status.
func (w *Worker[S]) Result() (api.Status, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status, w.err
}

// Wait blocks until the worker finishes or ctx is done. A stopped worker is
// not an error; the returned error is the failure cause or ctx.Err().
func (w *Worker[S]) Wait(ctx context.Context) (api.Status, error) {
	select {
	case <-w.done:
		return w.Result()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Start moves an Idle worker to Running and launches its goroutine.
// Cancelling ctx has the same effect as calling Cancel.
func (w *Worker[S]) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != api.StateIdle {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.state = api.StateRunning
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

// Pause asks a running worker to suspend at its next suspension point.
// It is a no-op unless the worker is Running.
func (w *Worker[S]) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == api.StateRunning && w.control == controlRun {
		w.control = controlPause
	}
}

// Resume clears a pending or acknowledged pause and wakes the worker.
// It is a no-op unless a pause is in effect.
func (w *Worker[S]) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.control != controlPause {
		return
	}
	w.control = controlRun
	w.cond.Broadcast()
}

// Cancel stops the worker. A Running or Paused worker moves to Cancelling
// at once and reports Stopped when its loop observes the request; a paused
// worker does not need to be resumed first. An Idle worker is stopped
// immediately. Cancel is a no-op on Cancelling and terminal workers.
func (w *Worker[S]) Cancel() {
	w.mu.Lock()
	switch w.state {
	case api.StateIdle:
		w.state = api.StateStopped
		w.status = api.StatusStopped
		w.control = controlCancel
		w.mu.Unlock()

		w.closeInterrupt()
		defer close(w.done)
		w.notifyTerminal(context.Background(), api.StatusStopped, nil)
		return

	case api.StateRunning, api.StatePaused:
		w.state = api.StateCancelling
		w.control = controlCancel
		w.cond.Broadcast()
		w.mu.Unlock()

		w.closeInterrupt()
		return
	}
	w.mu.Unlock()
}

func (w *Worker[S]) closeInterrupt() {
	w.interruptOnce.Do(func() { close(w.interrupt) })
}

func (w *Worker[S]) run(ctx context.Context) {
	stop := context.AfterFunc(ctx, w.Cancel)
	defer stop()

	status := api.StatusFailed
	err := w.notify("OnStart", func() { w.observer.OnStart(ctx, w.info) })
	if err == nil {
		status, err = w.loop(ctx)
	}
	w.finish(ctx, status, err)
}

// notify runs one observer callback. A panic is recovered into an
// *api.ObserverError so a faulty observer fails only this worker.
func (w *Worker[S]) notify(callback string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &api.ObserverError{Task: w.info.Task, Callback: callback, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	fn()
	return nil
}

func (w *Worker[S]) loop(ctx context.Context) (status api.Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = api.StatusFailed
			err = &api.ProducerError{Task: w.info.Task, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	st := w.producer.Init()
	for {
		proceed, obsErr := w.suspend(ctx)
		if obsErr != nil {
			return api.StatusFailed, obsErr
		}
		if !proceed {
			return api.StatusStopped, nil
		}

		step, stepErr := w.producer.Step(st)
		if stepErr != nil {
			return api.StatusFailed, &api.ProducerError{Task: w.info.Task, Err: stepErr}
		}
		st = step.State

		// Nothing but the terminal notification is delivered once a cancel
		// has been requested. Observer calls may block, so the request is
		// checked again after each of them.
		if step.Emitted {
			if w.cancelRequested() {
				return api.StatusStopped, nil
			}
			if err := w.notify("OnValue", func() { w.observer.OnValue(ctx, w.info, step.Value) }); err != nil {
				return api.StatusFailed, err
			}
		}
		if w.cancelRequested() {
			return api.StatusStopped, nil
		}
		if err := w.notify("OnProgress", func() { w.observer.OnProgress(ctx, w.info, step.Progress) }); err != nil {
			return api.StatusFailed, err
		}
		if w.cancelRequested() {
			return api.StatusStopped, nil
		}

		if step.Done {
			return api.StatusCompleted, nil
		}
		if !w.sleep() {
			return api.StatusStopped, nil
		}
	}
}

// suspend is the single suspension point of the loop. It returns false when
// the worker must stop, and an error when a state change observer panicked.
// While paused it blocks on the condition variable; Resume and Cancel both
// broadcast under the same mutex, so no wakeup is lost.
func (w *Worker[S]) suspend(ctx context.Context) (bool, error) {
	w.mu.Lock()
	switch w.control {
	case controlCancel:
		w.mu.Unlock()
		return false, nil
	case controlRun:
		w.mu.Unlock()
		return true, nil
	}
	w.state = api.StatePaused
	w.mu.Unlock()

	w.logger.DebugContext(ctx, "worker paused, waiting",
		slog.String("task", w.info.Task),
		slog.String("worker_id", w.info.ID),
	)
	if err := w.notify("OnStateChange", func() {
		w.observer.OnStateChange(ctx, w.info, api.StateRunning, api.StatePaused)
	}); err != nil {
		return false, err
	}

	w.mu.Lock()
	for w.control == controlPause {
		w.cond.Wait()
	}
	cancelled := w.control == controlCancel
	if !cancelled {
		w.state = api.StateRunning
	}
	w.mu.Unlock()

	if cancelled {
		return false, nil
	}

	w.logger.DebugContext(ctx, "worker resumed",
		slog.String("task", w.info.Task),
		slog.String("worker_id", w.info.ID),
	)
	err := w.notify("OnStateChange", func() {
		w.observer.OnStateChange(ctx, w.info, api.StatePaused, api.StateRunning)
	})
	return err == nil, err
}

func (w *Worker[S]) cancelRequested() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.control == controlCancel
}

// sleep waits for the throttling delay. It returns false if cancelled.
func (w *Worker[S]) sleep() bool {
	if w.delay <= 0 {
		return true
	}
	t := time.NewTimer(w.delay)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-w.interrupt:
		return false
	}
}

func (w *Worker[S]) finish(ctx context.Context, status api.Status, err error) {
	w.mu.Lock()
	w.state = status.State()
	w.status = status
	w.err = err
	w.mu.Unlock()

	defer close(w.done)
	w.notifyTerminal(ctx, status, err)
}

// notifyTerminal delivers the terminal notification. The outcome is already
// recorded, so a panicking observer is only logged.
func (w *Worker[S]) notifyTerminal(ctx context.Context, status api.Status, err error) {
	if obsErr := w.notify("OnTerminal", func() { w.observer.OnTerminal(ctx, w.info, status, err) }); obsErr != nil {
		w.logger.ErrorContext(ctx, "terminal notification failed",
			slog.String("task", w.info.Task),
			slog.String("worker_id", w.info.ID),
			slog.String("status", string(status)),
			slog.Any("error", obsErr),
		)
	}
}
