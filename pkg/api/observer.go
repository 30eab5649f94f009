package api

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caio/go-tdigest/v4"
)

// WorkerInfo identifies the worker a notification comes from.
type WorkerInfo struct {
	// ID is unique per worker lifecycle; a restart yields a new ID.
	ID string
	// Task is the logical slot name, e.g. "primes" or "fibonacci".
	Task string
	// Params is the textual form of the producer bounds, if known.
	Params string
}

// Observer receives notifications from a pausable worker.
//
// For a given worker, calls arrive in production order from the worker's
// own goroutine, OnStart first and OnTerminal last and exactly once.
// Calls for different workers are not ordered relative to each other.
//
// Implementations should be fast; a slow observer throttles the worker.
// Wrap slow observers with an asynchronous dispatcher if needed.
type Observer interface {
	// OnStart is called once before the first step.
	OnStart(ctx context.Context, info WorkerInfo)

	// OnValue is called for every value the producer emits.
	OnValue(ctx context.Context, info WorkerInfo, value string)

	// OnProgress is called after every step.
	OnProgress(ctx context.Context, info WorkerInfo, sample ProgressSample)

	// OnStateChange is called when the worker acknowledges a pause or wakes
	// up from one.
	OnStateChange(ctx context.Context, info WorkerInfo, from, to WorkerState)

	// OnTerminal is called once when the worker finishes. err is non-nil
	// only for StatusFailed.
	OnTerminal(ctx context.Context, info WorkerInfo, status Status, err error)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnStart(ctx context.Context, info WorkerInfo)                           {}
func (NoopObserver) OnValue(ctx context.Context, info WorkerInfo, value string)             {}
func (NoopObserver) OnProgress(ctx context.Context, info WorkerInfo, sample ProgressSample) {}
func (NoopObserver) OnStateChange(ctx context.Context, info WorkerInfo, from, to WorkerState) {
}
func (NoopObserver) OnTerminal(ctx context.Context, info WorkerInfo, status Status, err error) {
}

// FuncObserver adapts plain functions to Observer. Nil fields are skipped.
type FuncObserver struct {
	Start       func(info WorkerInfo)
	Value       func(info WorkerInfo, value string)
	Progress    func(info WorkerInfo, sample ProgressSample)
	StateChange func(info WorkerInfo, from, to WorkerState)
	Terminal    func(info WorkerInfo, status Status, err error)
}

func (f FuncObserver) OnStart(ctx context.Context, info WorkerInfo) {
	if f.Start != nil {
		f.Start(info)
	}
}

func (f FuncObserver) OnValue(ctx context.Context, info WorkerInfo, value string) {
	if f.Value != nil {
		f.Value(info, value)
	}
}

func (f FuncObserver) OnProgress(ctx context.Context, info WorkerInfo, sample ProgressSample) {
	if f.Progress != nil {
		f.Progress(info, sample)
	}
}

func (f FuncObserver) OnStateChange(ctx context.Context, info WorkerInfo, from, to WorkerState) {
	if f.StateChange != nil {
		f.StateChange(info, from, to)
	}
}

func (f FuncObserver) OnTerminal(ctx context.Context, info WorkerInfo, status Status, err error) {
	if f.Terminal != nil {
		f.Terminal(info, status, err)
	}
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnStart(ctx context.Context, info WorkerInfo) {
	for _, o := range c.observers {
		o.OnStart(ctx, info)
	}
}

func (c *CompositeObserver) OnValue(ctx context.Context, info WorkerInfo, value string) {
	for _, o := range c.observers {
		o.OnValue(ctx, info, value)
	}
}

func (c *CompositeObserver) OnProgress(ctx context.Context, info WorkerInfo, sample ProgressSample) {
	for _, o := range c.observers {
		o.OnProgress(ctx, info, sample)
	}
}

func (c *CompositeObserver) OnStateChange(ctx context.Context, info WorkerInfo, from, to WorkerState) {
	for _, o := range c.observers {
		o.OnStateChange(ctx, info, from, to)
	}
}

func (c *CompositeObserver) OnTerminal(ctx context.Context, info WorkerInfo, status Status, err error) {
	for _, o := range c.observers {
		o.OnTerminal(ctx, info, status, err)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs worker lifecycle events
// using the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnStart(ctx context.Context, info WorkerInfo) {
	o.Logger.InfoContext(ctx, "worker_start",
		slog.String("task", info.Task),
		slog.String("worker_id", info.ID),
		slog.String("params", info.Params),
	)
}

func (o *LoggingObserver) OnValue(ctx context.Context, info WorkerInfo, value string) {
	o.Logger.DebugContext(ctx, "worker_value",
		slog.String("task", info.Task),
		slog.String("worker_id", info.ID),
		slog.String("value", value),
	)
}

func (o *LoggingObserver) OnProgress(ctx context.Context, info WorkerInfo, sample ProgressSample) {
	o.Logger.DebugContext(ctx, "worker_progress",
		slog.String("task", info.Task),
		slog.String("worker_id", info.ID),
		slog.String("progress", sample.String()),
	)
}

func (o *LoggingObserver) OnStateChange(ctx context.Context, info WorkerInfo, from, to WorkerState) {
	o.Logger.InfoContext(ctx, "worker_state",
		slog.String("task", info.Task),
		slog.String("worker_id", info.ID),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
}

func (o *LoggingObserver) OnTerminal(ctx context.Context, info WorkerInfo, status Status, err error) {
	level := slog.LevelInfo
	if status == StatusFailed {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "worker_terminal",
		slog.String("task", info.Task),
		slog.String("worker_id", info.ID),
		slog.String("status", string(status)),
		slog.Any("error", err),
	)
}

// BasicMetrics collects simple counters and run duration quantiles.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	workersStarted   atomic.Int64
	workersCompleted atomic.Int64
	workersStopped   atomic.Int64
	workersFailed    atomic.Int64
	valuesEmitted    atomic.Int64
	pauses           atomic.Int64

	mu        sync.Mutex
	startedAt map[string]time.Time
	durations *tdigest.TDigest // seconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	WorkersStarted   int64
	WorkersCompleted int64
	WorkersStopped   int64
	WorkersFailed    int64
	ActiveWorkers    int64

	ValuesEmitted int64
	Pauses        int64

	// Run duration quantiles over finished workers; zero until one finishes.
	MedianRunDuration time.Duration
	P95RunDuration    time.Duration
}

func (m *BasicMetrics) OnStart(ctx context.Context, info WorkerInfo) {
	m.workersStarted.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startedAt == nil {
		m.startedAt = make(map[string]time.Time)
	}
	m.startedAt[info.ID] = time.Now()
}

func (m *BasicMetrics) OnValue(ctx context.Context, info WorkerInfo, value string) {
	m.valuesEmitted.Add(1)
}

func (m *BasicMetrics) OnStateChange(ctx context.Context, info WorkerInfo, from, to WorkerState) {
	if to == StatePaused {
		m.pauses.Add(1)
	}
}

func (m *BasicMetrics) OnTerminal(ctx context.Context, info WorkerInfo, status Status, err error) {
	switch status {
	case StatusCompleted:
		m.workersCompleted.Add(1)
	case StatusStopped:
		m.workersStopped.Add(1)
	case StatusFailed:
		m.workersFailed.Add(1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	started, ok := m.startedAt[info.ID]
	if !ok {
		// Cancelled before it ever ran.
		return
	}
	delete(m.startedAt, info.ID)
	if m.durations == nil {
		td, err := tdigest.New()
		if err != nil {
			return
		}
		m.durations = td
	}
	_ = m.durations.Add(time.Since(started).Seconds())
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.workersStarted.Load()
	completed := m.workersCompleted.Load()
	stopped := m.workersStopped.Load()
	failed := m.workersFailed.Load()

	snap := BasicMetricsSnapshot{
		WorkersStarted:   started,
		WorkersCompleted: completed,
		WorkersStopped:   stopped,
		WorkersFailed:    failed,
		ValuesEmitted:    m.valuesEmitted.Load(),
		Pauses:           m.pauses.Load(),
	}

	m.mu.Lock()
	snap.ActiveWorkers = int64(len(m.startedAt))
	if m.durations != nil && m.durations.Count() > 0 {
		snap.MedianRunDuration = secondsToDuration(m.durations.Quantile(0.5))
		snap.P95RunDuration = secondsToDuration(m.durations.Quantile(0.95))
	}
	m.mu.Unlock()

	return snap
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
