// Package prometheus exports worker activity as Prometheus metrics.
package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/petrijr/seqflow/pkg/api"
)

// Observer is an api.Observer that records per-task metrics.
type Observer struct {
	WorkersStarted  *prometheus.CounterVec
	WorkersFinished *prometheus.CounterVec
	WorkersActive   *prometheus.GaugeVec
	WorkersPaused   *prometheus.GaugeVec
	ValuesEmitted   *prometheus.CounterVec
	Progress        *prometheus.GaugeVec
	RunDuration     *prometheus.HistogramVec

	mu        sync.Mutex
	startedAt map[string]time.Time
	paused    map[string]bool
}

var _ api.Observer = (*Observer)(nil)

// NewObserver registers the seqflow metrics on registerer.
// A nil registerer uses prometheus.DefaultRegisterer.
func NewObserver(registerer prometheus.Registerer) *Observer {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Observer{
		WorkersStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seqflow_workers_started_total",
				Help: "Total number of workers started",
			},
			[]string{"task"},
		),
		WorkersFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seqflow_workers_finished_total",
				Help: "Total number of workers that reached a terminal state",
			},
			[]string{"task", "status"},
		),
		WorkersActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "seqflow_workers_active",
				Help: "Number of workers that have started and not finished",
			},
			[]string{"task"},
		),
		WorkersPaused: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "seqflow_workers_paused",
				Help: "Number of workers currently paused",
			},
			[]string{"task"},
		),
		ValuesEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seqflow_values_emitted_total",
				Help: "Total number of sequence values emitted",
			},
			[]string{"task"},
		),
		Progress: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "seqflow_progress_ratio",
				Help: "Progress of the latest bounded worker per task, from 0 to 1",
			},
			[]string{"task"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seqflow_run_duration_seconds",
				Help:    "Wall-clock duration of worker runs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~3m
			},
			[]string{"task", "status"},
		),
		startedAt: make(map[string]time.Time),
		paused:    make(map[string]bool),
	}
}

func (o *Observer) OnStart(ctx context.Context, info api.WorkerInfo) {
	o.WorkersStarted.WithLabelValues(info.Task).Inc()
	o.WorkersActive.WithLabelValues(info.Task).Inc()

	o.mu.Lock()
	o.startedAt[info.ID] = time.Now()
	o.mu.Unlock()
}

func (o *Observer) OnValue(ctx context.Context, info api.WorkerInfo, value string) {
	o.ValuesEmitted.WithLabelValues(info.Task).Inc()
}

func (o *Observer) OnProgress(ctx context.Context, info api.WorkerInfo, sample api.ProgressSample) {
	if f, ok := sample.Fraction(); ok {
		o.Progress.WithLabelValues(info.Task).Set(f)
	}
}

func (o *Observer) OnStateChange(ctx context.Context, info api.WorkerInfo, from, to api.WorkerState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case to == api.StatePaused && !o.paused[info.ID]:
		o.paused[info.ID] = true
		o.WorkersPaused.WithLabelValues(info.Task).Inc()
	case to == api.StateRunning && o.paused[info.ID]:
		delete(o.paused, info.ID)
		o.WorkersPaused.WithLabelValues(info.Task).Dec()
	}
}

func (o *Observer) OnTerminal(ctx context.Context, info api.WorkerInfo, status api.Status, err error) {
	o.WorkersFinished.WithLabelValues(info.Task, string(status)).Inc()

	o.mu.Lock()
	started, ok := o.startedAt[info.ID]
	delete(o.startedAt, info.ID)
	// A worker cancelled while paused never reports resuming.
	if o.paused[info.ID] {
		delete(o.paused, info.ID)
		o.WorkersPaused.WithLabelValues(info.Task).Dec()
	}
	o.mu.Unlock()

	if !ok {
		// Cancelled before it ever ran.
		return
	}
	o.WorkersActive.WithLabelValues(info.Task).Dec()
	o.RunDuration.WithLabelValues(info.Task, string(status)).Observe(time.Since(started).Seconds())
}
