package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/petrijr/seqflow/pkg/api"
)

// Recorder is an Observer that writes one Run per worker and appends a
// WorkerEvent for every lifecycle change. Store failures are logged and do
// not affect the worker. Writes ignore cancellation of the worker context,
// so the terminal record of a cancelled worker is still stored.
type Recorder struct {
	api.NoopObserver

	store  Store
	logger *slog.Logger
	now    func() time.Time

	// SkipValues disables value.emitted events; counters are still kept.
	SkipValues bool

	mu   sync.Mutex
	runs map[string]*recordedRun
}

type recordedRun struct {
	run api.Run
	seq int
}

// NewRecorder creates a Recorder writing to store. If logger is nil,
// slog.Default() is used.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		logger: logger,
		now:    time.Now,
		runs:   make(map[string]*recordedRun),
	}
}

func (r *Recorder) OnStart(ctx context.Context, info api.WorkerInfo) {
	now := r.now()

	r.mu.Lock()
	rr := &recordedRun{run: api.Run{
		ID:        info.ID,
		Task:      info.Task,
		State:     api.StateRunning,
		Params:    info.Params,
		StartedAt: now,
	}}
	r.runs[info.ID] = rr
	run := rr.run
	ev := r.nextEvent(rr, api.EventWorkerStarted, info.Params, now)
	r.mu.Unlock()

	r.check(ctx, info, "save run", r.store.SaveRun(context.WithoutCancel(ctx), &run))
	r.check(ctx, info, "append event", r.store.AppendEvent(context.WithoutCancel(ctx), ev))
}

func (r *Recorder) OnValue(ctx context.Context, info api.WorkerInfo, value string) {
	now := r.now()

	r.mu.Lock()
	rr, ok := r.runs[info.ID]
	if !ok {
		r.mu.Unlock()
		return
	}
	rr.run.Values++
	rr.run.LastValue = value
	var ev api.WorkerEvent
	if !r.SkipValues {
		ev = r.nextEvent(rr, api.EventValueEmitted, value, now)
	}
	r.mu.Unlock()

	if !r.SkipValues {
		r.check(ctx, info, "append event", r.store.AppendEvent(context.WithoutCancel(ctx), ev))
	}
}

func (r *Recorder) OnStateChange(ctx context.Context, info api.WorkerInfo, from, to api.WorkerState) {
	typ := api.EventWorkerResumed
	if to == api.StatePaused {
		typ = api.EventWorkerPaused
	}
	now := r.now()

	r.mu.Lock()
	rr, ok := r.runs[info.ID]
	if !ok {
		r.mu.Unlock()
		return
	}
	rr.run.State = to
	run := rr.run
	ev := r.nextEvent(rr, typ, "", now)
	r.mu.Unlock()

	r.check(ctx, info, "update run", r.store.UpdateRun(context.WithoutCancel(ctx), &run))
	r.check(ctx, info, "append event", r.store.AppendEvent(context.WithoutCancel(ctx), ev))
}

func (r *Recorder) OnTerminal(ctx context.Context, info api.WorkerInfo, status api.Status, err error) {
	now := r.now()
	detail := ""
	if err != nil {
		detail = err.Error()
	}

	r.mu.Lock()
	rr, started := r.runs[info.ID]
	if !started {
		// Cancelled before it ever ran.
		rr = &recordedRun{run: api.Run{
			ID:        info.ID,
			Task:      info.Task,
			Params:    info.Params,
			StartedAt: now,
		}}
	}
	delete(r.runs, info.ID)
	rr.run.State = status.State()
	rr.run.Err = detail
	rr.run.FinishedAt = now
	run := rr.run
	ev := r.nextEvent(rr, api.TerminalEventType(status), detail, now)
	r.mu.Unlock()

	if started {
		r.check(ctx, info, "update run", r.store.UpdateRun(context.WithoutCancel(ctx), &run))
	} else {
		r.check(ctx, info, "save run", r.store.SaveRun(context.WithoutCancel(ctx), &run))
	}
	r.check(ctx, info, "append event", r.store.AppendEvent(context.WithoutCancel(ctx), ev))
}

// nextEvent must be called with r.mu held.
func (r *Recorder) nextEvent(rr *recordedRun, typ api.EventType, detail string, at time.Time) api.WorkerEvent {
	ev := api.WorkerEvent{
		WorkerID: rr.run.ID,
		At:       at,
		Type:     typ,
		Task:     rr.run.Task,
		Seq:      rr.seq,
		Detail:   detail,
	}
	rr.seq++
	return ev
}

func (r *Recorder) check(ctx context.Context, info api.WorkerInfo, op string, err error) {
	if err == nil {
		return
	}
	r.logger.WarnContext(ctx, "history write failed",
		slog.String("op", op),
		slog.String("task", info.Task),
		slog.String("worker_id", info.ID),
		slog.Any("error", err),
	)
}
