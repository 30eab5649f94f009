package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

//
// Helpers
//

// testObserver is a simple Observer implementation used to verify fan-out behavior.
type testObserver struct {
	mu sync.Mutex

	starts    int
	values    []string
	progress  []ProgressSample
	changes   int
	terminals int

	lastInfo     WorkerInfo
	lastStatus   Status
	lastErr      error
	lastFrom     WorkerState
	lastTo       WorkerState
	lastProgress ProgressSample
}

func (o *testObserver) OnStart(ctx context.Context, info WorkerInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts++
	o.lastInfo = info
}

func (o *testObserver) OnValue(ctx context.Context, info WorkerInfo, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values = append(o.values, value)
	o.lastInfo = info
}

func (o *testObserver) OnProgress(ctx context.Context, info WorkerInfo, sample ProgressSample) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = append(o.progress, sample)
	o.lastProgress = sample
}

func (o *testObserver) OnStateChange(ctx context.Context, info WorkerInfo, from, to WorkerState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changes++
	o.lastFrom = from
	o.lastTo = to
}

func (o *testObserver) OnTerminal(ctx context.Context, info WorkerInfo, status Status, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.terminals++
	o.lastStatus = status
	o.lastErr = err
}

// recordingHandler is a minimal slog.Handler that just records log records.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *recordingHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	// Copy to avoid reuse issues.
	cpy := slog.Record{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
	}
	r.Attrs(func(a slog.Attr) bool {
		cpy.AddAttrs(a)
		return true
	})
	h.records = append(h.records, cpy)
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	return h
}

func attrsToMap(r slog.Record) map[string]any {
	m := make(map[string]any)
	r.Attrs(func(a slog.Attr) bool {
		m[a.Key] = a.Value.Any()
		return true
	})
	return m
}

func newTestInfo() WorkerInfo {
	return WorkerInfo{ID: "worker-123", Task: "primes"}
}

//
// NoopObserver / FuncObserver
//

func TestNoopObserver_DoesNotPanic(t *testing.T) {
	ctx := context.Background()
	info := newTestInfo()
	var o Observer = NoopObserver{}

	o.OnStart(ctx, info)
	o.OnValue(ctx, info, "2")
	o.OnProgress(ctx, info, Bounded(1, 8))
	o.OnStateChange(ctx, info, StateRunning, StatePaused)
	o.OnTerminal(ctx, info, StatusFailed, errors.New("boom"))
}

func TestFuncObserver_NilFieldsAreSkipped(t *testing.T) {
	ctx := context.Background()
	info := newTestInfo()

	var got []string
	var o Observer = FuncObserver{
		Value: func(info WorkerInfo, value string) { got = append(got, value) },
	}

	o.OnStart(ctx, info)
	o.OnValue(ctx, info, "3")
	o.OnValue(ctx, info, "5")
	o.OnProgress(ctx, info, Indeterminate(5))
	o.OnTerminal(ctx, info, StatusCompleted, nil)

	if len(got) != 2 || got[0] != "3" || got[1] != "5" {
		t.Fatalf("unexpected values: %v", got)
	}
}

//
// CompositeObserver
//

func TestNewCompositeObserver_EmptyReturnsNoop(t *testing.T) {
	o := NewCompositeObserver()
	if _, ok := o.(NoopObserver); !ok {
		t.Fatalf("expected NewCompositeObserver() to return NoopObserver, got %T", o)
	}
}

func TestNewCompositeObserver_SingleReturnsThatObserver(t *testing.T) {
	single := &testObserver{}
	o := NewCompositeObserver(single, nil) // include a nil to ensure it is filtered

	if got, ok := o.(*testObserver); !ok || got != single {
		t.Fatalf("expected the single non-nil observer to be returned, got %T (%p)", o, o)
	}
}

func TestCompositeObserver_ForwardsAllEvents(t *testing.T) {
	ctx := context.Background()
	info := newTestInfo()

	o1 := &testObserver{}
	o2 := &testObserver{}
	co, ok := NewCompositeObserver(o1, o2).(*CompositeObserver)
	if !ok {
		t.Fatalf("expected *CompositeObserver")
	}

	err := errors.New("step failed")
	co.OnStart(ctx, info)
	co.OnValue(ctx, info, "7")
	co.OnProgress(ctx, info, Bounded(5, 8))
	co.OnStateChange(ctx, info, StateRunning, StatePaused)
	co.OnTerminal(ctx, info, StatusFailed, err)

	for i, o := range []*testObserver{o1, o2} {
		if o.starts != 1 || len(o.values) != 1 || len(o.progress) != 1 || o.changes != 1 || o.terminals != 1 {
			t.Fatalf("observer %d did not receive all calls: %+v", i+1, o)
		}
		if o.lastInfo != info {
			t.Fatalf("observer %d info mismatch: %+v", i+1, o.lastInfo)
		}
		if o.lastErr != err || o.lastStatus != StatusFailed {
			t.Fatalf("observer %d terminal mismatch: %v %v", i+1, o.lastStatus, o.lastErr)
		}
		if o.lastFrom != StateRunning || o.lastTo != StatePaused {
			t.Fatalf("observer %d state change mismatch: %v -> %v", i+1, o.lastFrom, o.lastTo)
		}
		if o.lastProgress != Bounded(5, 8) {
			t.Fatalf("observer %d progress mismatch: %+v", i+1, o.lastProgress)
		}
	}
}

//
// LoggingObserver
//

func TestNewLoggingObserver_NilLoggerUsesDefault(t *testing.T) {
	o := NewLoggingObserver(nil)
	lo, ok := o.(*LoggingObserver)
	if !ok {
		t.Fatalf("expected *LoggingObserver, got %T", o)
	}
	if lo.Logger == nil {
		t.Fatalf("expected non-nil Logger when created with nil")
	}
}

func TestLoggingObserver_OnStart_EmitsInfoLog(t *testing.T) {
	ctx := context.Background()
	info := newTestInfo()

	h := &recordingHandler{}
	o := NewLoggingObserver(slog.New(h))

	o.OnStart(ctx, info)

	if len(h.records) != 1 {
		t.Fatalf("expected 1 log record, got %d", len(h.records))
	}

	rec := h.records[0]
	if rec.Level != slog.LevelInfo {
		t.Fatalf("expected LevelInfo, got %v", rec.Level)
	}
	if rec.Message != "worker_start" {
		t.Fatalf("expected message worker_start, got %q", rec.Message)
	}

	attrs := attrsToMap(rec)
	if attrs["task"] != info.Task {
		t.Fatalf("expected task=%q, got %v", info.Task, attrs["task"])
	}
	if attrs["worker_id"] != info.ID {
		t.Fatalf("expected worker_id=%q, got %v", info.ID, attrs["worker_id"])
	}
}

func TestLoggingObserver_OnTerminal_LevelDependsOnStatus(t *testing.T) {
	ctx := context.Background()
	info := newTestInfo()

	h := &recordingHandler{}
	o := NewLoggingObserver(slog.New(h))

	o.OnTerminal(ctx, info, StatusStopped, nil)
	o.OnTerminal(ctx, info, StatusFailed, errors.New("boom"))

	if len(h.records) != 2 {
		t.Fatalf("expected 2 log records, got %d", len(h.records))
	}

	stoppedRec := h.records[0]
	failRec := h.records[1]

	if stoppedRec.Level != slog.LevelInfo {
		t.Fatalf("expected stopped record LevelInfo, got %v", stoppedRec.Level)
	}
	if failRec.Level != slog.LevelError {
		t.Fatalf("expected failure record LevelError, got %v", failRec.Level)
	}

	attrs := attrsToMap(failRec)
	if attrs["status"] != string(StatusFailed) {
		t.Fatalf("expected status=FAILED, got %v", attrs["status"])
	}
	if attrs["error"] == nil {
		t.Fatalf("expected error attribute on failure record, got nil")
	}
}

func TestLoggingObserver_ValuesLogAtDebug(t *testing.T) {
	ctx := context.Background()
	h := &recordingHandler{}
	o := NewLoggingObserver(slog.New(h))

	o.OnValue(ctx, newTestInfo(), "11")
	o.OnProgress(ctx, newTestInfo(), Indeterminate(11))

	if len(h.records) != 2 {
		t.Fatalf("expected 2 log records, got %d", len(h.records))
	}
	for _, rec := range h.records {
		if rec.Level != slog.LevelDebug {
			t.Fatalf("expected LevelDebug for %q, got %v", rec.Message, rec.Level)
		}
	}
	if got := attrsToMap(h.records[1])["progress"]; got != "indeterminate" {
		t.Fatalf("expected indeterminate progress, got %v", got)
	}
}

//
// BasicMetrics
//

func TestBasicMetrics_CountersAndSnapshot(t *testing.T) {
	var m BasicMetrics
	ctx := context.Background()

	a := WorkerInfo{ID: "a", Task: "primes"}
	b := WorkerInfo{ID: "b", Task: "primes"}
	c := WorkerInfo{ID: "c", Task: "fibonacci"}

	m.OnStart(ctx, a)
	m.OnStart(ctx, b)
	m.OnStart(ctx, c)

	m.OnValue(ctx, a, "2")
	m.OnValue(ctx, a, "3")
	m.OnStateChange(ctx, a, StateRunning, StatePaused)
	m.OnStateChange(ctx, a, StatePaused, StateRunning)

	m.OnTerminal(ctx, a, StatusCompleted, nil)
	m.OnTerminal(ctx, b, StatusStopped, nil)

	snap := m.Snapshot()

	if snap.WorkersStarted != 3 {
		t.Fatalf("WorkersStarted=%d, want 3", snap.WorkersStarted)
	}
	if snap.WorkersCompleted != 1 || snap.WorkersStopped != 1 || snap.WorkersFailed != 0 {
		t.Fatalf("unexpected terminal counters: %+v", snap)
	}
	if snap.ActiveWorkers != 1 {
		t.Fatalf("ActiveWorkers=%d, want 1", snap.ActiveWorkers)
	}
	if snap.ValuesEmitted != 2 {
		t.Fatalf("ValuesEmitted=%d, want 2", snap.ValuesEmitted)
	}
	if snap.Pauses != 1 {
		t.Fatalf("Pauses=%d, want 1", snap.Pauses)
	}
}

func TestBasicMetrics_RunDurationQuantiles(t *testing.T) {
	var m BasicMetrics
	ctx := context.Background()
	info := newTestInfo()

	m.OnStart(ctx, info)
	time.Sleep(5 * time.Millisecond)
	m.OnTerminal(ctx, info, StatusCompleted, nil)

	snap := m.Snapshot()
	if snap.MedianRunDuration <= 0 {
		t.Fatalf("MedianRunDuration=%v, want > 0", snap.MedianRunDuration)
	}
	if snap.P95RunDuration < snap.MedianRunDuration {
		t.Fatalf("P95RunDuration=%v below median %v", snap.P95RunDuration, snap.MedianRunDuration)
	}
}

func TestBasicMetrics_SnapshotWithoutRunsHasZeroDurations(t *testing.T) {
	var m BasicMetrics
	// Terminal without start: cancelled before running.
	m.OnTerminal(context.Background(), newTestInfo(), StatusStopped, nil)

	snap := m.Snapshot()
	if snap.MedianRunDuration != 0 || snap.P95RunDuration != 0 {
		t.Fatalf("expected zero durations, got %+v", snap)
	}
	if snap.WorkersStopped != 1 {
		t.Fatalf("WorkersStopped=%d, want 1", snap.WorkersStopped)
	}
}
