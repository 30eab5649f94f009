package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/seqflow/pkg/api"
	"github.com/petrijr/seqflow/pkg/producer"
)

// perWorker records notifications grouped by worker ID.
type perWorker struct {
	mu        sync.Mutex
	order     []string
	values    map[string][]string
	terminals map[string]api.Status
	params    map[string]string
}

func newPerWorker() *perWorker {
	return &perWorker{
		values:    make(map[string][]string),
		terminals: make(map[string]api.Status),
		params:    make(map[string]string),
	}
}

func (p *perWorker) observer() api.Observer {
	return api.FuncObserver{
		Start: func(info api.WorkerInfo) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.order = append(p.order, info.ID)
			p.params[info.ID] = info.Params
		},
		Value: func(info api.WorkerInfo, value string) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.values[info.ID] = append(p.values[info.ID], value)
		},
		Terminal: func(info api.WorkerInfo, status api.Status, err error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.terminals[info.ID] = status
		},
	}
}

func (p *perWorker) Values(id string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.values[id]...)
}

func (p *perWorker) Terminal(id string) (api.Status, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.terminals[id]
	return st, ok
}

func (p *perWorker) Started() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSupervisor_PrimesComplete(t *testing.T) {
	rec := newPerWorker()
	s := NewPrimes(0, rec.observer())
	require.Equal(t, api.StateIdle, s.State())
	require.Equal(t, api.Controls{Start: true}, s.Controls())
	require.Nil(t, s.Current())

	require.NoError(t, s.Start(context.Background(), producer.PrimeBounds{Min: 2, Max: producer.Limit(10)}))
	require.NoError(t, s.Wait(waitCtx(t)))

	id := s.Current().ID()
	require.Equal(t, []string{"2", "3", "5", "7"}, rec.Values(id))
	st, _ := rec.Terminal(id)
	require.Equal(t, api.StatusCompleted, st)
	require.Equal(t, "min=2 max=10", rec.params[id])

	require.Equal(t, api.StateCompleted, s.State())
	require.False(t, s.IsRunning())
	require.Equal(t, api.Controls{Restart: true}, s.Controls())
}

func TestSupervisor_InvalidParamsLeaveNoWorker(t *testing.T) {
	rec := newPerWorker()
	s := NewPrimes(0, rec.observer())

	err := s.Start(context.Background(), producer.PrimeBounds{Min: 10, Max: producer.Limit(5)})
	require.Error(t, err)
	require.True(t, api.IsValidationError(err))
	require.ErrorIs(t, err, api.ErrInvalidParams)

	require.Nil(t, s.Current())
	require.Equal(t, api.StateIdle, s.State())
	require.Zero(t, rec.Started())

	_, ok := s.LastParams()
	require.False(t, ok)
}

func TestSupervisor_InvalidParamsKeepCurrentWorker(t *testing.T) {
	rec := newPerWorker()
	s := NewFibonacci(time.Millisecond, rec.observer())
	t.Cleanup(s.Close)

	require.NoError(t, s.Start(context.Background(), producer.FibonacciBounds{}))
	cur := s.Current()
	// OnStart is delivered on the worker goroutine.
	require.Eventually(t, func() bool { return rec.Started() == 1 }, 2*time.Second, time.Millisecond)

	err := s.Start(context.Background(), producer.FibonacciBounds{MaxValue: producer.Limit(-1)})
	require.True(t, api.IsValidationError(err))

	require.Same(t, cur, s.Current())
	require.True(t, s.IsRunning())
	require.Never(t, func() bool { return rec.Started() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSupervisor_RestartSupersedes(t *testing.T) {
	rec := newPerWorker()
	s := NewFibonacci(2*time.Millisecond, rec.observer())
	t.Cleanup(s.Close)

	require.NoError(t, s.Start(context.Background(), producer.FibonacciBounds{}))
	first := s.Current()
	require.Eventually(t, func() bool { return len(rec.Values(first.ID())) >= 5 }, 2*time.Second, time.Millisecond)

	require.NoError(t, s.Start(context.Background(), producer.FibonacciBounds{}))
	second := s.Current()
	require.NotEqual(t, first.ID(), second.ID())

	require.Eventually(t, func() bool {
		st, ok := rec.Terminal(first.ID())
		return ok && st == api.StatusStopped
	}, 2*time.Second, time.Millisecond)

	// The new worker starts from its own initial state.
	require.Eventually(t, func() bool { return len(rec.Values(second.ID())) >= 3 }, 2*time.Second, time.Millisecond)
	require.Equal(t, []string{"0", "1", "1"}, rec.Values(second.ID())[:3])
}

func TestSupervisor_SyncRestartWaitsForOldWorker(t *testing.T) {
	s := NewPrimes(time.Hour, nil, WithSyncRestart())
	t.Cleanup(s.Close)

	require.NoError(t, s.Start(context.Background(), producer.PrimeBounds{Min: 2}))
	first := s.Current()

	s.Pause()
	require.NoError(t, s.Start(context.Background(), producer.PrimeBounds{Min: 100}))

	select {
	case <-first.Done():
	default:
		t.Fatal("expected superseded worker to be done")
	}
	require.Equal(t, api.StateStopped, first.State())
}

func TestSupervisor_RestartReusesLastParams(t *testing.T) {
	rec := newPerWorker()
	s := NewPrimes(0, rec.observer())

	require.ErrorIs(t, s.Restart(context.Background()), ErrNeverStarted)

	bounds := producer.PrimeBounds{Min: 10, Max: producer.Limit(20)}
	require.NoError(t, s.Start(context.Background(), bounds))
	require.NoError(t, s.Wait(waitCtx(t)))
	first := s.Current()

	require.NoError(t, s.Restart(context.Background()))
	require.NoError(t, s.Wait(waitCtx(t)))
	second := s.Current()

	require.NotEqual(t, first.ID(), second.ID())
	require.Equal(t, rec.Values(first.ID()), rec.Values(second.ID()))
	require.Equal(t, []string{"11", "13", "17", "19"}, rec.Values(second.ID()))

	last, ok := s.LastParams()
	require.True(t, ok)
	require.Equal(t, bounds, last)
}

func TestSupervisor_ControlsFollowState(t *testing.T) {
	s := NewPrimes(time.Millisecond, nil)
	t.Cleanup(s.Close)

	// No worker yet: all controls are no-ops.
	s.Pause()
	s.Resume()
	s.Cancel()
	require.Equal(t, api.StateIdle, s.State())

	require.NoError(t, s.Start(context.Background(), producer.PrimeBounds{Min: 2}))
	require.True(t, s.IsRunning())
	require.True(t, s.Controls().Pause)
	require.True(t, s.Controls().Stop)

	s.Pause()
	require.Eventually(t, func() bool { return s.State() == api.StatePaused }, 2*time.Second, time.Millisecond)
	require.True(t, s.IsRunning())
	require.Equal(t, api.Controls{Resume: true, Stop: true, Restart: true}, s.Controls())

	s.Cancel()
	require.NoError(t, s.Wait(waitCtx(t)))
	require.Equal(t, api.StateStopped, s.State())
	require.False(t, s.IsRunning())
}

func TestSupervisor_CloseStopsEverything(t *testing.T) {
	rec := newPerWorker()
	s := NewFibonacci(time.Hour, rec.observer())

	require.NoError(t, s.Start(context.Background(), producer.FibonacciBounds{}))
	first := s.Current()
	require.NoError(t, s.Start(context.Background(), producer.FibonacciBounds{}))
	second := s.Current()

	s.Close()

	for _, w := range []Worker{first, second} {
		st, ok := rec.Terminal(w.ID())
		require.True(t, ok)
		require.Equal(t, api.StatusStopped, st)
	}
}
