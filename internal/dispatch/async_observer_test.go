package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/seqflow/pkg/api"
)

// logObserver appends a line per notification.
type logObserver struct {
	mu    sync.Mutex
	lines []string
	block chan struct{}
}

func (l *logObserver) add(s string) {
	if l.block != nil {
		<-l.block
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, s)
}

func (l *logObserver) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func (l *logObserver) OnStart(ctx context.Context, info api.WorkerInfo) {
	l.add("start " + info.ID)
}

func (l *logObserver) OnValue(ctx context.Context, info api.WorkerInfo, value string) {
	l.add("value " + info.ID + " " + value)
}

func (l *logObserver) OnProgress(ctx context.Context, info api.WorkerInfo, sample api.ProgressSample) {
	l.add("progress " + info.ID + " " + sample.String())
}

func (l *logObserver) OnStateChange(ctx context.Context, info api.WorkerInfo, from, to api.WorkerState) {
	l.add("state " + info.ID + " " + from.String() + "->" + to.String())
}

func (l *logObserver) OnTerminal(ctx context.Context, info api.WorkerInfo, status api.Status, err error) {
	l.add(fmt.Sprintf("terminal %s %s %v", info.ID, status, err))
}

func TestAsyncObserver_DeliversInOrder(t *testing.T) {
	next := &logObserver{}
	a := NewAsyncObserver(next, 16, nil)

	ctx := context.Background()
	info := api.WorkerInfo{ID: "w1", Task: "primes"}

	a.OnStart(ctx, info)
	a.OnValue(ctx, info, "2")
	a.OnProgress(ctx, info, api.Bounded(1, 2))
	a.OnStateChange(ctx, info, api.StateRunning, api.StatePaused)
	a.OnTerminal(ctx, info, api.StatusFailed, errors.New("boom"))
	a.Close()

	require.Equal(t, []string{
		"start w1",
		"value w1 2",
		"progress w1 50.0%",
		"state w1 RUNNING->PAUSED",
		"terminal w1 FAILED boom",
	}, next.Lines())
	require.Zero(t, a.Pending())
}

func TestAsyncObserver_DoesNotBlockProducerOnSlowObserver(t *testing.T) {
	next := &logObserver{block: make(chan struct{})}
	a := NewAsyncObserver(next, 64, nil)

	info := api.WorkerInfo{ID: "w1"}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			a.OnValue(context.Background(), info, fmt.Sprint(i))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer blocked on a slow observer")
	}

	close(next.block)
	a.Close()
	require.Len(t, next.Lines(), 10)
	require.Equal(t, "value w1 9", next.Lines()[9])
}

func TestAsyncObserver_CancelledContextStillDelivered(t *testing.T) {
	next := &logObserver{}
	a := NewAsyncObserver(next, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	info := api.WorkerInfo{ID: "w1"}
	a.OnTerminal(ctx, info, api.StatusStopped, nil)
	a.Close()

	require.Equal(t, []string{"terminal w1 STOPPED <nil>"}, next.Lines())
}

func TestAsyncObserver_DropsAfterClose(t *testing.T) {
	next := &logObserver{}
	a := NewAsyncObserver(next, 4, nil)
	a.Close()
	a.Close()

	a.OnStart(context.Background(), api.WorkerInfo{ID: "late"})
	require.Empty(t, next.Lines())
}
