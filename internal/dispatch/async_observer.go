package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/petrijr/seqflow/pkg/api"
)

type kind int

const (
	kindStart kind = iota
	kindValue
	kindProgress
	kindStateChange
	kindTerminal
)

// notification is one Observer call captured for later delivery.
type notification struct {
	ctx    context.Context
	kind   kind
	info   api.WorkerInfo
	value  string
	sample api.ProgressSample
	from   api.WorkerState
	to     api.WorkerState
	status api.Status
	err    error
}

// AsyncObserver moves delivery to a single dispatcher goroutine so a slow
// observer does not throttle workers. Notifications are delivered in the
// order they were received, which keeps per-worker FIFO. When the queue is
// full, the calling worker blocks until there is room.
type AsyncObserver struct {
	next   api.Observer
	queue  *Queue[notification]
	logger *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

var _ api.Observer = (*AsyncObserver)(nil)

// NewAsyncObserver starts a dispatcher that forwards to next.
// capacity bounds the number of pending notifications.
func NewAsyncObserver(next api.Observer, capacity int, logger *slog.Logger) *AsyncObserver {
	if next == nil {
		next = api.NoopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &AsyncObserver{
		next:   next,
		queue:  NewQueue[notification](capacity),
		logger: logger,
		done:   make(chan struct{}),
	}
	go a.dispatch()
	return a
}

// Pending returns the approximate number of undelivered notifications.
func (a *AsyncObserver) Pending() int {
	return a.queue.Len()
}

// Close stops accepting notifications, delivers everything already queued
// and waits for the dispatcher to exit. Notifications arriving after Close
// are dropped.
func (a *AsyncObserver) Close() {
	a.closeOnce.Do(a.queue.Close)
	<-a.done
}

func (a *AsyncObserver) dispatch() {
	defer close(a.done)
	for {
		n, err := a.queue.Dequeue(context.Background())
		if err != nil {
			return
		}
		a.deliver(n)
	}
}

func (a *AsyncObserver) deliver(n notification) {
	switch n.kind {
	case kindStart:
		a.next.OnStart(n.ctx, n.info)
	case kindValue:
		a.next.OnValue(n.ctx, n.info, n.value)
	case kindProgress:
		a.next.OnProgress(n.ctx, n.info, n.sample)
	case kindStateChange:
		a.next.OnStateChange(n.ctx, n.info, n.from, n.to)
	case kindTerminal:
		a.next.OnTerminal(n.ctx, n.info, n.status, n.err)
	}
}

func (a *AsyncObserver) enqueue(n notification) {
	// The worker's context may already be cancelled when it reports Stopped;
	// keep its values but not its cancellation.
	n.ctx = context.WithoutCancel(n.ctx)
	if err := a.queue.Enqueue(n.ctx, n); err != nil {
		if errors.Is(err, ErrClosed) {
			a.logger.Warn("dropping notification after close",
				slog.String("task", n.info.Task),
				slog.String("worker_id", n.info.ID),
			)
		}
	}
}

func (a *AsyncObserver) OnStart(ctx context.Context, info api.WorkerInfo) {
	a.enqueue(notification{ctx: ctx, kind: kindStart, info: info})
}

func (a *AsyncObserver) OnValue(ctx context.Context, info api.WorkerInfo, value string) {
	a.enqueue(notification{ctx: ctx, kind: kindValue, info: info, value: value})
}

func (a *AsyncObserver) OnProgress(ctx context.Context, info api.WorkerInfo, sample api.ProgressSample) {
	a.enqueue(notification{ctx: ctx, kind: kindProgress, info: info, sample: sample})
}

func (a *AsyncObserver) OnStateChange(ctx context.Context, info api.WorkerInfo, from, to api.WorkerState) {
	a.enqueue(notification{ctx: ctx, kind: kindStateChange, info: info, from: from, to: to})
}

func (a *AsyncObserver) OnTerminal(ctx context.Context, info api.WorkerInfo, status api.Status, err error) {
	a.enqueue(notification{ctx: ctx, kind: kindTerminal, info: info, status: status, err: err})
}
