package api

import "time"

// EventType identifies a worker history event.
type EventType string

const (
	EventWorkerStarted   EventType = "worker.started"
	EventWorkerPaused    EventType = "worker.paused"
	EventWorkerResumed   EventType = "worker.resumed"
	EventWorkerCompleted EventType = "worker.completed"
	EventWorkerStopped   EventType = "worker.stopped"
	EventWorkerFailed    EventType = "worker.failed"

	EventValueEmitted EventType = "value.emitted"
)

// TerminalEventType maps a terminal status to its history event type.
func TerminalEventType(st Status) EventType {
	switch st {
	case StatusCompleted:
		return EventWorkerCompleted
	case StatusFailed:
		return EventWorkerFailed
	default:
		return EventWorkerStopped
	}
}

// WorkerEvent is a minimal append-only history record for audit/debugging.
type WorkerEvent struct {
	WorkerID string
	At       time.Time
	Type     EventType
	Task     string

	// Seq is the position of the event within its worker, starting at 0.
	Seq int

	// Small, human-oriented details (e.g. emitted value, error string).
	Detail string
}

// Run is the persisted summary of one worker lifecycle.
type Run struct {
	ID    string
	Task  string
	State WorkerState

	// Params is the textual form of the bounds the worker was built with.
	Params string

	Values    int
	LastValue string
	Err       string

	StartedAt  time.Time
	FinishedAt time.Time
}

// RunListOptions controls how runs are listed.
// Zero values mean "no filter" for that field.
type RunListOptions struct {
	Task string

	// OnlyState, when non-nil, limits results to runs in that state.
	OnlyState *WorkerState
}
