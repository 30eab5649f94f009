package api

// WorkerState is the lifecycle state of a single pausable worker.
//
// Transitions are monotonic:
//
//	Idle -> Running <-> Paused
//	Running | Paused -> Cancelling -> Stopped | Completed | Failed
//	Running -> Completed | Failed
//
// No transition leaves a terminal state; a restart always builds a new worker.
type WorkerState int

const (
	StateIdle WorkerState = iota
	StateRunning
	StatePaused
	StateCancelling
	StateCompleted
	StateStopped
	StateFailed
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateCancelling:
		return "CANCELLING"
	case StateCompleted:
		return "COMPLETED"
	case StateStopped:
		return "STOPPED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ParseWorkerState is the inverse of WorkerState.String.
func ParseWorkerState(s string) (WorkerState, bool) {
	for st := StateIdle; st <= StateFailed; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return StateIdle, false
}

// IsTerminal reports whether s is one of Completed, Stopped or Failed.
func (s WorkerState) IsTerminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateFailed
}

// IsActive reports whether a worker in state s still owns its goroutine.
func (s WorkerState) IsActive() bool {
	return s == StateRunning || s == StatePaused || s == StateCancelling
}

// Status is the terminal outcome of a worker, delivered exactly once
// through Observer.OnTerminal.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusStopped   Status = "STOPPED"
	StatusFailed    Status = "FAILED"
)

// State returns the terminal WorkerState matching st.
func (st Status) State() WorkerState {
	switch st {
	case StatusCompleted:
		return StateCompleted
	case StatusStopped:
		return StateStopped
	case StatusFailed:
		return StateFailed
	default:
		return StateIdle
	}
}

// Controls describes which operations a presentation layer should offer
// for a task slot in a given state.
type Controls struct {
	Start   bool
	Pause   bool
	Resume  bool
	Stop    bool
	Restart bool
}

// ControlsFor derives the enabled operations from a worker state.
// It is a pure function so that any front end renders the same buttons.
//
// Restart stays enabled while Running and Paused: restarting a live worker
// cancels it and starts a fresh one with the current parameters.
func ControlsFor(s WorkerState) Controls {
	switch s {
	case StateIdle:
		return Controls{Start: true}
	case StateRunning:
		return Controls{Pause: true, Stop: true, Restart: true}
	case StatePaused:
		return Controls{Resume: true, Stop: true, Restart: true}
	case StateCancelling:
		return Controls{Restart: true}
	default:
		// terminal
		return Controls{Restart: true}
	}
}
