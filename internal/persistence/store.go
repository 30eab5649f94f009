package persistence

import (
	"context"
	"errors"
	"sort"

	"github.com/petrijr/seqflow/pkg/api"
)

// ErrRunNotFound is returned when a run is not found.
var ErrRunNotFound = errors.New("run not found")

// RunStore handles storage of worker run summaries.
type RunStore interface {
	SaveRun(ctx context.Context, run *api.Run) error
	// UpdateRun overwrites an existing run. It returns ErrRunNotFound if
	// the run was never saved.
	UpdateRun(ctx context.Context, run *api.Run) error
	GetRun(ctx context.Context, id string) (*api.Run, error)
	// ListRuns returns matching runs ordered by start time.
	ListRuns(ctx context.Context, opts api.RunListOptions) ([]*api.Run, error)
}

// EventStore is an append-only history of worker events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.WorkerEvent) error
	// ListEvents returns the events of one worker in append order.
	ListEvents(ctx context.Context, workerID string) ([]api.WorkerEvent, error)
}

// Store bundles both interfaces so a backend can be passed around as one.
type Store interface {
	RunStore
	EventStore
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.WorkerEvent) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, workerID string) ([]api.WorkerEvent, error) {
	return nil, nil
}

func matchRun(run *api.Run, opts api.RunListOptions) bool {
	if opts.Task != "" && run.Task != opts.Task {
		return false
	}
	if opts.OnlyState != nil && run.State != *opts.OnlyState {
		return false
	}
	return true
}

func sortRuns(runs []*api.Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
}
