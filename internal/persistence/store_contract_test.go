package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/seqflow/pkg/api"
)

// testStoreContract runs the behaviour every Store backend must share.
// Task names and IDs are unique per call so backends need no cleanup.
func testStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	task := "primes-" + uuid.NewString()
	base := time.Now().Truncate(time.Millisecond)

	newRun := func(offset time.Duration) *api.Run {
		return &api.Run{
			ID:        uuid.NewString(),
			Task:      task,
			State:     api.StateRunning,
			Params:    "min=2 max=10",
			StartedAt: base.Add(offset),
		}
	}

	t.Run("SaveGetUpdate", func(t *testing.T) {
		run := newRun(0)
		require.NoError(t, store.SaveRun(ctx, run))

		got, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		requireSameRun(t, run, got)
		require.True(t, got.FinishedAt.IsZero())

		run.State = api.StateFailed
		run.Values = 4
		run.LastValue = "7"
		run.Err = "producer primes failed: boom"
		run.FinishedAt = base.Add(time.Second)
		require.NoError(t, store.UpdateRun(ctx, run))

		got, err = store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		requireSameRun(t, run, got)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.GetRun(ctx, "missing-"+uuid.NewString())
		require.ErrorIs(t, err, ErrRunNotFound)

		err = store.UpdateRun(ctx, &api.Run{ID: "missing-" + uuid.NewString(), Task: task})
		require.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("ListRuns", func(t *testing.T) {
		listTask := task + "-list"
		stopped := newRun(2 * time.Second)
		stopped.Task = listTask
		stopped.State = api.StateStopped
		completed := newRun(time.Second)
		completed.Task = listTask
		completed.State = api.StateCompleted
		other := newRun(0)
		other.Task = listTask + "-other"

		for _, r := range []*api.Run{stopped, completed, other} {
			require.NoError(t, store.SaveRun(ctx, r))
		}

		runs, err := store.ListRuns(ctx, api.RunListOptions{Task: listTask})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		require.Equal(t, completed.ID, runs[0].ID, "ordered by start time")
		require.Equal(t, stopped.ID, runs[1].ID)

		state := api.StateStopped
		runs, err = store.ListRuns(ctx, api.RunListOptions{Task: listTask, OnlyState: &state})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		require.Equal(t, stopped.ID, runs[0].ID)

		runs, err = store.ListRuns(ctx, api.RunListOptions{Task: "nobody-" + uuid.NewString()})
		require.NoError(t, err)
		require.Empty(t, runs)

		all, err := store.ListRuns(ctx, api.RunListOptions{})
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(all), 3)
	})

	t.Run("Events", func(t *testing.T) {
		workerID := uuid.NewString()
		types := []api.EventType{
			api.EventWorkerStarted,
			api.EventValueEmitted,
			api.EventWorkerPaused,
			api.EventWorkerResumed,
			api.EventValueEmitted,
			api.EventWorkerStopped,
		}
		for i, typ := range types {
			require.NoError(t, store.AppendEvent(ctx, api.WorkerEvent{
				WorkerID: workerID,
				At:       base.Add(time.Duration(i) * time.Millisecond),
				Type:     typ,
				Task:     task,
				Seq:      i,
				Detail:   string(typ),
			}))
		}
		// An event for another worker must not leak into the listing.
		require.NoError(t, store.AppendEvent(ctx, api.WorkerEvent{WorkerID: uuid.NewString(), Type: api.EventWorkerStarted}))

		evs, err := store.ListEvents(ctx, workerID)
		require.NoError(t, err)
		require.Len(t, evs, len(types))
		for i, ev := range evs {
			require.Equal(t, types[i], ev.Type)
			require.Equal(t, i, ev.Seq)
			require.Equal(t, task, ev.Task)
			require.Equal(t, string(types[i]), ev.Detail)
			require.WithinDuration(t, base.Add(time.Duration(i)*time.Millisecond), ev.At, 0)
		}

		evs, err = store.ListEvents(ctx, "nobody-"+uuid.NewString())
		require.NoError(t, err)
		require.Empty(t, evs)
	})

	t.Run("EventDefaultsTime", func(t *testing.T) {
		workerID := uuid.NewString()
		require.NoError(t, store.AppendEvent(ctx, api.WorkerEvent{WorkerID: workerID, Type: api.EventWorkerStarted}))

		evs, err := store.ListEvents(ctx, workerID)
		require.NoError(t, err)
		require.Len(t, evs, 1)
		require.WithinDuration(t, time.Now(), evs[0].At, time.Minute)
	})
}

func requireSameRun(t *testing.T, want, got *api.Run) {
	t.Helper()
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Task, got.Task)
	require.Equal(t, want.State, got.State)
	require.Equal(t, want.Params, got.Params)
	require.Equal(t, want.Values, got.Values)
	require.Equal(t, want.LastValue, got.LastValue)
	require.Equal(t, want.Err, got.Err)
	require.WithinDuration(t, want.StartedAt, got.StartedAt, 0)
	if want.FinishedAt.IsZero() {
		require.True(t, got.FinishedAt.IsZero())
	} else {
		require.WithinDuration(t, want.FinishedAt, got.FinishedAt, 0)
	}
}
