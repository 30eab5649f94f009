package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/petrijr/seqflow/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe Store backed by maps.
// Runs are copied on the way in and out so callers cannot mutate stored data.
type InMemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]api.Run
	events map[string][]api.WorkerEvent
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		runs:   make(map[string]api.Run),
		events: make(map[string][]api.WorkerEvent),
	}
}

var _ Store = (*InMemoryStore)(nil)

func (s *InMemoryStore) SaveRun(ctx context.Context, run *api.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = *run
	return nil
}

func (s *InMemoryStore) UpdateRun(ctx context.Context, run *api.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return ErrRunNotFound
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *InMemoryStore) GetRun(ctx context.Context, id string) (*api.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

func (s *InMemoryStore) ListRuns(ctx context.Context, opts api.RunListOptions) ([]*api.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*api.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if !matchRun(&run, opts) {
			continue
		}
		cp := run
		out = append(out, &cp)
	}
	sortRuns(out)
	return out, nil
}

func (s *InMemoryStore) AppendEvent(ctx context.Context, ev api.WorkerEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.WorkerID] = append(s.events[ev.WorkerID], ev)
	return nil
}

func (s *InMemoryStore) ListEvents(ctx context.Context, workerID string) ([]api.WorkerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]api.WorkerEvent(nil), s.events[workerID]...), nil
}
