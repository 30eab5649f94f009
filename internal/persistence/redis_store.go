package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/seqflow/pkg/api"
)

// RedisStore is a Store backed by Redis.
// It uses a simple key structure:
//
//	<prefix>run:<id>          => gob-encoded api.Run
//	<prefix>idx:all           => SET of all run IDs
//	<prefix>idx:task:<task>   => SET of run IDs for a given task
//	<prefix>events:<workerID> => LIST of gob-encoded api.WorkerEvent
//
// State is not indexed because it changes over a run's life; ListRuns
// filters it after loading.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore.
// prefix is optional but recommended (e.g. "seqflow:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "seqflow:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) keyRun(id string) string {
	return s.prefix + "run:" + id
}

func (s *RedisStore) keyAll() string {
	return s.prefix + "idx:all"
}

func (s *RedisStore) keyTask(task string) string {
	return s.prefix + "idx:task:" + task
}

func (s *RedisStore) keyEvents(workerID string) string {
	return s.prefix + "events:" + workerID
}

func (s *RedisStore) SaveRun(ctx context.Context, run *api.Run) error {
	data, err := gobBytes(run)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keyRun(run.ID), data, 0)
	pipe.SAdd(ctx, s.keyAll(), run.ID)
	pipe.SAdd(ctx, s.keyTask(run.Task), run.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) UpdateRun(ctx context.Context, run *api.Run) error {
	data, err := gobBytes(run)
	if err != nil {
		return err
	}

	// XX only overwrites an existing key.
	ok, err := s.client.SetXX(ctx, s.keyRun(run.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrRunNotFound
	}
	return nil
}

func (s *RedisStore) GetRun(ctx context.Context, id string) (*api.Run, error) {
	data, err := s.client.Get(ctx, s.keyRun(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	var run api.Run
	if err := gobInto(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *RedisStore) ListRuns(ctx context.Context, opts api.RunListOptions) ([]*api.Run, error) {
	key := s.keyAll()
	if opts.Task != "" {
		key = s.keyTask(opts.Task)
	}

	ids, err := s.client.SMembers(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if len(ids) == 0 {
		return []*api.Run{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.keyRun(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	runs := []*api.Run{}
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		var run api.Run
		if err := gobInto(data, &run); err != nil {
			return nil, err
		}
		if matchRun(&run, opts) {
			runs = append(runs, &run)
		}
	}
	sortRuns(runs)
	return runs, nil
}

func (s *RedisStore) AppendEvent(ctx context.Context, ev api.WorkerEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := gobBytes(&ev)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.keyEvents(ev.WorkerID), data).Err()
}

func (s *RedisStore) ListEvents(ctx context.Context, workerID string) ([]api.WorkerEvent, error) {
	items, err := s.client.LRange(ctx, s.keyEvents(workerID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]api.WorkerEvent, 0, len(items))
	for _, item := range items {
		var ev api.WorkerEvent
		if err := gobInto([]byte(item), &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// gobBytes encodes a run or event for storage under a Redis key.
func gobBytes(v any) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := gob.NewEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

// gobInto decodes a value written by gobBytes into dst.
func gobInto(data []byte, dst any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(dst); err != nil {
		return fmt.Errorf("decode %T: %w", dst, err)
	}
	return nil
}
