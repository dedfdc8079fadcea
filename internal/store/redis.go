// Package store persists task records as JSON values in Redis, keyed by
// task id. It is a thin transport wrapper: schema validation belongs to the
// task coordinator, this package only distinguishes "absent", "unreadable"
// and "store unreachable".
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ViNN280801/SominAI-task/internal/task"
)

// ErrStore marks a transport-level failure talking to Redis, distinct from
// the validation errors raised by the task coordinator.
var ErrStore = errors.New("status store failure")

const keyPrefix = "task:"

// Store is a task-record store backed by a shared, long-lived Redis client.
// The client is opened once at process start and reused; Store does not
// reconnect on its own.
type Store struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func New(rdb *redis.Client, logger *slog.Logger) *Store {
	return &Store{rdb: rdb, logger: logger}
}

// Ping verifies the Redis connection, used at startup to fail fast instead
// of lazily connecting on first use.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStore, err)
	}
	return nil
}

// Set serializes rec and writes it under the task's key.
func (s *Store) Set(ctx context.Context, id string, rec *task.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode task %s: %v", ErrStore, id, err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+id, b, 0).Err(); err != nil {
		s.logger.Error("failed to save task record", "task_id", id, "error", err)
		return fmt.Errorf("%w: save task %s: %v", ErrStore, id, err)
	}
	s.logger.Debug("task record saved", "task_id", id)
	return nil
}

// Get returns the record for id, or (nil, nil) when no record exists. A
// stored value that cannot be decoded surfaces as task.ErrInvalidTaskData so
// callers can tell corruption from transport failure.
func (s *Store) Get(ctx context.Context, id string) (*task.Record, error) {
	b, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("failed to read task record", "task_id", id, "error", err)
		return nil, fmt.Errorf("%w: read task %s: %v", ErrStore, id, err)
	}
	var rec task.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("%w: task %s: undecodable stored value", task.ErrInvalidTaskData, id)
	}
	return &rec, nil
}

// Delete removes the record for id and reports whether one existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		s.logger.Error("failed to delete task record", "task_id", id, "error", err)
		return false, fmt.Errorf("%w: delete task %s: %v", ErrStore, id, err)
	}
	return n == 1, nil
}

// Close releases the underlying Redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
