package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Store abstracts the durable key-value status store.
// Get returns (nil, nil) for an absent key; absence is a normal outcome the
// caller must check, not an error. Implementations must be safe for
// concurrent use.
type Store interface {
	Set(ctx context.Context, id string, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Publisher abstracts the durable queue used to hand tasks to workers.
type Publisher interface {
	Publish(ctx context.Context, queue, taskType string, payload any) error
}

// CoordinatorConfig carries the queue name tasks are published to and the
// region applied when a submission does not name one.
type CoordinatorConfig struct {
	TaskQueue     string
	DefaultRegion string
}

// Coordinator owns task creation and status-record mutation. It is the only
// component that writes to the status store; both the HTTP surface and the
// result reconciler go through it so record validation lives in one place.
type Coordinator struct {
	store  Store
	pub    Publisher
	cfg    CoordinatorConfig
	logger *slog.Logger
}

func NewCoordinator(store Store, pub Publisher, cfg CoordinatorConfig, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: store, pub: pub, cfg: cfg, logger: logger}
}

// Create registers a new task and enqueues it for a worker. The status
// record is written before the queue publish so a poll immediately after
// submission never observes "not found" for a task that is in flight. If the
// publish fails after the store write succeeded the record stays queued
// forever; that gap is accepted rather than silently retried, and the caller
// sees the publish error.
func (c *Coordinator) Create(ctx context.Context, keyword, region string) (string, error) {
	if keyword == "" {
		return "", fmt.Errorf("%w: keyword must not be empty", ErrInvalidTaskData)
	}
	if region == "" {
		region = c.cfg.DefaultRegion
	}

	id := uuid.NewString()
	rec := &Record{
		Status:  StatusQueued,
		Keyword: keyword,
		Region:  region,
		Result:  nil,
	}
	if err := c.store.Set(ctx, id, rec); err != nil {
		return "", fmt.Errorf("create task %s: %w", id, err)
	}

	msg := Message{TaskID: id, Keyword: keyword, Region: region}
	if err := c.pub.Publish(ctx, c.cfg.TaskQueue, TypeCrawlTask, msg); err != nil {
		c.logger.Error("task enqueue failed after status write, record orphaned",
			"task_id", id, "error", err)
		return "", fmt.Errorf("enqueue task %s: %w", id, err)
	}

	c.logger.Info("task created", "task_id", id, "keyword", keyword, "region", region)
	return id, nil
}

// Status returns the current record for a task.
func (c *Coordinator) Status(ctx context.Context, id string) (*Record, error) {
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err := rec.Validate(); err != nil {
		c.logger.Error("stored task record failed validation", "task_id", id)
		return nil, fmt.Errorf("task %s: %w", id, err)
	}
	return rec, nil
}

// Update applies a status transition via read-modify-write. Keyword and
// region are carried over from the existing record; result is attached only
// with completed, errMsg only with failed. Transitions are monotonic:
// re-applying the status a terminal record already has is a no-op, any other
// write against a terminal record is ignored with a warning, and moving back
// to queued is ignored the same way. The read-modify-write is not guarded by
// a lock; only the reconciler writes terminal state in normal operation.
func (c *Coordinator) Update(ctx context.Context, id string, status Status, result any, errMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTaskData, status)
	}
	if !ValidResult(result) {
		return fmt.Errorf("%w: result for task %s must be a structured payload or nil", ErrInvalidTaskData, id)
	}

	cur, err := c.Status(ctx, id)
	if err != nil {
		return err
	}

	if cur.Status.Terminal() {
		if cur.Status == status {
			return nil
		}
		c.logger.Warn("ignoring status transition on terminal task",
			"task_id", id, "current", cur.Status, "requested", status)
		return nil
	}
	if status == StatusQueued && cur.Status != StatusQueued {
		c.logger.Warn("ignoring backward status transition",
			"task_id", id, "current", cur.Status, "requested", status)
		return nil
	}

	next := &Record{
		Status:  status,
		Keyword: cur.Keyword,
		Region:  cur.Region,
	}
	if status == StatusCompleted {
		next.Result = result
	}
	if status == StatusFailed {
		next.Error = errMsg
	}
	if err := c.store.Set(ctx, id, next); err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	c.logger.Info("task status updated", "task_id", id, "status", status)
	return nil
}

// Delete removes a task record. Deletion is an explicit operation exposed to
// operators, not part of the lifecycle; it reports whether a record existed.
func (c *Coordinator) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := c.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete task %s: %w", id, err)
	}
	if ok {
		c.logger.Info("task deleted", "task_id", id)
	}
	return ok, nil
}
