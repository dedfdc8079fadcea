// Package reconciler consumes the result queue and applies terminal status
// transitions. It is the single writer of completed/failed state and goes
// through the task coordinator so record validation is enforced on this path
// too. A malformed or unmatchable result message is logged and dropped; it
// never crashes the consume loop.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ViNN280801/SominAI-task/internal/alert"
	"github.com/ViNN280801/SominAI-task/internal/task"
)

// Updater applies a status transition. Satisfied by *task.Coordinator.
type Updater interface {
	Update(ctx context.Context, id string, status task.Status, result any, errMsg string) error
}

// Notifier delivers outcome alerts. Satisfied by *alert.Notifier.
type Notifier interface {
	Notify(ctx context.Context, dest alert.Destination, message string) error
}

// Reconciler handles messages from the result queue.
type Reconciler struct {
	tasks    Updater
	notifier Notifier
	logger   *slog.Logger

	applied atomic.Int64
	dropped atomic.Int64
}

func New(tasks Updater, notifier Notifier, logger *slog.Logger) *Reconciler {
	return &Reconciler{tasks: tasks, notifier: notifier, logger: logger}
}

// Handle processes one result message and always returns nil: every branch
// ends in an acknowledgement so a poison result cannot wedge the queue.
func (r *Reconciler) Handle(ctx context.Context, payload []byte) error {
	var res task.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		r.dropped.Add(1)
		r.logger.Error("undecodable result message, dropped", "error", err)
		return nil
	}
	if res.TaskID == "" || res.Status == "" {
		r.dropped.Add(1)
		r.logger.Error("result message missing task_id or status, dropped")
		return nil
	}

	if err := r.tasks.Update(ctx, res.TaskID, res.Status, res.Result, res.Error); err != nil {
		r.dropped.Add(1)
		r.logger.Error("could not apply result, dropped",
			"task_id", res.TaskID, "status", res.Status, "error", err)
		return nil
	}
	r.applied.Add(1)
	r.logger.Info("result applied", "task_id", res.TaskID, "status", res.Status)

	text := fmt.Sprintf("Task %s completed successfully.", res.TaskID)
	if res.Status != task.StatusCompleted {
		text = fmt.Sprintf("Task %s failed.", res.TaskID)
	}
	// Alerts are best effort; the result is already durable in the store.
	if err := r.notifier.Notify(ctx, alert.Telegram, text); err != nil {
		r.logger.Warn("telegram alert failed", "task_id", res.TaskID, "error", err)
	}
	if err := r.notifier.Notify(ctx, alert.Logging, text); err != nil {
		r.logger.Warn("log alert failed", "task_id", res.TaskID, "error", err)
	}
	return nil
}

// Counts reports how many results were applied and dropped, for tests and
// shutdown logging.
func (r *Reconciler) Counts() (applied, dropped int64) {
	return r.applied.Load(), r.dropped.Load()
}
