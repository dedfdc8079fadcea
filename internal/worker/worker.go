// Package worker consumes the task queue and turns task messages into result
// messages. A worker's unit of work is "a result was published", not "the
// task succeeded": engine failures become failed results, and the triggering
// message is acknowledged either way so application errors never cause
// redelivery.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ViNN280801/SominAI-task/internal/extract"
	"github.com/ViNN280801/SominAI-task/internal/task"
)

// Claimer marks a task in_progress when a worker picks it up. Satisfied by
// *task.Coordinator.
type Claimer interface {
	Update(ctx context.Context, id string, status task.Status, result any, errMsg string) error
}

// Worker handles messages from the task queue.
type Worker struct {
	engine      extract.Engine
	pub         task.Publisher
	tasks       Claimer
	resultQueue string
	logger      *slog.Logger
}

func New(engine extract.Engine, pub task.Publisher, tasks Claimer, resultQueue string, logger *slog.Logger) *Worker {
	return &Worker{
		engine:      engine,
		pub:         pub,
		tasks:       tasks,
		resultQueue: resultQueue,
		logger:      logger,
	}
}

// Handle processes one task message. It always returns nil: every delivery
// yields exactly one result message (completed or failed), and a publish
// failure is logged rather than retried, matching the rest of the pipeline's
// no-poison-redelivery stance.
func (w *Worker) Handle(ctx context.Context, payload []byte) error {
	var msg task.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		w.logger.Error("undecodable task message", "error", err)
		w.publishResult(ctx, task.Result{
			TaskID: task.UnknownTaskID,
			Status: task.StatusFailed,
			Error:  "invalid message format: " + err.Error(),
		})
		return nil
	}
	if msg.TaskID == "" || msg.Keyword == "" {
		id := msg.TaskID
		if id == "" {
			id = task.UnknownTaskID
		}
		w.logger.Error("task message missing task_id or keyword", "task_id", id)
		w.publishResult(ctx, task.Result{
			TaskID: id,
			Status: task.StatusFailed,
			Error:  "invalid message format: 'task_id' or 'keyword' missing",
		})
		return nil
	}

	// Claim the task for observability. A failed claim is not fatal: the
	// result write is what moves the record to its terminal state.
	if err := w.tasks.Update(ctx, msg.TaskID, task.StatusInProgress, nil, ""); err != nil {
		w.logger.Warn("could not mark task in progress", "task_id", msg.TaskID, "error", err)
	}

	w.logger.Info("task picked up", "task_id", msg.TaskID, "keyword", msg.Keyword, "region", msg.Region)
	ads, err := w.engine.Search(ctx, msg.Keyword, msg.Region)
	if err != nil {
		w.logger.Error("extraction failed", "task_id", msg.TaskID, "error", err)
		w.publishResult(ctx, task.Result{
			TaskID: msg.TaskID,
			Status: task.StatusFailed,
			Error:  err.Error(),
		})
		return nil
	}

	w.publishResult(ctx, task.Result{
		TaskID: msg.TaskID,
		Status: task.StatusCompleted,
		Result: ads,
	})
	return nil
}

func (w *Worker) publishResult(ctx context.Context, res task.Result) {
	if err := w.pub.Publish(ctx, w.resultQueue, task.TypeCrawlResult, res); err != nil {
		w.logger.Error("failed to publish result", "task_id", res.TaskID, "error", err)
		return
	}
	w.logger.Info("result published", "task_id", res.TaskID, "status", res.Status)
}
