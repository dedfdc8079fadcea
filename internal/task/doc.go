// Package task defines the task record and queue message contracts shared by
// the whole pipeline, and the Coordinator that owns every status-store
// mutation.
//
// Lifecycle: a task is created queued, optionally claimed in_progress by a
// worker, and moved exactly once to completed or failed by the result
// reconciler. The status store is the durable source of truth for current
// state; queue messages carry no identity beyond the task id.
package task
