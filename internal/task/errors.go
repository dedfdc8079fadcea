package task

import "errors"

// Sentinel errors surfaced by the coordinator. Callers match them with
// errors.Is; the HTTP layer maps them to status codes.
var (
	// ErrTaskNotFound is returned when no record exists for a task id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTaskData is returned when an incoming or stored record
	// fails schema validation. It is never silently coerced.
	ErrInvalidTaskData = errors.New("invalid task data")
)
