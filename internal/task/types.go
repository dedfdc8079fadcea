package task

// Status represents the lifecycle state of a crawl task as recorded in the
// status store. Transitions are forward-only: queued or in_progress may move
// to completed or failed, and a terminal record is never rewritten.
// Kept as string for readability in stored JSON.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is the persisted representation of a task, stored as JSON in the
// status store under key task:<id>. Keyword and Region are write-once at
// creation. Result is present only for completed tasks, Error only for
// failed ones.
type Record struct {
	Status  Status `json:"status"`
	Keyword string `json:"keyword"`
	Region  string `json:"region"`
	Result  any    `json:"result"`
	Error   string `json:"error,omitempty"`
}

// Validate checks the structural invariants of a stored record: a known
// status, a non-empty keyword and a result that is either absent or a
// structured payload.
func (r *Record) Validate() error {
	if !r.Status.Valid() {
		return ErrInvalidTaskData
	}
	if r.Keyword == "" {
		return ErrInvalidTaskData
	}
	if !ValidResult(r.Result) {
		return ErrInvalidTaskData
	}
	return nil
}

// ValidResult reports whether v is an acceptable result payload: nil, a JSON
// object, or a list of JSON objects. Scalars are rejected.
func ValidResult(v any) bool {
	switch v.(type) {
	case nil, map[string]any, []any, []map[string]any:
		return true
	}
	return false
}

// Task-queue and result-queue message types registered with the broker.
const (
	TypeCrawlTask   = "crawl:task"
	TypeCrawlResult = "crawl:result"
)

// UnknownTaskID is the sentinel used in a failure result when the inbound
// task message did not carry a task_id at all.
const UnknownTaskID = "unknown"

// Message is the ephemeral task-queue payload. The status store, not the
// queue, is the source of truth for current state.
type Message struct {
	TaskID  string `json:"task_id"`
	Keyword string `json:"keyword"`
	Region  string `json:"region,omitempty"`
}

// Result is the ephemeral result-queue payload. Result and Error are
// mutually exclusive: Result carries the payload of a completed task, Error
// the reason a task failed.
type Result struct {
	TaskID string `json:"task_id"`
	Status Status `json:"status"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
