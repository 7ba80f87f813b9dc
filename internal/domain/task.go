// Package domain holds the core Ampli types.
// A Task is a unit of amplification work that flows through the engine:
// submit → validate → gate (cost/budget/feature) → enqueue → execute → cache.
package domain

import "time"

// TaskStatus tracks task lifecycle.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "QUEUED"
	TaskExecuting TaskStatus = "EXECUTING"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskFailed    TaskStatus = "FAILED"
)

// TaskType categorizes the kind of content work.
type TaskType string

const (
	TaskPost     TaskType = "POST"
	TaskThread   TaskType = "THREAD"
	TaskArticle  TaskType = "ARTICLE"
	TaskCampaign TaskType = "CAMPAIGN"
)

// ParseTaskType maps a wire value ("post", "thread", ...) to a TaskType.
// Returns false for unknown values.
func ParseTaskType(s string) (TaskType, bool) {
	switch s {
	case "post":
		return TaskPost, true
	case "thread":
		return TaskThread, true
	case "article":
		return TaskArticle, true
	case "campaign":
		return TaskCampaign, true
	}
	return "", false
}

// ─── Priority Classes ───────────────────────────────────────────────────────
// Numerically lower = served first. Ties broken FIFO by enqueue time.

const (
	PriorityUrgent = 1
	PriorityHigh   = 2
	PriorityMedium = 3
	PriorityLow    = 4
)

// ParsePriority maps a wire value ("urgent", "high", ...) to a priority
// class. Returns false for unknown values.
func ParsePriority(s string) (int, bool) {
	switch s {
	case "urgent":
		return PriorityUrgent, true
	case "high":
		return PriorityHigh, true
	case "medium":
		return PriorityMedium, true
	case "low":
		return PriorityLow, true
	}
	return 0, false
}

// PriorityLabel returns a human-readable label for a priority class.
func PriorityLabel(p int) string {
	switch p {
	case PriorityUrgent:
		return "URGENT"
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// ─── Task ───────────────────────────────────────────────────────────────────

// Task is a unit of amplification work. Immutable once enqueued.
type Task struct {
	ID             string     `json:"id"`
	Tenant         string     `json:"tenant"`
	Type           TaskType   `json:"type"`
	Status         TaskStatus `json:"status"`
	Priority       int        `json:"priority"`
	Description    string     `json:"description"`
	Platforms      []string   `json:"platforms"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      time.Time  `json:"started_at,omitempty"`
	CompletedAt    time.Time  `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the task has reached a final state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// Duration returns how long the task took to execute (0 if not started/completed).
func (t *Task) Duration() time.Duration {
	if t.StartedAt.IsZero() || t.CompletedAt.IsZero() {
		return 0
	}
	return t.CompletedAt.Sub(t.StartedAt)
}

// ─── Task Result ────────────────────────────────────────────────────────────

// ShareOutcome is the per-platform result of a share fan-out.
// Exactly one of Reach or Error is meaningful.
type ShareOutcome struct {
	Platform string  `json:"platform"`
	OK       bool    `json:"ok"`
	Reach    float64 `json:"reach,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// TaskResult is the structured outcome of a single task execution.
type TaskResult struct {
	TaskID        string         `json:"task_id"`
	Sentiment     float64        `json:"sentiment"`
	Shares        []ShareOutcome `json:"shares"`
	Amplification float64        `json:"amplification"`
	CostMicro     int64          `json:"cost_micro"`
	Tags          FinOpsTags     `json:"tags"`
	Error         string         `json:"error,omitempty"`
}

// SuccessfulShares counts the platforms that settled successfully.
func (r *TaskResult) SuccessfulShares() int {
	n := 0
	for _, s := range r.Shares {
		if s.OK {
			n++
		}
	}
	return n
}
