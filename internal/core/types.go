package core

import (
	"encoding/json"
)

// TaskStatus describes the lifecycle state of a scheduled command.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusExecuting TaskStatus = "executing"
	TaskStatusExecuted  TaskStatus = "executed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCanceled  TaskStatus = "canceled"
)

// Terminal reports whether no further transitions are possible from the status.
// Recurring tasks never reach a terminal status through normal firing.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusExecuted || s == TaskStatusFailed || s == TaskStatusCanceled
}

// Result records the outcome of the most recent firing attempt.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Task is a persisted unit of scheduled work, one-shot or recurring.
// All timestamps are milliseconds since the Unix epoch, matching both the
// persisted file and the wire format.
type Task struct {
	ID                 string          `json:"id"`
	Action             string          `json:"action"`
	Payload            json.RawMessage `json:"payload,omitempty"`
	ScheduledAt        int64           `json:"scheduledAt"`
	IntervalMs         *int64          `json:"intervalMs,omitempty"`
	Status             TaskStatus      `json:"status"`
	CreatedAt          int64           `json:"createdAt"`
	UpdatedAt          int64           `json:"updatedAt"`
	LastRunAt          *int64          `json:"lastRunAt,omitempty"`
	ExecutedAt         *int64          `json:"executedAt,omitempty"`
	RequestID          string          `json:"requestId,omitempty"`
	ExecutionRequestID string          `json:"executionRequestId,omitempty"`
	Result             *Result         `json:"result,omitempty"`
}

// Recurring reports whether the task reschedules itself after every firing.
func (t *Task) Recurring() bool {
	return t.IntervalMs != nil && *t.IntervalMs > 0
}

// Clone returns a deep copy safe to hand to callers and event consumers.
func (t *Task) Clone() *Task {
	c := *t
	if t.Payload != nil {
		c.Payload = append(json.RawMessage(nil), t.Payload...)
	}
	if t.IntervalMs != nil {
		v := *t.IntervalMs
		c.IntervalMs = &v
	}
	if t.LastRunAt != nil {
		v := *t.LastRunAt
		c.LastRunAt = &v
	}
	if t.ExecutedAt != nil {
		v := *t.ExecutedAt
		c.ExecutedAt = &v
	}
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	return &c
}

// Lifecycle event names published for each task transition.
const (
	EventCreated   = "created"
	EventUpdated   = "updated"
	EventCanceled  = "canceled"
	EventExecuting = "executing"
	EventExecuted  = "executed"
	EventFailed    = "failed"
)

// Event is a schedule lifecycle notification.
type Event struct {
	Kind  string `json:"kind"` // always "schedule"
	Event string `json:"event"`
	Task  *Task  `json:"task"`
}

// AuditEntry is one flat history row per execution attempt.
type AuditEntry struct {
	ExecutionRequestID string `json:"executionRequestId"`
	RequestID          string `json:"requestId,omitempty"`
	Command            string `json:"command"` // "schedule:<action>"
	Status             string `json:"status"`  // "ok" | "error"
	Message            string `json:"message,omitempty"`
	ScheduleID         string `json:"scheduleId"`
}

const (
	AuditStatusOK    = "ok"
	AuditStatusError = "error"
)
