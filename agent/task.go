package agent

import (
	"time"

	"github.com/google/uuid"

	"github.com/ensemble-systems/ensemble/messaging"
)

// Task is a unit of work carried by a task_request message.
type Task struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Payload   map[string]any     `json:"payload,omitempty"`
	Priority  messaging.Priority `json:"priority,omitempty"`
	CreatedAt time.Time          `json:"created_at"`

	// Requester is the agent to send the task_response to. The runtime
	// stamps it with the request's sender on receipt.
	Requester string `json:"requester,omitempty"`
}

// NewTask creates a Task with a fresh id and normal priority.
func NewTask(taskType string, payload map[string]any) Task {
	return Task{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      taskType,
		Payload:   payload,
		Priority:  messaging.PriorityNormal,
		CreatedAt: time.Now(),
	}
}

// ResultStatus classifies the outcome carried by a task_response.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultError     ResultStatus = "error"
	ResultRejected  ResultStatus = "rejected"
)

// Result is the payload of a task_response message.
type Result struct {
	TaskID      string         `json:"task_id"`
	TaskType    string         `json:"task_type,omitempty"`
	AgentID     string         `json:"agent_id"`
	Status      ResultStatus   `json:"status"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	Duration    time.Duration  `json:"duration"`
	CompletedAt time.Time      `json:"completed_at"`

	// Share, when non-nil, is broadcast as a data_sharing message by the
	// runtime after the response is sent.
	Share map[string]any `json:"-"`

	// Alerts are broadcast as alert messages by the runtime after the
	// response is sent.
	Alerts []Alert `json:"-"`
}

// OK reports whether the result carries a completed outcome.
func (r Result) OK() bool {
	return r.Status == ResultCompleted
}

// Alert is the payload of an alert message.
type Alert struct {
	Kind     string             `json:"kind"`
	Severity messaging.Priority `json:"severity"`
	Detail   map[string]any     `json:"detail,omitempty"`
}
