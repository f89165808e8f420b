package agent

import (
	"math"
	"time"
)

// State is an agent's lifecycle state as reported in status updates.
// Error is a cycle state: a runtime reports it after a task failure and
// returns to idle on the next poll tick.
type State string

const (
	StateIdle  State = "idle"
	StateBusy  State = "busy"
	StateError State = "error"
)

func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateBusy, StateError:
		return true
	}
	return false
}

// Status is the payload of a status_update message: a point-in-time
// snapshot of one agent, self-reported on its heartbeat. CurrentTaskID is
// set exactly while the agent is busy.
type Status struct {
	AgentID          string        `json:"agent_id"`
	AgentType        string        `json:"agent_type,omitempty"`
	State            State         `json:"state"`
	CurrentTaskID    string        `json:"current_task_id,omitempty"`
	Capabilities     []Capability  `json:"capabilities,omitempty"`
	QueueDepth       int           `json:"queue_depth"`
	TasksCompleted   int64         `json:"tasks_completed"`
	TasksFailed      int64         `json:"tasks_failed"`
	PerformanceScore float64       `json:"performance_score"`
	Uptime           time.Duration `json:"uptime"`
	LastActivity     time.Time     `json:"last_activity"`
}

// PerformanceScore derives an agent's performance from its completed task
// count: 1.0 for a fresh agent, otherwise 0.5 plus 0.01 per completed
// task, capped at 1.0.
func PerformanceScore(tasksCompleted int64) float64 {
	if tasksCompleted == 0 {
		return 1.0
	}
	return math.Min(1.0, 0.5+0.01*float64(tasksCompleted))
}
