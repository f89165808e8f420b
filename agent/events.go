package agent

import "github.com/ensemble-systems/ensemble/observability"

// Runtime event types emitted over the agent lifecycle.
const (
	EventStart        observability.EventType = "agent.start"
	EventStop         observability.EventType = "agent.stop"
	EventRestart      observability.EventType = "agent.restart"
	EventHeartbeat    observability.EventType = "agent.heartbeat"
	EventTaskStart    observability.EventType = "agent.task.start"
	EventTaskComplete observability.EventType = "agent.task.complete"
	EventTaskFailed   observability.EventType = "agent.task.failed"
	EventTaskRejected observability.EventType = "agent.task.rejected"
)
