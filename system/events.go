package system

import "github.com/ensemble-systems/ensemble/observability"

// System event types emitted during composition and monitoring.
const (
	EventStart      observability.EventType = "system.start"
	EventStop       observability.EventType = "system.stop"
	EventStats      observability.EventType = "system.stats"
	EventHealthPing observability.EventType = "system.health.ping"
	EventTaskResult observability.EventType = "system.task.result"
)
