package coordinator

import "github.com/ensemble-systems/ensemble/observability"

// Coordinator event types emitted during task assignment and management.
const (
	EventAssign   observability.EventType = "coordinator.assign"
	EventNoAgent  observability.EventType = "coordinator.assign.none"
	EventRestart  observability.EventType = "coordinator.restart"
	EventOptimize observability.EventType = "coordinator.optimize"
	EventAlert    observability.EventType = "coordinator.alert"
)
