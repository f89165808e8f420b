package agent

import "context"

// Handler is the behavior an agent contributes: a capability set and a
// task processor. ProcessTask runs on the runtime's worker goroutine, one
// task at a time. Returning an error marks the task failed; the error text
// is reported to the requester in the task response.
type Handler interface {
	Capabilities() []Capability
	ProcessTask(ctx context.Context, task Task) (Result, error)
}

// StatusObserver is implemented by handlers that want peer status updates.
// The runtime feeds it every valid heartbeat from other agents.
type StatusObserver interface {
	ObserveStatus(status Status)
}

// ResultObserver is implemented by handlers that want peer task responses,
// such as a coordinator tracking the tasks it assigned.
type ResultObserver interface {
	ObserveResult(from string, result Result)
}

// CoordinationObserver is implemented by handlers that consume coordination
// payloads beyond the ones the runtime answers itself.
type CoordinationObserver interface {
	ObserveCoordination(from string, payload CoordinationPayload)
}

// AlertObserver is implemented by handlers that want alert broadcasts.
type AlertObserver interface {
	ObserveAlert(from string, alert Alert)
}

// Restarter is implemented by handlers that hold state worth resetting
// when their runtime is restarted.
type Restarter interface {
	Restart(ctx context.Context) error
}
