package bus

import "github.com/ensemble-systems/ensemble/observability"

// Bus event types emitted during message routing.
const (
	EventPublish      observability.EventType = "bus.publish"
	EventDropped      observability.EventType = "bus.dropped"
	EventHandlerError observability.EventType = "bus.handler.error"
)
