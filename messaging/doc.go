// Package messaging provides the message envelope for inter-agent
// communication over the coordination bus.
//
// Every interaction between agents travels as a Message: task hand-off, task
// results, status heartbeats, coordination directives, alerts, and shared
// data. The envelope carries routing metadata (sender, optional recipient,
// priority) around an opaque content payload owned by the sending subsystem.
//
// # Message Types
//
// The package defines six message types:
//
//   - TaskRequest: carries a task to be enqueued by the recipient
//   - TaskResponse: carries the result of an executed task
//   - StatusUpdate: an agent's periodic status snapshot (heartbeat)
//   - Coordination: control-plane directives (capability exchange, ping,
//     restart, optimize)
//   - Alert: a condition worth surfacing, priority-scaled
//   - DataSharing: analysis artifacts an agent offers to all others
//
// # Addressing
//
// A message with a RecipientID is addressed: the bus delivers it only to
// handlers subscribed under that id. An empty RecipientID marks a broadcast,
// delivered to every subscriber except the sender.
//
// # Construction
//
// Messages are built with a fluent builder that assigns a UUIDv7 id and a
// creation timestamp:
//
//	msg := messaging.NewTaskRequest("system", "executor-1", task).
//	    Priority(8).
//	    RequiresResponse().
//	    Build()
//
//	heartbeat := messaging.NewStatusUpdate("executor-1", status).Build()
//
// Messages are immutable once published; they are passed and retained by
// value, and content payloads must be treated as read-only by receivers.
package messaging
