// Package bus provides the in-process publish/subscribe router connecting
// agents, with a bounded message history for inspection and debugging.
//
// # Delivery Semantics
//
// Messages carry an optional recipient. An addressed message is delivered to
// every handler subscribed under that recipient id and to no one else. A
// broadcast (empty recipient) is delivered to every subscriber except the
// sender. Multiple handlers may subscribe under the same id; all of them are
// invoked.
//
// Each subscription owns a buffered mailbox drained by a dedicated dispatch
// goroutine, so messages addressed to a given id are handled in publish order
// and a slow or faulty handler never blocks the publisher or other
// subscribers. Handler panics are recovered and handler errors are logged
// per-handler; neither reaches the publisher. Handlers may publish from
// inside a delivery.
//
// A full mailbox drops the message rather than blocking the bus: the drop is
// counted, logged, and emitted as an event. Size mailboxes for the expected
// burst rate via Config.MailboxSize.
//
// # History
//
// Every published message is retained in a chronological history capped at
// Config.HistoryCapacity entries; when the cap is exceeded the oldest half is
// trimmed. History and HistoryFor return copies, most-recent-last.
//
// # Usage
//
//	b := bus.New(ctx, bus.DefaultConfig())
//	defer b.Shutdown(5 * time.Second)
//
//	b.Subscribe("executor-1", func(msg messaging.Message) error {
//	    // enqueue work, never block
//	    return nil
//	})
//
//	err := b.Publish(messaging.NewTaskRequest("system", "executor-1", task).Build())
package bus
