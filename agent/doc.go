// Package agent defines the contracts agents implement and the Runtime that
// hosts them on a message bus.
//
// # Contracts
//
// A Handler is the unit of agent behavior: it declares Capabilities and
// processes one Task at a time. Optional extension interfaces add behavior
// without widening the core contract. A Handler that implements
// StatusObserver is fed peer heartbeats, a ResultObserver sees peer task
// responses, a CoordinationObserver receives coordination payloads the
// runtime does not consume itself, an AlertObserver receives alert
// broadcasts, and a Restarter is notified when its runtime is restarted.
//
// # Runtime
//
// Runtime wires a Handler to a bus subscription and runs its lifecycle:
// a worker goroutine drains the task queue, flips the agent between idle
// and busy, publishes a status heartbeat on an interval, and answers
// protocol-level coordination (ping, restart, capability requests) on the
// handler's behalf. Task failures are reported in the task response and
// leave the agent in the error state until the next poll tick returns it
// to idle; the agent itself stays operational.
//
//	runtime, err := agent.NewRuntime("executor-1", "task_executor", handler, b, agent.RuntimeConfig{})
//	if err != nil {
//		...
//	}
//	if err := runtime.Start(ctx); err != nil {
//		...
//	}
//	defer runtime.Stop(5 * time.Second)
package agent
