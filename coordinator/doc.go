// Package coordinator implements the agent that assigns work across the
// ensemble.
//
// The Coordinator is an agent.Handler hosted on a regular runtime. It
// builds a registry of peer agents from their status heartbeats, scores
// idle agents against a task's required capabilities, and assigns each
// task to the best-scoring agent with a task_request. Task responses
// flowing back mark the assignment settled and are forwarded to the
// original requester.
//
// # Scoring
//
// A candidate's score is the fraction of required capabilities it offers
// multiplied by its performance score. Performance starts at 1.0 for an
// agent with no completed tasks and otherwise grows from 0.5 by 0.01 per
// completed task, capped at 1.0. Agents that are not idle, or whose last
// heartbeat is older than the staleness window, are not considered.
//
// # Operations
//
// The coordinator consumes three task types: coordinate_task assigns an
// embedded task, manage_agents reports or restarts registered agents, and
// optimize_performance sends tuning hints to agents scoring below the
// optimization threshold.
package coordinator
