// Package mock provides configurable handlers for tests and examples.
package mock

import (
	"context"

	"github.com/ensemble-systems/ensemble/agent"
)

// Handler is a configurable agent.Handler. A nil ProcessFunc succeeds with
// an output echoing the task type.
type Handler struct {
	Caps        []agent.Capability
	ProcessFunc func(ctx context.Context, task agent.Task) (agent.Result, error)
	RestartFunc func(ctx context.Context) error
}

func (h *Handler) Capabilities() []agent.Capability {
	return h.Caps
}

func (h *Handler) ProcessTask(ctx context.Context, task agent.Task) (agent.Result, error) {
	if h.ProcessFunc == nil {
		return agent.Result{Output: map[string]any{"echo": task.Type}}, nil
	}
	return h.ProcessFunc(ctx, task)
}

func (h *Handler) Restart(ctx context.Context) error {
	if h.RestartFunc == nil {
		return nil
	}
	return h.RestartFunc(ctx)
}

// ReceivedResult pairs a task response with its sender.
type ReceivedResult struct {
	From   string
	Result agent.Result
}

// ReceivedCoordination pairs a coordination payload with its sender.
type ReceivedCoordination struct {
	From    string
	Payload agent.CoordinationPayload
}

// ReceivedAlert pairs an alert with its sender.
type ReceivedAlert struct {
	From  string
	Alert agent.Alert
}

// Recorder is a Handler that records peer traffic on buffered channels.
// Sends are non-blocking; traffic beyond a channel's buffer is discarded.
type Recorder struct {
	Handler
	Statuses      chan agent.Status
	Results       chan ReceivedResult
	Coordinations chan ReceivedCoordination
	Alerts        chan ReceivedAlert
}

func NewRecorder(capNames ...string) *Recorder {
	return &Recorder{
		Handler:       Handler{Caps: agent.Capabilities(capNames...)},
		Statuses:      make(chan agent.Status, 16),
		Results:       make(chan ReceivedResult, 16),
		Coordinations: make(chan ReceivedCoordination, 16),
		Alerts:        make(chan ReceivedAlert, 16),
	}
}

func (r *Recorder) ObserveStatus(status agent.Status) {
	select {
	case r.Statuses <- status:
	default:
	}
}

func (r *Recorder) ObserveResult(from string, result agent.Result) {
	select {
	case r.Results <- ReceivedResult{From: from, Result: result}:
	default:
	}
}

func (r *Recorder) ObserveCoordination(from string, payload agent.CoordinationPayload) {
	select {
	case r.Coordinations <- ReceivedCoordination{From: from, Payload: payload}:
	default:
	}
}

func (r *Recorder) ObserveAlert(from string, alert agent.Alert) {
	select {
	case r.Alerts <- ReceivedAlert{From: from, Alert: alert}:
	default:
	}
}
