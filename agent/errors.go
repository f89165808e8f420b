package agent

import "errors"

// Sentinel errors for runtime lifecycle and payload decoding.
var (
	ErrEmptyAgentID     = errors.New("agent id is empty")
	ErrNilHandler       = errors.New("handler is nil")
	ErrNilBus           = errors.New("bus is nil")
	ErrAlreadyRunning   = errors.New("agent is already running")
	ErrStopTimeout      = errors.New("agent stop timeout")
	ErrWrongMessageType = errors.New("unexpected message type")
	ErrMalformedPayload = errors.New("malformed payload")
)
