package bus

import "errors"

// Sentinel errors for bus operations.
var (
	ErrBusClosed       = errors.New("bus is closed")
	ErrInvalidMessage  = errors.New("invalid message")
	ErrEmptyAgentID    = errors.New("agent id is empty")
	ErrNilHandler      = errors.New("handler is nil")
	ErrShutdownTimeout = errors.New("bus shutdown timeout")
)
