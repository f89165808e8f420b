package messaging

import "errors"

// Sentinel errors for envelope validation.
var (
	ErrMissingID     = errors.New("message id is empty")
	ErrMissingSender = errors.New("message sender is empty")
	ErrUnknownType   = errors.New("unknown message type")
	ErrPriorityRange = errors.New("priority out of range")
)
