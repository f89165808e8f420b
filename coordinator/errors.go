package coordinator

import "errors"

// Sentinel errors for coordinator operations.
var (
	ErrUnknownTaskType = errors.New("unknown coordinator task type")
	ErrUnknownAction   = errors.New("unknown manage action")
	ErrUnknownAgent    = errors.New("agent not registered")
	ErrInvalidPayload  = errors.New("invalid coordinator payload")
)
