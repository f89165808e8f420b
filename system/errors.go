package system

import "errors"

var (
	// ErrAlreadyStarted is returned by Start on a running system.
	ErrAlreadyStarted = errors.New("system already started")

	// ErrNotStarted is returned by operations that need a running system.
	ErrNotStarted = errors.New("system not started")

	// ErrDuplicateAgent is returned by Register for an id already in use.
	ErrDuplicateAgent = errors.New("agent id already registered")

	// ErrReservedID is returned by Register for the system or coordinator id.
	ErrReservedID = errors.New("agent id is reserved")

	// ErrSubmitTimeout is returned when the coordinator does not answer a
	// request within the submit timeout.
	ErrSubmitTimeout = errors.New("timed out waiting for coordinator response")

	// ErrCoordinationFailed is returned when the coordinator answers a
	// request with an error result.
	ErrCoordinationFailed = errors.New("coordination failed")
)
