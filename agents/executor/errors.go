package executor

import "errors"

var (
	// ErrUnknownTaskType indicates a task type the executor does not handle.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrUnknownOperation indicates an unsupported operation within a task.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrMissingField indicates a required payload field is absent or empty.
	ErrMissingField = errors.New("missing payload field")
)
