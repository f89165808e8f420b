package visual

import "errors"

// ErrUnknownTaskType indicates a task type the visual agent does not handle.
var ErrUnknownTaskType = errors.New("unknown task type")
