// Package executor provides the general-purpose task execution agent.
// Executions are simulated: the handler validates and echoes its inputs
// without touching the host system.
package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ensemble-systems/ensemble/agent"
)

// Task types handled by the executor.
const (
	TaskExecuteScript  = "execute_script"
	TaskDataProcessing = "data_processing"
	TaskFileOperation  = "file_operation"
)

// Handler runs general automation tasks. It is stateless and safe for
// concurrent use.
type Handler struct{}

// New returns an executor handler.
func New() *Handler {
	return &Handler{}
}

func (h *Handler) Capabilities() []agent.Capability {
	return []agent.Capability{
		{
			Name:             agent.CapGeneralTaskExecution,
			Description:      "execute general automation tasks",
			InputTypes:       []string{"task_definition", "parameters"},
			OutputTypes:      []string{"task_result", "execution_log"},
			PerformanceScore: 0.8,
		},
		{
			Name:             agent.CapAutomationTasks,
			Description:      "run scheduled automation workflows",
			InputTypes:       []string{"automation_script", "schedule"},
			OutputTypes:      []string{"automation_result", "status_report"},
			PerformanceScore: 0.9,
		},
	}
}

func (h *Handler) ProcessTask(ctx context.Context, task agent.Task) (agent.Result, error) {
	switch task.Type {
	case TaskExecuteScript:
		return h.executeScript(task)
	case TaskDataProcessing:
		return h.processData(task)
	case TaskFileOperation:
		return h.fileOperation(task)
	default:
		return agent.Result{}, fmt.Errorf("%w: %s", ErrUnknownTaskType, task.Type)
	}
}

func (h *Handler) executeScript(task agent.Task) (agent.Result, error) {
	script, _ := task.Payload["script"].(string)
	if script == "" {
		return agent.Result{}, fmt.Errorf("%w: script", ErrMissingField)
	}
	parameters, _ := task.Payload["parameters"].(map[string]any)

	return agent.Result{Output: map[string]any{
		"output":         fmt.Sprintf("executed %q with %d parameters", script, len(parameters)),
		"execution_time": 0.5,
		"exit_code":      0,
	}}, nil
}

func (h *Handler) processData(task agent.Task) (agent.Result, error) {
	operation, _ := task.Payload["operation"].(string)
	if operation == "" {
		operation = "analyze"
	}
	records := recordsOf(task.Payload["data"])

	switch operation {
	case "analyze":
		return agent.Result{Output: map[string]any{
			"records_processed": len(records),
			"processing_time":   0.3,
			"insights":          analyze(records),
		}}, nil
	case "transform":
		return agent.Result{Output: map[string]any{
			"records_processed": len(records),
			"transformed":       transform(records),
		}}, nil
	default:
		return agent.Result{}, fmt.Errorf("%w: %s", ErrUnknownOperation, operation)
	}
}

func (h *Handler) fileOperation(task agent.Task) (agent.Result, error) {
	operation, _ := task.Payload["operation"].(string)
	path, _ := task.Payload["file_path"].(string)
	if path == "" {
		return agent.Result{}, fmt.Errorf("%w: file_path", ErrMissingField)
	}

	switch operation {
	case "", "read":
		return agent.Result{Output: map[string]any{
			"file_path": path,
			"content":   fmt.Sprintf("contents of %s", path),
			"file_size": 1024,
		}}, nil
	case "write":
		content, _ := task.Payload["content"].(string)
		return agent.Result{Output: map[string]any{
			"file_path":     path,
			"bytes_written": len(content),
		}}, nil
	case "delete":
		return agent.Result{Output: map[string]any{
			"file_path": path,
			"deleted":   true,
		}}, nil
	default:
		return agent.Result{}, fmt.Errorf("%w: %s", ErrUnknownOperation, operation)
	}
}

// recordsOf normalizes the data payload: a list stays a list, a scalar
// becomes a single record, nil means no records.
func recordsOf(data any) []any {
	switch v := data.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}

func analyze(records []any) []string {
	if len(records) == 0 {
		return []string{"no records to analyze"}
	}

	var numeric, text, other int
	for _, r := range records {
		switch r.(type) {
		case int, int64, float64:
			numeric++
		case string:
			text++
		default:
			other++
		}
	}

	insights := []string{fmt.Sprintf("processed %d records", len(records))}
	if numeric > 0 {
		insights = append(insights, fmt.Sprintf("%d numeric records", numeric))
	}
	if text > 0 {
		insights = append(insights, fmt.Sprintf("%d text records", text))
	}
	if other > 0 {
		insights = append(insights, fmt.Sprintf("%d records of other types", other))
	}
	return insights
}

// transform uppercases string records and passes everything else through.
func transform(records []any) []any {
	out := make([]any, len(records))
	for i, r := range records {
		if s, ok := r.(string); ok {
			out[i] = strings.ToUpper(s)
		} else {
			out[i] = r
		}
	}
	return out
}
