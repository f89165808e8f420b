package coordinator

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/ensemble-systems/ensemble/agent"
	"github.com/ensemble-systems/ensemble/messaging"
)

// performanceScore derives an agent's score from its reported completed
// task count. Heartbeats carry a score too, but deriving it here keeps a
// misbehaving agent from inflating its own ranking.
func performanceScore(status agent.Status) float64 {
	return agent.PerformanceScore(status.TasksCompleted)
}

// matchScore is the fraction of required capability names the agent
// offers. No requirements means any agent matches fully.
func matchScore(required []string, offered []agent.Capability) float64 {
	if len(required) == 0 {
		return 1.0
	}
	matched := 0
	for _, name := range required {
		if agent.HasCapability(offered, name) {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

// selectAgent picks the idle, non-stale agent with the highest combined
// score for the required capabilities. Only a strictly greater score
// displaces the current best, so ties keep the lexically first agent id.
func (c *Coordinator) selectAgent(required []string) (string, float64, bool) {
	now := time.Now()
	records := c.registry.snapshot()

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	bestID := ""
	best := 0.0
	for _, id := range ids {
		rec := records[id]
		if rec.Status.State != agent.StateIdle {
			continue
		}
		if now.Sub(rec.LastSeen) > c.staleAfter {
			continue
		}
		score := matchScore(required, rec.Status.Capabilities) * performanceScore(rec.Status)
		if score > best {
			best = score
			bestID = id
		}
	}

	if bestID == "" {
		return "", 0, false
	}
	return bestID, best, true
}

// decodeCoordinate extracts the embedded task and required capability
// names from a coordinate_task payload. The task may arrive as an
// agent.Task or as a bare map carrying type, payload, and priority.
func decodeCoordinate(payload map[string]any) (agent.Task, []string, error) {
	raw, ok := payload["task"]
	if !ok {
		return agent.Task{}, nil, fmt.Errorf("%w: coordinate payload missing task", ErrInvalidPayload)
	}

	var inner agent.Task
	switch v := raw.(type) {
	case agent.Task:
		inner = v
	case map[string]any:
		taskType, _ := v["type"].(string)
		inner = agent.Task{Type: taskType, Payload: payloadMap(v["payload"])}
		if priority, ok := priorityFromAny(v["priority"]); ok {
			inner.Priority = priority
		}
	default:
		return agent.Task{}, nil, fmt.Errorf("%w: task is %T", ErrInvalidPayload, raw)
	}

	if inner.Type == "" {
		return agent.Task{}, nil, fmt.Errorf("%w: task has no type", ErrInvalidPayload)
	}
	if inner.ID == "" {
		norm := agent.NewTask(inner.Type, inner.Payload)
		if inner.Priority > 0 {
			norm.Priority = inner.Priority
		}
		inner = norm
	}

	return inner, requiredFromAny(payload["required_capabilities"]), nil
}

func payloadMap(raw any) map[string]any {
	m, _ := raw.(map[string]any)
	return m
}

func priorityFromAny(raw any) (messaging.Priority, bool) {
	switch v := raw.(type) {
	case messaging.Priority:
		return v, true
	case int:
		return messaging.Priority(v), true
	case float64:
		return messaging.Priority(int(v)), true
	}
	return 0, false
}

func requiredFromAny(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return slices.Clone(v)
	case []agent.Capability:
		return agent.CapabilityNames(v)
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
