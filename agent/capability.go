package agent

// Well-known capability names. Matching is by name; agents may declare
// capabilities beyond this set.
const (
	CapGeneralTaskExecution = "general_task_execution"
	CapAutomationTasks      = "automation_tasks"
	CapScreenshotAnalysis   = "screenshot_analysis"
	CapUIOptimization       = "ui_optimization"
)

// Capability declares one skill an agent offers: the data it consumes and
// produces plus a self-assessed performance score. The score is
// informational; assignment uses the agent-level score derived from
// completed tasks. Declared once at construction and never mutated.
type Capability struct {
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	InputTypes       []string `json:"input_types,omitempty"`
	OutputTypes      []string `json:"output_types,omitempty"`
	PerformanceScore float64  `json:"performance_score,omitempty"`
}

// Capabilities builds a bare capability set from names. Specialized agents
// declare full records; tests and ad-hoc handlers start from this.
func Capabilities(names ...string) []Capability {
	caps := make([]Capability, len(names))
	for i, name := range names {
		caps[i] = Capability{Name: name}
	}
	return caps
}

// CapabilityNames returns the names in caps, in declaration order.
func CapabilityNames(caps []Capability) []string {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.Name
	}
	return names
}

// HasCapability reports whether caps contains a capability named name.
func HasCapability(caps []Capability, name string) bool {
	for _, c := range caps {
		if c.Name == name {
			return true
		}
	}
	return false
}
