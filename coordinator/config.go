package coordinator

import (
	"log/slog"
	"time"

	"github.com/ensemble-systems/ensemble/agent"
)

const (
	defaultStaleAfter        = 90 * time.Second
	defaultOptimizeThreshold = 0.7

	maxAssignments = 1024
	maxAlerts      = 100
)

// Capability names the coordinator itself advertises.
const (
	CapTaskCoordination = "task_coordination"
	CapAgentManagement  = "agent_management"
)

// Task types the coordinator consumes.
const (
	TaskCoordinate   = "coordinate_task"
	TaskManageAgents = "manage_agents"
	TaskOptimize     = "optimize_performance"
)

// Actions accepted by manage_agents.
const (
	ActionStatus  = "status"
	ActionRestart = "restart_agent"
)

// Config defines construction parameters for a Coordinator.
type Config struct {
	// StaleAfter is how long after its last heartbeat an agent stays
	// assignable. Three missed 30s heartbeats by default.
	StaleAfter time.Duration `json:"stale_after,omitempty"`

	// OptimizeThreshold is the performance score below which
	// optimize_performance sends an agent tuning hints.
	OptimizeThreshold float64 `json:"optimize_threshold,omitempty"`

	// CapabilityMap derives required capability names from a task's type
	// when a coordinate_task carries none. Defaults to DefaultCapabilityMap.
	CapabilityMap map[string][]string `json:"-"`

	// Logger receives coordination diagnostics. Defaults to slog.Default().
	Logger *slog.Logger `json:"-"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		StaleAfter:        defaultStaleAfter,
		OptimizeThreshold: defaultOptimizeThreshold,
		CapabilityMap:     DefaultCapabilityMap(),
		Logger:            slog.Default(),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.StaleAfter > 0 {
		c.StaleAfter = source.StaleAfter
	}
	if source.OptimizeThreshold > 0 {
		c.OptimizeThreshold = source.OptimizeThreshold
	}
	if source.CapabilityMap != nil {
		c.CapabilityMap = source.CapabilityMap
	}
	if source.Logger != nil {
		c.Logger = source.Logger
	}
}

// DefaultCapabilityMap maps the built-in task types to the capability
// names they require.
func DefaultCapabilityMap() map[string][]string {
	return map[string][]string{
		"analyze_interface": {agent.CapScreenshotAnalysis, agent.CapUIOptimization},
		"execute_script":    {agent.CapGeneralTaskExecution},
		"data_processing":   {agent.CapGeneralTaskExecution},
		"file_operation":    {agent.CapGeneralTaskExecution},
		"optimize_ui":       {agent.CapUIOptimization, agent.CapScreenshotAnalysis},
	}
}
