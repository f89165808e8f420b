package system

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ensemble-systems/ensemble/agent"
	"github.com/ensemble-systems/ensemble/bus"
	"github.com/ensemble-systems/ensemble/coordinator"
	"github.com/ensemble-systems/ensemble/store"
)

const (
	defaultSystemID        = "system"
	defaultCoordinatorID   = "coordinator"
	defaultSubmitTimeout   = 10 * time.Second
	defaultResultTTL       = 5 * time.Minute
	defaultMonitorInterval = 10 * time.Second
	defaultStatsInterval   = time.Minute
	defaultHealthTimeout   = 5 * time.Minute
)

// Config holds initialization parameters for all system subsystems.
// Each subsystem section delegates to that subsystem's config type.
type Config struct {
	// SystemID is the bus identity used for submissions and result delivery.
	SystemID string `json:"system_id,omitempty"`
	// CoordinatorID is the bus identity of the coordinator agent.
	CoordinatorID string `json:"coordinator_id,omitempty"`

	Bus         bus.Config          `json:"bus"`
	Runtime     agent.RuntimeConfig `json:"runtime"`
	Coordinator coordinator.Config  `json:"coordinator"`
	Store       store.Config        `json:"store"`

	// SubmitTimeout bounds the wait for a coordinator response.
	SubmitTimeout time.Duration `json:"submit_timeout,omitempty"`
	// ResultTTL bounds how long unclaimed task results are retained.
	ResultTTL time.Duration `json:"result_ttl,omitempty"`
	// MonitorInterval is the health check and pruning cadence.
	MonitorInterval time.Duration `json:"monitor_interval,omitempty"`
	// StatsInterval is the stats reporting cadence.
	StatsInterval time.Duration `json:"stats_interval,omitempty"`
	// HealthTimeout is the registry inactivity span that triggers a ping.
	HealthTimeout time.Duration `json:"health_timeout,omitempty"`

	Logger *slog.Logger `json:"-"`
}

// DefaultConfig returns a Config with production defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		SystemID:        defaultSystemID,
		CoordinatorID:   defaultCoordinatorID,
		Bus:             bus.DefaultConfig(),
		Runtime:         agent.DefaultRuntimeConfig(),
		Coordinator:     coordinator.DefaultConfig(),
		Store:           store.DefaultConfig(),
		SubmitTimeout:   defaultSubmitTimeout,
		ResultTTL:       defaultResultTTL,
		MonitorInterval: defaultMonitorInterval,
		StatsInterval:   defaultStatsInterval,
		HealthTimeout:   defaultHealthTimeout,
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Bus.Merge(&source.Bus)
	c.Runtime.Merge(&source.Runtime)
	c.Coordinator.Merge(&source.Coordinator)
	c.Store.Merge(&source.Store)

	if source.SystemID != "" {
		c.SystemID = source.SystemID
	}
	if source.CoordinatorID != "" {
		c.CoordinatorID = source.CoordinatorID
	}
	if source.SubmitTimeout > 0 {
		c.SubmitTimeout = source.SubmitTimeout
	}
	if source.ResultTTL > 0 {
		c.ResultTTL = source.ResultTTL
	}
	if source.MonitorInterval > 0 {
		c.MonitorInterval = source.MonitorInterval
	}
	if source.StatsInterval > 0 {
		c.StatsInterval = source.StatsInterval
	}
	if source.HealthTimeout > 0 {
		c.HealthTimeout = source.HealthTimeout
	}
	if source.Logger != nil {
		c.Logger = source.Logger
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
