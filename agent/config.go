package agent

import (
	"log/slog"
	"time"
)

const (
	defaultPollInterval      = time.Second
	defaultHeartbeatInterval = 30 * time.Second
	defaultQueueSize         = 64
)

// RuntimeConfig defines construction parameters for a Runtime.
type RuntimeConfig struct {
	// PollInterval paces the worker's fallback sweep of the task queue.
	PollInterval time.Duration `json:"poll_interval,omitempty"`

	// HeartbeatInterval paces status update broadcasts.
	HeartbeatInterval time.Duration `json:"heartbeat_interval,omitempty"`

	// QueueSize bounds the pending task queue. Requests that arrive with
	// the queue full are rejected with a task response.
	QueueSize int `json:"queue_size,omitempty"`

	// Logger receives lifecycle diagnostics. Defaults to slog.Default().
	Logger *slog.Logger `json:"-"`
}

// DefaultRuntimeConfig returns a RuntimeConfig with production defaults.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		PollInterval:      defaultPollInterval,
		HeartbeatInterval: defaultHeartbeatInterval,
		QueueSize:         defaultQueueSize,
		Logger:            slog.Default(),
	}
}

// Merge applies non-zero values from source into c.
func (c *RuntimeConfig) Merge(source *RuntimeConfig) {
	if source.PollInterval > 0 {
		c.PollInterval = source.PollInterval
	}
	if source.HeartbeatInterval > 0 {
		c.HeartbeatInterval = source.HeartbeatInterval
	}
	if source.QueueSize > 0 {
		c.QueueSize = source.QueueSize
	}
	if source.Logger != nil {
		c.Logger = source.Logger
	}
}
