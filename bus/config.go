package bus

import "log/slog"

const (
	defaultHistoryCapacity = 1000
	defaultMailboxSize     = 256
)

// Config defines construction parameters for a Bus.
type Config struct {
	// HistoryCapacity bounds the retained message history. When the cap is
	// exceeded the history is trimmed to its most recent half.
	HistoryCapacity int `json:"history_capacity,omitempty"`

	// MailboxSize is the buffer size of each subscription's delivery channel.
	MailboxSize int `json:"mailbox_size,omitempty"`

	// Logger receives routing diagnostics. Defaults to slog.Default().
	Logger *slog.Logger `json:"-"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		HistoryCapacity: defaultHistoryCapacity,
		MailboxSize:     defaultMailboxSize,
		Logger:          slog.Default(),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.HistoryCapacity > 0 {
		c.HistoryCapacity = source.HistoryCapacity
	}
	if source.MailboxSize > 0 {
		c.MailboxSize = source.MailboxSize
	}
	if source.Logger != nil {
		c.Logger = source.Logger
	}
}
