package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ensemble-systems/ensemble/messaging"
	"github.com/ensemble-systems/ensemble/observability"
)

// Handler consumes a delivered message. Handlers run on their subscription's
// dispatch goroutine: returning an error records and logs it, panicking is
// recovered, and long work must be handed off rather than block the mailbox.
type Handler func(msg messaging.Message) error

type subscription struct {
	agentID string
	handler Handler
	mailbox chan messaging.Message
}

// Bus routes messages between agents and retains a bounded history.
// All methods are safe for concurrent use.
type Bus struct {
	subscribers map[string][]*subscription
	history     []messaging.Message
	closed      bool
	mu          sync.RWMutex

	historyCapacity int
	mailboxSize     int

	logger   *slog.Logger
	observer observability.Observer
	metrics  *Metrics

	ctx context.Context
	wg  sync.WaitGroup
}

// Option configures a Bus after config-driven initialization.
type Option func(*Bus)

// WithObserver sets the observer receiving bus events. Defaults to NoOp.
func WithObserver(o observability.Observer) Option {
	return func(b *Bus) { b.observer = o }
}

// New creates a Bus from configuration. The context is used for logging and
// event emission; it does not stop the bus — call Shutdown for that.
func New(ctx context.Context, cfg Config, opts ...Option) *Bus {
	def := DefaultConfig()
	def.Merge(&cfg)

	b := &Bus{
		subscribers:     make(map[string][]*subscription),
		historyCapacity: def.HistoryCapacity,
		mailboxSize:     def.MailboxSize,
		logger:          def.Logger,
		observer:        observability.NoOpObserver{},
		metrics:         NewMetrics(),
		ctx:             ctx,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe registers a handler for messages addressed to agentID and for
// broadcasts from other agents. Multiple handlers per id are allowed; each
// gets its own mailbox and dispatch goroutine.
func (b *Bus) Subscribe(agentID string, handler Handler) error {
	if agentID == "" {
		return ErrEmptyAgentID
	}
	if handler == nil {
		return ErrNilHandler
	}

	sub := &subscription{
		agentID: agentID,
		handler: handler,
		mailbox: make(chan messaging.Message, b.mailboxSize),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.subscribers[agentID] = append(b.subscribers[agentID], sub)
	b.wg.Add(1)
	b.mu.Unlock()

	go b.dispatch(sub)

	b.metrics.RecordSubscription(1)
	b.logger.DebugContext(
		b.ctx,
		"subscribed",
		slog.String("agent_id", agentID),
	)

	return nil
}

// Publish appends the message to history and enqueues it to the recipient's
// mailboxes, or to every other subscriber's mailboxes when broadcast. A full
// mailbox drops the message. The error reports only envelope or lifecycle
// problems; delivering to an id with no subscribers is not an error.
func (b *Bus) Publish(msg messaging.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}

	b.history = append(b.history, msg)
	if len(b.history) > b.historyCapacity {
		keep := b.historyCapacity / 2
		trimmed := make([]messaging.Message, keep)
		copy(trimmed, b.history[len(b.history)-keep:])
		b.history = trimmed
	}

	var targets []*subscription
	if msg.IsBroadcast() {
		for agentID, subs := range b.subscribers {
			if agentID == msg.SenderID {
				continue
			}
			targets = append(targets, subs...)
		}
	} else {
		targets = b.subscribers[msg.RecipientID]
	}

	// Enqueue under the lock so per-recipient delivery order matches
	// history order even with concurrent publishers.
	delivered := 0
	var droppedFrom []string
	for _, sub := range targets {
		select {
		case sub.mailbox <- msg:
			delivered++
		default:
			droppedFrom = append(droppedFrom, sub.agentID)
		}
	}
	b.mu.Unlock()

	b.metrics.RecordPublished(1)
	b.metrics.RecordDelivered(delivered)
	if msg.IsBroadcast() {
		b.metrics.RecordBroadcast(1)
	}

	for _, agentID := range droppedFrom {
		b.metrics.RecordDropped(1)
		b.logger.WarnContext(
			b.ctx,
			"mailbox full, message dropped",
			slog.String("agent_id", agentID),
			slog.String("message_id", msg.ID),
			slog.String("type", string(msg.Type)),
		)
		b.observer.OnEvent(b.ctx, observability.Event{
			Type:      EventDropped,
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "bus",
			Data: map[string]any{
				"agent_id":   agentID,
				"message_id": msg.ID,
				"type":       string(msg.Type),
			},
		})
	}

	b.observer.OnEvent(b.ctx, observability.Event{
		Type:      EventPublish,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "bus",
		Data: map[string]any{
			"message_id": msg.ID,
			"type":       string(msg.Type),
			"from":       msg.SenderID,
			"to":         msg.RecipientID,
			"delivered":  delivered,
		},
	})

	return nil
}

// History returns a copy of the retained messages, most-recent-last.
func (b *Bus) History() []messaging.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]messaging.Message, len(b.history))
	copy(out, b.history)
	return out
}

// HistoryFor returns the retained messages sent by or addressed to agentID,
// most-recent-last. Broadcasts match only their sender.
func (b *Bus) HistoryFor(agentID string) []messaging.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []messaging.Message
	for _, msg := range b.history {
		if msg.Involves(agentID) {
			out = append(out, msg)
		}
	}
	return out
}

func (b *Bus) Metrics() MetricsSnapshot {
	return b.metrics.Snapshot()
}

// Shutdown stops intake, closes all mailboxes, and waits for in-flight
// dispatch to drain. Idempotent.
func (b *Bus) Shutdown(timeout time.Duration) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			close(sub.mailbox)
		}
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.DebugContext(b.ctx, "bus shut down")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w after %v", ErrShutdownTimeout, timeout)
	}
}

func (b *Bus) dispatch(sub *subscription) {
	defer b.wg.Done()

	for msg := range sub.mailbox {
		b.deliver(sub, msg)
	}
}

func (b *Bus) deliver(sub *subscription, msg messaging.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.RecordHandlerError(1)
			b.logger.ErrorContext(
				b.ctx,
				"message handler panic",
				slog.String("agent_id", sub.agentID),
				slog.String("message_id", msg.ID),
				slog.Any("panic", r),
			)
			b.observer.OnEvent(b.ctx, observability.Event{
				Type:      EventHandlerError,
				Level:     observability.LevelError,
				Timestamp: time.Now(),
				Source:    "bus",
				Data: map[string]any{
					"agent_id":   sub.agentID,
					"message_id": msg.ID,
					"panic":      fmt.Sprint(r),
				},
			})
		}
	}()

	if err := sub.handler(msg); err != nil {
		b.metrics.RecordHandlerError(1)
		b.logger.ErrorContext(
			b.ctx,
			"message handler failed",
			slog.String("agent_id", sub.agentID),
			slog.String("message_id", msg.ID),
			slog.String("type", string(msg.Type)),
			slog.String("error", err.Error()),
		)
		b.observer.OnEvent(b.ctx, observability.Event{
			Type:      EventHandlerError,
			Level:     observability.LevelError,
			Timestamp: time.Now(),
			Source:    "bus",
			Data: map[string]any{
				"agent_id":   sub.agentID,
				"message_id": msg.ID,
				"error":      err.Error(),
			},
		})
	}
}
