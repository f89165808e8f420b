package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ensemble-systems/ensemble/bus"
	"github.com/ensemble-systems/ensemble/messaging"
	"github.com/ensemble-systems/ensemble/observability"
)

// Runtime hosts a Handler on a message bus. It owns the agent's bus
// subscription, task queue, worker goroutine, and heartbeat.
type Runtime struct {
	id        string
	agentType string
	handler   Handler
	bus       *bus.Bus

	pollInterval      time.Duration
	heartbeatInterval time.Duration

	logger   *slog.Logger
	observer observability.Observer

	tasks chan Task

	mu             sync.RWMutex
	running        bool
	state          State
	currentTaskID  string
	startedAt      time.Time
	lastActivity   time.Time
	tasksCompleted int64
	tasksFailed    int64
	ctx            context.Context
	cancel         context.CancelFunc

	wg sync.WaitGroup
}

// Option configures a Runtime after config-driven initialization.
type Option func(*Runtime)

// WithObserver sets the observer receiving runtime events. Defaults to NoOp.
func WithObserver(o observability.Observer) Option {
	return func(r *Runtime) { r.observer = o }
}

// NewRuntime creates a Runtime hosting the given handler as one agent of
// the given type, and subscribes it to the bus. Messages delivered before
// Start are dropped.
func NewRuntime(id, agentType string, handler Handler, b *bus.Bus, cfg RuntimeConfig, opts ...Option) (*Runtime, error) {
	if id == "" {
		return nil, ErrEmptyAgentID
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	if b == nil {
		return nil, ErrNilBus
	}

	def := DefaultRuntimeConfig()
	def.Merge(&cfg)

	r := &Runtime{
		id:                id,
		agentType:         agentType,
		handler:           handler,
		bus:               b,
		pollInterval:      def.PollInterval,
		heartbeatInterval: def.HeartbeatInterval,
		logger:            def.Logger,
		observer:          observability.NoOpObserver{},
		tasks:             make(chan Task, def.QueueSize),
		state:             StateIdle,
	}

	for _, opt := range opts {
		opt(r)
	}

	if err := b.Subscribe(id, r.receive); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", id, err)
	}

	return r, nil
}

func (r *Runtime) ID() string {
	return r.id
}

// Start launches the worker goroutine and announces the agent with an
// immediate status broadcast.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, r.id)
	}
	ctx, cancel := context.WithCancel(ctx)
	r.running = true
	r.state = StateIdle
	r.startedAt = time.Now()
	r.lastActivity = time.Now()
	r.ctx = ctx
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)

	r.logger.InfoContext(ctx, "agent started",
		slog.String("agent_id", r.id),
		slog.String("agent_type", r.agentType),
	)
	r.observer.OnEvent(ctx, observability.Event{
		Type:      EventStart,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    r.id,
		Data: map[string]any{
			"agent_type":   r.agentType,
			"capabilities": CapabilityNames(r.handler.Capabilities()),
		},
	})

	r.publishStatus(ctx)
	return nil
}

// Stop cancels the worker and waits for it to finish the task in flight.
// The bus subscription stays in place; delivered messages are dropped
// until a subsequent Start. Idempotent.
func (r *Runtime) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return fmt.Errorf("%w after %v", ErrStopTimeout, timeout)
	}

	r.logger.Info("agent stopped", slog.String("agent_id", r.id))
	r.observer.OnEvent(context.Background(), observability.Event{
		Type:      EventStop,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    r.id,
	})
	return nil
}

// Restart drops queued tasks and clears a leftover error state without
// touching the bus subscription or counters. A busy worker keeps its
// in-flight task. Handlers implementing Restarter are notified.
func (r *Runtime) Restart(ctx context.Context) error {
	drained := 0
drain:
	for {
		select {
		case <-r.tasks:
			drained++
		default:
			break drain
		}
	}

	r.clearError()

	if restarter, ok := r.handler.(Restarter); ok {
		if err := restarter.Restart(ctx); err != nil {
			return fmt.Errorf("restart %s: %w", r.id, err)
		}
	}

	r.logger.InfoContext(ctx, "agent restarted",
		slog.String("agent_id", r.id),
		slog.Int("dropped_tasks", drained),
	)
	r.observer.OnEvent(ctx, observability.Event{
		Type:      EventRestart,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    r.id,
		Data: map[string]any{
			"dropped_tasks": drained,
		},
	})

	r.publishStatus(ctx)
	return nil
}

// Status returns a point-in-time snapshot of the agent. The performance
// score is derived from the completed task count.
func (r *Runtime) Status() Status {
	r.mu.RLock()
	state := r.state
	currentTaskID := r.currentTaskID
	running := r.running
	startedAt := r.startedAt
	lastActivity := r.lastActivity
	completed := r.tasksCompleted
	failed := r.tasksFailed
	r.mu.RUnlock()

	var uptime time.Duration
	if running {
		uptime = time.Since(startedAt)
	}

	return Status{
		AgentID:          r.id,
		AgentType:        r.agentType,
		State:            state,
		CurrentTaskID:    currentTaskID,
		Capabilities:     slices.Clone(r.handler.Capabilities()),
		QueueDepth:       len(r.tasks),
		TasksCompleted:   completed,
		TasksFailed:      failed,
		PerformanceScore: PerformanceScore(completed),
		Uptime:           uptime,
		LastActivity:     lastActivity,
	}
}

func (r *Runtime) run(ctx context.Context) {
	defer r.wg.Done()

	poll := time.NewTicker(r.pollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(r.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-r.tasks:
			r.execute(ctx, task)
		case <-heartbeat.C:
			r.publishStatus(ctx)
		case <-poll.C:
			r.clearError()
			select {
			case task := <-r.tasks:
				r.execute(ctx, task)
			default:
			}
		}
	}
}

func (r *Runtime) execute(ctx context.Context, task Task) {
	// State and the current task id move together so a status snapshot
	// never shows busy without a task or a task without busy.
	r.mu.Lock()
	r.state = StateBusy
	r.currentTaskID = task.ID
	r.lastActivity = time.Now()
	r.mu.Unlock()

	r.observer.OnEvent(ctx, observability.Event{
		Type:      EventTaskStart,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    r.id,
		Data: map[string]any{
			"task_id":   task.ID,
			"task_type": task.Type,
		},
	})

	start := time.Now()
	result, err := r.process(ctx, task)
	duration := time.Since(start)

	if err != nil {
		// The error state stays visible until the next poll tick.
		r.mu.Lock()
		r.tasksFailed++
		r.state = StateError
		r.currentTaskID = ""
		r.lastActivity = time.Now()
		r.mu.Unlock()

		result = Result{Status: ResultError, Error: err.Error()}
		r.logger.ErrorContext(ctx, "task failed",
			slog.String("agent_id", r.id),
			slog.String("task_id", task.ID),
			slog.String("task_type", task.Type),
			slog.String("error", err.Error()),
		)
		r.observer.OnEvent(ctx, observability.Event{
			Type:      EventTaskFailed,
			Level:     observability.LevelError,
			Timestamp: time.Now(),
			Source:    r.id,
			Data: map[string]any{
				"task_id":   task.ID,
				"task_type": task.Type,
				"error":     err.Error(),
			},
		})
	} else {
		r.mu.Lock()
		r.tasksCompleted++
		r.state = StateIdle
		r.currentTaskID = ""
		r.lastActivity = time.Now()
		r.mu.Unlock()

		result.Status = ResultCompleted
		r.logger.DebugContext(ctx, "task complete",
			slog.String("agent_id", r.id),
			slog.String("task_id", task.ID),
			slog.String("task_type", task.Type),
			slog.Duration("duration", duration),
		)
		r.observer.OnEvent(ctx, observability.Event{
			Type:      EventTaskComplete,
			Level:     observability.LevelVerbose,
			Timestamp: time.Now(),
			Source:    r.id,
			Data: map[string]any{
				"task_id":   task.ID,
				"task_type": task.Type,
			},
		})
	}

	result.TaskID = task.ID
	if result.TaskType == "" {
		result.TaskType = task.Type
	}
	result.AgentID = r.id
	result.Duration = duration
	result.CompletedAt = time.Now()

	if task.Requester != "" && task.Requester != r.id {
		r.respond(ctx, task.Requester, result)
	}

	if err == nil {
		if result.Share != nil {
			if perr := r.bus.Publish(messaging.NewDataSharing(r.id, result.Share).Build()); perr != nil {
				r.logger.WarnContext(ctx, "shared data not published",
					slog.String("agent_id", r.id),
					slog.String("error", perr.Error()),
				)
			}
		}
		for _, alert := range result.Alerts {
			builder := messaging.NewAlert(r.id, alert)
			if alert.Severity > 0 {
				builder.Priority(alert.Severity)
			}
			if perr := r.bus.Publish(builder.Build()); perr != nil {
				r.logger.WarnContext(ctx, "alert not published",
					slog.String("agent_id", r.id),
					slog.String("error", perr.Error()),
				)
			}
		}
	}
}

// process shields the worker from handler panics.
func (r *Runtime) process(ctx context.Context, task Task) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task handler panic: %v", rec)
		}
	}()
	return r.handler.ProcessTask(ctx, task)
}

// clearError returns an errored agent to idle and refreshes the activity
// stamp. Called on every poll tick, so a failed cycle is visible for at
// most one interval.
func (r *Runtime) clearError() {
	r.mu.Lock()
	if r.state == StateError {
		r.state = StateIdle
	}
	r.lastActivity = time.Now()
	r.mu.Unlock()
}

// receive is the bus handler. It runs on the subscription's dispatch
// goroutine and must stay non-blocking: tasks are queued, not executed.
func (r *Runtime) receive(msg messaging.Message) error {
	r.mu.RLock()
	running := r.running
	ctx := r.ctx
	r.mu.RUnlock()

	if !running {
		return nil
	}

	switch msg.Type {
	case messaging.MessageTypeTaskRequest:
		return r.acceptTask(ctx, msg)

	case messaging.MessageTypeStatusUpdate:
		observer, ok := r.handler.(StatusObserver)
		if !ok {
			return nil
		}
		status, err := StatusFromMessage(msg)
		if err != nil {
			return err
		}
		observer.ObserveStatus(status)
		return nil

	case messaging.MessageTypeCoordination:
		return r.coordinate(ctx, msg)

	case messaging.MessageTypeTaskResponse:
		result, err := ResultFromMessage(msg)
		if err != nil {
			return err
		}
		if observer, ok := r.handler.(ResultObserver); ok {
			observer.ObserveResult(msg.SenderID, result)
			return nil
		}
		r.logger.DebugContext(ctx, "task response received",
			slog.String("agent_id", r.id),
			slog.String("from", msg.SenderID),
			slog.String("task_id", result.TaskID),
			slog.String("status", string(result.Status)),
		)
		return nil

	case messaging.MessageTypeAlert:
		alert, err := AlertFromMessage(msg)
		if err != nil {
			return err
		}
		if observer, ok := r.handler.(AlertObserver); ok {
			observer.ObserveAlert(msg.SenderID, alert)
			return nil
		}
		level := slog.LevelInfo
		if msg.Priority >= messaging.PriorityHigh {
			level = slog.LevelWarn
		}
		r.logger.Log(ctx, level, "alert received",
			slog.String("agent_id", r.id),
			slog.String("from", msg.SenderID),
			slog.String("kind", alert.Kind),
		)
		return nil

	case messaging.MessageTypeDataSharing:
		r.logger.DebugContext(ctx, "shared data received",
			slog.String("agent_id", r.id),
			slog.String("from", msg.SenderID),
		)
		return nil
	}

	return nil
}

func (r *Runtime) acceptTask(ctx context.Context, msg messaging.Message) error {
	task, err := TaskFromMessage(msg)
	if err != nil {
		return err
	}
	task.Requester = msg.SenderID

	select {
	case r.tasks <- task:
		r.logger.DebugContext(ctx, "task queued",
			slog.String("agent_id", r.id),
			slog.String("task_id", task.ID),
			slog.String("task_type", task.Type),
		)
		return nil
	default:
	}

	// Queue full: reject rather than block the dispatch goroutine.
	r.logger.WarnContext(ctx, "task queue full, rejecting",
		slog.String("agent_id", r.id),
		slog.String("task_id", task.ID),
	)
	r.observer.OnEvent(ctx, observability.Event{
		Type:      EventTaskRejected,
		Level:     observability.LevelWarning,
		Timestamp: time.Now(),
		Source:    r.id,
		Data: map[string]any{
			"task_id":   task.ID,
			"task_type": task.Type,
		},
	})
	r.respond(ctx, msg.SenderID, Result{
		TaskID:      task.ID,
		TaskType:    task.Type,
		AgentID:     r.id,
		Status:      ResultRejected,
		Error:       "task queue full",
		CompletedAt: time.Now(),
	})
	return nil
}

func (r *Runtime) coordinate(ctx context.Context, msg messaging.Message) error {
	payload, err := CoordinationFromMessage(msg)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case Ping:
		r.logger.DebugContext(ctx, "health ping",
			slog.String("agent_id", r.id),
			slog.String("from", msg.SenderID),
		)
		r.publishStatus(ctx)
		return nil
	case Restart:
		return r.Restart(ctx)
	case CapabilityRequest:
		return r.answerCapabilities(ctx, msg.SenderID, p)
	}

	if observer, ok := r.handler.(CoordinationObserver); ok {
		observer.ObserveCoordination(msg.SenderID, payload)
	}
	return nil
}

func (r *Runtime) answerCapabilities(ctx context.Context, to string, req CapabilityRequest) error {
	offered := r.handler.Capabilities()
	accept := len(req.Required) > 0
	for _, name := range req.Required {
		if !HasCapability(offered, name) {
			accept = false
			break
		}
	}

	response := CapabilityResponse{
		TaskID:  req.TaskID,
		Offered: slices.Clone(offered),
		Accept:  accept,
	}
	if err := r.bus.Publish(messaging.NewCoordination(r.id, to, response).Build()); err != nil {
		return fmt.Errorf("capability response: %w", err)
	}

	r.logger.DebugContext(ctx, "capability request answered",
		slog.String("agent_id", r.id),
		slog.String("to", to),
		slog.Bool("accept", accept),
	)
	return nil
}

func (r *Runtime) respond(ctx context.Context, to string, result Result) {
	msg := messaging.NewTaskResponse(r.id, to, result).Build()
	if err := r.bus.Publish(msg); err != nil {
		r.logger.WarnContext(ctx, "task response not published",
			slog.String("agent_id", r.id),
			slog.String("task_id", result.TaskID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Runtime) publishStatus(ctx context.Context) {
	status := r.Status()
	if err := r.bus.Publish(messaging.NewStatusUpdate(r.id, status).Build()); err != nil {
		r.logger.WarnContext(ctx, "status update not published",
			slog.String("agent_id", r.id),
			slog.String("error", err.Error()),
		)
		return
	}
	r.observer.OnEvent(ctx, observability.Event{
		Type:      EventHeartbeat,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    r.id,
		Data: map[string]any{
			"state":           string(status.State),
			"queue_depth":     status.QueueDepth,
			"tasks_completed": status.TasksCompleted,
		},
	})
}
