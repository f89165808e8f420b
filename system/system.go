// Package system composes the bus, the coordinator, and registered agent
// runtimes into a running multi-agent ensemble.
//
// The system initializes from configuration via New, creating all subsystems
// internally. Functional options allow overrides of the logger, observer,
// and result store.
//
//	sys, err := system.New(cfg)
//	sys.Register("executor-1", "task_executor", executor.New())
//	sys.Start(ctx)
//	submission, err := sys.SubmitTask(ctx, "execute_script", payload, messaging.PriorityNormal)
//	result, err := sys.AwaitResult(ctx, submission.TaskID)
package system

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ensemble-systems/ensemble/agent"
	"github.com/ensemble-systems/ensemble/bus"
	"github.com/ensemble-systems/ensemble/coordinator"
	"github.com/ensemble-systems/ensemble/messaging"
	"github.com/ensemble-systems/ensemble/observability"
	"github.com/ensemble-systems/ensemble/store"
)

// Submission describes the coordinator's routing decision for a task.
type Submission struct {
	TaskID   string  `json:"task_id"`
	Assigned bool    `json:"assigned"`
	AgentID  string  `json:"agent_id,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

type pendingResult struct {
	result agent.Result
	at     time.Time
}

// Option configures a System after config-driven initialization.
type Option func(*System)

// WithLogger overrides the config-provided logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *System) { s.logger = logger }
}

// WithObserver overrides the default slog-backed observer.
func WithObserver(o observability.Observer) Option {
	return func(s *System) { s.observer = o }
}

// WithStore overrides the config-created result store. Passing nil disables
// result persistence.
func WithStore(st store.Store) Option {
	return func(s *System) {
		s.store = st
		s.storeSet = true
	}
}

// System is the composition root owning the bus, the coordinator runtime,
// and every registered agent runtime.
type System struct {
	id            string
	coordinatorID string
	cfg           Config
	logger        *slog.Logger
	observer      observability.Observer

	bus          *bus.Bus
	coordinator  *coordinator.Coordinator
	coordRuntime *agent.Runtime
	store        store.Store
	storeSet     bool
	cache        *store.Cache

	mu        sync.Mutex
	runtimes  map[string]*agent.Runtime
	order     []string
	running   bool
	startedAt time.Time
	waiters   map[string]chan agent.Result
	unclaimed map[string]pendingResult

	tasksSubmitted  atomic.Int64
	resultsReceived atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a System from configuration. The bus, coordinator, and result
// store are initialized from their config sections; agents are added with
// Register before Start.
func New(cfg Config, opts ...Option) (*System, error) {
	resolved := DefaultConfig()
	resolved.Merge(&cfg)

	s := &System{
		id:            resolved.SystemID,
		coordinatorID: resolved.CoordinatorID,
		cfg:           resolved,
		logger:        resolved.Logger,
		runtimes:      make(map[string]*agent.Runtime),
		waiters:       make(map[string]chan agent.Result),
		unclaimed:     make(map[string]pendingResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.observer == nil {
		s.observer = observability.NewSlogObserver(s.logger)
	}

	if !s.storeSet {
		st, err := store.NewStore(&resolved.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to create result store: %w", err)
		}
		s.store = st
	}
	if s.store != nil {
		s.cache = store.NewCache(s.store)
	}

	// Subsystem loggers default to the system logger.
	if s.cfg.Bus.Logger == nil {
		s.cfg.Bus.Logger = s.logger
	}
	if s.cfg.Runtime.Logger == nil {
		s.cfg.Runtime.Logger = s.logger
	}
	if s.cfg.Coordinator.Logger == nil {
		s.cfg.Coordinator.Logger = s.logger
	}

	s.bus = bus.New(context.Background(), s.cfg.Bus, bus.WithObserver(s.observer))

	coord, err := coordinator.New(s.coordinatorID, s.bus, s.cfg.Coordinator, coordinator.WithObserver(s.observer))
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}
	s.coordinator = coord

	coordRuntime, err := agent.NewRuntime(s.coordinatorID, "coordinator", coord, s.bus, s.cfg.Runtime, agent.WithObserver(s.observer))
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator runtime: %w", err)
	}
	s.coordRuntime = coordRuntime

	if err := s.bus.Subscribe(s.id, s.receive); err != nil {
		return nil, fmt.Errorf("failed to subscribe system: %w", err)
	}

	return s, nil
}

// ID returns the system's bus identity.
func (s *System) ID() string {
	return s.id
}

// Coordinator returns the coordinator for registry and assignment inspection.
func (s *System) Coordinator() *coordinator.Coordinator {
	return s.coordinator
}

// Register adds an agent specialization under the given id and type. Agents
// must be registered before Start.
func (s *System) Register(id, agentType string, handler agent.Handler) error {
	if id == s.id || id == s.coordinatorID {
		return fmt.Errorf("%w: %s", ErrReservedID, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyStarted
	}
	if _, exists := s.runtimes[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, id)
	}

	runtime, err := agent.NewRuntime(id, agentType, handler, s.bus, s.cfg.Runtime, agent.WithObserver(s.observer))
	if err != nil {
		return fmt.Errorf("failed to create runtime %s: %w", id, err)
	}

	s.runtimes[id] = runtime
	s.order = append(s.order, id)
	return nil
}

// Start brings up the coordinator, every registered agent, and the monitor
// loop. A failed agent start rolls back the agents already started.
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.running = true
	s.startedAt = time.Now()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	runtimes := make([]*agent.Runtime, 0, len(s.order))
	for _, id := range s.order {
		runtimes = append(runtimes, s.runtimes[id])
	}
	s.mu.Unlock()

	started := make([]*agent.Runtime, 0, len(runtimes)+1)
	fail := func(err error) error {
		for i := len(started) - 1; i >= 0; i-- {
			started[i].Stop(time.Second)
		}
		s.cancel()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	if err := s.coordRuntime.Start(ctx); err != nil {
		return fail(fmt.Errorf("failed to start coordinator: %w", err))
	}
	started = append(started, s.coordRuntime)

	for _, runtime := range runtimes {
		if err := runtime.Start(ctx); err != nil {
			return fail(fmt.Errorf("failed to start agent %s: %w", runtime.ID(), err))
		}
		started = append(started, runtime)
	}

	s.wg.Add(1)
	go s.monitor()

	s.logger.InfoContext(ctx, "system started",
		slog.String("system_id", s.id),
		slog.Int("agents", len(runtimes)))
	s.observer.OnEvent(ctx, observability.Event{
		Type:      EventStart,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    s.id,
		Data: map[string]any{
			"agents":      len(runtimes),
			"coordinator": s.coordinatorID,
		},
	})
	return nil
}

// Shutdown stops the monitor loop, every runtime, and finally the bus.
// Pending cached results are flushed to the store. Safe to call twice.
func (s *System) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	runtimes := make([]*agent.Runtime, 0, len(s.order))
	for _, id := range s.order {
		runtimes = append(runtimes, s.runtimes[id])
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	deadline := time.Now().Add(timeout)
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Workers go down before the coordinator so in-flight responses still
	// have a recipient.
	for i := len(runtimes) - 1; i >= 0; i-- {
		keep(runtimes[i].Stop(time.Until(deadline)))
	}
	keep(s.coordRuntime.Stop(time.Until(deadline)))

	if s.cache != nil {
		flushCtx, cancel := context.WithDeadline(context.Background(), deadline)
		keep(s.cache.Flush(flushCtx))
		cancel()
	}

	keep(s.bus.Shutdown(time.Until(deadline)))

	s.logger.Info("system stopped", slog.String("system_id", s.id))
	s.observer.OnEvent(context.Background(), observability.Event{
		Type:      EventStop,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    s.id,
		Data:      map[string]any{"uptime": time.Since(s.startedAt).String()},
	})
	return firstErr
}

// SubmitTask routes a task through the coordinator and returns its routing
// decision. The priority travels with the task to the executing agent; zero
// means the default. The executing agent's result arrives asynchronously;
// claim it with AwaitResult using the returned task id.
func (s *System) SubmitTask(ctx context.Context, taskType string, payload map[string]any, priority messaging.Priority) (Submission, error) {
	inner := agent.NewTask(taskType, payload)
	if priority != 0 {
		inner.Priority = priority.Clamp()
	}
	coordTask := agent.NewTask(coordinator.TaskCoordinate, map[string]any{
		"task":                  inner,
		"required_capabilities": s.requiredCapabilities(taskType),
	})
	coordTask.Priority = inner.Priority

	s.tasksSubmitted.Add(1)
	result, err := s.request(ctx, coordTask)
	if err != nil {
		return Submission{TaskID: inner.ID}, err
	}

	sub := Submission{TaskID: inner.ID}
	sub.Assigned, _ = result.Output["assigned"].(bool)
	if !sub.Assigned {
		sub.Reason, _ = result.Output["reason"].(string)
		return sub, nil
	}
	sub.AgentID, _ = result.Output["agent_id"].(string)
	sub.Score, _ = result.Output["score"].(float64)
	return sub, nil
}

// ManageAgents asks the coordinator for a registry snapshot or a restart.
func (s *System) ManageAgents(ctx context.Context, action, agentID string) (agent.Result, error) {
	payload := map[string]any{"action": action}
	if agentID != "" {
		payload["agent_id"] = agentID
	}
	return s.request(ctx, agent.NewTask(coordinator.TaskManageAgents, payload))
}

// OptimizePerformance asks the coordinator to nudge low-scoring agents.
func (s *System) OptimizePerformance(ctx context.Context) (agent.Result, error) {
	return s.request(ctx, agent.NewTask(coordinator.TaskOptimize, nil))
}

// request sends one task to the coordinator and waits for its response.
func (s *System) request(ctx context.Context, task agent.Task) (agent.Result, error) {
	waiter := make(chan agent.Result, 1)

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return agent.Result{}, ErrNotStarted
	}
	s.waiters[task.ID] = waiter
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.waiters, task.ID)
		s.mu.Unlock()
	}()

	builder := messaging.NewTaskRequest(s.id, s.coordinatorID, task).RequiresResponse()
	if task.Priority > 0 {
		builder.Priority(task.Priority)
	}
	if err := s.bus.Publish(builder.Build()); err != nil {
		return agent.Result{}, fmt.Errorf("publish request: %w", err)
	}

	select {
	case result := <-waiter:
		if result.Status != agent.ResultCompleted {
			return result, fmt.Errorf("%w: %s", ErrCoordinationFailed, result.Error)
		}
		return result, nil
	case <-ctx.Done():
		return agent.Result{}, ctx.Err()
	case <-time.After(s.cfg.SubmitTimeout):
		return agent.Result{}, fmt.Errorf("%w after %v", ErrSubmitTimeout, s.cfg.SubmitTimeout)
	}
}

// AwaitResult blocks until the result for taskID arrives or ctx ends.
// Results that arrived before the call are claimed immediately.
func (s *System) AwaitResult(ctx context.Context, taskID string) (agent.Result, error) {
	waiter := make(chan agent.Result, 1)

	s.mu.Lock()
	if pending, ok := s.unclaimed[taskID]; ok {
		delete(s.unclaimed, taskID)
		s.mu.Unlock()
		return pending.result, nil
	}
	if !s.running {
		s.mu.Unlock()
		return agent.Result{}, ErrNotStarted
	}
	s.waiters[taskID] = waiter
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.waiters, taskID)
		s.mu.Unlock()
	}()

	select {
	case result := <-waiter:
		return result, nil
	case <-ctx.Done():
		return agent.Result{}, ctx.Err()
	}
}

// AgentStatus returns the live status of one runtime by agent id. The
// coordinator's runtime is addressable under its configured id.
func (s *System) AgentStatus(agentID string) (agent.Status, bool) {
	if agentID == s.coordinatorID {
		return s.coordRuntime.Status(), true
	}

	s.mu.Lock()
	runtime, ok := s.runtimes[agentID]
	s.mu.Unlock()

	if !ok {
		return agent.Status{}, false
	}
	return runtime.Status(), true
}

// Status returns a snapshot of every runtime, coordinator included, sorted
// by agent id.
func (s *System) Status() []agent.Status {
	s.mu.Lock()
	runtimes := make([]*agent.Runtime, 0, len(s.runtimes)+1)
	runtimes = append(runtimes, s.coordRuntime)
	for _, r := range s.runtimes {
		runtimes = append(runtimes, r)
	}
	s.mu.Unlock()

	statuses := make([]agent.Status, 0, len(runtimes))
	for _, r := range runtimes {
		statuses = append(statuses, r.Status())
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].AgentID < statuses[j].AgentID
	})
	return statuses
}

// History returns the bus message history.
func (s *System) History() []messaging.Message {
	return s.bus.History()
}

// HistoryFor returns the bus history involving one agent.
func (s *System) HistoryFor(agentID string) []messaging.Message {
	return s.bus.HistoryFor(agentID)
}

// Metrics returns the bus delivery counters.
func (s *System) Metrics() bus.MetricsSnapshot {
	return s.bus.Metrics()
}

// requiredCapabilities resolves the default capability requirements for a
// task type. Unknown types fall back to general execution.
func (s *System) requiredCapabilities(taskType string) []string {
	capMap := s.cfg.Coordinator.CapabilityMap
	if capMap == nil {
		capMap = coordinator.DefaultCapabilityMap()
	}
	if required, ok := capMap[taskType]; ok {
		return required
	}
	return []string{agent.CapGeneralTaskExecution}
}

// receive handles messages addressed to the system id plus broadcasts. It
// runs on the bus dispatch goroutine and must not block.
func (s *System) receive(msg messaging.Message) error {
	switch msg.Type {
	case messaging.MessageTypeTaskResponse:
		result, err := agent.ResultFromMessage(msg)
		if err != nil {
			s.logger.Debug("discarding malformed response",
				slog.String("from", msg.SenderID))
			return nil
		}
		s.handleResult(result)
	case messaging.MessageTypeAlert:
		if alert, err := agent.AlertFromMessage(msg); err == nil {
			s.logger.Warn("agent alert",
				slog.String("from", msg.SenderID),
				slog.String("kind", alert.Kind),
				slog.Int("severity", int(alert.Severity)))
		}
	case messaging.MessageTypeDataSharing:
		s.logger.Debug("shared data received", slog.String("from", msg.SenderID))
	}
	return nil
}

// handleResult settles the matching waiter or parks the result for a later
// AwaitResult. Worker results are also recorded to the store.
func (s *System) handleResult(result agent.Result) {
	if result.AgentID != s.coordinatorID {
		s.record(result)
	}

	s.mu.Lock()
	if waiter, ok := s.waiters[result.TaskID]; ok {
		delete(s.waiters, result.TaskID)
		waiter <- result
		s.mu.Unlock()
		return
	}
	s.unclaimed[result.TaskID] = pendingResult{result: result, at: time.Now()}
	s.mu.Unlock()
}

func (s *System) record(result agent.Result) {
	s.resultsReceived.Add(1)

	if s.cache != nil {
		data, err := json.Marshal(result)
		if err != nil {
			s.logger.Warn("failed to encode result",
				slog.String("task_id", result.TaskID),
				slog.String("error", err.Error()))
		} else {
			s.cache.Set(store.ResultKey(result.TaskID), data)
		}
	}

	s.observer.OnEvent(context.Background(), observability.Event{
		Type:      EventTaskResult,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    s.id,
		Data: map[string]any{
			"task_id":  result.TaskID,
			"agent_id": result.AgentID,
			"status":   string(result.Status),
		},
	})
}
