package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ensemble-systems/ensemble/agent"
	"github.com/ensemble-systems/ensemble/bus"
	"github.com/ensemble-systems/ensemble/messaging"
	"github.com/ensemble-systems/ensemble/observability"
)

// AssignmentState tracks an assignment from dispatch to settlement.
type AssignmentState string

const (
	AssignmentPending   AssignmentState = "pending"
	AssignmentCompleted AssignmentState = "completed"
	AssignmentFailed    AssignmentState = "failed"
	AssignmentRejected  AssignmentState = "rejected"
)

// Assignment records one task handed to an agent.
type Assignment struct {
	TaskID      string          `json:"task_id"`
	TaskType    string          `json:"task_type"`
	AgentID     string          `json:"agent_id"`
	Requester   string          `json:"requester,omitempty"`
	State       AssignmentState `json:"state"`
	Score       float64         `json:"score"`
	AssignedAt  time.Time       `json:"assigned_at"`
	CompletedAt time.Time       `json:"completed_at"`
}

// AlertRecord is one alert received from the ensemble.
type AlertRecord struct {
	From  string      `json:"from"`
	Alert agent.Alert `json:"alert"`
	At    time.Time   `json:"at"`
}

// Coordinator assigns tasks to agents by capability and performance. It
// implements agent.Handler plus the observer extensions, and is hosted on
// an agent.Runtime like any other agent.
type Coordinator struct {
	id  string
	bus *bus.Bus

	staleAfter time.Duration
	threshold  float64
	capMap     map[string][]string

	logger   *slog.Logger
	observer observability.Observer

	registry *registry

	mu          sync.RWMutex
	assignments map[string]*Assignment
	alerts      []AlertRecord
}

// Option configures a Coordinator after config-driven initialization.
type Option func(*Coordinator)

// WithObserver sets the observer receiving coordinator events. Defaults
// to NoOp.
func WithObserver(o observability.Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// New creates a Coordinator publishing on the given bus as id.
func New(id string, b *bus.Bus, cfg Config, opts ...Option) (*Coordinator, error) {
	if id == "" {
		return nil, agent.ErrEmptyAgentID
	}
	if b == nil {
		return nil, agent.ErrNilBus
	}

	def := DefaultConfig()
	def.Merge(&cfg)

	c := &Coordinator{
		id:          id,
		bus:         b,
		staleAfter:  def.StaleAfter,
		threshold:   def.OptimizeThreshold,
		capMap:      def.CapabilityMap,
		logger:      def.Logger,
		observer:    observability.NoOpObserver{},
		registry:    newRegistry(),
		assignments: make(map[string]*Assignment),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Coordinator) Capabilities() []agent.Capability {
	return []agent.Capability{
		{
			Name:        CapTaskCoordination,
			Description: "coordinate tasks between agents",
			InputTypes:  []string{"task_request", "agent_status"},
			OutputTypes: []string{"task_assignment", "coordination_command"},
		},
		{
			Name:        CapAgentManagement,
			Description: "manage agent lifecycle and performance",
			InputTypes:  []string{"agent_registration", "status_update"},
			OutputTypes: []string{"agent_command", "capability_request"},
		},
	}
}

// ProcessTask dispatches the coordinator's own task types.
func (c *Coordinator) ProcessTask(ctx context.Context, task agent.Task) (agent.Result, error) {
	switch task.Type {
	case TaskCoordinate:
		return c.coordinate(ctx, task)
	case TaskManageAgents:
		return c.manage(ctx, task)
	case TaskOptimize:
		return c.optimize(ctx)
	}
	return agent.Result{}, fmt.Errorf("%w: %s", ErrUnknownTaskType, task.Type)
}

func (c *Coordinator) coordinate(ctx context.Context, task agent.Task) (agent.Result, error) {
	inner, required, err := decodeCoordinate(task.Payload)
	if err != nil {
		return agent.Result{}, err
	}
	if len(required) == 0 {
		required = c.capMap[inner.Type]
	}

	agentID, score, ok := c.selectAgent(required)
	if !ok {
		c.logger.WarnContext(ctx, "no suitable agent",
			slog.String("task_id", inner.ID),
			slog.String("task_type", inner.Type),
		)
		c.observer.OnEvent(ctx, observability.Event{
			Type:      EventNoAgent,
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    c.id,
			Data: map[string]any{
				"task_id":   inner.ID,
				"task_type": inner.Type,
				"required":  required,
			},
		})
		return agent.Result{Output: map[string]any{
			"assigned": false,
			"reason":   "no suitable agent",
		}}, nil
	}

	c.recordAssignment(Assignment{
		TaskID:     inner.ID,
		TaskType:   inner.Type,
		AgentID:    agentID,
		Requester:  task.Requester,
		State:      AssignmentPending,
		Score:      score,
		AssignedAt: time.Now(),
	})
	c.registry.markBusy(agentID)

	builder := messaging.NewTaskRequest(c.id, agentID, inner)
	if inner.Priority > 0 {
		builder.Priority(inner.Priority)
	}
	if err := c.bus.Publish(builder.Build()); err != nil {
		c.dropAssignment(inner.ID)
		return agent.Result{}, fmt.Errorf("assign task: %w", err)
	}

	c.logger.InfoContext(ctx, "task assigned",
		slog.String("task_id", inner.ID),
		slog.String("task_type", inner.Type),
		slog.String("agent_id", agentID),
		slog.Float64("score", score),
	)
	c.observer.OnEvent(ctx, observability.Event{
		Type:      EventAssign,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    c.id,
		Data: map[string]any{
			"task_id":   inner.ID,
			"task_type": inner.Type,
			"agent_id":  agentID,
			"score":     score,
		},
	})

	return agent.Result{Output: map[string]any{
		"assigned": true,
		"agent_id": agentID,
		"task_id":  inner.ID,
		"score":    score,
	}}, nil
}

func (c *Coordinator) manage(ctx context.Context, task agent.Task) (agent.Result, error) {
	action, _ := task.Payload["action"].(string)

	switch action {
	case ActionStatus:
		records := c.registry.snapshot()
		return agent.Result{Output: map[string]any{
			"agents": records,
			"count":  len(records),
		}}, nil

	case ActionRestart:
		agentID, _ := task.Payload["agent_id"].(string)
		if agentID == "" {
			return agent.Result{}, fmt.Errorf("%w: restart_agent requires agent_id", ErrInvalidPayload)
		}
		if _, ok := c.registry.get(agentID); !ok {
			return agent.Result{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
		}

		msg := messaging.NewCoordination(c.id, agentID, agent.Restart{Reason: "coordinator requested restart"}).Build()
		if err := c.bus.Publish(msg); err != nil {
			return agent.Result{}, fmt.Errorf("restart %s: %w", agentID, err)
		}

		c.logger.InfoContext(ctx, "agent restart requested",
			slog.String("agent_id", agentID),
		)
		c.observer.OnEvent(ctx, observability.Event{
			Type:      EventRestart,
			Level:     observability.LevelInfo,
			Timestamp: time.Now(),
			Source:    c.id,
			Data:      map[string]any{"agent_id": agentID},
		})
		return agent.Result{Output: map[string]any{"restarted": agentID}}, nil
	}

	return agent.Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

func (c *Coordinator) optimize(ctx context.Context) (agent.Result, error) {
	records := c.registry.snapshot()

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var flagged []string
	for _, id := range ids {
		score := performanceScore(records[id].Status)
		if score >= c.threshold {
			continue
		}
		flagged = append(flagged, id)

		hint := agent.Optimize{
			Reason: fmt.Sprintf("performance score %.2f below threshold %.2f", score, c.threshold),
			Suggestions: []string{
				"reduce queued task load",
				"restart to clear degraded state",
			},
		}
		if err := c.bus.Publish(messaging.NewCoordination(c.id, id, hint).Build()); err != nil {
			c.logger.WarnContext(ctx, "optimization hint not published",
				slog.String("agent_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	c.logger.InfoContext(ctx, "optimization sweep",
		slog.Int("agents", len(records)),
		slog.Int("flagged", len(flagged)),
	)
	c.observer.OnEvent(ctx, observability.Event{
		Type:      EventOptimize,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    c.id,
		Data: map[string]any{
			"flagged":   flagged,
			"threshold": c.threshold,
		},
	})

	return agent.Result{Output: map[string]any{
		"optimized": flagged,
		"threshold": c.threshold,
	}}, nil
}

// ObserveStatus folds a peer heartbeat into the registry.
func (c *Coordinator) ObserveStatus(status agent.Status) {
	c.registry.upsert(status)
	c.logger.Debug("registry updated",
		slog.String("agent_id", status.AgentID),
		slog.String("state", string(status.State)),
		slog.Int64("tasks_completed", status.TasksCompleted),
	)
}

// ObserveResult settles the matching assignment and forwards the result
// to the original requester.
func (c *Coordinator) ObserveResult(from string, result agent.Result) {
	c.mu.Lock()
	assignment, ok := c.assignments[result.TaskID]
	var requester string
	if ok {
		assignment.State = assignmentStateFor(result.Status)
		assignment.CompletedAt = time.Now()
		requester = assignment.Requester
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("response for unknown task",
			slog.String("from", from),
			slog.String("task_id", result.TaskID),
		)
		return
	}

	c.logger.Debug("assignment settled",
		slog.String("task_id", result.TaskID),
		slog.String("agent_id", from),
		slog.String("status", string(result.Status)),
	)

	if requester != "" && requester != c.id {
		forward := messaging.NewTaskResponse(c.id, requester, result).Build()
		if err := c.bus.Publish(forward); err != nil {
			c.logger.Warn("result not forwarded",
				slog.String("task_id", result.TaskID),
				slog.String("requester", requester),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ObserveCoordination consumes capability responses; other payloads are
// ignored.
func (c *Coordinator) ObserveCoordination(from string, payload agent.CoordinationPayload) {
	switch p := payload.(type) {
	case agent.CapabilityResponse:
		c.registry.refreshCapabilities(from, p.Offered)
		c.logger.Debug("capability response",
			slog.String("from", from),
			slog.Bool("accept", p.Accept),
		)
	default:
		c.logger.Debug("coordination ignored",
			slog.String("from", from),
		)
	}
}

// ObserveAlert records an alert from the ensemble.
func (c *Coordinator) ObserveAlert(from string, alert agent.Alert) {
	c.mu.Lock()
	c.alerts = append(c.alerts, AlertRecord{From: from, Alert: alert, At: time.Now()})
	if len(c.alerts) > maxAlerts {
		c.alerts = c.alerts[len(c.alerts)-maxAlerts:]
	}
	c.mu.Unlock()

	c.logger.Warn("alert received",
		slog.String("from", from),
		slog.String("kind", alert.Kind),
	)
	c.observer.OnEvent(context.Background(), observability.Event{
		Type:      EventAlert,
		Level:     observability.LevelWarning,
		Timestamp: time.Now(),
		Source:    c.id,
		Data: map[string]any{
			"from": from,
			"kind": alert.Kind,
		},
	})
}

// Registry returns a copy of the known-agent registry.
func (c *Coordinator) Registry() map[string]AgentRecord {
	return c.registry.snapshot()
}

// Assignments returns a copy of the assignment ledger keyed by task id.
func (c *Coordinator) Assignments() map[string]Assignment {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Assignment, len(c.assignments))
	for id, a := range c.assignments {
		out[id] = *a
	}
	return out
}

// Alerts returns a copy of the recorded alerts, oldest first.
func (c *Coordinator) Alerts() []AlertRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]AlertRecord, len(c.alerts))
	copy(out, c.alerts)
	return out
}

func (c *Coordinator) recordAssignment(a Assignment) {
	c.mu.Lock()
	c.assignments[a.TaskID] = &a
	if len(c.assignments) > maxAssignments {
		c.pruneAssignmentsLocked()
	}
	c.mu.Unlock()
}

func (c *Coordinator) dropAssignment(taskID string) {
	c.mu.Lock()
	delete(c.assignments, taskID)
	c.mu.Unlock()
}

// pruneAssignmentsLocked drops the oldest settled assignments until the
// ledger fits its bound. Pending assignments are never dropped.
func (c *Coordinator) pruneAssignmentsLocked() {
	type settled struct {
		taskID string
		at     time.Time
	}
	var done []settled
	for id, a := range c.assignments {
		if a.State != AssignmentPending {
			done = append(done, settled{taskID: id, at: a.CompletedAt})
		}
	}
	sort.Slice(done, func(i, j int) bool {
		return done[i].at.Before(done[j].at)
	})

	for _, s := range done {
		if len(c.assignments) <= maxAssignments {
			return
		}
		delete(c.assignments, s.taskID)
	}
}

func assignmentStateFor(status agent.ResultStatus) AssignmentState {
	switch status {
	case agent.ResultCompleted:
		return AssignmentCompleted
	case agent.ResultRejected:
		return AssignmentRejected
	}
	return AssignmentFailed
}
