package system_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ensemble-systems/ensemble/agent"
	"github.com/ensemble-systems/ensemble/agent/mock"
	"github.com/ensemble-systems/ensemble/agents/executor"
	"github.com/ensemble-systems/ensemble/coordinator"
	"github.com/ensemble-systems/ensemble/messaging"
	"github.com/ensemble-systems/ensemble/observability"
	"github.com/ensemble-systems/ensemble/store"
	"github.com/ensemble-systems/ensemble/system"
)

// --- Test helpers ---

func createTestSystem(t *testing.T, cfg system.Config, opts ...system.Option) *system.System {
	sys, err := system.New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return sys
}

func startSystem(t *testing.T, sys *system.System) {
	if err := sys.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { sys.Shutdown(5 * time.Second) })
}

// waitForAgent blocks until the agent's announcement reaches the registry.
func waitForAgent(t *testing.T, sys *system.System, agentID string) {
	deadline := time.After(2 * time.Second)
	for {
		if _, ok := sys.Coordinator().Registry()[agentID]; ok {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("Timeout waiting for %s registration", agentID)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// --- Tests ---

func TestNew_Defaults(t *testing.T) {
	sys := createTestSystem(t, system.Config{})

	if sys.ID() != "system" {
		t.Errorf("ID() = %q, want %q", sys.ID(), "system")
	}
	if sys.Coordinator() == nil {
		t.Fatal("Coordinator() returned nil")
	}
}

func TestNew_CustomIDs(t *testing.T) {
	sys := createTestSystem(t, system.Config{
		SystemID:      "orchestrator",
		CoordinatorID: "boss",
	})

	if sys.ID() != "orchestrator" {
		t.Errorf("ID() = %q, want %q", sys.ID(), "orchestrator")
	}

	if err := sys.Register("orchestrator", "worker", &mock.Handler{}); !errors.Is(err, system.ErrReservedID) {
		t.Errorf("Register(system id) error = %v, want ErrReservedID", err)
	}
	if err := sys.Register("boss", "worker", &mock.Handler{}); !errors.Is(err, system.ErrReservedID) {
		t.Errorf("Register(coordinator id) error = %v, want ErrReservedID", err)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	sys := createTestSystem(t, system.Config{})

	if err := sys.Register("worker-1", "worker", &mock.Handler{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := sys.Register("worker-1", "worker", &mock.Handler{}); !errors.Is(err, system.ErrDuplicateAgent) {
		t.Errorf("Register(duplicate) error = %v, want ErrDuplicateAgent", err)
	}
}

func TestRegister_AfterStart(t *testing.T) {
	sys := createTestSystem(t, system.Config{})
	startSystem(t, sys)

	if err := sys.Register("late-1", "worker", &mock.Handler{}); !errors.Is(err, system.ErrAlreadyStarted) {
		t.Errorf("Register(after start) error = %v, want ErrAlreadyStarted", err)
	}
}

func TestStart_Twice(t *testing.T) {
	sys := createTestSystem(t, system.Config{})
	startSystem(t, sys)

	if err := sys.Start(context.Background()); !errors.Is(err, system.ErrAlreadyStarted) {
		t.Errorf("Start(twice) error = %v, want ErrAlreadyStarted", err)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	sys := createTestSystem(t, system.Config{})

	if err := sys.Shutdown(time.Second); err != nil {
		t.Errorf("Shutdown(before start) error = %v, want nil", err)
	}

	if err := sys.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := sys.Shutdown(5 * time.Second); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := sys.Shutdown(5 * time.Second); err != nil {
		t.Errorf("Shutdown(twice) error = %v, want nil", err)
	}
}

func TestSubmitTask_EndToEnd(t *testing.T) {
	sys := createTestSystem(t, system.Config{})
	if err := sys.Register("executor-1", "task_executor", executor.New()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startSystem(t, sys)
	waitForAgent(t, sys, "executor-1")

	ctx := context.Background()
	sub, err := sys.SubmitTask(ctx, executor.TaskExecuteScript, map[string]any{
		"script": "deploy.sh",
	}, messaging.PriorityHigh)
	if err != nil {
		t.Fatalf("SubmitTask() error = %v", err)
	}

	if !sub.Assigned {
		t.Fatalf("Assigned = false, reason %q", sub.Reason)
	}
	if sub.AgentID != "executor-1" {
		t.Errorf("AgentID = %q, want %q", sub.AgentID, "executor-1")
	}
	if sub.Score != 1.0 {
		t.Errorf("Score = %v, want 1.0", sub.Score)
	}
	if sub.TaskID == "" {
		t.Error("TaskID is empty")
	}

	awaitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	result, err := sys.AwaitResult(awaitCtx, sub.TaskID)
	if err != nil {
		t.Fatalf("AwaitResult() error = %v", err)
	}

	if result.Status != agent.ResultCompleted {
		t.Errorf("Status = %v, want %v", result.Status, agent.ResultCompleted)
	}
	if result.AgentID != "executor-1" {
		t.Errorf("result AgentID = %q, want %q", result.AgentID, "executor-1")
	}
	if result.Output["exit_code"] != 0 {
		t.Errorf("Output[exit_code] = %v, want 0", result.Output["exit_code"])
	}

	assignment := sys.Coordinator().Assignments()[sub.TaskID]
	if assignment.State != coordinator.AssignmentCompleted {
		t.Errorf("assignment State = %v, want %v", assignment.State, coordinator.AssignmentCompleted)
	}
}

func TestSubmitTask_NoAgent(t *testing.T) {
	sys := createTestSystem(t, system.Config{})
	startSystem(t, sys)

	sub, err := sys.SubmitTask(context.Background(), executor.TaskExecuteScript, nil, messaging.PriorityNormal)
	if err != nil {
		t.Fatalf("SubmitTask() error = %v", err)
	}

	if sub.Assigned {
		t.Error("Assigned = true, want false")
	}
	if sub.Reason != "no suitable agent" {
		t.Errorf("Reason = %q, want %q", sub.Reason, "no suitable agent")
	}
}

func TestSubmitTask_NotStarted(t *testing.T) {
	sys := createTestSystem(t, system.Config{})

	_, err := sys.SubmitTask(context.Background(), executor.TaskExecuteScript, nil, 0)
	if !errors.Is(err, system.ErrNotStarted) {
		t.Errorf("SubmitTask() error = %v, want ErrNotStarted", err)
	}
}

func TestSubmitTask_Timeout(t *testing.T) {
	sys := createTestSystem(t, system.Config{SubmitTimeout: time.Nanosecond})
	startSystem(t, sys)

	_, err := sys.SubmitTask(context.Background(), executor.TaskExecuteScript, nil, 0)
	if !errors.Is(err, system.ErrSubmitTimeout) {
		t.Errorf("SubmitTask() error = %v, want ErrSubmitTimeout", err)
	}
}

func TestSubmitTask_CapabilityFallback(t *testing.T) {
	worker := &mock.Handler{Caps: agent.Capabilities(agent.CapGeneralTaskExecution)}

	sys := createTestSystem(t, system.Config{})
	if err := sys.Register("general-1", "worker", worker); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startSystem(t, sys)
	waitForAgent(t, sys, "general-1")

	// Task types outside the capability map route to general execution.
	sub, err := sys.SubmitTask(context.Background(), "custom_thing", nil, messaging.PriorityNormal)
	if err != nil {
		t.Fatalf("SubmitTask() error = %v", err)
	}

	if !sub.Assigned {
		t.Fatalf("Assigned = false, reason %q", sub.Reason)
	}
	if sub.AgentID != "general-1" {
		t.Errorf("AgentID = %q, want %q", sub.AgentID, "general-1")
	}
}

func TestAwaitResult_AfterArrival(t *testing.T) {
	sys := createTestSystem(t, system.Config{})
	if err := sys.Register("executor-1", "task_executor", executor.New()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startSystem(t, sys)
	waitForAgent(t, sys, "executor-1")

	ctx := context.Background()
	sub, err := sys.SubmitTask(ctx, executor.TaskExecuteScript, map[string]any{
		"script": "report.sh",
	}, messaging.PriorityNormal)
	if err != nil {
		t.Fatalf("SubmitTask() error = %v", err)
	}

	// Wait for the assignment to settle, then allow the forwarded result to
	// land before claiming it.
	deadline := time.After(2 * time.Second)
	for {
		if sys.Coordinator().Assignments()[sub.TaskID].State == coordinator.AssignmentCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timeout waiting for assignment to settle")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	time.Sleep(100 * time.Millisecond)

	claimCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	result, err := sys.AwaitResult(claimCtx, sub.TaskID)
	if err != nil {
		t.Fatalf("AwaitResult() error = %v", err)
	}
	if result.Status != agent.ResultCompleted {
		t.Errorf("Status = %v, want %v", result.Status, agent.ResultCompleted)
	}

	// A result is claimed exactly once.
	againCtx, cancelAgain := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancelAgain()
	if _, err := sys.AwaitResult(againCtx, sub.TaskID); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AwaitResult(claimed) error = %v, want DeadlineExceeded", err)
	}
}

func TestAwaitResult_UnknownTask(t *testing.T) {
	sys := createTestSystem(t, system.Config{})
	startSystem(t, sys)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := sys.AwaitResult(ctx, "no-such-task")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AwaitResult() error = %v, want DeadlineExceeded", err)
	}
}

func TestManageAgents_Status(t *testing.T) {
	sys := createTestSystem(t, system.Config{})
	if err := sys.Register("executor-1", "task_executor", executor.New()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startSystem(t, sys)
	waitForAgent(t, sys, "executor-1")

	result, err := sys.ManageAgents(context.Background(), coordinator.ActionStatus, "")
	if err != nil {
		t.Fatalf("ManageAgents() error = %v", err)
	}

	if result.Output["count"] != 1 {
		t.Errorf("Output[count] = %v, want 1", result.Output["count"])
	}
	agents, ok := result.Output["agents"].(map[string]coordinator.AgentRecord)
	if !ok {
		t.Fatalf("Output[agents] is %T, want map[string]AgentRecord", result.Output["agents"])
	}
	record, ok := agents["executor-1"]
	if !ok {
		t.Fatal("Output[agents] missing executor-1")
	}
	if record.Status.AgentType != "task_executor" {
		t.Errorf("AgentType = %q, want task_executor", record.Status.AgentType)
	}
}

func TestManageAgents_Restart(t *testing.T) {
	restarted := make(chan struct{}, 1)
	worker := &mock.Handler{
		Caps: agent.Capabilities(agent.CapGeneralTaskExecution),
		RestartFunc: func(ctx context.Context) error {
			restarted <- struct{}{}
			return nil
		},
	}

	sys := createTestSystem(t, system.Config{})
	if err := sys.Register("worker-1", "worker", worker); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startSystem(t, sys)
	waitForAgent(t, sys, "worker-1")

	result, err := sys.ManageAgents(context.Background(), coordinator.ActionRestart, "worker-1")
	if err != nil {
		t.Fatalf("ManageAgents() error = %v", err)
	}
	if result.Output["restarted"] != "worker-1" {
		t.Errorf("Output[restarted] = %v, want worker-1", result.Output["restarted"])
	}

	select {
	case <-restarted:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for restart")
	}
}

func TestManageAgents_Errors(t *testing.T) {
	sys := createTestSystem(t, system.Config{})
	startSystem(t, sys)

	_, err := sys.ManageAgents(context.Background(), coordinator.ActionRestart, "ghost")
	if !errors.Is(err, system.ErrCoordinationFailed) {
		t.Errorf("ManageAgents(unknown agent) error = %v, want ErrCoordinationFailed", err)
	}

	result, err := sys.ManageAgents(context.Background(), "destroy", "")
	if !errors.Is(err, system.ErrCoordinationFailed) {
		t.Errorf("ManageAgents(unknown action) error = %v, want ErrCoordinationFailed", err)
	}
	if !strings.Contains(result.Error, "unknown manage action") {
		t.Errorf("result Error = %q, want unknown action detail", result.Error)
	}
}

func TestOptimizePerformance(t *testing.T) {
	sys := createTestSystem(t, system.Config{})
	if err := sys.Register("executor-1", "task_executor", executor.New()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startSystem(t, sys)
	waitForAgent(t, sys, "executor-1")

	result, err := sys.OptimizePerformance(context.Background())
	if err != nil {
		t.Fatalf("OptimizePerformance() error = %v", err)
	}

	if result.Output["threshold"] != 0.7 {
		t.Errorf("Output[threshold] = %v, want 0.7", result.Output["threshold"])
	}
	// A fresh agent scores above the threshold and is not flagged.
	if flagged, ok := result.Output["optimized"].([]string); ok && len(flagged) > 0 {
		t.Errorf("Output[optimized] = %v, want none", flagged)
	}
}

func TestStatus_SortedSnapshot(t *testing.T) {
	sys := createTestSystem(t, system.Config{})
	if err := sys.Register("worker-b", "worker", &mock.Handler{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := sys.Register("worker-a", "worker", &mock.Handler{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startSystem(t, sys)

	statuses := sys.Status()
	if len(statuses) != 3 {
		t.Fatalf("got %d statuses, want 3", len(statuses))
	}

	want := []string{"coordinator", "worker-a", "worker-b"}
	for i, status := range statuses {
		if status.AgentID != want[i] {
			t.Errorf("statuses[%d].AgentID = %q, want %q", i, status.AgentID, want[i])
		}
	}
}

func TestAgentStatus(t *testing.T) {
	sys := createTestSystem(t, system.Config{})
	if err := sys.Register("worker-1", "task_executor", &mock.Handler{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startSystem(t, sys)

	status, ok := sys.AgentStatus("worker-1")
	if !ok {
		t.Fatal("AgentStatus(worker-1) not found")
	}
	if status.AgentID != "worker-1" {
		t.Errorf("AgentID = %q, want worker-1", status.AgentID)
	}
	if status.AgentType != "task_executor" {
		t.Errorf("AgentType = %q, want task_executor", status.AgentType)
	}
	if status.State != agent.StateIdle {
		t.Errorf("State = %v, want %v", status.State, agent.StateIdle)
	}

	if _, ok := sys.AgentStatus("coordinator"); !ok {
		t.Error("AgentStatus(coordinator) not found")
	}
	if _, ok := sys.AgentStatus("ghost"); ok {
		t.Error("AgentStatus(ghost) = found, want not found")
	}
}

func TestResultPersistence(t *testing.T) {
	dir := t.TempDir()

	sys := createTestSystem(t, system.Config{Store: store.Config{Path: dir}})
	if err := sys.Register("executor-1", "task_executor", executor.New()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startSystem(t, sys)
	waitForAgent(t, sys, "executor-1")

	ctx := context.Background()
	sub, err := sys.SubmitTask(ctx, executor.TaskExecuteScript, map[string]any{
		"script": "backup.sh",
	}, messaging.PriorityNormal)
	if err != nil {
		t.Fatalf("SubmitTask() error = %v", err)
	}

	awaitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := sys.AwaitResult(awaitCtx, sub.TaskID); err != nil {
		t.Fatalf("AwaitResult() error = %v", err)
	}

	// Shutdown flushes the write-through cache to disk.
	if err := sys.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	fs := store.NewFileStore(dir)
	entries, err := fs.Load(ctx, store.ResultKey(sub.TaskID))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	var recorded agent.Result
	if err := json.Unmarshal(entries[0].Value, &recorded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if recorded.TaskID != sub.TaskID {
		t.Errorf("recorded TaskID = %q, want %q", recorded.TaskID, sub.TaskID)
	}
	if recorded.AgentID != "executor-1" {
		t.Errorf("recorded AgentID = %q, want %q", recorded.AgentID, "executor-1")
	}
	if recorded.Status != agent.ResultCompleted {
		t.Errorf("recorded Status = %v, want %v", recorded.Status, agent.ResultCompleted)
	}
}

func TestMonitor_StatsAndHealth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sys := createTestSystem(t, system.Config{
		MonitorInterval: 20 * time.Millisecond,
		StatsInterval:   30 * time.Millisecond,
		HealthTimeout:   time.Millisecond,
	}, system.WithLogger(logger))
	if err := sys.Register("executor-1", "task_executor", executor.New()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startSystem(t, sys)
	waitForAgent(t, sys, "executor-1")

	time.Sleep(150 * time.Millisecond)

	if err := sys.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "system stats") {
		t.Error("expected 'system stats' log entry")
	}
	if !strings.Contains(output, "agent silent past health timeout") {
		t.Error("expected health timeout log entry")
	}
}

func TestWithObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	sys := createTestSystem(t, system.Config{},
		system.WithObserver(observability.NewSlogObserver(logger)))
	if err := sys.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := sys.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "system.start") {
		t.Error("expected 'system.start' event entry")
	}
	if !strings.Contains(output, "system.stop") {
		t.Error("expected 'system.stop' event entry")
	}
}
