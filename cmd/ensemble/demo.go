package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ensemble-systems/ensemble/agents/executor"
	"github.com/ensemble-systems/ensemble/agents/visual"
	"github.com/ensemble-systems/ensemble/messaging"
	"github.com/ensemble-systems/ensemble/system"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted task round-trip and exit",
	Long: `Start the system, submit a script execution and an interface analysis,
wait for both results, and print a summary. Useful for verifying a config
or data directory before running the system for real.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().Duration("timeout", 30*time.Second, "overall demo deadline")
}

func runDemo(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	sys, err := buildSystem()
	if err != nil {
		return err
	}

	if err := sys.Start(ctx); err != nil {
		return fmt.Errorf("failed to start system: %w", err)
	}
	defer sys.Shutdown(10 * time.Second)

	if err := waitForAgents(ctx, sys, "executor-1", "visual-1"); err != nil {
		return err
	}

	demos := []struct {
		taskType string
		payload  map[string]any
	}{
		{
			taskType: executor.TaskExecuteScript,
			payload: map[string]any{
				"script":     "diagnostics.sh",
				"parameters": []any{"--verbose"},
			},
		},
		{
			taskType: visual.TaskAnalyzeInterface,
			payload:  map[string]any{"target": "main_window"},
		},
	}

	for _, demo := range demos {
		if err := submitAndPrint(ctx, sys, demo.taskType, demo.payload); err != nil {
			return err
		}
	}

	fmt.Println("Agents:")
	for _, status := range sys.Status() {
		fmt.Printf("  %-12s %-5s completed=%d failed=%d\n",
			status.AgentID, status.State, status.TasksCompleted, status.TasksFailed)
	}

	metrics := sys.Metrics()
	fmt.Printf("Bus: published=%d delivered=%d dropped=%d handler_errors=%d\n",
		metrics.Published, metrics.Delivered, metrics.Dropped, metrics.HandlerErrors)

	return nil
}

func submitAndPrint(ctx context.Context, sys *system.System, taskType string, payload map[string]any) error {
	sub, err := sys.SubmitTask(ctx, taskType, payload, messaging.PriorityNormal)
	if err != nil {
		return fmt.Errorf("submit %s: %w", taskType, err)
	}
	if !sub.Assigned {
		fmt.Printf("Task %s not assigned: %s\n\n", taskType, sub.Reason)
		return nil
	}

	fmt.Printf("Task %s assigned to %s (score %.2f)\n", taskType, sub.AgentID, sub.Score)

	result, err := sys.AwaitResult(ctx, sub.TaskID)
	if err != nil {
		return fmt.Errorf("await %s: %w", taskType, err)
	}

	fmt.Printf("  status: %s in %v\n", result.Status, result.Duration)
	if result.Error != "" {
		fmt.Printf("  error: %s\n", result.Error)
	}
	if len(result.Output) > 0 {
		pretty, err := json.MarshalIndent(result.Output, "  ", "  ")
		if err == nil {
			fmt.Printf("  %s\n", pretty)
		}
	}
	fmt.Println()
	return nil
}

// waitForAgents blocks until every agent has announced itself to the
// coordinator or ctx expires.
func waitForAgents(ctx context.Context, sys *system.System, ids ...string) error {
	for {
		registry := sys.Coordinator().Registry()
		ready := true
		for _, id := range ids {
			if _, ok := registry[id]; !ok {
				ready = false
				break
			}
		}
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("agents never announced: %w", ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
