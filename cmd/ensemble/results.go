package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ensemble-systems/ensemble/agent"
	"github.com/ensemble-systems/ensemble/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results [task-id]",
	Short: "List or show persisted task results",
	Long: `Read task results from the data directory. Without arguments, lists
every recorded result; with a task id, prints that result in full.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	cfg, err := loadSystemConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("result persistence is disabled; set --data-dir or store.path")
	}

	ctx := cmd.Context()
	cache := store.NewCache(store.NewFileStore(cfg.Store.Path))

	if len(args) == 1 {
		return showResult(ctx, cache, args[0])
	}
	return listResults(ctx, cache)
}

func listResults(ctx context.Context, cache *store.Cache) error {
	prefix := store.NamespaceResults + "/"
	if err := cache.Bootstrap(ctx, prefix); err != nil {
		return fmt.Errorf("failed to read results: %w", err)
	}

	entries := cache.Entries(prefix)
	if len(entries) == 0 {
		fmt.Println("no results recorded")
		return nil
	}

	fmt.Printf("%-40s %-14s %-10s %s\n", "TASK", "AGENT", "STATUS", "COMPLETED")
	for _, entry := range entries {
		var result agent.Result
		if err := json.Unmarshal(entry.Value, &result); err != nil {
			fmt.Printf("%-40s (unreadable: %v)\n", entry.Key, err)
			continue
		}
		fmt.Printf("%-40s %-14s %-10s %s\n",
			result.TaskID, result.AgentID, result.Status,
			result.CompletedAt.Format(time.RFC3339))
	}
	return nil
}

func showResult(ctx context.Context, cache *store.Cache, taskID string) error {
	key := store.ResultKey(taskID)
	if err := cache.Resolve(ctx, key); err != nil {
		return fmt.Errorf("no result recorded for task %s: %w", taskID, err)
	}

	value, ok := cache.Get(key)
	if !ok {
		return fmt.Errorf("no result recorded for task %s", taskID)
	}

	var result agent.Result
	if err := json.Unmarshal(value, &result); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}

	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}
