package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent system until interrupted",
	Long: `Start the coordinator and the standard agent lineup, then serve until
SIGINT or SIGTERM. Task results are persisted when a data directory is
configured.`,
	RunE: runSystem,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "graceful shutdown budget")
}

func runSystem(cmd *cobra.Command, args []string) error {
	sys, err := buildSystem()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sys.Start(ctx); err != nil {
		return fmt.Errorf("failed to start system: %w", err)
	}

	fmt.Printf("ensemble running as %s, press Ctrl+C to stop\n", sys.ID())
	<-ctx.Done()

	timeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
	fmt.Println("\nshutting down...")
	return sys.Shutdown(timeout)
}
