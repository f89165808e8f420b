// Package main is the entry point for the ensemble CLI. It runs a
// coordinator-led multi-agent system: agents announce themselves over a
// shared message bus, the coordinator assigns tasks by capability and
// performance, and results are recorded to the configured store.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ensemble-systems/ensemble/agents/executor"
	"github.com/ensemble-systems/ensemble/agents/visual"
	"github.com/ensemble-systems/ensemble/observability"
	"github.com/ensemble-systems/ensemble/system"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ensemble",
	Short: "Coordinator-led multi-agent task system",
	Long: `Ensemble runs a set of specialized agents on a shared message bus.

A coordinator assigns submitted tasks to the agent whose capabilities and
track record best match, forwards the results back, and keeps a registry
of agent health from heartbeats.`,
}

func main() {
	for _, envFile := range []string{
		".env",
		"../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initSettings)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "system config JSON file")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for persisted task results")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("observer", "", "named event observer (noop silences events)")

	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("observer", rootCmd.PersistentFlags().Lookup("observer"))
}

// initSettings reads tool settings from ~/.ensemble.yaml and ENSEMBLE_*
// environment variables. The system config itself stays in the JSON file
// named by --config.
func initSettings() {
	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(home)
	}
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	viper.SetConfigName(".ensemble")

	viper.SetEnvPrefix("ENSEMBLE")
	viper.AutomaticEnv()

	viper.ReadInConfig()
}

// loadSystemConfig builds the system config from the --config file, if any,
// with the data directory and logger applied on top.
func loadSystemConfig() (system.Config, error) {
	cfg := system.DefaultConfig()
	if cfgFile != "" {
		loaded, err := system.LoadConfig(cfgFile)
		if err != nil {
			return system.Config{}, err
		}
		cfg = *loaded
	}

	if dataDir := viper.GetString("data_dir"); dataDir != "" {
		cfg.Store.Path = dataDir
	}
	cfg.Logger = buildLogger()
	return cfg, nil
}

func buildLogger() *slog.Logger {
	var level slog.Level
	switch viper.GetString("log_level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if viper.GetString("log_format") == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// buildSystem creates a System with the standard agent lineup registered.
func buildSystem() (*system.System, error) {
	cfg, err := loadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// An unset observer leaves the system's logger-backed default in place.
	var opts []system.Option
	if name := viper.GetString("observer"); name != "" {
		obs, err := observability.GetObserver(name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		opts = append(opts, system.WithObserver(obs))
	}

	sys, err := system.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create system: %w", err)
	}

	if err := sys.Register("executor-1", "task_executor", executor.New()); err != nil {
		return nil, err
	}
	if err := sys.Register("visual-1", "visual_intelligence", visual.New()); err != nil {
		return nil, err
	}
	return sys, nil
}
