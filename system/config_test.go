package system_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ensemble-systems/ensemble/system"
)

func TestDefaultConfig(t *testing.T) {
	cfg := system.DefaultConfig()

	if cfg.SystemID != "system" {
		t.Errorf("got SystemID %q, want %q", cfg.SystemID, "system")
	}
	if cfg.CoordinatorID != "coordinator" {
		t.Errorf("got CoordinatorID %q, want %q", cfg.CoordinatorID, "coordinator")
	}
	if cfg.SubmitTimeout != 10*time.Second {
		t.Errorf("got SubmitTimeout %v, want 10s", cfg.SubmitTimeout)
	}
	if cfg.Bus.HistoryCapacity != 1000 {
		t.Errorf("got Bus.HistoryCapacity %d, want 1000", cfg.Bus.HistoryCapacity)
	}
	if cfg.Runtime.QueueSize != 64 {
		t.Errorf("got Runtime.QueueSize %d, want 64", cfg.Runtime.QueueSize)
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := system.DefaultConfig()

	source := &system.Config{
		SystemID:      "orchestrator",
		SubmitTimeout: 3 * time.Second,
	}
	source.Runtime.QueueSize = 8

	cfg.Merge(source)

	if cfg.SystemID != "orchestrator" {
		t.Errorf("got SystemID %q, want %q", cfg.SystemID, "orchestrator")
	}
	if cfg.SubmitTimeout != 3*time.Second {
		t.Errorf("got SubmitTimeout %v, want 3s", cfg.SubmitTimeout)
	}
	if cfg.Runtime.QueueSize != 8 {
		t.Errorf("got Runtime.QueueSize %d, want 8", cfg.Runtime.QueueSize)
	}
	if cfg.CoordinatorID != "coordinator" {
		t.Errorf("got CoordinatorID %q, want preserved default", cfg.CoordinatorID)
	}
}

func TestConfig_Merge_ZeroValuesPreserveDefaults(t *testing.T) {
	cfg := system.DefaultConfig()
	original := cfg.MonitorInterval

	source := &system.Config{} // All zero values

	cfg.Merge(source)

	if cfg.MonitorInterval != original {
		t.Errorf("got MonitorInterval %v, want %v (preserved default)", cfg.MonitorInterval, original)
	}
	if cfg.Runtime.PollInterval != time.Second {
		t.Errorf("got Runtime.PollInterval %v, want preserved default", cfg.Runtime.PollInterval)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	content := `{
		"system_id": "ensemble-1",
		"submit_timeout": 5000000000,
		"store": {
			"path": "/tmp/ensemble-data"
		}
	}`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := system.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.SystemID != "ensemble-1" {
		t.Errorf("got SystemID %q, want %q", cfg.SystemID, "ensemble-1")
	}
	if cfg.SubmitTimeout != 5*time.Second {
		t.Errorf("got SubmitTimeout %v, want 5s", cfg.SubmitTimeout)
	}
	if cfg.Store.Path != "/tmp/ensemble-data" {
		t.Errorf("got Store.Path %q, want %q", cfg.Store.Path, "/tmp/ensemble-data")
	}
	if cfg.CoordinatorID != "coordinator" {
		t.Errorf("got CoordinatorID %q, want merged default", cfg.CoordinatorID)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := system.LoadConfig("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.json")

	if err := os.WriteFile(configPath, []byte("{invalid}"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := system.LoadConfig(configPath)
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}
