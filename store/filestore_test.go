package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ensemble-systems/ensemble/store"
)

func TestFileStore_RoundTrip(t *testing.T) {
	root := t.TempDir()
	s := store.NewFileStore(root)

	original := []store.Entry{
		{Key: store.ResultKey("task-1"), Value: []byte(`{"status":"success"}`)},
		{Key: store.ResultKey("task-2"), Value: []byte(`{"status":"error"}`)},
		{Key: "notes/readme", Value: []byte("run log")},
	}

	if err := s.Save(context.Background(), original...); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	keys, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"notes/readme", "results/task-1", "results/task-2"}
	if len(keys) != len(want) {
		t.Fatalf("List() returned %d keys, want %d", len(keys), len(want))
	}
	for i, key := range keys {
		if key != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, key, want[i])
		}
	}

	loaded, err := s.Load(context.Background(), keys...)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := make(map[string]string, len(loaded))
	for _, entry := range loaded {
		got[entry.Key] = string(entry.Value)
	}
	for _, entry := range original {
		if got[entry.Key] != string(entry.Value) {
			t.Errorf("key %q: value = %q, want %q", entry.Key, got[entry.Key], string(entry.Value))
		}
	}
}

func TestFileStore_List_MissingRoot(t *testing.T) {
	s := store.NewFileStore(filepath.Join(t.TempDir(), "nonexistent"))

	keys, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("List() returned %d keys, want 0", len(keys))
	}
}

func TestFileStore_List_SkipsHidden(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "results/task-1", "{}")
	writeTestFile(t, root, "results/.tmp-12345", "partial write")
	writeTestFile(t, root, ".git/config", "junk")

	s := store.NewFileStore(root)
	keys, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != "results/task-1" {
		t.Errorf("List() = %v, want only results/task-1", keys)
	}
}

func TestFileStore_Load_KeyNotFound(t *testing.T) {
	s := store.NewFileStore(t.TempDir())

	_, err := s.Load(context.Background(), store.ResultKey("missing"))
	if !errors.Is(err, store.ErrKeyNotFound) {
		t.Errorf("Load() error = %v, want %v", err, store.ErrKeyNotFound)
	}
}

func TestFileStore_Save_Overwrite(t *testing.T) {
	root := t.TempDir()
	s := store.NewFileStore(root)
	key := store.ResultKey("task-1")

	if err := s.Save(context.Background(), store.Entry{Key: key, Value: []byte("v1")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(context.Background(), store.Entry{Key: key, Value: []byte("v2")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "results", "task-1"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("file content = %q, want %q", string(got), "v2")
	}
}

func TestFileStore_InvalidKeys(t *testing.T) {
	s := store.NewFileStore(t.TempDir())
	ctx := context.Background()

	keys := []string{
		"",
		"/etc/passwd",
		"../escape",
		"results/../../escape",
		"./results/task-1",
		"results/task-1/",
	}

	for _, key := range keys {
		if err := s.Save(ctx, store.Entry{Key: key, Value: []byte("x")}); !errors.Is(err, store.ErrInvalidKey) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidKey", key, err)
		}
		if _, err := s.Load(ctx, key); !errors.Is(err, store.ErrInvalidKey) {
			t.Errorf("Load(%q) error = %v, want ErrInvalidKey", key, err)
		}
		if err := s.Delete(ctx, key); !errors.Is(err, store.ErrInvalidKey) {
			t.Errorf("Delete(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestFileStore_Delete(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "results/task-1", "{}")
	writeTestFile(t, root, "notes/a", "a")
	writeTestFile(t, root, "notes/b", "b")

	s := store.NewFileStore(root)

	if err := s.Delete(context.Background(), "results/task-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "results")); !os.IsNotExist(err) {
		t.Error("emptied results directory should be pruned")
	}

	// A parent with remaining entries stays
	if err := s.Delete(context.Background(), "notes/a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "notes")); os.IsNotExist(err) {
		t.Error("notes directory should survive while b remains")
	}

	// Missing keys are not an error
	if err := s.Delete(context.Background(), "results/ghost"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
}

// writeTestFile creates a file with the given content under root.
func writeTestFile(t *testing.T, root, key, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}
