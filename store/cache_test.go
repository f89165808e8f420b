package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ensemble-systems/ensemble/store"
)

func TestCache_Bootstrap(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "results/task-1", `{"status":"success"}`)
	writeTestFile(t, root, "notes/readme", "run log")

	cache := store.NewCache(store.NewFileStore(root))
	if err := cache.Bootstrap(context.Background(), store.NamespaceResults+"/"); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	val, ok := cache.Get("results/task-1")
	if !ok {
		t.Fatal("Get(results/task-1) = false, want preloaded")
	}
	if string(val) != `{"status":"success"}` {
		t.Errorf("Get(results/task-1) = %q, want result JSON", string(val))
	}
	if _, ok := cache.Get("notes/readme"); ok {
		t.Error("Get(notes/readme) should miss, outside the prefix")
	}
}

func TestCache_Resolve(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "results/task-1", "{}")

	cache := store.NewCache(store.NewFileStore(root))

	if err := cache.Resolve(context.Background(), "results/task-1"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, ok := cache.Get("results/task-1"); !ok {
		t.Error("Get() = false, want cached after Resolve")
	}

	// Second resolve is served from memory
	if err := cache.Resolve(context.Background(), "results/task-1"); err != nil {
		t.Errorf("Resolve() second call error = %v", err)
	}
}

func TestCache_SetFlush(t *testing.T) {
	root := t.TempDir()
	backing := store.NewFileStore(root)
	cache := store.NewCache(backing)

	key := store.ResultKey("task-1")
	cache.Set(key, []byte(`{"status":"success"}`))

	// Not on disk until Flush
	if _, err := backing.Load(context.Background(), key); err == nil {
		t.Error("Load() before Flush should fail, value must stay in memory")
	}

	if err := cache.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	entries, err := backing.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("Load() after Flush error = %v", err)
	}
	if string(entries[0].Value) != `{"status":"success"}` {
		t.Errorf("persisted value = %q, want result JSON", string(entries[0].Value))
	}

	// A second flush has nothing to write
	if err := cache.Flush(context.Background()); err != nil {
		t.Errorf("Flush() second call error = %v", err)
	}
}

func TestCache_Entries_PrefixFilter(t *testing.T) {
	cache := store.NewCache(store.NewFileStore(t.TempDir()))

	cache.Set(store.ResultKey("task-2"), []byte("two"))
	cache.Set(store.ResultKey("task-1"), []byte("one"))
	cache.Set("notes/readme", []byte("log"))

	entries := cache.Entries(store.NamespaceResults + "/")
	if len(entries) != 2 {
		t.Fatalf("Entries() returned %d, want 2", len(entries))
	}
	if entries[0].Key != "results/task-1" || entries[1].Key != "results/task-2" {
		t.Errorf("Entries() keys = %v, want sorted results keys", []string{entries[0].Key, entries[1].Key})
	}
}

func TestCache_Concurrent(t *testing.T) {
	cache := store.NewCache(store.NewFileStore(t.TempDir()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := store.ResultKey(fmt.Sprintf("task-%d", n))
			cache.Set(key, []byte("x"))
			cache.Get(key)
			cache.Entries(store.NamespaceResults + "/")
		}(i)
	}
	wg.Wait()

	if got := len(cache.Entries(store.NamespaceResults + "/")); got != 8 {
		t.Errorf("Entries() returned %d, want 8", got)
	}
}
