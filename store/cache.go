package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Cache provides session-scoped access to a Store. Writes accumulate in
// memory until Flush pushes them to the backing store, so a running system
// can record results without blocking on I/O. Reads hit only what Bootstrap
// or Resolve loaded. All methods are safe for concurrent use.
type Cache struct {
	store Store
	cache map[string][]byte
	dirty map[string]bool
	mu    sync.RWMutex
}

// NewCache creates a Cache backed by the given Store.
func NewCache(store Store) *Cache {
	return &Cache{
		store: store,
		cache: make(map[string][]byte),
		dirty: make(map[string]bool),
	}
}

// Bootstrap preloads every entry under the given key prefix.
func (c *Cache) Bootstrap(ctx context.Context, prefix string) error {
	keys, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap list: %w", err)
	}

	var toLoad []string
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			toLoad = append(toLoad, key)
		}
	}
	if len(toLoad) == 0 {
		return nil
	}

	entries, err := c.store.Load(ctx, toLoad...)
	if err != nil {
		return fmt.Errorf("bootstrap load: %w", err)
	}

	c.mu.Lock()
	for _, e := range entries {
		c.cache[e.Key] = e.Value
	}
	c.mu.Unlock()

	return nil
}

// Resolve loads the given keys from the backing store unless already cached.
func (c *Cache) Resolve(ctx context.Context, keys ...string) error {
	c.mu.RLock()
	var toLoad []string
	for _, key := range keys {
		if _, cached := c.cache[key]; !cached {
			toLoad = append(toLoad, key)
		}
	}
	c.mu.RUnlock()

	if len(toLoad) == 0 {
		return nil
	}

	entries, err := c.store.Load(ctx, toLoad...)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	c.mu.Lock()
	for _, e := range entries {
		c.cache[e.Key] = e.Value
	}
	c.mu.Unlock()

	return nil
}

// Flush writes pending changes to the backing store and clears the dirty
// tracking. Unchanged entries are not rewritten.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.RLock()
	var toSave []Entry
	for key := range c.dirty {
		toSave = append(toSave, Entry{Key: key, Value: c.cache[key]})
	}
	c.mu.RUnlock()

	if len(toSave) == 0 {
		return nil
	}
	if err := c.store.Save(ctx, toSave...); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	c.mu.Lock()
	c.dirty = make(map[string]bool)
	c.mu.Unlock()

	return nil
}

func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(val), true
}

func (c *Cache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[key] = slices.Clone(value)
	c.dirty[key] = true
}

// Entries returns the loaded entries under prefix in key order.
func (c *Cache) Entries(prefix string) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var entries []Entry
	for key, val := range c.cache {
		if strings.HasPrefix(key, prefix) {
			entries = append(entries, Entry{Key: key, Value: slices.Clone(val)})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}
