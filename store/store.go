// Package store persists task results and shared artifacts produced by the
// agent ensemble. It exposes a flat key-value contract backed by pluggable
// storage, with a session-scoped write-through cache.
package store

import "context"

// NamespaceResults prefixes keys holding recorded task results.
const NamespaceResults = "results"

// ResultKey returns the storage key for a task result.
func ResultKey(taskID string) string {
	return NamespaceResults + "/" + taskID
}

// Entry is a key-value pair. Keys are /-separated hierarchical paths and
// values are raw bytes.
type Entry struct {
	Key   string
	Value []byte
}

// Store translates between external storage and the key-value namespace.
// Implementations are stateless and perform I/O on each call without
// caching.
type Store interface {
	// List returns all available keys in the store.
	List(ctx context.Context) ([]string, error)
	// Load retrieves entries for the specified keys.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save persists entries to storage, creating or overwriting as needed.
	Save(ctx context.Context, entries ...Entry) error
	// Delete removes entries from storage. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
