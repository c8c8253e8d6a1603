package storage

import (
	"context"
	"sync"

	"poolScope/internal/model"
)

// Registry is the append-only collection of discovered pool contracts.
//
// Append never checks for duplicates. ListAll returns every appended entry in
// append order as a snapshot taken at call time.
type Registry interface {
	Append(ctx context.Context, entry model.RegistryEntry) error
	ListAll(ctx context.Context) ([]model.RegistryEntry, error)
}

// BatchAppender is implemented by registries that can append several entries
// in one write. The entries are stored in slice order.
type BatchAppender interface {
	AppendBatch(ctx context.Context, entries []model.RegistryEntry) error
}

// MemoryRegistry keeps entries in process memory.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries []model.RegistryEntry
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{}
}

func (r *MemoryRegistry) Append(_ context.Context, entry model.RegistryEntry) error {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) ListAll(_ context.Context) ([]model.RegistryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.RegistryEntry, len(r.entries))
	copy(out, r.entries)
	return out, nil
}
