package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryBackend is a thread-safe in-memory backend, used in tests and as a
// scratch store for hosts that opt out of persistence.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.data[key]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return slices.Clone(data), nil
}

func (b *MemoryBackend) Put(ctx context.Context, key string, data []byte) error {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = slices.Clone(data)
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func (b *MemoryBackend) UsedBytes(ctx context.Context) (int64, error) {
	_ = ctx
	b.mu.RLock()
	defer b.mu.RUnlock()
	var used int64
	for _, data := range b.data {
		used += int64(len(data))
	}
	return used, nil
}

func (b *MemoryBackend) Close() error { return nil }
