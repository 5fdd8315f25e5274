package store

import (
	"context"
	"sync"
)

// MemoryStore keeps decisions for the life of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Decision
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Decision)}
}

func (m *MemoryStore) Save(_ context.Context, d Decision) (Decision, error) {
	d = d.Normalize()
	m.mu.Lock()
	m.items[d.ID] = d
	m.mu.Unlock()
	return d, nil
}

func (m *MemoryStore) List(_ context.Context) ([]Decision, error) {
	m.mu.RLock()
	out := make([]Decision, 0, len(m.items))
	for _, d := range m.items {
		out = append(out, d)
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.items[id]
	if !ok {
		return Decision{}, ErrNotFound
	}
	return d, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}
