package cache

import (
	"context"
	"sync"
)

// DefaultMemoryCap bounds the in-memory cache; the oldest entries are
// evicted first.
const DefaultMemoryCap = 256

// Memory is a capped in-process cache.
type Memory struct {
	mu      sync.Mutex
	entries map[string]string
	order   []string
	cap     int
}

// NewMemory creates an in-memory cache. capacity <= 0 falls back to
// DefaultMemoryCap.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCap
	}
	return &Memory{
		entries: make(map[string]string),
		cap:     capacity,
	}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists {
		m.order = append(m.order, key)
		for len(m.order) > m.cap {
			oldest := m.order[0]
			m.order = m.order[1:]
			delete(m.entries, oldest)
		}
	}
	m.entries[key] = value
}
