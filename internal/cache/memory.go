package cache

import (
	"context"
	"sync"

	"github.com/chazu/makertron/pkg/session"
	"github.com/chazu/makertron/pkg/tessellate"
)

var _ session.Cache = (*Memory)(nil)

// DefaultMemoryEntries bounds a Memory cache created with a non-positive size.
const DefaultMemoryEntries = 256

// Memory is an in-process cache holding at most a fixed number of results.
// The oldest entry is evicted first.
type Memory struct {
	mu      sync.Mutex
	max     int
	entries map[string][]tessellate.Output
	order   []string
}

// NewMemory returns a cache holding up to max results.
func NewMemory(max int) *Memory {
	if max <= 0 {
		max = DefaultMemoryEntries
	}
	return &Memory{max: max, entries: make(map[string][]tessellate.Output)}
}

func (m *Memory) Get(_ context.Context, key string) ([]tessellate.Output, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, ok := m.entries[key]
	return out, ok, nil
}

func (m *Memory) Put(_ context.Context, key string, outputs []tessellate.Output) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		m.order = append(m.order, key)
	}
	m.entries[key] = outputs
	for len(m.order) > m.max {
		delete(m.entries, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

// Len returns the number of cached results.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
