package storage

import (
	"context"
	"sync"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
)

// MemoryAdapter keeps carts in process memory.
type MemoryAdapter struct {
	mu    sync.Mutex
	carts map[string][]domain.LineEntry
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{carts: make(map[string][]domain.LineEntry)}
}

func (m *MemoryAdapter) Load(_ context.Context, key string) ([]domain.LineEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.carts[key]
	if !ok {
		return nil, nil
	}
	return append([]domain.LineEntry(nil), entries...), nil
}

func (m *MemoryAdapter) Save(_ context.Context, key string, entries []domain.LineEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.carts[key] = append([]domain.LineEntry(nil), entries...)
	return nil
}

func (m *MemoryAdapter) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, key)
	return nil
}
