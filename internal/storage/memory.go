package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/starford/tabdex/internal/apperr"
)

// MemoryArea is an in-process Area. Its contents survive only as long as
// the value itself, which lets tests simulate a restart by reusing it
// across fresh trackers.
type MemoryArea struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryArea returns an empty MemoryArea.
func NewMemoryArea() *MemoryArea {
	return &MemoryArea{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *MemoryArea) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("storage: get %s: %w", key, apperr.ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value.
func (m *MemoryArea) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (m *MemoryArea) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

var _ Area = (*MemoryArea)(nil)
