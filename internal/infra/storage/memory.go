package storage

import (
	"strings"
	"sync"
)

// MemoryStore is an in-process Store with an optional byte capacity.
// Used by tests and as a last-resort fallback when the SQLite file
// cannot be opened.
type MemoryStore struct {
	mu       sync.Mutex
	data     map[string]string
	capacity int // total value bytes; 0 = unlimited
}

// NewMemoryStore creates an unlimited in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// NewBoundedMemoryStore creates a store that rejects writes once total
// stored bytes would exceed capacity. Lets tests exercise the
// storage-exhaustion recovery path.
func NewBoundedMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{data: make(map[string]string), capacity: capacity}
}

func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capacity > 0 {
		total := len(value)
		for k, v := range m.data {
			if k == key {
				continue
			}
			total += len(v)
		}
		if total > m.capacity {
			return ErrCapacity
		}
	}
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Keys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *MemoryStore) Close() error { return nil }
