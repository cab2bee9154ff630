package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// ErrKeyEmpty is returned when a store is asked for the empty key.
var ErrKeyEmpty = errors.New("key is empty")

// MemoryStore keeps numbers for the life of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]float64)}
}

func (m *MemoryStore) LoadNumber(_ context.Context, key string) (float64, bool, error) {
	if key == "" {
		return 0, false, ErrKeyEmpty
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) SaveNumber(_ context.Context, key string, value float64) error {
	if key == "" {
		return ErrKeyEmpty
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func encodeNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func decodeNumber(key, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt value for %s: %w", key, err)
	}
	return v, nil
}
