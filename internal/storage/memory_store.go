package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store, used by tests and by
// the "memory" driver for throwaway runs.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]string
	calls MemoryCalls
}

// MemoryCalls tracks method invocations for test verification.
type MemoryCalls struct {
	Get    int
	Set    int
	Remove int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]string)}
}

// Get returns the value stored under key.
func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++

	v, ok := m.slots[key]
	if !ok {
		return "", ErrKeyNotFound.WithContext("key", key)
	}
	return v, nil
}

// Set stores value under key.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Set++
	m.slots[key] = value
	return nil
}

// Remove deletes key.
func (m *MemoryStore) Remove(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Remove++
	delete(m.slots, key)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Calls returns a snapshot of the invocation counters.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Snapshot returns a copy of all slots.
func (m *MemoryStore) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.slots))
	for k, v := range m.slots {
		out[k] = v
	}
	return out
}
