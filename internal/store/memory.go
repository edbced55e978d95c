package store

import (
	"context"
	"sync"

	"github.com/BradenHooton/admingate/internal/models"
)

// MemoryStore is a process-local SessionStore. It backs tab-scoped storage and
// single-node deployments, and is the fake used by gatekeeper tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
	hub  *hub
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]string),
		hub:  newHub(),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return "", models.ErrNotFound
	}
	return value, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()

	m.hub.publish(Change{Key: key, Value: value})
	return nil
}

// Delete removes key. Like browser storage, no notification fires for a key that was absent.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	_, existed := m.data[key]
	delete(m.data, key)
	m.mu.Unlock()

	if existed {
		m.hub.publish(Change{Key: key, Deleted: true})
	}
	return nil
}

func (m *MemoryStore) Subscribe(key string, fn func(Change)) (func(), error) {
	return m.hub.subscribe(key, fn), nil
}

// Len returns the number of stored keys
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close stops all subscriptions
func (m *MemoryStore) Close() {
	m.hub.close()
}

var _ SessionStore = (*MemoryStore)(nil)
