package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is the in-process Store used by tests and development. Value
// bytes are copied on both write and read so callers can never alias the
// internal map.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value json.RawMessage) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.mu.Lock()
	m.data[key] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) SetDefault(_ context.Context, key string, value json.RawMessage) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.mu.Lock()
	if _, ok := m.data[key]; !ok {
		m.data[key] = cp
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }
