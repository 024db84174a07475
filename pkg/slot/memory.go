package slot

import (
	"context"
	"sync"
)

// Memory is an in-process Backend used by tests and the `memory` driver.
// Blobs are copied on the way in and out so callers cannot alias stored data.
type Memory struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed bool
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	b, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(b), nil
}

func (m *Memory) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[key] = clone(data)
	return nil
}

// Update holds the backend lock for the whole cycle, so it never conflicts.
func (m *Memory) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	var current []byte
	if b, ok := m.data[key]; ok {
		current = clone(b)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	m.data[key] = clone(next)
	return nil
}

// Close makes every later call fail with ErrClosed. The data is kept.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
