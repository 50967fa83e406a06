package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryKV keeps the document in process memory. Used for tests and for
// ephemeral daemons.
type MemoryKV struct {
	mu       sync.RWMutex
	doc      document
	watchers map[chan struct{}]struct{}
	closed   bool
}

// NewMemoryKV returns an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		doc:      document{},
		watchers: make(map[chan struct{}]struct{}),
	}
}

func (m *MemoryKV) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.doc.pick(keys), nil
}

func (m *MemoryKV) Set(ctx context.Context, values map[string]any) error {
	return m.Update(ctx, nil, set(values))
}

func (m *MemoryKV) Update(ctx context.Context, keys []string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	next, err := m.doc.apply(keys, fn)
	if err != nil || next == nil {
		return err
	}
	m.doc = next

	for ch := range m.watchers {
		signal(ch)
	}
	return nil
}

func (m *MemoryKV) Watch(ctx context.Context) (<-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	ch := make(chan struct{}, 1)
	m.watchers[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		if _, ok := m.watchers[ch]; ok {
			delete(m.watchers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}()

	return ch, nil
}

// Close releases all watchers.
func (m *MemoryKV) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for ch := range m.watchers {
		delete(m.watchers, ch)
		close(ch)
	}
	return nil
}
