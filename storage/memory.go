package storage

import (
	"context"
	"fmt"
	"sync"
)

type MemoryOption func(*MemorySource)

// WithMaxRead limits every read to at most n bytes, the way a transport that
// delivers in fixed chunks would.
func WithMaxRead(n int64) MemoryOption {
	return func(m *MemorySource) { m.maxRead = n }
}

// WithoutOpen makes the source readable without an Open call
func WithoutOpen() MemoryOption {
	return func(m *MemorySource) { m.open = true }
}

// MemorySource serves reads from a byte slice. Reads return copies.
type MemorySource struct {
	mu      sync.RWMutex
	data    []byte
	maxRead int64
	open    bool
}

func NewMemorySource(data []byte, opts ...MemoryOption) *MemorySource {
	m := &MemorySource{data: data}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *MemorySource) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

func (m *MemorySource) Read(ctx context.Context, offset, size int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.open {
		return nil, ErrClosed
	}
	if offset < 0 || size < 0 {
		return nil, fmt.Errorf("%w: offset %d size %d", ErrInvalidRange, offset, size)
	}
	if m.maxRead > 0 {
		size = min(size, m.maxRead)
	}
	end := Clamp(offset, size, int64(len(m.data)))
	if end == offset {
		return nil, nil
	}
	out := make([]byte, end-offset)
	copy(out, m.data[offset:end])
	return out, nil
}

func (m *MemorySource) Stat(ctx context.Context) (Stat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.open {
		return Stat{}, ErrClosed
	}
	return Stat{Size: int64(len(m.data))}, nil
}

func (m *MemorySource) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}
