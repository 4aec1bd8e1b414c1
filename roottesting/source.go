package roottesting

import (
	"context"
	"sync"

	"github.com/forestrie/go-rootio/storage"
)

// ReadCall records one Read made through a CountingSource
type ReadCall struct {
	Offset   int64
	Size     int64
	Returned int
}

// CountingSource wraps a source and records every read. It can also be set
// to fail a chosen read.
type CountingSource struct {
	storage.ByteSource

	mu      sync.Mutex
	calls   []ReadCall
	failAt  int
	failErr error
}

func NewCountingSource(src storage.ByteSource) *CountingSource {
	return &CountingSource{ByteSource: src, failAt: -1}
}

// FailRead makes the read with zero based index n return err
func (c *CountingSource) FailRead(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAt, c.failErr = n, err
}

func (c *CountingSource) Read(ctx context.Context, offset, size int64) ([]byte, error) {
	c.mu.Lock()
	n := len(c.calls)
	c.calls = append(c.calls, ReadCall{Offset: offset, Size: size})
	fail := n == c.failAt
	failErr := c.failErr
	c.mu.Unlock()
	if fail {
		return nil, failErr
	}

	data, err := c.ByteSource.Read(ctx, offset, size)

	c.mu.Lock()
	c.calls[n].Returned = len(data)
	c.mu.Unlock()
	return data, err
}

func (c *CountingSource) Calls() []ReadCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	calls := make([]ReadCall, len(c.calls))
	copy(calls, c.calls)
	return calls
}

func (c *CountingSource) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *CountingSource) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}
