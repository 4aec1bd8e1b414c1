// Package workers bounds the CPU bound work done while reading files, chiefly
// decompression, so that it runs apart from the goroutines awaiting reads.
package workers

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool admits at most Size concurrent tasks. The zero value is not usable,
// use NewPool.
type Pool struct {
	size int64
	sem  *semaphore.Weighted
}

// NewPool returns a pool of the given size. A size below one means
// runtime.GOMAXPROCS(0).
func NewPool(size int) *Pool {
	if size < 1 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{size: int64(size), sem: semaphore.NewWeighted(int64(size))}
}

func (p *Pool) Size() int { return int(p.size) }

type result[T any] struct {
	value T
	err   error
}

// Do runs fn on a pool goroutine once a slot is free and waits for its
// result. If ctx ends while waiting for a slot, or while fn runs, Do returns
// ctx.Err(); a fn that is already running completes and its result is
// discarded.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	done := make(chan result[T], 1)
	go func() {
		defer p.sem.Release(1)
		v, err := fn()
		done <- result[T]{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}
