package storage

import (
	"context"
)

type readResult struct {
	data []byte
	err  error
}

// ReadCancelable awaits src.Read(ctx, offset, size) but returns as soon as
// ctx is done. The read runs on its own goroutine and delivers into a
// buffered channel, so a completion that arrives after the caller has gone is
// dropped and never written anywhere the caller can observe.
func ReadCancelable(ctx context.Context, src ByteSource, offset, size int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := make(chan readResult, 1)
	go func() {
		data, err := src.Read(ctx, offset, size)
		done <- readResult{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.data, r.err
	}
}
