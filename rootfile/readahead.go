package rootfile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/forestrie/go-rootio/storage"
)

// reader issues the byte range reads of one file and counts them
type reader struct {
	src     storage.ByteSource
	log     logger.Logger
	metrics *Metrics

	reads     atomic.Int64
	bytesRead atomic.Int64
}

// read performs a single cancellable read. Source errors are wrapped in
// ErrTransport, context errors are returned as they are.
func (r *reader) read(ctx context.Context, offset, size int64) ([]byte, error) {
	data, err := storage.ReadCancelable(ctx, r.src, offset, size)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read %d bytes at %d: %w", ErrTransport, size, offset, err)
	}
	r.reads.Add(1)
	r.bytesRead.Add(int64(len(data)))
	r.metrics.read(len(data))
	if int64(len(data)) > size {
		data = data[:size]
	}
	return data, nil
}

// readAtLeast reads from offset, asking for up to size bytes per call, until
// at least atLeast bytes are held. Each call after the first asks only for what
// remains of size.
func (r *reader) readAtLeast(ctx context.Context, offset, size, atLeast int64) ([]byte, error) {
	var out []byte
	for int64(len(out)) < atLeast {
		data, err := r.read(ctx, offset+int64(len(out)), size-int64(len(out)))
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: need %d bytes at %d, source ended after %d",
				ErrTruncated, atLeast, offset, len(out))
		}
		out = append(out, data...)
	}
	return out, nil
}

// readExact reads exactly size bytes at offset
func (r *reader) readExact(ctx context.Context, offset, size int64) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative length %d at %d", ErrTruncated, size, offset)
	}
	if size == 0 {
		return []byte{}, nil
	}
	return r.readAtLeast(ctx, offset, size, size)
}

// readahead is the append only prefix of the file read while opening it.
// Only the goroutine running Open touches it.
type readahead struct {
	*reader
	step    int64
	buf     []byte
	growths int
}

// start issues the initial speculative read of step bytes at offset zero
func (ra *readahead) start(ctx context.Context) error {
	data, err := ra.readAtLeast(ctx, 0, ra.step, 1)
	if err != nil {
		return err
	}
	ra.buf = data
	return nil
}

// ensure grows the buffer until it covers [0, need). Growth reads at least
// step bytes, or the whole shortfall when that is larger, and is logged as
// a warning because it costs an extra round trip.
func (ra *readahead) ensure(ctx context.Context, need int64, what string) error {
	have := int64(len(ra.buf))
	if need <= have {
		return nil
	}
	shortfall := need - have
	more := max(shortfall, ra.step)
	ra.growths++
	ra.metrics.growth()
	ra.log.Infof("warning: readahead too small to reach %s, have %d bytes, need %d, reading %d more",
		what, have, need, more)

	data, err := ra.readAtLeast(ctx, have, more, shortfall)
	if err != nil {
		return err
	}
	ra.buf = append(ra.buf, data...)
	return nil
}
