// Package storage defines the byte range contract that ROOT files are read
// through, and an in-memory implementation. Remote and local implementations
// live in the sub packages.
package storage

import (
	"context"
)

// Stat describes the object behind a ByteSource
type Stat struct {
	Size int64
}

// ByteSource provides random access reads over a single stored object.
//
// Read may return fewer bytes than requested. A read that returns no bytes
// and no error means the offset is at or past the end of the object. Any
// number of reads may be in flight concurrently once the source is open.
type ByteSource interface {
	Open(ctx context.Context) error
	Read(ctx context.Context, offset, size int64) ([]byte, error)
	Stat(ctx context.Context) (Stat, error)
	Close(ctx context.Context) error
}

// Opener creates sources by name. Implementations bind a container, bucket or
// directory so that callers can open several files from the same place.
type Opener interface {
	Source(name string) (ByteSource, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(name string) (ByteSource, error)

func (f OpenerFunc) Source(name string) (ByteSource, error) { return f(name) }

// Clamp limits a read of size bytes at offset to an object of length n. It
// returns the end offset of the read, which equals offset when nothing is
// available.
func Clamp(offset, size, n int64) int64 {
	if offset >= n || size <= 0 {
		return offset
	}
	return min(offset+size, n)
}
