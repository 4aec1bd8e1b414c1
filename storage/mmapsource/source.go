// Package mmapsource serves ROOT files from the local filesystem through a
// read only shared memory map.
package mmapsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/forestrie/go-rootio/storage"
	"golang.org/x/sys/unix"
)

// Source maps the whole file on Open and unmaps it on Close. Reads copy out
// of the mapping, so returned slices stay valid after Close.
type Source struct {
	path string

	mu   sync.RWMutex
	file *os.File
	data []byte
	size int64
	open bool
}

func New(path string) *Source {
	return &Source{path: path}
}

// Opener returns a storage.Opener resolving names relative to dir
func Opener(dir string) storage.Opener {
	return storage.OpenerFunc(func(name string) (storage.ByteSource, error) {
		return New(filepath.Join(dir, name)), nil
	})
}

func (s *Source) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", s.path, storage.ErrNotFound)
		}
		return err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	// zero length mappings are rejected by the kernel
	var data []byte
	if fi.Size() > 0 {
		data, err = unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			return fmt.Errorf("mmap %s: %w", s.path, err)
		}
	}
	s.file, s.data, s.size, s.open = f, data, fi.Size(), true
	return nil
}

func (s *Source) Read(ctx context.Context, offset, size int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, storage.ErrClosed
	}
	if offset < 0 || size < 0 {
		return nil, fmt.Errorf("%w: offset %d size %d", storage.ErrInvalidRange, offset, size)
	}
	end := storage.Clamp(offset, size, s.size)
	if end == offset {
		return nil, nil
	}
	out := make([]byte, end-offset)
	copy(out, s.data[offset:end])
	return out, nil
}

func (s *Source) Stat(ctx context.Context) (storage.Stat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return storage.Stat{}, storage.ErrClosed
	}
	return storage.Stat{Size: s.size}, nil
}

func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	var errs []error
	if s.data != nil {
		errs = append(errs, unix.Munmap(s.data))
	}
	errs = append(errs, s.file.Close())
	s.file, s.data, s.size, s.open = nil, nil, 0, false
	return errors.Join(errs...)
}
