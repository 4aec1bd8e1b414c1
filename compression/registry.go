// Package compression decodes the compressed blocks that object payloads are
// stored in. Each block starts with a Header naming the codec by Tag; a
// Registry maps tags to decompress functions and verifies the LZ4 checksum.
package compression

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/forestrie/go-rootio/rbytes"
)

type RegistryOption func(*Registry)

// WithoutChecksum disables verification of LZ4 block checksums
func WithoutChecksum() RegistryOption {
	return func(r *Registry) { r.verifyChecksum = false }
}

// WithCodec registers fn for tag, replacing any default
func WithCodec(tag Tag, fn DecompressFunc) RegistryOption {
	return func(r *Registry) { r.codecs[tag] = fn }
}

// Registry maps block tags to decompress functions. It is safe for concurrent
// use.
type Registry struct {
	mu             sync.RWMutex
	codecs         map[Tag]DecompressFunc
	verifyChecksum bool
}

// NewRegistry returns a registry with zlib, LZMA and LZ4 implemented, and the
// old algorithm and zstd recognized but not implemented.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		codecs: map[Tag]DecompressFunc{
			TagZlib: ZlibDecompress,
			TagLZMA: LZMADecompress,
			TagOld:  NotImplemented(TagOld),
			TagLZ4:  LZ4Decompress,
			TagZstd: NotImplemented(TagZstd),
		},
		verifyChecksum: true,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) Register(tag Tag, fn DecompressFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrNilDecompressFunc, tag)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[tag] = fn
	return nil
}

func (r *Registry) Lookup(tag Tag) (DecompressFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.codecs[tag]
	if !ok {
		return nil, fmt.Errorf("%w: tag %q", ErrUnsupportedAlgorithm, tag)
	}
	return fn, nil
}

// Decompress inflates a single block whose header has already been decoded.
// block is the compressed data after the header and any checksum.
func (r *Registry) Decompress(h Header, block []byte) ([]byte, error) {
	fn, err := r.Lookup(h.Tag)
	if err != nil {
		return nil, err
	}
	out, err := fn(block, int(h.UncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("%s block: %w", h.Tag, err)
	}
	if len(out) != int(h.UncompressedSize) {
		return nil, fmt.Errorf("%w: %s block inflated to %d bytes, header says %d",
			ErrSizeMismatch, h.Tag, len(out), h.UncompressedSize)
	}
	if r.verifyChecksum && h.HasChecksum() {
		if sum := xxhash.Sum64(out); sum != h.Checksum {
			return nil, fmt.Errorf("%w: %s block has 0x%016x, header says 0x%016x",
				ErrChecksumMismatch, h.Tag, sum, h.Checksum)
		}
	}
	return out, nil
}

// Inflate decompresses an object payload made of one or more consecutive
// blocks until objLen bytes have been produced. Large objects are written as
// several blocks, each limited to what a 3 byte size can express.
func (r *Registry) Inflate(payload []byte, objLen int) ([]byte, error) {
	out := make([]byte, 0, objLen)
	off := 0
	for len(out) < objLen {
		var h Header
		start := off
		next, err := h.Decode(payload, off)
		if err != nil {
			return nil, err
		}
		end := start + HeaderSize + int(h.CompressedSize)
		if err = rbytes.Need(payload, next, end-next); err != nil {
			return nil, fmt.Errorf("%s block at %d: %w", h.Tag, start, err)
		}
		block, err := r.Decompress(h, payload[next:end])
		if err != nil {
			return nil, err
		}
		if len(block) == 0 {
			return nil, fmt.Errorf("%w: empty %s block at %d", ErrSizeMismatch, h.Tag, start)
		}
		out = append(out, block...)
		off = end
	}
	if len(out) != objLen {
		return nil, fmt.Errorf("%w: inflated %d bytes, object length is %d", ErrSizeMismatch, len(out), objLen)
	}
	return out, nil
}
