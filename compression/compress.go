package compression

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/forestrie/go-rootio/rbytes"
)

type encoder struct {
	method   uint8
	compress CompressFunc
}

var encoders = map[Tag]encoder{
	TagZlib: {method: 8, compress: zlibCompress},
	TagLZMA: {method: 0, compress: lzmaCompress},
	TagLZ4:  {method: 1, compress: lz4Compress},
	TagZstd: {method: 0, compress: zstdCompress},
}

// MaxBlockSize is the largest input a single block can hold
const MaxBlockSize = rbytes.MaxUint24

// Compress encodes data as one or more blocks, each with its header, the way
// object payloads are stored.
func Compress(tag Tag, data []byte) ([]byte, error) {
	return CompressBlocks(tag, data, MaxBlockSize)
}

// CompressBlocks is Compress with an explicit limit on the uncompressed size
// of each block.
func CompressBlocks(tag Tag, data []byte, blockSize int) ([]byte, error) {
	enc, ok := encoders[tag]
	if !ok {
		if tag == TagOld {
			return nil, fmt.Errorf("%w: %s", ErrNotImplemented, tag)
		}
		return nil, fmt.Errorf("%w: tag %q", ErrUnsupportedAlgorithm, tag)
	}
	if blockSize <= 0 || blockSize > MaxBlockSize {
		blockSize = MaxBlockSize
	}

	var out []byte
	for start := 0; start < len(data); start += blockSize {
		chunk := data[start:min(start+blockSize, len(data))]
		block, err := enc.compress(chunk)
		if err != nil {
			return nil, fmt.Errorf("%s block at %d: %w", tag, start, err)
		}
		h := Header{
			Tag:              tag,
			Method:           enc.method,
			CompressedSize:   uint32(len(block)),
			UncompressedSize: uint32(len(chunk)),
		}
		if h.HasChecksum() {
			h.CompressedSize += ChecksumSize
			h.Checksum = xxhash.Sum64(chunk)
		}
		if out, err = h.AppendBinary(out); err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	return out, nil
}
