package compression

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// DecompressFunc inflates one block. uncompressedSize comes from the block
// header; LZ4 blocks are not self describing and need it.
type DecompressFunc func(src []byte, uncompressedSize int) ([]byte, error)

// CompressFunc deflates one block, without the block header
type CompressFunc func(data []byte) ([]byte, error)

// readAllLimited reads at most one byte more than expected so an over long
// stream is caught by the size check rather than read in full.
func readAllLimited(r io.Reader, uncompressedSize int) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, int64(uncompressedSize)+1))
}

func ZlibDecompress(src []byte, uncompressedSize int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readAllLimited(r, uncompressedSize)
}

func LZMADecompress(src []byte, uncompressedSize int) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	return readAllLimited(r, uncompressedSize)
}

func LZ4Decompress(src []byte, uncompressedSize int) ([]byte, error) {
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

var zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
})

// ZstdDecompress is not registered by default. Files written with zstd are
// reported as not implemented unless a caller registers this for TagZstd.
func ZstdDecompress(src []byte, uncompressedSize int) ([]byte, error) {
	d, err := zstdDecoder()
	if err != nil {
		return nil, err
	}
	return d.DecodeAll(src, make([]byte, 0, uncompressedSize))
}

// NotImplemented returns a DecompressFunc for a tag that is recognized but
// has no decoder.
func NotImplemented(tag Tag) DecompressFunc {
	return func([]byte, int) ([]byte, error) {
		return nil, fmt.Errorf("%w: %s", ErrNotImplemented, tag)
	}
}

func zlibCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(data); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lzmaCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(data); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4Compress(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %d bytes with %s", ErrIncompressible, len(data), TagLZ4)
	}
	return dst[:n], nil
}

var zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(3)))
})

func zstdCompress(data []byte) ([]byte, error) {
	e, err := zstdEncoder()
	if err != nil {
		return nil, err
	}
	return e.EncodeAll(data, make([]byte, 0, len(data))), nil
}
