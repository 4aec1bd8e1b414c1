package compression

import (
	"encoding/binary"
	"fmt"

	"github.com/forestrie/go-rootio/rbytes"
)

const (
	// HeaderSize is the block header without the optional checksum
	HeaderSize = 9
	// ChecksumSize is the length of the checksum following LZ4 block headers
	ChecksumSize = 8
)

var headerLayout = rbytes.NewLayout(
	rbytes.Field{Name: "magic", Kind: rbytes.Bytes, Len: 2},
	rbytes.Field{Name: "method", Kind: rbytes.Uint8},
	rbytes.Field{Name: "compressed_size", Kind: rbytes.Bytes, Len: 3},
	rbytes.Field{Name: "uncompressed_size", Kind: rbytes.Bytes, Len: 3},
)

// Header precedes each compressed block of an object payload.
//
// CompressedSize counts the bytes following the 9 byte header, so for LZ4 it
// includes the checksum.
type Header struct {
	Tag              Tag
	Method           uint8
	CompressedSize   uint32
	UncompressedSize uint32
	Checksum         uint64
}

// HasChecksum reports whether the tag carries a checksum field
func (h *Header) HasChecksum() bool { return h.Tag == TagLZ4 }

// Size is the number of header bytes including any checksum
func (h *Header) Size() int {
	if h.HasChecksum() {
		return HeaderSize + ChecksumSize
	}
	return HeaderSize
}

// BlockSize is the length of the compressed data following the header
func (h *Header) BlockSize() int {
	return HeaderSize + int(h.CompressedSize) - h.Size()
}

func (h *Header) Decode(buf []byte, off int) (int, error) {
	v, off, err := headerLayout.Unpack(buf, off)
	if err != nil {
		return off, err
	}
	h.Tag = Tag(v.Bytes("magic"))
	h.Method = uint8(v.Uint("method"))
	h.CompressedSize = rbytes.Uint24LE(v.Bytes("compressed_size"))
	h.UncompressedSize = rbytes.Uint24LE(v.Bytes("uncompressed_size"))
	h.Checksum = 0
	if !h.HasChecksum() {
		return off, nil
	}
	if h.CompressedSize < ChecksumSize {
		return off, fmt.Errorf("%w: %s block of %d bytes cannot hold its checksum",
			ErrBadCompressedSize, h.Tag, h.CompressedSize)
	}
	if err = rbytes.Need(buf, off, ChecksumSize); err != nil {
		return off, err
	}
	h.Checksum = binary.BigEndian.Uint64(buf[off:])
	return off + ChecksumSize, nil
}

func (h *Header) AppendBinary(dst []byte) ([]byte, error) {
	if len(h.Tag) != 2 {
		return dst, fmt.Errorf("%w: tag %q", ErrUnsupportedAlgorithm, h.Tag)
	}
	var sizes [6]byte
	if err := rbytes.PutUint24LE(sizes[:3], h.CompressedSize); err != nil {
		return dst, err
	}
	if err := rbytes.PutUint24LE(sizes[3:], h.UncompressedSize); err != nil {
		return dst, err
	}
	dst = append(dst, h.Tag...)
	dst = append(dst, h.Method)
	dst = append(dst, sizes[:]...)
	if h.HasChecksum() {
		dst = binary.BigEndian.AppendUint64(dst, h.Checksum)
	}
	return dst, nil
}
