package rbytes

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// LongStringMarker in the 1-byte length prefix announces a 4-byte length
	LongStringMarker = 255
	MaxUint24        = 1<<24 - 1
)

var (
	ErrShortBuffer    = errors.New("buffer too short for the requested field")
	ErrStringTooLong  = errors.New("string length exceeds the 32 bit length prefix")
	ErrUint24Overflow = errors.New("value does not fit in 3 bytes")
)

// ReadString decodes a length prefixed string. The length is a single byte,
// unless that byte is LongStringMarker in which case a big-endian int32 length
// follows.
func ReadString(buf []byte, off int) (string, int, error) {
	if err := Need(buf, off, 1); err != nil {
		return "", off, err
	}
	n := int(buf[off])
	off++
	if n == LongStringMarker {
		if err := Need(buf, off, 4); err != nil {
			return "", off, err
		}
		n32 := int32(binary.BigEndian.Uint32(buf[off:]))
		off += 4
		if n32 < 0 {
			return "", off, fmt.Errorf("%w: negative string length %d", ErrShortBuffer, n32)
		}
		n = int(n32)
	}
	if err := Need(buf, off, n); err != nil {
		return "", off, err
	}
	return string(buf[off : off+n]), off + n, nil
}

// AppendString appends the length prefixed encoding of s to dst
func AppendString(dst []byte, s string) ([]byte, error) {
	if len(s) > math.MaxInt32 {
		return dst, ErrStringTooLong
	}
	if len(s) < LongStringMarker {
		dst = append(dst, byte(len(s)))
	} else {
		dst = append(dst, LongStringMarker)
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(s)))
	}
	return append(dst, s...), nil
}

// StringSize returns the encoded size of s
func StringSize(s string) int {
	if len(s) < LongStringMarker {
		return 1 + len(s)
	}
	return 5 + len(s)
}

// Uint24LE decodes a 3 byte size field. These are the only fields in the
// format stored in the opposite byte order: a zero byte is appended and the
// result is read little-endian.
func Uint24LE(b []byte) uint32 {
	var word [4]byte
	copy(word[:3], b[:3])
	return binary.LittleEndian.Uint32(word[:])
}

// PutUint24LE encodes v into the first 3 bytes of b
func PutUint24LE(b []byte, v uint32) error {
	if v > MaxUint24 {
		return fmt.Errorf("%w: %d", ErrUint24Overflow, v)
	}
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], v)
	copy(b[:3], word[:3])
	return nil
}
