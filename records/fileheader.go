package records

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/forestrie/go-rootio/rbytes"
)

const (
	Magic = "root"

	// LargeFileVersion is the file format version at and above which the
	// header carries 64 bit seek fields
	LargeFileVersion = 1000000

	UUIDBytes = 18 // 2 byte uuid version followed by 16 bytes of uuid
)

var (
	fileHeaderPrefix = rbytes.NewLayout(
		rbytes.Field{Name: "magic", Kind: rbytes.Bytes, Len: 4},
		rbytes.Field{Name: "fVersion", Kind: rbytes.Int32},
		rbytes.Field{Name: "fBEGIN", Kind: rbytes.Int32},
	)
	fileHeaderSmall = rbytes.NewLayout(
		rbytes.Field{Name: "fEND", Kind: rbytes.Int32},
		rbytes.Field{Name: "fSeekFree", Kind: rbytes.Int32},
		rbytes.Field{Name: "fNbytesFree", Kind: rbytes.Int32},
		rbytes.Field{Name: "nfree", Kind: rbytes.Int32},
		rbytes.Field{Name: "fNbytesName", Kind: rbytes.Int32},
		rbytes.Field{Name: "fUnits", Kind: rbytes.Uint8},
		rbytes.Field{Name: "fCompress", Kind: rbytes.Int32},
		rbytes.Field{Name: "fSeekInfo", Kind: rbytes.Int32},
		rbytes.Field{Name: "fNbytesInfo", Kind: rbytes.Int32},
		rbytes.Field{Name: "fUUID", Kind: rbytes.Bytes, Len: UUIDBytes},
	)
	fileHeaderBig = rbytes.NewLayout(
		rbytes.Field{Name: "fEND", Kind: rbytes.Int64},
		rbytes.Field{Name: "fSeekFree", Kind: rbytes.Int64},
		rbytes.Field{Name: "fNbytesFree", Kind: rbytes.Int32},
		rbytes.Field{Name: "nfree", Kind: rbytes.Int32},
		rbytes.Field{Name: "fNbytesName", Kind: rbytes.Int32},
		rbytes.Field{Name: "fUnits", Kind: rbytes.Uint8},
		rbytes.Field{Name: "fCompress", Kind: rbytes.Int32},
		rbytes.Field{Name: "fSeekInfo", Kind: rbytes.Int64},
		rbytes.Field{Name: "fNbytesInfo", Kind: rbytes.Int32},
		rbytes.Field{Name: "fUUID", Kind: rbytes.Bytes, Len: UUIDBytes},
	)
)

// FileHeaderPrefixSize is enough to learn the version, and so the full size of the header
var FileHeaderPrefixSize = fileHeaderPrefix.Size()

// FileHeaderSize returns the encoded size of the header for the given format version
func FileHeaderSize(version int32) int {
	if version < LargeFileVersion {
		return fileHeaderPrefix.Size() + fileHeaderSmall.Size()
	}
	return fileHeaderPrefix.Size() + fileHeaderBig.Size()
}

// PeekFileVersion reads the format version from a buffer holding at least
// FileHeaderPrefixSize bytes. The magic is not checked.
func PeekFileVersion(buf []byte) (int32, error) {
	v, _, err := fileHeaderPrefix.Unpack(buf, 0)
	if err != nil {
		return 0, err
	}
	return int32(v.Int("fVersion")), nil
}

// FileHeader is the record at offset zero of every file
type FileHeader struct {
	Magic       [4]byte
	Version     int32
	Begin       int32
	End         int64
	SeekFree    int64
	NbytesFree  int32
	NFree       int32
	NbytesName  int32
	Units       uint8
	Compress    int32
	SeekInfo    int64
	NbytesInfo  int32
	UUIDVersion uint16
	UUID        uuid.UUID
}

// Decode decodes the header. The returned offset is Begin, the bytes between
// the end of the header and Begin are reserved and ignored.
func (h *FileHeader) Decode(buf []byte, off int) (int, error) {
	v, off, err := fileHeaderPrefix.Unpack(buf, off)
	if err != nil {
		return off, err
	}
	copy(h.Magic[:], v.Bytes("magic"))
	if string(h.Magic[:]) != Magic {
		return off, fmt.Errorf("%w: got %q", ErrMagicMismatch, h.Magic[:])
	}
	h.Version = int32(v.Int("fVersion"))
	h.Begin = int32(v.Int("fBEGIN"))

	layout := fileHeaderSmall
	if h.IsLarge() {
		layout = fileHeaderBig
	}
	if v, off, err = layout.Unpack(buf, off); err != nil {
		return off, err
	}
	h.End = v.Int("fEND")
	h.SeekFree = v.Int("fSeekFree")
	h.NbytesFree = int32(v.Int("fNbytesFree"))
	h.NFree = int32(v.Int("nfree"))
	h.NbytesName = int32(v.Int("fNbytesName"))
	h.Units = uint8(v.Uint("fUnits"))
	h.Compress = int32(v.Int("fCompress"))
	h.SeekInfo = v.Int("fSeekInfo")
	h.NbytesInfo = int32(v.Int("fNbytesInfo"))

	raw := v.Bytes("fUUID")
	h.UUIDVersion = binary.BigEndian.Uint16(raw[:2])
	if h.UUID, err = uuid.FromBytes(raw[2:]); err != nil {
		return off, err
	}

	if int(h.Begin) < off {
		return off, fmt.Errorf(
			"%w: begin offset %d is inside the %d byte file header", ErrFramingViolation, h.Begin, off)
	}
	return int(h.Begin), nil
}

// IsLarge is true when the header and the records it points at use 64 bit seeks
func (h *FileHeader) IsLarge() bool { return h.Version >= LargeFileVersion }

// Size is the offset of the first key in the file
func (h *FileHeader) Size() int { return int(h.Begin) }

// CompressionAlgorithm returns the algorithm part of the compression
// setting. The setting is 100 * algorithm + level.
func (h *FileHeader) CompressionAlgorithm() int32 { return h.Compress / 100 }

// CompressionLevel returns the level part of the compression setting
func (h *FileHeader) CompressionLevel() int32 { return h.Compress % 100 }

// AppendBinary encodes the header and pads with zeros up to Begin
func (h *FileHeader) AppendBinary(dst []byte) ([]byte, error) {
	start := len(dst)
	dst = append(dst, h.Magic[:]...)
	dst = binary.BigEndian.AppendUint32(dst, uint32(h.Version))
	dst = binary.BigEndian.AppendUint32(dst, uint32(h.Begin))
	if h.IsLarge() {
		dst = binary.BigEndian.AppendUint64(dst, uint64(h.End))
		dst = binary.BigEndian.AppendUint64(dst, uint64(h.SeekFree))
	} else {
		dst = binary.BigEndian.AppendUint32(dst, uint32(h.End))
		dst = binary.BigEndian.AppendUint32(dst, uint32(h.SeekFree))
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(h.NbytesFree))
	dst = binary.BigEndian.AppendUint32(dst, uint32(h.NFree))
	dst = binary.BigEndian.AppendUint32(dst, uint32(h.NbytesName))
	dst = append(dst, h.Units)
	dst = binary.BigEndian.AppendUint32(dst, uint32(h.Compress))
	if h.IsLarge() {
		dst = binary.BigEndian.AppendUint64(dst, uint64(h.SeekInfo))
	} else {
		dst = binary.BigEndian.AppendUint32(dst, uint32(h.SeekInfo))
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(h.NbytesInfo))
	dst = binary.BigEndian.AppendUint16(dst, h.UUIDVersion)
	dst = append(dst, h.UUID[:]...)

	written := len(dst) - start
	if int(h.Begin) < written {
		return dst, fmt.Errorf("%w: begin %d < header size %d", ErrFramingViolation, h.Begin, written)
	}
	return append(dst, make([]byte, int(h.Begin)-written)...), nil
}
