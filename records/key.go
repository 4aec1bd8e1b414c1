package records

import (
	"encoding/binary"
	"fmt"

	"github.com/forestrie/go-rootio/rbytes"
)

// LargeKeyVersion is the key (and directory) version at and above which seek
// fields are 64 bits wide
const LargeKeyVersion = 1000

var (
	keyHeader1 = rbytes.NewLayout(
		rbytes.Field{Name: "fNbytes", Kind: rbytes.Int32},
		rbytes.Field{Name: "fVersion", Kind: rbytes.Int16},
		rbytes.Field{Name: "fObjlen", Kind: rbytes.Int32},
		rbytes.Field{Name: "fDatime", Kind: rbytes.Uint32},
		rbytes.Field{Name: "fKeylen", Kind: rbytes.Int16},
		rbytes.Field{Name: "fCycle", Kind: rbytes.Int16},
	)
	keyHeader2Small = rbytes.NewLayout(
		rbytes.Field{Name: "fSeekKey", Kind: rbytes.Int32},
		rbytes.Field{Name: "fSeekPdir", Kind: rbytes.Int32},
	)
	keyHeader2Big = rbytes.NewLayout(
		rbytes.Field{Name: "fSeekKey", Kind: rbytes.Int64},
		rbytes.Field{Name: "fSeekPdir", Kind: rbytes.Int64},
	)
)

// KeyHeaderSize is the fixed leading part of every key. Once this much is
// available the full key length can be read with PeekKeyLen.
var KeyHeaderSize = keyHeader1.Size()

// keyLenOffset is the position of fKeylen within the fixed leading part
const keyLenOffset = 4 + 2 + 4 + 4

// PeekKeyLen returns the declared header length of the key starting at off
func PeekKeyLen(buf []byte, off int) (int, error) {
	if err := rbytes.Need(buf, off, KeyHeaderSize); err != nil {
		return 0, err
	}
	return int(int16(binary.BigEndian.Uint16(buf[off+keyLenOffset:]))), nil
}

// Key describes one stored object: where it is, how big it is on disk and
// uncompressed, and its class, name and title.
type Key struct {
	Nbytes    int32
	Version   int16
	ObjLen    int32
	Datime    Datime
	KeyLen    int16
	Cycle     int16
	SeekKey   int64
	SeekPdir  int64
	ClassName string
	Name      string
	Title     string
}

// Decode decodes the key header. The number of bytes consumed must equal the
// declared KeyLen exactly.
func (k *Key) Decode(buf []byte, off int) (int, error) {
	start := off
	v, off, err := keyHeader1.Unpack(buf, off)
	if err != nil {
		return off, err
	}
	k.Nbytes = int32(v.Int("fNbytes"))
	k.Version = int16(v.Int("fVersion"))
	k.ObjLen = int32(v.Int("fObjlen"))
	k.Datime = Datime(v.Uint("fDatime"))
	k.KeyLen = int16(v.Int("fKeylen"))
	k.Cycle = int16(v.Int("fCycle"))

	layout := keyHeader2Small
	if k.IsLarge() {
		layout = keyHeader2Big
	}
	if v, off, err = layout.Unpack(buf, off); err != nil {
		return off, err
	}
	k.SeekKey = v.Int("fSeekKey")
	k.SeekPdir = v.Int("fSeekPdir")

	if k.ClassName, off, err = rbytes.ReadString(buf, off); err != nil {
		return off, err
	}
	if k.Name, off, err = rbytes.ReadString(buf, off); err != nil {
		return off, err
	}
	if k.Title, off, err = rbytes.ReadString(buf, off); err != nil {
		return off, err
	}

	if start+int(k.KeyLen) != off {
		return off, fmt.Errorf(
			"%w: key %q read %d bytes, header declares %d",
			ErrFramingViolation, k.Name, off-start, k.KeyLen)
	}
	return off, nil
}

func (k *Key) IsLarge() bool { return k.Version >= LargeKeyVersion }

// Compressed is true when fewer bytes are stored than the header plus the
// uncompressed object would need
func (k *Key) Compressed() bool {
	return int64(k.Nbytes) < int64(k.KeyLen)+int64(k.ObjLen)
}

// NameCycle is the identity of the key within its directory
func (k *Key) NameCycle() string { return fmt.Sprintf("%s;%d", k.Name, k.Cycle) }

// PayloadOffset is the absolute file offset of the object bytes
func (k *Key) PayloadOffset() int64 { return k.SeekKey + int64(k.KeyLen) }

// PayloadSize is the number of object bytes stored on disk
func (k *Key) PayloadSize() int64 { return int64(k.Nbytes) - int64(k.KeyLen) }

// HeaderSize returns the encoded size of the key header for the current
// version and strings. Encoders set KeyLen from this.
func (k *Key) HeaderSize() int {
	n := keyHeader1.Size()
	if k.IsLarge() {
		n += keyHeader2Big.Size()
	} else {
		n += keyHeader2Small.Size()
	}
	return n + rbytes.StringSize(k.ClassName) + rbytes.StringSize(k.Name) + rbytes.StringSize(k.Title)
}

// AppendBinary encodes the key header exactly as the fields say, including a
// KeyLen that disagrees with the content.
func (k *Key) AppendBinary(dst []byte) ([]byte, error) {
	dst = binary.BigEndian.AppendUint32(dst, uint32(k.Nbytes))
	dst = binary.BigEndian.AppendUint16(dst, uint16(k.Version))
	dst = binary.BigEndian.AppendUint32(dst, uint32(k.ObjLen))
	dst = binary.BigEndian.AppendUint32(dst, uint32(k.Datime))
	dst = binary.BigEndian.AppendUint16(dst, uint16(k.KeyLen))
	dst = binary.BigEndian.AppendUint16(dst, uint16(k.Cycle))
	if k.IsLarge() {
		dst = binary.BigEndian.AppendUint64(dst, uint64(k.SeekKey))
		dst = binary.BigEndian.AppendUint64(dst, uint64(k.SeekPdir))
	} else {
		dst = binary.BigEndian.AppendUint32(dst, uint32(k.SeekKey))
		dst = binary.BigEndian.AppendUint32(dst, uint32(k.SeekPdir))
	}
	var err error
	for _, s := range []string{k.ClassName, k.Name, k.Title} {
		if dst, err = rbytes.AppendString(dst, s); err != nil {
			return dst, err
		}
	}
	return dst, nil
}
