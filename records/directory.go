package records

import (
	"encoding/binary"

	"github.com/forestrie/go-rootio/rbytes"
)

var (
	directoryHeader1 = rbytes.NewLayout(
		rbytes.Field{Name: "fVersion", Kind: rbytes.Int16},
		rbytes.Field{Name: "fDatimeC", Kind: rbytes.Uint32},
		rbytes.Field{Name: "fDatimeM", Kind: rbytes.Uint32},
		rbytes.Field{Name: "fNbytesKeys", Kind: rbytes.Int32},
		rbytes.Field{Name: "fNbytesName", Kind: rbytes.Int32},
	)
	directoryHeader2Small = rbytes.NewLayout(
		rbytes.Field{Name: "fSeekDir", Kind: rbytes.Int32},
		rbytes.Field{Name: "fSeekParent", Kind: rbytes.Int32},
		rbytes.Field{Name: "fSeekKeys", Kind: rbytes.Int32},
	)
	directoryHeader2Big = rbytes.NewLayout(
		rbytes.Field{Name: "fSeekDir", Kind: rbytes.Int64},
		rbytes.Field{Name: "fSeekParent", Kind: rbytes.Int64},
		rbytes.Field{Name: "fSeekKeys", Kind: rbytes.Int64},
	)
)

// Directory is the record stored in the payload of the key at the file's
// begin offset. It locates the key list of the top level directory.
type Directory struct {
	Name       string
	Title      string
	Version    int16
	DatimeC    Datime
	DatimeM    Datime
	NbytesKeys int32
	NbytesName int32
	SeekDir    int64
	SeekParent int64
	SeekKeys   int64
}

func (d *Directory) Decode(buf []byte, off int) (int, error) {
	var err error
	if d.Name, off, err = rbytes.ReadString(buf, off); err != nil {
		return off, err
	}
	if d.Title, off, err = rbytes.ReadString(buf, off); err != nil {
		return off, err
	}
	v, off, err := directoryHeader1.Unpack(buf, off)
	if err != nil {
		return off, err
	}
	d.Version = int16(v.Int("fVersion"))
	d.DatimeC = Datime(v.Uint("fDatimeC"))
	d.DatimeM = Datime(v.Uint("fDatimeM"))
	d.NbytesKeys = int32(v.Int("fNbytesKeys"))
	d.NbytesName = int32(v.Int("fNbytesName"))

	layout := directoryHeader2Small
	if d.IsLarge() {
		layout = directoryHeader2Big
	}
	if v, off, err = layout.Unpack(buf, off); err != nil {
		return off, err
	}
	d.SeekDir = v.Int("fSeekDir")
	d.SeekParent = v.Int("fSeekParent")
	d.SeekKeys = v.Int("fSeekKeys")
	return off, nil
}

func (d *Directory) IsLarge() bool { return d.Version >= LargeKeyVersion }

func (d *Directory) AppendBinary(dst []byte) ([]byte, error) {
	var err error
	if dst, err = rbytes.AppendString(dst, d.Name); err != nil {
		return dst, err
	}
	if dst, err = rbytes.AppendString(dst, d.Title); err != nil {
		return dst, err
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(d.Version))
	dst = binary.BigEndian.AppendUint32(dst, uint32(d.DatimeC))
	dst = binary.BigEndian.AppendUint32(dst, uint32(d.DatimeM))
	dst = binary.BigEndian.AppendUint32(dst, uint32(d.NbytesKeys))
	dst = binary.BigEndian.AppendUint32(dst, uint32(d.NbytesName))
	if d.IsLarge() {
		dst = binary.BigEndian.AppendUint64(dst, uint64(d.SeekDir))
		dst = binary.BigEndian.AppendUint64(dst, uint64(d.SeekParent))
		dst = binary.BigEndian.AppendUint64(dst, uint64(d.SeekKeys))
		return dst, nil
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(d.SeekDir))
	dst = binary.BigEndian.AppendUint32(dst, uint32(d.SeekParent))
	dst = binary.BigEndian.AppendUint32(dst, uint32(d.SeekKeys))
	return dst, nil
}

// EncodedSize is the number of bytes AppendBinary writes
func (d *Directory) EncodedSize() int {
	n := rbytes.StringSize(d.Name) + rbytes.StringSize(d.Title) + directoryHeader1.Size()
	if d.IsLarge() {
		return n + directoryHeader2Big.Size()
	}
	return n + directoryHeader2Small.Size()
}
