package records

import (
	"encoding/binary"
	"fmt"

	"github.com/forestrie/go-rootio/rbytes"
)

const (
	// ByteCountFlag must be set in the size field of a streamed envelope
	ByteCountFlag = 0x40000000
	// IsReferenced in the object bits means a 2 byte process id follows
	IsReferenced = 1 << 4

	envelopeVersionBytes = 2
)

var (
	envelopeLayout = rbytes.NewLayout(
		rbytes.Field{Name: "fSize", Kind: rbytes.Uint32},
		rbytes.Field{Name: "fVersion", Kind: rbytes.Uint16},
	)
	objectLayout = rbytes.NewLayout(
		rbytes.Field{Name: "fVersion", Kind: rbytes.Uint16},
		rbytes.Field{Name: "fUniqueID", Kind: rbytes.Uint32},
		rbytes.Field{Name: "fBits", Kind: rbytes.Uint32},
	)
	pidLayout = rbytes.NewLayout(
		rbytes.Field{Name: "pidf", Kind: rbytes.Uint16},
	)
	attLineLayout = rbytes.NewLayout(
		rbytes.Field{Name: "fLineColor", Kind: rbytes.Int16},
		rbytes.Field{Name: "fLineStyle", Kind: rbytes.Int16},
		rbytes.Field{Name: "fLineWidth", Kind: rbytes.Int16},
	)
)

// Streamed is the self framing envelope around a serialized object: a size
// field carrying ByteCountFlag, whose remaining bits count the bytes after
// the size field, then a class version.
//
// Decoding a bare Streamed skips the whole section. It stands in for classes
// whose fields are not modeled.
type Streamed struct {
	ByteCount uint32
	Version   uint16

	end int
}

func (s *Streamed) decodeEnvelope(buf []byte, off int) (int, error) {
	v, next, err := envelopeLayout.Unpack(buf, off)
	if err != nil {
		return next, err
	}
	size := uint32(v.Uint("fSize"))
	if size&ByteCountFlag == 0 {
		return next, fmt.Errorf("%w: size field 0x%08x at offset %d", ErrUnsupportedStreamer, size, off)
	}
	s.ByteCount = size &^ ByteCountFlag
	s.Version = uint16(v.Uint("fVersion"))
	if s.ByteCount < envelopeVersionBytes {
		return next, fmt.Errorf("%w: byte count %d is smaller than the version field", ErrUnderRead, s.ByteCount)
	}
	s.end = next + int(s.ByteCount) - envelopeVersionBytes
	return next, nil
}

func (s *Streamed) Decode(buf []byte, off int) (int, error) {
	off, err := s.decodeEnvelope(buf, off)
	if err != nil {
		return off, err
	}
	if err = rbytes.Need(buf, off, s.end-off); err != nil {
		return off, err
	}
	return s.end, nil
}

// End is the offset just past the section, valid after the envelope is decoded
func (s *Streamed) End() int { return s.end }

// Check requires off to be exactly the end of the section
func (s *Streamed) Check(off int) error {
	if off < s.end {
		return fmt.Errorf("%w: stopped at %d, section ends at %d", ErrUnderRead, off, s.end)
	}
	if off > s.end {
		return fmt.Errorf("%w: stopped at %d, section ends at %d", ErrOverRead, off, s.end)
	}
	return nil
}

// ObjectHeader is the common base of streamed objects: flags and a unique id
type ObjectHeader struct {
	Streamed
	ObjectVersion uint16
	UniqueID      uint32
	Bits          uint32
	PID           uint16
}

func (o *ObjectHeader) decodeObject(buf []byte, off int) (int, error) {
	v, off, err := objectLayout.Unpack(buf, off)
	if err != nil {
		return off, err
	}
	o.ObjectVersion = uint16(v.Uint("fVersion"))
	o.UniqueID = uint32(v.Uint("fUniqueID"))
	o.Bits = uint32(v.Uint("fBits"))
	if o.Bits&IsReferenced == 0 {
		return off, nil
	}
	if v, off, err = pidLayout.Unpack(buf, off); err != nil {
		return off, err
	}
	o.PID = uint16(v.Uint("pidf"))
	return off, nil
}

func (o *ObjectHeader) Decode(buf []byte, off int) (int, error) {
	off, err := o.decodeEnvelope(buf, off)
	if err != nil {
		return off, err
	}
	if off, err = o.decodeObject(buf, off); err != nil {
		return off, err
	}
	return off, o.Check(off)
}

// Named is an object header followed by a name and a title
type Named struct {
	ObjectHeader
	Name  string
	Title string
}

func (n *Named) decodeNamed(buf []byte, off int) (int, error) {
	off, err := n.decodeObject(buf, off)
	if err != nil {
		return off, err
	}
	if n.Name, off, err = rbytes.ReadString(buf, off); err != nil {
		return off, err
	}
	if n.Title, off, err = rbytes.ReadString(buf, off); err != nil {
		return off, err
	}
	return off, nil
}

func (n *Named) Decode(buf []byte, off int) (int, error) {
	off, err := n.decodeEnvelope(buf, off)
	if err != nil {
		return off, err
	}
	if off, err = n.decodeNamed(buf, off); err != nil {
		return off, err
	}
	return off, n.Check(off)
}

func (n *Named) ClassName() string { return "TNamed" }

// AttLine holds line attributes. Only version 2 is understood.
type AttLine struct {
	Streamed
	Color int16
	Style int16
	Width int16
}

const AttLineVersion = 2

func (a *AttLine) Decode(buf []byte, off int) (int, error) {
	off, err := a.decodeEnvelope(buf, off)
	if err != nil {
		return off, err
	}
	if a.Version != AttLineVersion {
		return off, fmt.Errorf("%w: TAttLine version %d", ErrUnsupportedClassVersion, a.Version)
	}
	v, off, err := attLineLayout.Unpack(buf, off)
	if err != nil {
		return off, err
	}
	a.Color = int16(v.Int("fLineColor"))
	a.Style = int16(v.Int("fLineStyle"))
	a.Width = int16(v.Int("fLineWidth"))
	return off, a.Check(off)
}

// AppendStreamed frames body in an envelope of the given class version
func AppendStreamed(dst []byte, version uint16, body []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(body)+envelopeVersionBytes)|ByteCountFlag)
	dst = binary.BigEndian.AppendUint16(dst, version)
	return append(dst, body...)
}

// AppendBinary encodes the object header fields without an envelope
func (o *ObjectHeader) AppendBinary(dst []byte) ([]byte, error) {
	dst = binary.BigEndian.AppendUint16(dst, o.ObjectVersion)
	dst = binary.BigEndian.AppendUint32(dst, o.UniqueID)
	dst = binary.BigEndian.AppendUint32(dst, o.Bits)
	if o.Bits&IsReferenced != 0 {
		dst = binary.BigEndian.AppendUint16(dst, o.PID)
	}
	return dst, nil
}

// AppendBinary encodes the named object inside its envelope
func (n *Named) AppendBinary(dst []byte) ([]byte, error) {
	body, err := n.ObjectHeader.AppendBinary(nil)
	if err != nil {
		return dst, err
	}
	if body, err = rbytes.AppendString(body, n.Name); err != nil {
		return dst, err
	}
	if body, err = rbytes.AppendString(body, n.Title); err != nil {
		return dst, err
	}
	return AppendStreamed(dst, n.Version, body), nil
}

func (a *AttLine) AppendBinary(dst []byte) ([]byte, error) {
	var body []byte
	body = binary.BigEndian.AppendUint16(body, uint16(a.Color))
	body = binary.BigEndian.AppendUint16(body, uint16(a.Style))
	body = binary.BigEndian.AppendUint16(body, uint16(a.Width))
	return AppendStreamed(dst, a.Version, body), nil
}
