// Package rbytes provides the primitive decoders for the ROOT on-disk format.
//
// Every multi-byte field in the format is big-endian, with the single
// exception of the 3-byte size fields of the compression block header (see
// Uint24LE). Decoders take a buffer and an absolute offset and return the
// offset immediately past what they consumed. Nothing here ever looks
// backwards.
package rbytes

import (
	"encoding/binary"
	"fmt"
	"math"
)

type Kind uint8

const (
	Uint8 Kind = iota
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float64
	// Bytes is a fixed length run of raw bytes, the length is taken from Field.Len
	Bytes
)

func (k Kind) width(n int) int {
	switch k {
	case Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	case Bytes:
		return n
	}
	panic(fmt.Sprintf("rbytes: unknown kind %d", k))
}

// Field names one entry of a Layout
type Field struct {
	Name string
	Kind Kind
	Len  int // only for Bytes
}

// Layout is an immutable description of a fixed sequence of named fields.
// Layouts are built once, typically as package level vars, and are safe for
// concurrent use.
type Layout struct {
	fields  []Field
	offsets []int
	index   map[string]int
	size    int
}

func NewLayout(fields ...Field) *Layout {
	l := &Layout{
		fields:  make([]Field, len(fields)),
		offsets: make([]int, len(fields)),
		index:   make(map[string]int, len(fields)),
	}
	copy(l.fields, fields)
	for i, f := range l.fields {
		if _, ok := l.index[f.Name]; ok {
			panic(fmt.Sprintf("rbytes: duplicate field %q", f.Name))
		}
		l.index[f.Name] = i
		l.offsets[i] = l.size
		l.size += f.Kind.width(f.Len)
	}
	return l
}

// Size returns the number of bytes the layout occupies
func (l *Layout) Size() int { return l.size }

// Fields returns a copy of the field table
func (l *Layout) Fields() []Field {
	fields := make([]Field, len(l.fields))
	copy(fields, l.fields)
	return fields
}

// Unpack decodes the layout from buf at offset off and returns the decoded
// values and the offset of the first byte after the layout.
func (l *Layout) Unpack(buf []byte, off int) (Values, int, error) {
	if err := Need(buf, off, l.size); err != nil {
		return Values{}, off, err
	}
	v := Values{
		layout: l,
		words:  make([]uint64, len(l.fields)),
	}
	for i, f := range l.fields {
		b := buf[off+l.offsets[i]:]
		switch f.Kind {
		case Uint8:
			v.words[i] = uint64(b[0])
		case Int16:
			v.words[i] = uint64(int64(int16(binary.BigEndian.Uint16(b))))
		case Uint16:
			v.words[i] = uint64(binary.BigEndian.Uint16(b))
		case Int32:
			v.words[i] = uint64(int64(int32(binary.BigEndian.Uint32(b))))
		case Uint32:
			v.words[i] = uint64(binary.BigEndian.Uint32(b))
		case Int64, Uint64, Float64:
			v.words[i] = binary.BigEndian.Uint64(b)
		case Bytes:
			if v.blobs == nil {
				v.blobs = make(map[int][]byte)
			}
			raw := make([]byte, f.Len)
			copy(raw, b[:f.Len])
			v.blobs[i] = raw
		}
	}
	return v, off + l.size, nil
}

// Values holds the result of Layout.Unpack. Lookups of names the layout does
// not define panic, the layouts are fixed at compile time.
type Values struct {
	layout *Layout
	words  []uint64
	blobs  map[int][]byte
}

func (v Values) lookup(name string) int {
	i, ok := v.layout.index[name]
	if !ok {
		panic(fmt.Sprintf("rbytes: layout has no field %q", name))
	}
	return i
}

// Int returns a signed integer field, sign extended from its on-disk width
func (v Values) Int(name string) int64 { return int64(v.words[v.lookup(name)]) }

// Uint returns an unsigned integer field
func (v Values) Uint(name string) uint64 { return v.words[v.lookup(name)] }

func (v Values) Float(name string) float64 {
	return math.Float64frombits(v.words[v.lookup(name)])
}

func (v Values) Bytes(name string) []byte { return v.blobs[v.lookup(name)] }

// Need checks that n bytes are available in buf starting at off
func Need(buf []byte, off, n int) error {
	if off < 0 || n < 0 || off > len(buf) || len(buf)-off < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, off, len(buf))
	}
	return nil
}
