// Package records decodes the structural and streamed records of a ROOT file.
//
// Every record implements Decoder: it is constructed empty, decodes itself
// from an immutable buffer starting at an absolute offset, and returns the
// offset immediately after the bytes it owns. A record that fails to decode
// must be discarded, decoding never continues past a violated invariant.
//
// Streamed records compose by decoding their predecessor layers in order over
// the shared offset, then their own fields, then checking the consumed length
// against the envelope they were framed by.
package records

import (
	"time"

	"github.com/forestrie/go-rootio/rbytes"
)

type Decoder interface {
	Decode(buf []byte, off int) (int, error)
}

// Datime is the packed date time used in keys and directories.
//
// .       | year-1995 | month | day | hour | minute | second |
// bits    |   31-26   | 25-22 |21-17| 16-12|  11-6  |  5-0   |
type Datime uint32

func NewDatime(t time.Time) Datime {
	t = t.UTC()
	return Datime(uint32(t.Year()-1995)<<26 |
		uint32(t.Month())<<22 |
		uint32(t.Day())<<17 |
		uint32(t.Hour())<<12 |
		uint32(t.Minute())<<6 |
		uint32(t.Second()))
}

// Time converts the packed value. The format carries no zone, UTC is assumed.
func (d Datime) Time() time.Time {
	v := uint32(d)
	return time.Date(
		int(v>>26)+1995,
		time.Month(v<<6>>28),
		int(v<<10>>27),
		int(v<<15>>27),
		int(v<<20>>26),
		int(v<<26>>26),
		0, time.UTC)
}

var int32Layout = rbytes.NewLayout(rbytes.Field{Name: "value", Kind: rbytes.Int32})

func readInt32(buf []byte, off int) (int32, int, error) {
	v, off, err := int32Layout.Unpack(buf, off)
	if err != nil {
		return 0, off, err
	}
	return int32(v.Int("value")), off, nil
}
