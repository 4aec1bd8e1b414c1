package records

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/forestrie/go-rootio/rbytes"
)

const (
	TreeClassName = "TTree"
	TreeVersion   = 20
)

var treeV20Layout = rbytes.NewLayout(
	rbytes.Field{Name: "fEntries", Kind: rbytes.Int64},
	rbytes.Field{Name: "fTotBytes", Kind: rbytes.Int64},
	rbytes.Field{Name: "fZipBytes", Kind: rbytes.Int64},
	rbytes.Field{Name: "fSavedBytes", Kind: rbytes.Int64},
	rbytes.Field{Name: "fFlushedBytes", Kind: rbytes.Int64},
	rbytes.Field{Name: "fWeight", Kind: rbytes.Float64},
	rbytes.Field{Name: "fTimerInterval", Kind: rbytes.Int32},
	rbytes.Field{Name: "fScanField", Kind: rbytes.Int32},
	rbytes.Field{Name: "fUpdate", Kind: rbytes.Int32},
	rbytes.Field{Name: "fDefaultEntryOffsetLen", Kind: rbytes.Int32},
	rbytes.Field{Name: "fNClusterRange", Kind: rbytes.Uint32},
	rbytes.Field{Name: "fMaxEntries", Kind: rbytes.Int64},
	rbytes.Field{Name: "fMaxEntryLoop", Kind: rbytes.Int64},
	rbytes.Field{Name: "fMaxVirtualSize", Kind: rbytes.Int64},
	rbytes.Field{Name: "fAutoSave", Kind: rbytes.Int64},
	rbytes.Field{Name: "fAutoFlush", Kind: rbytes.Int64},
	rbytes.Field{Name: "fEstimate", Kind: rbytes.Int64},
)

// Tree is the metadata record of a tree object. The predecessor sections are
// decoded in order (named, line attributes, and the unmodeled fill and marker
// attributes), then the fixed version 20 block and the cluster range arrays.
// Branches, leaves, indices and friends that follow are not decoded.
type Tree struct {
	Streamed

	Named     Named
	AttLine   AttLine
	AttFill   Streamed
	AttMarker Streamed

	Entries               int64
	TotBytes              int64
	ZipBytes              int64
	SavedBytes            int64
	FlushedBytes          int64
	Weight                float64
	TimerInterval         int32
	ScanField             int32
	Update                int32
	DefaultEntryOffsetLen int32
	NClusterRange         uint32
	MaxEntries            int64
	MaxEntryLoop          int64
	MaxVirtualSize        int64
	AutoSave              int64
	AutoFlush             int64
	Estimate              int64

	ClusterRangeEnd []int64
	ClusterSize     []int64
}

func NewTree() Object { return &Tree{} }

func (t *Tree) ClassName() string { return TreeClassName }

func (t *Tree) Decode(buf []byte, off int) (int, error) {
	off, err := t.decodeEnvelope(buf, off)
	if err != nil {
		return off, err
	}
	if t.Version != TreeVersion {
		return off, fmt.Errorf("%w: TTree version %d", ErrUnsupportedClassVersion, t.Version)
	}
	for _, d := range []Decoder{&t.Named, &t.AttLine, &t.AttFill, &t.AttMarker} {
		if off, err = d.Decode(buf, off); err != nil {
			return off, err
		}
	}

	v, off, err := treeV20Layout.Unpack(buf, off)
	if err != nil {
		return off, err
	}
	t.Entries = v.Int("fEntries")
	t.TotBytes = v.Int("fTotBytes")
	t.ZipBytes = v.Int("fZipBytes")
	t.SavedBytes = v.Int("fSavedBytes")
	t.FlushedBytes = v.Int("fFlushedBytes")
	t.Weight = v.Float("fWeight")
	t.TimerInterval = int32(v.Int("fTimerInterval"))
	t.ScanField = int32(v.Int("fScanField"))
	t.Update = int32(v.Int("fUpdate"))
	t.DefaultEntryOffsetLen = int32(v.Int("fDefaultEntryOffsetLen"))
	t.NClusterRange = uint32(v.Uint("fNClusterRange"))
	t.MaxEntries = v.Int("fMaxEntries")
	t.MaxEntryLoop = v.Int("fMaxEntryLoop")
	t.MaxVirtualSize = v.Int("fMaxVirtualSize")
	t.AutoSave = v.Int("fAutoSave")
	t.AutoFlush = v.Int("fAutoFlush")
	t.Estimate = v.Int("fEstimate")

	if t.ClusterRangeEnd, off, err = readClusterArray(buf, off, t.NClusterRange); err != nil {
		return off, err
	}
	if t.ClusterSize, off, err = readClusterArray(buf, off, t.NClusterRange); err != nil {
		return off, err
	}
	if off > t.end {
		return off, fmt.Errorf("%w: tree fields end at %d, section ends at %d", ErrOverRead, off, t.end)
	}
	return off, nil
}

// readClusterArray reads a one byte array marker followed by n int64 values
func readClusterArray(buf []byte, off int, n uint32) ([]int64, int, error) {
	if err := rbytes.Need(buf, off, 1+8*int(n)); err != nil {
		return nil, off, err
	}
	off++
	values := make([]int64, n)
	for i := range values {
		values[i] = int64(binary.BigEndian.Uint64(buf[off:]))
		off += 8
	}
	return values, off, nil
}

// AppendBinary encodes the tree with empty branch and leaf sections. The
// envelope version is written as t.Version so that callers can produce
// versions this package refuses to decode.
func (t *Tree) AppendBinary(dst []byte) ([]byte, error) {
	var err error
	var body []byte
	if body, err = t.Named.AppendBinary(body); err != nil {
		return dst, err
	}
	if body, err = t.AttLine.AppendBinary(body); err != nil {
		return dst, err
	}
	// fill color and style, marker color, style and size
	body = AppendStreamed(body, t.AttFill.Version, make([]byte, 4))
	body = AppendStreamed(body, t.AttMarker.Version, make([]byte, 8))

	for _, n := range []int64{t.Entries, t.TotBytes, t.ZipBytes, t.SavedBytes, t.FlushedBytes} {
		body = binary.BigEndian.AppendUint64(body, uint64(n))
	}
	body = binary.BigEndian.AppendUint64(body, math.Float64bits(t.Weight))
	for _, n := range []int32{t.TimerInterval, t.ScanField, t.Update, t.DefaultEntryOffsetLen} {
		body = binary.BigEndian.AppendUint32(body, uint32(n))
	}
	nclusters := len(t.ClusterRangeEnd)
	if len(t.ClusterSize) != nclusters {
		return dst, fmt.Errorf("%w: %d cluster range ends but %d cluster sizes",
			ErrFramingViolation, nclusters, len(t.ClusterSize))
	}
	body = binary.BigEndian.AppendUint32(body, uint32(nclusters))
	for _, n := range []int64{t.MaxEntries, t.MaxEntryLoop, t.MaxVirtualSize, t.AutoSave, t.AutoFlush, t.Estimate} {
		body = binary.BigEndian.AppendUint64(body, uint64(n))
	}
	for _, values := range [][]int64{t.ClusterRangeEnd, t.ClusterSize} {
		body = append(body, 1)
		for _, n := range values {
			body = binary.BigEndian.AppendUint64(body, uint64(n))
		}
	}
	return AppendStreamed(dst, t.Version, body), nil
}
