package roottesting

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/forestrie/go-rootio/compression"
	"github.com/forestrie/go-rootio/rbytes"
	"github.com/forestrie/go-rootio/records"
	"github.com/google/uuid"
)

const (
	// Begin is where every built file places its top directory key
	Begin = 100
	// LargeVersion and SmallVersion are file versions either side of the
	// 64 bit threshold
	LargeVersion = 1062206
	SmallVersion = 62206
)

// KeySpec describes one object of a built file
type KeySpec struct {
	Name      string
	Title     string
	ClassName string
	Cycle     int16 // zero means 1
	Payload   []byte
	// Compression, when set, stores the payload compressed with this codec
	Compression compression.Tag
	// BlockSize splits a compressed payload into blocks of this many bytes
	BlockSize int
}

// FileSpec describes a whole file. The zero value, apart from Keys, builds a
// large version file named test.root.
type FileSpec struct {
	Version  int32
	Name     string
	Title    string
	Compress int32
	Datime   time.Time
	Keys     []KeySpec
	// Trailing is appended to the key list after the last key
	Trailing []byte
}

// File is a built file and the records it was built from
type File struct {
	Data      []byte
	Header    records.FileHeader
	RootKey   records.Key
	Directory records.Directory
	KeysHead  records.Key
	Keys      []records.Key
}

func (s FileSpec) withDefaults() FileSpec {
	if s.Version == 0 {
		s.Version = LargeVersion
	}
	if s.Name == "" {
		s.Name = "test.root"
	}
	if s.Datime.IsZero() {
		s.Datime = time.Date(2019, 4, 30, 12, 0, 0, 0, time.UTC)
	}
	return s
}

// recordVersions picks key and directory versions matching the file version
func recordVersions(fileVersion int32) (int16, int16) {
	if fileVersion >= records.LargeFileVersion {
		return 4 + records.LargeKeyVersion, 5 + records.LargeKeyVersion
	}
	return 4, 5
}

// BuildFile lays out a file: the header at zero, the top directory key and
// record at Begin, one key and payload per KeySpec, then the key list. End is
// the length of the result.
func BuildFile(spec FileSpec) (*File, error) {
	spec = spec.withDefaults()
	keyVersion, dirVersion := recordVersions(spec.Version)
	datime := records.NewDatime(spec.Datime)

	rootKey := records.Key{
		Version:   keyVersion,
		Datime:    datime,
		Cycle:     1,
		SeekKey:   Begin,
		ClassName: "TFile",
		Name:      spec.Name,
		Title:     spec.Title,
	}
	rootKey.KeyLen = int16(rootKey.HeaderSize())
	directory := records.Directory{
		Name:       spec.Name,
		Title:      spec.Title,
		Version:    dirVersion,
		DatimeC:    datime,
		DatimeM:    datime,
		NbytesName: int32(int(rootKey.KeyLen) + rbytes.StringSize(spec.Name) + rbytes.StringSize(spec.Title)),
		SeekDir:    Begin,
	}
	rootKey.ObjLen = int32(directory.EncodedSize())
	rootKey.Nbytes = int32(rootKey.KeyLen) + rootKey.ObjLen

	// object keys and payloads follow the directory
	var objects []byte
	pos := int64(Begin) + int64(rootKey.Nbytes)
	keys := make([]records.Key, 0, len(spec.Keys))
	for _, ks := range spec.Keys {
		stored := ks.Payload
		if ks.Compression != "" {
			var err error
			if stored, err = compression.CompressBlocks(ks.Compression, ks.Payload, ks.BlockSize); err != nil {
				return nil, fmt.Errorf("key %s: %w", ks.Name, err)
			}
			// readers treat a payload that is not smaller as stored raw
			if len(stored) >= len(ks.Payload) {
				return nil, fmt.Errorf("key %s: %d bytes do not compress with %s", ks.Name, len(ks.Payload), ks.Compression)
			}
		}
		cycle := ks.Cycle
		if cycle == 0 {
			cycle = 1
		}
		k := records.Key{
			Version:   keyVersion,
			ObjLen:    int32(len(ks.Payload)),
			Datime:    datime,
			Cycle:     cycle,
			SeekKey:   pos,
			SeekPdir:  Begin,
			ClassName: ks.ClassName,
			Name:      ks.Name,
			Title:     ks.Title,
		}
		k.KeyLen = int16(k.HeaderSize())
		k.Nbytes = int32(k.KeyLen) + int32(len(stored))
		var err error
		if objects, err = k.AppendBinary(objects); err != nil {
			return nil, err
		}
		objects = append(objects, stored...)
		pos += int64(k.Nbytes)
		keys = append(keys, k)
	}

	head := records.Key{
		Version:   keyVersion,
		Datime:    datime,
		Cycle:     1,
		SeekKey:   pos,
		SeekPdir:  Begin,
		ClassName: "TFile",
		Name:      spec.Name,
		Title:     spec.Title,
	}
	head.KeyLen = int16(head.HeaderSize())
	objLen := 4 + len(spec.Trailing)
	for i := range keys {
		objLen += keys[i].HeaderSize()
	}
	head.ObjLen = int32(objLen)
	head.Nbytes = int32(head.KeyLen) + head.ObjLen
	directory.SeekKeys = pos
	directory.NbytesKeys = head.Nbytes

	end := pos + int64(head.Nbytes)
	units := uint8(4)
	if spec.Version >= records.LargeFileVersion {
		units = 8
	}
	header := records.FileHeader{
		Version:     spec.Version,
		Begin:       Begin,
		End:         end,
		SeekFree:    end,
		NbytesName:  directory.NbytesName,
		Units:       units,
		Compress:    spec.Compress,
		UUIDVersion: 1,
		UUID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte(spec.Name)),
	}
	copy(header.Magic[:], records.Magic)

	data, err := header.AppendBinary(make([]byte, 0, end))
	if err != nil {
		return nil, err
	}
	if data, err = rootKey.AppendBinary(data); err != nil {
		return nil, err
	}
	if data, err = directory.AppendBinary(data); err != nil {
		return nil, err
	}
	data = append(data, objects...)
	if data, err = records.AppendKeyList(data, head, int32(len(keys)), keys, spec.Trailing); err != nil {
		return nil, err
	}
	if int64(len(data)) != end {
		return nil, fmt.Errorf("built %d bytes, layout expected %d", len(data), end)
	}

	return &File{
		Data:      data,
		Header:    header,
		RootKey:   rootKey,
		Directory: directory,
		KeysHead:  head,
		Keys:      keys,
	}, nil
}

// TreeSpec describes a tree metadata payload
type TreeSpec struct {
	Name            string
	Title           string
	Entries         int64
	Version         uint16 // zero means records.TreeVersion
	ClusterRangeEnd []int64
	ClusterSize     []int64
	// Unparsed is the number of bytes of branch data appended inside the
	// tree envelope, after the modeled fields.
	Unparsed int
}

// NewTree returns the tree record TreePayload encodes for spec
func NewTree(spec TreeSpec) *records.Tree {
	t := &records.Tree{
		Entries:               spec.Entries,
		TotBytes:              spec.Entries * 52,
		ZipBytes:              spec.Entries * 18,
		Weight:                1,
		ScanField:             25,
		DefaultEntryOffsetLen: 1000,
		MaxEntries:            1000000000000,
		MaxEntryLoop:          1000000000000,
		AutoSave:              -300000000,
		AutoFlush:             -30000000,
		Estimate:              1000000,
		ClusterRangeEnd:       spec.ClusterRangeEnd,
		ClusterSize:           spec.ClusterSize,
	}
	t.Version = spec.Version
	if t.Version == 0 {
		t.Version = records.TreeVersion
	}
	t.Named.Version = 1
	t.Named.ObjectVersion = 1
	t.Named.Bits = 0x03000000
	t.Named.Name = spec.Name
	t.Named.Title = spec.Title
	t.AttLine.Version = records.AttLineVersion
	t.AttLine.Color = 602
	t.AttLine.Style = 1
	t.AttLine.Width = 1
	t.AttFill.Version = 2
	t.AttMarker.Version = 2
	return t
}

func TreePayload(spec TreeSpec) ([]byte, error) {
	data, err := NewTree(spec).AppendBinary(nil)
	if err != nil {
		return nil, err
	}
	if spec.Unparsed == 0 {
		return data, nil
	}
	size := binary.BigEndian.Uint32(data) &^ records.ByteCountFlag
	binary.BigEndian.PutUint32(data, (size+uint32(spec.Unparsed))|records.ByteCountFlag)
	return append(data, make([]byte, spec.Unparsed)...), nil
}

func NamedPayload(name, title string) ([]byte, error) {
	n := records.Named{Name: name, Title: title}
	n.Version = 1
	n.ObjectVersion = 1
	n.Bits = 0x03000000
	return n.AppendBinary(nil)
}
