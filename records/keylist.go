package records

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/forestrie/go-rootio/rbytes"
)

// KeyList is the table of keys of a directory. It is stored as a head key
// describing the list itself, a declared key count, and that many keys. Keys
// are indexed by "name;cycle", and plain names resolve to their highest cycle.
type KeyList struct {
	Head  Key
	NKeys int32
	// Trailing holds any bytes between the last key and the declared end of the list
	Trailing []byte

	keys      map[string]Key
	order     []string
	lastCycle map[string]int16
}

// Decode reads keys while both bytes remain before the declared end and fewer
// than NKeys have been read, then requires the count to match exactly. This
// rejects truncated and over long lists alike.
func (kl *KeyList) Decode(buf []byte, off int) (int, error) {
	var err error
	if off, err = kl.Head.Decode(buf, off); err != nil {
		return off, err
	}
	end := off + int(kl.Head.ObjLen)
	if kl.NKeys, off, err = readInt32(buf, off); err != nil {
		return off, err
	}

	kl.keys = make(map[string]Key)
	kl.lastCycle = make(map[string]int16)
	kl.order = nil
	kl.Trailing = nil

	for off < end && int32(len(kl.order)) < kl.NKeys {
		var key Key
		if off, err = key.Decode(buf, off); err != nil {
			return off, err
		}
		id := key.NameCycle()
		if _, ok := kl.keys[id]; ok {
			return off, fmt.Errorf("%w: %s", ErrDuplicateKey, id)
		}
		kl.keys[id] = key
		kl.order = append(kl.order, id)
		if last, ok := kl.lastCycle[key.Name]; !ok || last < key.Cycle {
			kl.lastCycle[key.Name] = key.Cycle
		}
	}
	if int32(len(kl.order)) != kl.NKeys {
		return off, fmt.Errorf("%w: expected %d keys but got %d", ErrKeyCountMismatch, kl.NKeys, len(kl.order))
	}
	if off > end {
		return off, fmt.Errorf("%w: key list ends at %d, keys end at %d", ErrOverRead, end, off)
	}
	if off < end {
		if err = rbytes.Need(buf, off, end-off); err != nil {
			return off, err
		}
		kl.Trailing = make([]byte, end-off)
		copy(kl.Trailing, buf[off:end])
		off = end
	}
	return off, nil
}

// Get resolves a key by "name;cycle" or by plain name, in which case the key
// with the highest cycle is returned.
func (kl *KeyList) Get(name string) (Key, error) {
	if key, ok := kl.keys[name]; ok {
		return key, nil
	}
	if plain, _, ok := SplitNameCycle(name); ok {
		if _, known := kl.lastCycle[plain]; known {
			return Key{}, fmt.Errorf("%w: %s", ErrCycleNotFound, name)
		}
		return Key{}, fmt.Errorf("%w: %s", ErrKeyNotFound, plain)
	}
	cycle, ok := kl.lastCycle[name]
	if !ok {
		return Key{}, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	return kl.keys[fmt.Sprintf("%s;%d", name, cycle)], nil
}

// Names returns the "name;cycle" identities in the order they are stored
func (kl *KeyList) Names() []string {
	names := make([]string, len(kl.order))
	copy(names, kl.order)
	return names
}

// Keys returns the keys in the order they are stored
func (kl *KeyList) Keys() []Key {
	keys := make([]Key, 0, len(kl.order))
	for _, id := range kl.order {
		keys = append(keys, kl.keys[id])
	}
	return keys
}

func (kl *KeyList) Len() int { return len(kl.order) }

// LastCycle returns the highest cycle stored for a plain name
func (kl *KeyList) LastCycle(name string) (int16, bool) {
	c, ok := kl.lastCycle[name]
	return c, ok
}

// SplitNameCycle splits "name;cycle". ok is false when there is no ';' or
// the text after the last ';' is not a cycle number.
func SplitNameCycle(s string) (string, int16, bool) {
	i := strings.LastIndexByte(s, ';')
	if i < 0 {
		return s, 0, false
	}
	c, err := strconv.ParseInt(s[i+1:], 10, 16)
	if err != nil {
		return s, 0, false
	}
	return s[:i], int16(c), true
}

// AppendKeyList encodes a key list. The head ObjLen must already account for
// the count, the keys and the trailing bytes. nkeys is written as given.
func AppendKeyList(dst []byte, head Key, nkeys int32, keys []Key, trailing []byte) ([]byte, error) {
	var err error
	if dst, err = head.AppendBinary(dst); err != nil {
		return dst, err
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(nkeys))
	for i := range keys {
		if dst, err = keys[i].AppendBinary(dst); err != nil {
			return dst, err
		}
	}
	return append(dst, trailing...), nil
}
