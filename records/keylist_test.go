package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeKeyList encodes keys after a head key whose ObjLen covers the count,
// the keys and trailing. extraObjLen adjusts the declared length.
func encodeKeyList(t *testing.T, nkeys int32, keys []Key, trailing []byte, extraObjLen int) []byte {
	t.Helper()
	head := newTestKey(1004, "test.root", 1)
	head.ClassName = "TFile"
	head.KeyLen = int16(head.HeaderSize())

	objLen := 4 + len(trailing) + extraObjLen
	for i := range keys {
		objLen += keys[i].HeaderSize()
	}
	head.ObjLen = int32(objLen)
	head.Nbytes = int32(head.KeyLen) + head.ObjLen

	buf, err := AppendKeyList(nil, head, nkeys, keys, trailing)
	require.NoError(t, err)
	return buf
}

func cycleKeys() []Key {
	return []Key{
		newTestKey(1004, "h1", 1),
		newTestKey(1004, "Events", 1),
		newTestKey(1004, "h1", 2),
	}
}

func TestKeyListDecode(t *testing.T) {
	keys := cycleKeys()
	buf := encodeKeyList(t, 3, keys, nil, 0)

	var kl KeyList
	off, err := kl.Decode(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(buf), off)
	assert.Equal(t, 3, kl.Len())
	assert.Equal(t, int32(3), kl.NKeys)
	assert.Equal(t, []string{"h1;1", "Events;1", "h1;2"}, kl.Names())
	assert.Equal(t, keys, kl.Keys())
	assert.Nil(t, kl.Trailing)

	c, ok := kl.LastCycle("h1")
	assert.True(t, ok)
	assert.Equal(t, int16(2), c)
}

func TestKeyListCycleResolution(t *testing.T) {
	var kl KeyList
	_, err := kl.Decode(encodeKeyList(t, 3, cycleKeys(), nil, 0), 0)
	require.NoError(t, err)

	tests := []struct {
		lookup    string
		wantCycle int16
		wantErr   error
	}{
		{"h1", 2, nil},
		{"h1;1", 1, nil},
		{"h1;2", 2, nil},
		{"Events", 1, nil},
		{"h1;3", 0, ErrCycleNotFound},
		{"nope", 0, ErrKeyNotFound},
		{"nope;1", 0, ErrKeyNotFound},
		{"h1;x", 0, ErrKeyNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.lookup, func(t *testing.T) {
			key, err := kl.Get(tt.lookup)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCycle, key.Cycle)
		})
	}
}

func TestKeyListTrailing(t *testing.T) {
	trailing := []byte{1, 2, 3, 4, 5}
	buf := encodeKeyList(t, 3, cycleKeys(), trailing, 0)

	var kl KeyList
	off, err := kl.Decode(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(buf), off)
	assert.Equal(t, trailing, kl.Trailing)
}

func TestKeyListCountMismatch(t *testing.T) {
	keys := cycleKeys()

	t.Run("declared more than stored", func(t *testing.T) {
		var kl KeyList
		_, err := kl.Decode(encodeKeyList(t, 4, keys, nil, 0), 0)
		require.ErrorIs(t, err, ErrKeyCountMismatch)
	})
	t.Run("declared length too short for the keys", func(t *testing.T) {
		// the byte bound stops the loop after the first key
		var kl KeyList
		buf := encodeKeyList(t, 3, keys, nil, -(keys[1].HeaderSize() + keys[2].HeaderSize()))
		_, err := kl.Decode(buf, 0)
		require.ErrorIs(t, err, ErrKeyCountMismatch)
	})
	t.Run("negative count", func(t *testing.T) {
		var kl KeyList
		_, err := kl.Decode(encodeKeyList(t, -1, keys, nil, 0), 0)
		require.ErrorIs(t, err, ErrKeyCountMismatch)
	})
}

func TestKeyListOverRead(t *testing.T) {
	keys := cycleKeys()
	// the last key straddles the declared end
	buf := encodeKeyList(t, 3, keys, nil, -3)

	var kl KeyList
	_, err := kl.Decode(buf, 0)
	require.ErrorIs(t, err, ErrOverRead)
	require.ErrorIs(t, err, ErrFramingViolation)
}

func TestKeyListDuplicate(t *testing.T) {
	keys := []Key{newTestKey(4, "h1", 1), newTestKey(4, "h1", 1)}
	var kl KeyList
	_, err := kl.Decode(encodeKeyList(t, 2, keys, nil, 0), 0)
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestSplitNameCycle(t *testing.T) {
	tests := []struct {
		in    string
		name  string
		cycle int16
		ok    bool
	}{
		{"h1", "h1", 0, false},
		{"h1;2", "h1", 2, true},
		{"a;b;3", "a;b", 3, true},
		{"a;b", "a;b", 0, false},
		{"h1;99999", "h1;99999", 0, false},
	}
	for _, tt := range tests {
		name, cycle, ok := SplitNameCycle(tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.cycle, cycle, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}
