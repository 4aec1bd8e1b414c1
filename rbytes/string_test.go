package rbytes

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadString(t *testing.T) {
	tests := []struct {
		name string
		s    string
	}{
		{"empty", ""},
		{"short", "Events"},
		{"longest short", strings.Repeat("x", 254)},
		{"first long", strings.Repeat("y", 255)},
		{"long", strings.Repeat("z", 1000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := AppendString([]byte{0x01}, tt.s)
			require.NoError(t, err)
			assert.Equal(t, 1+StringSize(tt.s), len(buf))

			got, off, err := ReadString(buf, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.s, got)
			assert.Equal(t, len(buf), off)
		})
	}
}

func TestReadStringExtendedPrefix(t *testing.T) {
	buf := []byte{255, 0, 0, 0, 3, 'a', 'b', 'c'}
	got, off, err := ReadString(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
	assert.Equal(t, 8, off)
}

func TestReadStringShort(t *testing.T) {
	for _, buf := range [][]byte{
		{},
		{5, 'a', 'b'},
		{255, 0, 0},
		{255, 0, 0, 1, 0},
	} {
		_, _, err := ReadString(buf, 0)
		assert.ErrorIs(t, err, ErrShortBuffer, "buf %v", buf)
	}
}

func TestUint24LE(t *testing.T) {
	assert.Equal(t, uint32(1), Uint24LE([]byte{0x01, 0x00, 0x00}))
	assert.Equal(t, uint32(16777215), Uint24LE([]byte{0xFF, 0xFF, 0xFF}))
	assert.Equal(t, uint32(0x030201), Uint24LE([]byte{0x01, 0x02, 0x03}))

	for _, v := range []uint32{0, 1, 255, 256, 65535, 65536, 1 << 20, 9_999_999, MaxUint24} {
		t.Run(fmt.Sprintf("%d", v), func(t *testing.T) {
			b := make([]byte, 3)
			require.NoError(t, PutUint24LE(b, v))
			assert.Equal(t, v, Uint24LE(b))
		})
	}

	err := PutUint24LE(make([]byte, 3), MaxUint24+1)
	assert.ErrorIs(t, err, ErrUint24Overflow)
}
