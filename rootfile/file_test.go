package rootfile

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/forestrie/go-rootio/compression"
	"github.com/forestrie/go-rootio/records"
	"github.com/forestrie/go-rootio/roottesting"
	"github.com/forestrie/go-rootio/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) roottesting.TestContext {
	return roottesting.NewTestContext(t, roottesting.TestConfig{TestLabelPrefix: "rootfile"})
}

func eventsSpec(tc roottesting.TestContext, version int32, tag compression.Tag) roottesting.FileSpec {
	key := tc.TreeKey(roottesting.TreeSpec{
		Name:            "Events",
		Title:           "event data",
		Entries:         100,
		ClusterRangeEnd: []int64{49, 99},
		ClusterSize:     []int64{50, 50},
		Unparsed:        1024,
	})
	key.Compression = tag
	return roottesting.FileSpec{Version: version, Keys: []roottesting.KeySpec{key}}
}

func openTestFile(t *testing.T, tc roottesting.TestContext, src storage.ByteSource, opts ...Option) *File {
	opts = append([]Option{WithLogger(tc.Log)}, opts...)
	f, err := Open(context.Background(), src, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close(context.Background()) })
	return f
}

func TestOpenAndGetTree(t *testing.T) {
	tc := newTestContext(t)
	for _, version := range []int32{roottesting.SmallVersion, roottesting.LargeVersion} {
		for _, tag := range []compression.Tag{"", compression.TagZlib, compression.TagLZMA, compression.TagLZ4} {
			t.Run(string(tag), func(t *testing.T) {
				built, src := tc.Source(eventsSpec(tc, version, tag))
				f := openTestFile(t, tc, src)

				assert.Equal(t, built.Header, f.Header())
				assert.Equal(t, built.RootKey, f.RootKey())
				assert.Equal(t, built.Directory, f.Directory())
				assert.Equal(t, []string{"Events;1"}, f.Names())
				assert.Equal(t, built.Keys, f.Keys())

				obj, err := f.Get(context.Background(), "Events")
				require.NoError(t, err)
				tree, ok := obj.(*records.Tree)
				require.True(t, ok)
				assert.Equal(t, records.TreeClassName, tree.ClassName())
				assert.Equal(t, "Events", tree.Named.Name)
				assert.Equal(t, "event data", tree.Named.Title)
				assert.Equal(t, int64(100), tree.Entries)
				assert.Equal(t, []int64{49, 99}, tree.ClusterRangeEnd)
				assert.Equal(t, []int64{50, 50}, tree.ClusterSize)
			})
		}
	}
}

func TestGetMultiBlockPayload(t *testing.T) {
	tc := newTestContext(t)
	spec := eventsSpec(tc, roottesting.LargeVersion, compression.TagZlib)
	spec.Keys[0].BlockSize = 300
	_, src := tc.Source(spec)
	f := openTestFile(t, tc, src)

	obj, err := f.Get(context.Background(), "Events")
	require.NoError(t, err)
	assert.Equal(t, int64(100), obj.(*records.Tree).Entries)
}

func TestGetResolvesCycles(t *testing.T) {
	tc := newTestContext(t)
	first := tc.TreeKey(roottesting.TreeSpec{Name: "Events", Entries: 10})
	first.Cycle = 1
	second := tc.TreeKey(roottesting.TreeSpec{Name: "Events", Entries: 20})
	second.Cycle = 2
	_, src := tc.Source(roottesting.FileSpec{Keys: []roottesting.KeySpec{first, second}})
	f := openTestFile(t, tc, src)
	ctx := context.Background()

	assert.Equal(t, []string{"Events;1", "Events;2"}, f.Names())

	obj, err := f.Get(ctx, "Events")
	require.NoError(t, err)
	assert.Equal(t, int64(20), obj.(*records.Tree).Entries)

	obj, err = f.Get(ctx, "Events;1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), obj.(*records.Tree).Entries)

	_, err = f.Get(ctx, "Events;3")
	assert.ErrorIs(t, err, records.ErrCycleNotFound)
	_, err = f.Get(ctx, "Missing")
	assert.ErrorIs(t, err, records.ErrKeyNotFound)
}

func TestGetUnregisteredClassReadsNothing(t *testing.T) {
	tc := newTestContext(t)
	payload, err := roottesting.NamedPayload("h1", "a histogram")
	require.NoError(t, err)
	_, src := tc.Source(roottesting.FileSpec{Keys: []roottesting.KeySpec{
		{Name: "h1", ClassName: "TH1F", Payload: payload},
	}})
	f := openTestFile(t, tc, src)
	ctx := context.Background()
	reads := src.Reads()

	_, err = f.Get(ctx, "h1")
	assert.ErrorIs(t, err, records.ErrUnregisteredClass)
	assert.Equal(t, reads, src.Reads())

	data, key, err := f.Payload(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "TH1F", key.ClassName)
	assert.Equal(t, reads+1, src.Reads())
}

func TestGetRegisteredClass(t *testing.T) {
	tc := newTestContext(t)
	payload, err := roottesting.NamedPayload("h1", "a histogram")
	require.NoError(t, err)
	_, src := tc.Source(roottesting.FileSpec{Keys: []roottesting.KeySpec{
		{Name: "h1", ClassName: "TNamed", Payload: payload},
	}})
	classes := records.NewClassRegistry()
	require.NoError(t, classes.Register("TNamed", func() records.Object { return &records.Named{} }))
	f := openTestFile(t, tc, src, WithClassRegistry(classes))

	obj, err := f.Get(context.Background(), "h1")
	require.NoError(t, err)
	named, ok := obj.(*records.Named)
	require.True(t, ok)
	assert.Equal(t, "h1", named.Name)
	assert.Equal(t, "a histogram", named.Title)
}

func TestGetMany(t *testing.T) {
	tc := newTestContext(t)
	var keys []roottesting.KeySpec
	var names []string
	for i, name := range []string{"a", "b", "c", "d", "e", "f"} {
		k := tc.TreeKey(roottesting.TreeSpec{Name: name, Entries: int64(i + 1), Unparsed: 2048})
		k.Compression = compression.TagLZ4
		keys = append(keys, k)
		names = append(names, name)
	}
	spec := roottesting.FileSpec{Keys: keys}

	var results [][]records.Object
	for _, size := range []int{1, 4} {
		_, src := tc.Source(spec)
		f := openTestFile(t, tc, src, WithPoolSize(size))
		objs, err := f.GetMany(context.Background(), names...)
		require.NoError(t, err)
		require.Len(t, objs, len(names))
		for i, obj := range objs {
			assert.Equal(t, int64(i+1), obj.(*records.Tree).Entries)
		}
		results = append(results, objs)
	}
	assert.Equal(t, results[0], results[1])

	_, src := tc.Source(spec)
	f := openTestFile(t, tc, src)
	_, err := f.GetMany(context.Background(), "a", "missing", "c")
	assert.ErrorIs(t, err, records.ErrKeyNotFound)
}

func TestConcurrentGet(t *testing.T) {
	tc := newTestContext(t)
	_, src := tc.Source(eventsSpec(tc, roottesting.LargeVersion, compression.TagZlib))
	f := openTestFile(t, tc, src, WithPoolSize(2))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obj, err := f.Get(context.Background(), "Events")
			if assert.NoError(t, err) {
				assert.Equal(t, int64(100), obj.(*records.Tree).Entries)
			}
		}()
	}
	wg.Wait()
}

// openMilestones are the prefix lengths Open needs, in order
func openMilestones(built *roottesting.File) []int64 {
	keyEnd := int64(roottesting.Begin) + int64(built.RootKey.KeyLen)
	return []int64{
		int64(records.FileHeaderPrefixSize),
		int64(records.FileHeaderSize(built.Header.Version)),
		int64(roottesting.Begin + records.KeyHeaderSize),
		keyEnd,
		keyEnd + int64(built.RootKey.ObjLen),
	}
}

func expectedGrowths(built *roottesting.File, step int64) int {
	size := int64(len(built.Data))
	have := min(step, size)
	growths := 0
	for _, need := range openMilestones(built) {
		if need <= have {
			continue
		}
		growths++
		have = min(have+max(need-have, step), size)
	}
	return growths
}

func TestOpenReadahead(t *testing.T) {
	tc := newTestContext(t)
	spec := eventsSpec(tc, roottesting.LargeVersion, "")
	spec.Title = strings.Repeat("t", 300)

	tests := []struct {
		step    int64
		reads   int
		growths int
	}{
		{step: 64, reads: 5, growths: 3},
		{step: 4096, reads: 2, growths: 0},
	}
	for _, tt := range tests {
		built, src := tc.Source(spec)
		f := openTestFile(t, tc, src, WithReadStep(tt.step))

		assert.Equal(t, tt.reads, src.Reads())
		assert.Equal(t, tt.growths, f.ReadaheadGrowths())
		assert.Equal(t, expectedGrowths(built, tt.step), f.ReadaheadGrowths())
		assert.Equal(t, int64(src.Reads()), f.Reads())

		// the key list is read in one exact read
		calls := src.Calls()
		last := calls[len(calls)-1]
		assert.Equal(t, built.Directory.SeekKeys, last.Offset)
		assert.Equal(t, int64(built.Directory.NbytesKeys), last.Size)
	}
}

func TestOpenReadaheadSteps(t *testing.T) {
	tc := newTestContext(t)
	spec := eventsSpec(tc, roottesting.SmallVersion, compression.TagZlib)
	spec.Title = strings.Repeat("x", 200)
	spec.Trailing = []byte{1, 2, 3}

	for _, step := range []int64{1, 16, 64, 128, 256, 512, 4096} {
		built, src := tc.Source(spec)
		f := openTestFile(t, tc, src, WithReadStep(step))

		growths := expectedGrowths(built, step)
		assert.Equal(t, growths, f.ReadaheadGrowths(), "step %d", step)
		assert.Equal(t, 1+growths+1, src.Reads(), "step %d", step)
	}
}

func TestOpenChunkedSource(t *testing.T) {
	tc := newTestContext(t)
	spec := eventsSpec(tc, roottesting.LargeVersion, compression.TagLZ4)
	spec.Title = strings.Repeat("y", 280)
	spec.Trailing = []byte{7, 7, 7, 7}

	var files []*File
	for _, step := range []int64{256, 512, 4096} {
		_, src := tc.Source(spec, storage.WithMaxRead(37))
		files = append(files, openTestFile(t, tc, src, WithReadStep(step)))
	}
	for _, f := range files[1:] {
		assert.Equal(t, files[0].Header(), f.Header())
		assert.Equal(t, files[0].RootKey(), f.RootKey())
		assert.Equal(t, files[0].Directory(), f.Directory())
		assert.Equal(t, files[0].Keys(), f.Keys())
		assert.Equal(t, files[0].Trailing(), f.Trailing())
	}
	assert.Equal(t, []byte{7, 7, 7, 7}, files[0].Trailing())

	obj, err := files[0].Get(context.Background(), "Events")
	require.NoError(t, err)
	assert.Equal(t, int64(100), obj.(*records.Tree).Entries)
}

func TestOpenSeekMismatch(t *testing.T) {
	tc := newTestContext(t)
	built := tc.BuildFile(eventsSpec(tc, roottesting.LargeVersion, ""))
	data := append([]byte(nil), built.Data...)
	// the 64 bit seek key follows the fixed part of the root key
	binary.BigEndian.PutUint64(data[roottesting.Begin+records.KeyHeaderSize:], roottesting.Begin+1)

	_, err := Open(context.Background(), storage.NewMemorySource(data), WithLogger(tc.Log))
	assert.ErrorIs(t, err, ErrSeekMismatch)
}

func TestOpenMagicMismatch(t *testing.T) {
	tc := newTestContext(t)
	built := tc.BuildFile(eventsSpec(tc, roottesting.LargeVersion, ""))
	data := append([]byte(nil), built.Data...)
	copy(data, "rooX")

	_, err := Open(context.Background(), storage.NewMemorySource(data), WithLogger(tc.Log))
	assert.ErrorIs(t, err, records.ErrMagicMismatch)
}

func TestOpenTransportError(t *testing.T) {
	tc := newTestContext(t)
	boom := errors.New("boom")
	for n := range 3 {
		_, src := tc.Source(eventsSpec(tc, roottesting.LargeVersion, ""))
		src.FailRead(n, boom)

		f := New(src, WithLogger(tc.Log), WithReadStep(64))
		err := f.Open(context.Background())
		assert.ErrorIs(t, err, ErrTransport, "read %d", n)
		assert.ErrorIs(t, err, boom, "read %d", n)

		_, err = f.Key("Events")
		assert.ErrorIs(t, err, ErrNotOpen)
	}
}

func TestOpenTruncated(t *testing.T) {
	tc := newTestContext(t)
	built := tc.BuildFile(eventsSpec(tc, roottesting.LargeVersion, ""))
	short := built.Data[:len(built.Data)-10]

	_, err := Open(context.Background(), storage.NewMemorySource(short), WithLogger(tc.Log))
	assert.ErrorIs(t, err, ErrTruncated)

	// with the size check the header alone is enough to reject it
	src := roottesting.NewCountingSource(storage.NewMemorySource(short))
	_, err = Open(context.Background(), src, WithLogger(tc.Log), WithReadStep(4096), WithSizeCheck())
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Equal(t, 1, src.Reads())

	_, err = Open(context.Background(), storage.NewMemorySource(built.Data[:40]), WithLogger(tc.Log))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestOpenCanceled(t *testing.T) {
	tc := newTestContext(t)
	_, src := tc.Source(eventsSpec(tc, roottesting.LargeVersion, ""))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, src, WithLogger(tc.Log))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestOpenIdempotentAndClose(t *testing.T) {
	tc := newTestContext(t)
	_, src := tc.Source(eventsSpec(tc, roottesting.LargeVersion, ""))
	ctx := context.Background()

	f := New(src, WithLogger(tc.Log))
	_, err := f.Key("Events")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.Nil(t, f.Names())

	require.NoError(t, f.Open(ctx))
	reads := src.Reads()
	require.NoError(t, f.Open(ctx))
	assert.Equal(t, reads, src.Reads())

	require.NoError(t, f.Close(ctx))
	require.NoError(t, f.Close(ctx))
	_, err = f.Get(ctx, "Events")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.Equal(t, "test.root", f.Directory().Name)
}

func TestCompressionTag(t *testing.T) {
	tc := newTestContext(t)
	tests := []struct {
		compress int32
		tag      compression.Tag
	}{
		{compress: 0, tag: compression.TagZlib},
		{compress: 101, tag: compression.TagZlib},
		{compress: 207, tag: compression.TagLZMA},
		{compress: 404, tag: compression.TagLZ4},
		{compress: 505, tag: compression.TagZstd},
	}
	for _, tt := range tests {
		spec := eventsSpec(tc, roottesting.LargeVersion, "")
		spec.Compress = tt.compress
		_, src := tc.Source(spec)
		f := openTestFile(t, tc, src)

		tag, err := f.CompressionTag()
		require.NoError(t, err)
		assert.Equal(t, tt.tag, tag, "compress %d", tt.compress)
	}
}

func TestGetCorruptPayload(t *testing.T) {
	tc := newTestContext(t)
	built := tc.BuildFile(eventsSpec(tc, roottesting.LargeVersion, compression.TagLZ4))
	data := append([]byte(nil), built.Data...)
	key := built.Keys[0]
	// flip a byte of the stored checksum
	data[key.PayloadOffset()+compression.HeaderSize] ^= 0xff

	f := openTestFile(t, tc, storage.NewMemorySource(data))
	_, err := f.Get(context.Background(), "Events")
	assert.ErrorIs(t, err, compression.ErrChecksumMismatch)

	f = openTestFile(t, tc, storage.NewMemorySource(data),
		WithCodecRegistry(compression.NewRegistry(compression.WithoutChecksum())))
	_, err = f.Get(context.Background(), "Events")
	assert.NoError(t, err)
}
