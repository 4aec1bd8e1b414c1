// Package rootfile opens ROOT files over a storage.ByteSource and resolves
// the named objects of the top level directory.
//
// Open reads the file header, the key of the top directory, the directory
// record and its key list. The distance to each of these is only known once
// the previous one is decoded, so Open starts with one speculative read and
// grows it as needed. Each growth is logged and counted. After Open the
// parsed structures are read only and objects may be fetched concurrently.
package rootfile

import (
	"context"
	"fmt"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/forestrie/go-rootio/compression"
	"github.com/forestrie/go-rootio/records"
	"github.com/forestrie/go-rootio/storage"
	"github.com/forestrie/go-rootio/workers"
	"golang.org/x/sync/errgroup"
)

type File struct {
	log     logger.Logger
	src     storage.ByteSource
	opts    Options
	reader  *reader
	pool    *workers.Pool
	classes *records.ClassRegistry
	codecs  *compression.Registry

	mu        sync.RWMutex
	open      bool
	header    records.FileHeader
	rootKey   records.Key
	directory records.Directory
	keys      *records.KeyList
	growths   int
}

// New returns a File reading from src. Nothing is read until Open.
func New(src storage.ByteSource, opts ...Option) *File {
	o := NewOptions(opts...)
	return &File{
		log:     o.log,
		src:     src,
		opts:    o,
		reader:  &reader{src: src, log: o.log, metrics: o.metrics},
		pool:    o.pool,
		classes: o.classes,
		codecs:  o.codecs,
	}
}

// Open is New followed by File.Open
func Open(ctx context.Context, src storage.ByteSource, opts ...Option) (*File, error) {
	f := New(src, opts...)
	if err := f.Open(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// Open opens the source and decodes the structures leading to the key list.
// Opening an open file does nothing. On error the file stays closed and the
// source is closed again.
func (f *File) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		return nil
	}
	if err := f.src.Open(ctx); err != nil {
		return fmt.Errorf("%w: open: %w", ErrTransport, err)
	}
	if err := f.openStructures(ctx); err != nil {
		_ = f.src.Close(ctx)
		return err
	}
	f.open = true
	f.log.Infof("opened %q: version %d, %d keys, %d readahead growths",
		f.directory.Name, f.header.Version, f.keys.Len(), f.growths)
	return nil
}

func (f *File) openStructures(ctx context.Context) error {
	ra := &readahead{reader: f.reader, step: f.opts.readStep}
	if err := ra.start(ctx); err != nil {
		return err
	}

	if err := ra.ensure(ctx, int64(records.FileHeaderPrefixSize), "file header"); err != nil {
		return err
	}
	version, err := records.PeekFileVersion(ra.buf)
	if err != nil {
		return err
	}
	if err = ra.ensure(ctx, int64(records.FileHeaderSize(version)), "file header"); err != nil {
		return err
	}
	var header records.FileHeader
	begin, err := header.Decode(ra.buf, 0)
	if err != nil {
		return err
	}
	f.log.Debugf("file header: version %d, begin %d, end %d", header.Version, header.Begin, header.End)

	if f.opts.sizeCheck {
		if err = f.checkSize(ctx, &header); err != nil {
			return err
		}
	}

	if err = ra.ensure(ctx, int64(begin+records.KeyHeaderSize), "root key"); err != nil {
		return err
	}
	keyLen, err := records.PeekKeyLen(ra.buf, begin)
	if err != nil {
		return err
	}
	if err = ra.ensure(ctx, int64(begin+keyLen), "root key"); err != nil {
		return err
	}
	var rootKey records.Key
	keyEnd, err := rootKey.Decode(ra.buf, begin)
	if err != nil {
		return err
	}
	if rootKey.SeekKey != int64(header.Begin) {
		return fmt.Errorf("%w: key at %d has seek %d", ErrSeekMismatch, header.Begin, rootKey.SeekKey)
	}

	dirEnd := int64(keyEnd) + int64(rootKey.ObjLen)
	if err = ra.ensure(ctx, dirEnd, "root directory"); err != nil {
		return err
	}
	var directory records.Directory
	off, err := directory.Decode(ra.buf, keyEnd)
	if err != nil {
		return err
	}
	if int64(off) > dirEnd {
		return fmt.Errorf("%w: directory ends at %d, its key allows %d", records.ErrOverRead, off, dirEnd)
	}
	f.log.Debugf("root directory: keys at %d, %d bytes", directory.SeekKeys, directory.NbytesKeys)

	keysBytes, err := f.reader.readExact(ctx, directory.SeekKeys, int64(directory.NbytesKeys))
	if err != nil {
		return err
	}
	keys := &records.KeyList{}
	if _, err = keys.Decode(keysBytes, 0); err != nil {
		return err
	}

	f.header = header
	f.rootKey = rootKey
	f.directory = directory
	f.keys = keys
	f.growths = ra.growths
	return nil
}

func (f *File) checkSize(ctx context.Context, header *records.FileHeader) error {
	st, err := f.src.Stat(ctx)
	if err != nil {
		return fmt.Errorf("%w: stat: %w", ErrTransport, err)
	}
	if header.End > st.Size {
		return fmt.Errorf("%w: header end is %d, source has %d bytes", ErrTruncated, header.End, st.Size)
	}
	return nil
}

// Close closes the source. The parsed structures remain readable.
func (f *File) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return nil
	}
	f.open = false
	if err := f.src.Close(ctx); err != nil {
		return fmt.Errorf("%w: close: %w", ErrTransport, err)
	}
	return nil
}

func (f *File) keyList() (*records.KeyList, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.open {
		return nil, ErrNotOpen
	}
	return f.keys, nil
}

// Key resolves name, optionally qualified as "name;cycle". An unqualified
// name resolves to its highest cycle.
func (f *File) Key(name string) (records.Key, error) {
	keys, err := f.keyList()
	if err != nil {
		return records.Key{}, err
	}
	return keys.Get(name)
}

// Get fetches and decodes the named object with the decoder registered for
// its class. The class is checked before anything is read.
func (f *File) Get(ctx context.Context, name string) (records.Object, error) {
	key, err := f.Key(name)
	if err != nil {
		return nil, err
	}
	obj, err := f.classes.New(key.ClassName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key.NameCycle(), err)
	}
	data, err := f.payload(ctx, key)
	if err != nil {
		return nil, err
	}
	if _, err = obj.Decode(data, 0); err != nil {
		return nil, fmt.Errorf("%s: %w", key.NameCycle(), err)
	}
	f.opts.metrics.decoded(key.ClassName)
	return obj, nil
}

// Payload returns the decompressed bytes of the named object and its key,
// for classes that have no registered decoder.
func (f *File) Payload(ctx context.Context, name string) ([]byte, records.Key, error) {
	key, err := f.Key(name)
	if err != nil {
		return nil, records.Key{}, err
	}
	data, err := f.payload(ctx, key)
	if err != nil {
		return nil, records.Key{}, err
	}
	return data, key, nil
}

// GetMany fetches several objects concurrently. Results are in the order of
// names; the first error cancels the remaining fetches.
func (f *File) GetMany(ctx context.Context, names ...string) ([]records.Object, error) {
	objs := make([]records.Object, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			obj, err := f.Get(gctx, name)
			if err != nil {
				return err
			}
			objs[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return objs, nil
}

func (f *File) payload(ctx context.Context, key records.Key) ([]byte, error) {
	raw, err := f.reader.readExact(ctx, key.PayloadOffset(), key.PayloadSize())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key.NameCycle(), err)
	}
	if !key.Compressed() {
		return raw, nil
	}

	data, err := workers.Do(ctx, f.pool, func() ([]byte, error) {
		return f.codecs.Inflate(raw, int(key.ObjLen))
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key.NameCycle(), err)
	}
	f.opts.metrics.decompressed(string(raw[:min(2, len(raw))]))
	return data, nil
}

// Names returns "name;cycle" for every key in on-disk order
func (f *File) Names() []string {
	keys, err := f.keyList()
	if err != nil {
		return nil
	}
	return keys.Names()
}

func (f *File) Keys() []records.Key {
	keys, err := f.keyList()
	if err != nil {
		return nil
	}
	return keys.Keys()
}

func (f *File) Header() records.FileHeader {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.header
}

func (f *File) RootKey() records.Key {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rootKey
}

func (f *File) Directory() records.Directory {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.directory
}

// Trailing returns the bytes that followed the last key of the key list
func (f *File) Trailing() []byte {
	keys, err := f.keyList()
	if err != nil {
		return nil
	}
	return keys.Trailing
}

// ReadaheadGrowths is the number of extra reads Open needed because the
// read step was too small
func (f *File) ReadaheadGrowths() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.growths
}

// Reads is the number of byte range reads issued so far
func (f *File) Reads() int64 { return f.reader.reads.Load() }

// BytesRead is the total of the bytes returned by those reads
func (f *File) BytesRead() int64 { return f.reader.bytesRead.Load() }

// CompressionTag is the block tag the file header's compression setting
// implies for newly written objects
func (f *File) CompressionTag() (compression.Tag, error) {
	h := f.Header()
	return compression.Algorithm(h.CompressionAlgorithm()).Tag()
}
