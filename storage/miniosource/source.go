// Package miniosource reads ROOT files from S3 compatible object stores
package miniosource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/forestrie/go-rootio/storage"
	"github.com/minio/minio-go/v7"
)

// ObjectClient is the subset of *minio.Client the source needs
type ObjectClient interface {
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

type Option func(*Source)

func WithLogger(log logger.Logger) Option {
	return func(s *Source) { s.log = log }
}

// Source is a storage.ByteSource over one object in a bucket
type Source struct {
	client ObjectClient
	bucket string
	object string
	log    logger.Logger

	mu   sync.RWMutex
	size int64
	open bool
}

func New(client ObjectClient, bucket, object string, opts ...Option) *Source {
	s := &Source{client: client, bucket: bucket, object: object}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logger.Sugar.WithServiceName("miniosource")
	}
	return s
}

// Opener returns a storage.Opener for objects in bucket
func Opener(client ObjectClient, bucket string, opts ...Option) storage.Opener {
	return storage.OpenerFunc(func(name string) (storage.ByteSource, error) {
		return New(client, bucket, name, opts...), nil
	})
}

func (s *Source) Open(ctx context.Context) error {
	st, err := s.stat(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = st.Size
	s.open = true
	s.log.Debugf("opened %s/%s, %d bytes", s.bucket, s.object, s.size)
	return nil
}

func (s *Source) stat(ctx context.Context) (storage.Stat, error) {
	info, err := s.client.StatObject(ctx, s.bucket, s.object, minio.StatObjectOptions{})
	if err != nil {
		return storage.Stat{}, WrapNotFound(err)
	}
	return storage.Stat{Size: info.Size}, nil
}

// Read issues a GetObject with an inclusive Range header covering the part
// of [offset, offset+size) that lies inside the object.
func (s *Source) Read(ctx context.Context, offset, size int64) ([]byte, error) {
	s.mu.RLock()
	open, objectSize := s.open, s.size
	s.mu.RUnlock()
	if !open {
		return nil, storage.ErrClosed
	}
	if offset < 0 || size < 0 {
		return nil, fmt.Errorf("%w: offset %d size %d", storage.ErrInvalidRange, offset, size)
	}
	end := storage.Clamp(offset, size, objectSize)
	if end == offset {
		return nil, nil
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(offset, end-1); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidRange, err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.object, opts)
	if err != nil {
		return nil, WrapNotFound(err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, WrapNotFound(err)
	}
	return data, nil
}

func (s *Source) Stat(ctx context.Context) (storage.Stat, error) {
	s.mu.RLock()
	open := s.open
	s.mu.RUnlock()
	if !open {
		return storage.Stat{}, storage.ErrClosed
	}
	return s.stat(ctx)
}

func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// WrapNotFound translates missing bucket or key responses to
// storage.ErrNotFound and returns other errors unchanged.
func WrapNotFound(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey", resp.Code == "NoSuchBucket", resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", err.Error(), storage.ErrNotFound)
	}
	return err
}
