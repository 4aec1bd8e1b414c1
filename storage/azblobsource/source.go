// Package azblobsource reads ROOT files from Azure Blob Storage using ranged
// downloads.
package azblobsource

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/forestrie/go-rootio/storage"
)

// BlobClient is the subset of *blob.Client the source needs
type BlobClient interface {
	DownloadStream(ctx context.Context, o *blob.DownloadStreamOptions) (blob.DownloadStreamResponse, error)
	GetProperties(ctx context.Context, o *blob.GetPropertiesOptions) (blob.GetPropertiesResponse, error)
}

type Option func(*Source)

func WithLogger(log logger.Logger) Option {
	return func(s *Source) { s.log = log }
}

// Source is a storage.ByteSource over a single blob. The blob size is read
// once by Open and used to clamp reads at the end of the blob, so that short
// reads behave the same as for the other sources.
type Source struct {
	client BlobClient
	name   string
	log    logger.Logger

	mu   sync.RWMutex
	size int64
	open bool
}

func New(client BlobClient, name string, opts ...Option) *Source {
	s := &Source{client: client, name: name}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logger.Sugar.WithServiceName("azblobsource")
	}
	return s
}

// NewFromClient binds the named blob in containerName
func NewFromClient(client *azblob.Client, containerName, blobName string, opts ...Option) *Source {
	bc := client.ServiceClient().NewContainerClient(containerName).NewBlobClient(blobName)
	return New(bc, containerName+"/"+blobName, opts...)
}

// Opener returns a storage.Opener for blobs in containerName
func Opener(client *azblob.Client, containerName string, opts ...Option) storage.Opener {
	return storage.OpenerFunc(func(name string) (storage.ByteSource, error) {
		return NewFromClient(client, containerName, name, opts...), nil
	})
}

func (s *Source) Open(ctx context.Context) error {
	st, err := s.properties(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = st.Size
	s.open = true
	s.log.Debugf("opened %s, %d bytes", s.name, s.size)
	return nil
}

func (s *Source) properties(ctx context.Context) (storage.Stat, error) {
	props, err := s.client.GetProperties(ctx, nil)
	if err != nil {
		return storage.Stat{}, WrapBlobNotFound(err)
	}
	if props.ContentLength == nil {
		return storage.Stat{}, fmt.Errorf("%s: blob properties carry no content length", s.name)
	}
	return storage.Stat{Size: *props.ContentLength}, nil
}

func (s *Source) Read(ctx context.Context, offset, size int64) ([]byte, error) {
	s.mu.RLock()
	open, blobSize := s.open, s.size
	s.mu.RUnlock()
	if !open {
		return nil, storage.ErrClosed
	}
	if offset < 0 || size < 0 {
		return nil, fmt.Errorf("%w: offset %d size %d", storage.ErrInvalidRange, offset, size)
	}
	end := storage.Clamp(offset, size, blobSize)
	if end == offset {
		return nil, nil
	}

	resp, err := s.client.DownloadStream(ctx, &blob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: offset, Count: end - offset},
	})
	if err != nil {
		return nil, WrapBlobNotFound(err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *Source) Stat(ctx context.Context) (storage.Stat, error) {
	s.mu.RLock()
	open := s.open
	s.mu.RUnlock()
	if !open {
		return storage.Stat{}, storage.ErrClosed
	}
	return s.properties(ctx)
}

func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}
