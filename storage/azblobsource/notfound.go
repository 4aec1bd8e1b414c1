package azblobsource

import (
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/forestrie/go-rootio/storage"
)

// WrapBlobNotFound translates err to storage.ErrNotFound if it is the azure
// sdk blob or container not found error. All other errors, including nil, are
// returned as is.
func WrapBlobNotFound(err error) error {
	if err == nil {
		return nil
	}
	if !bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", err.Error(), storage.ErrNotFound)
}

func IsBlobNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, storage.ErrNotFound) {
		return true
	}
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound)
}
