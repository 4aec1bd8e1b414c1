package compression

import "errors"

var (
	ErrUnsupportedAlgorithm = errors.New("compression algorithm not supported")
	// ErrNotImplemented is returned for tags that are part of the format but
	// have no decoder. It is distinct from ErrUnsupportedAlgorithm.
	ErrNotImplemented    = errors.New("compression algorithm recognized but not implemented")
	ErrChecksumMismatch  = errors.New("checksum mismatch while decompressing")
	ErrSizeMismatch      = errors.New("decompressed size does not match the header")
	ErrBadCompressedSize = errors.New("compressed size is inconsistent with the block header")
	ErrIncompressible    = errors.New("data could not be compressed")
	ErrNilDecompressFunc = errors.New("nil decompress function")
)
