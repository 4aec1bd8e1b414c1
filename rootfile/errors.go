package rootfile

import "errors"

var (
	// ErrSeekMismatch means the key at the begin offset claims to live
	// somewhere else.
	ErrSeekMismatch = errors.New("root directory key is not at the file begin offset")
	// ErrTransport wraps every error returned by the byte source
	ErrTransport = errors.New("byte source failed")
	// ErrTruncated is returned when the source runs out of bytes before a
	// required span is covered.
	ErrTruncated = errors.New("file is shorter than its records require")
	ErrNotOpen   = errors.New("file is not open")
)
