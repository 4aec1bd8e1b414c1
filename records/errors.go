package records

import (
	"errors"
	"fmt"
)

var (
	ErrMagicMismatch           = errors.New("the file does not start with the root magic bytes")
	ErrUnsupportedStreamer     = errors.New("the streamer byte count flag is not set, legacy layouts are not supported")
	ErrUnsupportedClassVersion = errors.New("the class version is not supported")
	ErrFramingViolation        = errors.New("the record did not consume exactly its declared length")
	ErrKeyCountMismatch        = errors.New("the number of keys read does not match the declared key count")
	ErrDuplicateKey            = errors.New("the key list contains the same name and cycle twice")
)

var (
	// ErrUnderRead and ErrOverRead are the two distinct kinds of framing violation
	ErrUnderRead = fmt.Errorf("%w: did not read enough from a streamer", ErrFramingViolation)
	ErrOverRead  = fmt.Errorf("%w: read too much from a streamer", ErrFramingViolation)
)

var (
	ErrKeyNotFound       = errors.New("no key with the requested name")
	ErrCycleNotFound     = errors.New("the key name exists but not with the requested cycle")
	ErrUnregisteredClass = errors.New("no decoder is registered for the class")
	ErrInvalidClassName  = errors.New("class names must not be empty")
	ErrNilFactory        = errors.New("a class factory must be provided")
)
