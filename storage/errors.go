package storage

import "errors"

var (
	ErrNotFound     = errors.New("object not found")
	ErrClosed       = errors.New("source is not open")
	ErrInvalidRange = errors.New("invalid byte range")
)
