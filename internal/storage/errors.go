package storage

import (
	"errors"
	"fmt"
)

// Error codes recorded in the Filesystem error log.
const (
	CodePathNotSupported = "filepath_not_supported"
	CodeUnimplemented    = "unimplemented-method"
)

var (
	// ErrPathNotSupported is matched by errors for paths outside both roots.
	ErrPathNotSupported = errors.New("filepath not supported")

	// ErrNotImplemented is matched by errors from unsupported operations.
	ErrNotImplemented = errors.New("method not implemented")

	// ErrDestinationExists is returned by Copy and Move when overwrite is
	// false and the destination is already present.
	ErrDestinationExists = errors.New("destination already exists")

	// ErrPartialMove is returned by Move when the destination was written
	// but the source could not be removed.
	ErrPartialMove = errors.New("move left source in place")
)

// FatalError signals misuse: an unroutable path or an unsupported
// operation. Continuing after one would either touch the wrong backend or
// silently do nothing, so callers are expected to stop.
type FatalError struct {
	Code    string
	Message string
	kind    error
}

func (e *FatalError) Error() string {
	return e.Message
}

func (e *FatalError) Unwrap() error {
	return e.kind
}

// IsFatal reports whether err belongs to the fatal tier.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

func newPathError(path string) *FatalError {
	return &FatalError{
		Code:    CodePathNotSupported,
		Message: "No appropriate transport found for filename: " + path,
		kind:    ErrPathNotSupported,
	}
}

func newUnimplementedError(method string) *FatalError {
	return &FatalError{
		Code:    CodeUnimplemented,
		Message: fmt.Sprintf("The `%s` method is not implemented and/or not supported.", method),
		kind:    ErrNotImplemented,
	}
}
