package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that no blob is stored under the requested key.
// It is wrapped inside an *Error, so test it with errors.Is or IsNotFound.
var ErrNotFound = errors.New("object not found")

// Op names the storage operation that produced a failure.
type Op string

const (
	OpPut    Op = "put"
	OpGet    Op = "get"
	OpCopy   Op = "copy"
	OpMove   Op = "move"
	OpDelete Op = "delete"
	OpExists Op = "exists"
	OpSetACL Op = "setacl"
)

// Error is the failure type returned by every Blobstore operation. The
// Op field makes failures distinguishable by which operation produced
// them; Err carries the backend's original error.
type Error struct {
	Op  Op
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err indicates a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
