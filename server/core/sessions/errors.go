package sessions

import (
	"errors"
	"fmt"
)

// StorageError reports a failure to create or remove session storage
type StorageError struct {
	Op    string
	Path  string
	Inner error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Inner)
}

func (e *StorageError) Unwrap() error {
	return e.Inner
}

func NewStorageError(op, path string, inner error) error {
	return &StorageError{
		Op:    op,
		Path:  path,
		Inner: inner,
	}
}

func IsStorageError(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}
