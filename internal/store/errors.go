package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no Recipe has the requested id.
var ErrNotFound = errors.New("recipe not found")

// StorageError reports that the persistence medium rejected an operation.
// A failed commit never leaves a partially applied batch behind.
type StorageError struct {
	Op  string // "begin", "write", "commit", ...
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError returns true if err wraps a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
