package index

import (
	"errors"
	"fmt"
)

// Sentinel errors for index operations.
var (
	// ErrInvalidEntry is returned for an empty entity id or attribute name, or
	// a value that cannot be persisted (NaN or infinite numbers).
	ErrInvalidEntry = errors.New("invalid index entry")

	// ErrSerialization is returned by Load for a malformed snapshot.
	ErrSerialization = errors.New("malformed index snapshot")

	// ErrIO matches every *IOError.
	ErrIO = errors.New("index i/o failure")
)

// IOError represents a filesystem failure while saving or loading a snapshot.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("index: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrIO) true for any IOError.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func ioErr(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}

func serializationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSerialization, fmt.Sprintf(format, args...))
}
