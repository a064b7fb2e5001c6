package cspace

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when a manifold or space is configured
	// incorrectly, e.g. mutated after it was locked by Setup.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrOutOfRange is returned for sub-manifold or slot indices past the end.
	ErrOutOfRange = errors.New("index out of range")

	// ErrNotFound is returned when a manifold cannot be located in a manifold tree.
	ErrNotFound = errors.New("manifold not found")

	// ErrTypeMismatch is returned when an operation mixes unrelated manifolds.
	ErrTypeMismatch = errors.New("manifold type mismatch")

	// ErrOutOfMemory is returned when the allocator cannot obtain memory.
	// It is never retried internally.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrNotSetup is returned when a space is used before Setup.
	ErrNotSetup = fmt.Errorf("%w: space is not set up", ErrInvalidConfiguration)

	// ErrClosed is returned when a space is used after Close.
	ErrClosed = errors.New("space is closed")
)

// ErrIndexOutOfRange reports a sub-manifold or slot index past the end.
type ErrIndexOutOfRange struct {
	Index int
	Count int
}

func (e *ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("index out of range: %d (count %d)", e.Index, e.Count)
}

func (e *ErrIndexOutOfRange) Unwrap() error { return ErrOutOfRange }

// ErrManifoldNotFound reports that a manifold is absent from the searched tree.
type ErrManifoldNotFound struct {
	Name string
	In   string
}

func (e *ErrManifoldNotFound) Error() string {
	return fmt.Sprintf("manifold not found: %q in %q", e.Name, e.In)
}

func (e *ErrManifoldNotFound) Unwrap() error { return ErrNotFound }

// ErrManifoldMismatch reports an operation across two different manifolds.
type ErrManifoldMismatch struct {
	Want string
	Got  string
}

func (e *ErrManifoldMismatch) Error() string {
	return fmt.Sprintf("manifold mismatch: want %q, got %q", e.Want, e.Got)
}

func (e *ErrManifoldMismatch) Unwrap() error { return ErrTypeMismatch }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

func mismatch(want, got Manifold) error {
	return &ErrManifoldMismatch{Want: want.Name(), Got: got.Name()}
}
