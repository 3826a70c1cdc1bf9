// Package fatfs provides the filesystem mounted on the flash device.
//
// This file contains error types and error handling utilities.
package fatfs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the path doesn't exist on the volume
	ErrNotFound = errors.New("path not found")

	// ErrExists indicates the path already exists
	ErrExists = errors.New("path already exists")

	// ErrIsDir indicates a file operation on a directory
	ErrIsDir = errors.New("path is a directory")

	// ErrFileBusy indicates another file is still open; the volume allows one
	ErrFileBusy = errors.New("another file is open")

	// ErrReadOnly indicates a write to a file opened for reading
	ErrReadOnly = errors.New("file opened read-only")

	// ErrClosed indicates use of a closed file
	ErrClosed = errors.New("file already closed")

	// ErrNotMounted indicates the volume was mounted on an uninitialized device
	ErrNotMounted = errors.New("volume not mounted")
)

// Error wraps volume errors with the operation and affected path.
type Error struct {
	Op   string // Operation that failed (e.g., "open", "mkdir")
	Path string // Affected path
	Err  error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, path string, err error) *Error {
	fsErr := &Error{
		Op:   op,
		Path: path,
		Err:  err,
	}
	logger.Debug("Volume error: %v", fsErr)
	return fsErr
}

// Common operation names for consistent logging and error reporting
const (
	OpExists  = "exists"
	OpStat    = "stat"
	OpReadDir = "readdir"
	OpOpen    = "open"
	OpRead    = "read"
	OpWrite   = "write"
	OpSeek    = "seek"
	OpClose   = "close"
	OpMkdir   = "mkdir"
	OpRemove  = "remove"
)
