// Package handoff holds the read handle the installer leaves open for the
// interpreter's loader.
//
// A Slot holds at most one handle. The handle is published once, rewound to
// offset zero, and is never written through. It stays valid until the next
// installation run releases it or the owner calls Release.
package handoff

import (
	"errors"
	"fmt"
	"sync"

	"forthstore/internal/fatfs"
	"forthstore/internal/logging"
)

var (
	logger = logging.GetLogger().WithPrefix("handoff")

	// ErrOccupied indicates a handle is already published
	ErrOccupied = errors.New("handoff slot already holds a handle")

	// ErrWritable indicates an attempt to publish a handle opened for writing
	ErrWritable = errors.New("handoff handle must be read-only")
)

// Slot owns the published loader handle.
type Slot struct {
	mu     sync.Mutex
	handle *fatfs.File
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Publish transfers ownership of f to the slot.
func (s *Slot) Publish(f *fatfs.File) error {
	if f == nil {
		return errors.New("handoff: nil handle")
	}
	if f.Mode() != fatfs.ModeRead {
		return ErrWritable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return fmt.Errorf("%w: %s", ErrOccupied, s.handle.Name())
	}
	s.handle = f
	logger.Debug("Published %q", f.Name())
	return nil
}

// Handle returns the published handle for the loader.
func (s *Slot) Handle() (*fatfs.File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle, s.handle != nil
}

// Published reports whether a handle is held.
func (s *Slot) Published() bool {
	_, ok := s.Handle()
	return ok
}

// Release closes and forgets the held handle. An empty slot is not an error.
func (s *Slot) Release() error {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h == nil {
		return nil
	}
	logger.Debug("Releasing %q", h.Name())
	if h.Closed() {
		return nil
	}
	return h.Close()
}
