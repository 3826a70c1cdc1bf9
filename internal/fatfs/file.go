package fatfs

import (
	"io"
	"sync"

	"github.com/spf13/afero"
)

// File is an open file on a Volume. Closing it frees the volume for the
// next Open.
type File struct {
	vol    *Volume
	f      afero.File
	name   string
	mode   Mode
	closed bool
	mu     sync.Mutex
}

// Name returns the cleaned volume path of the file.
func (f *File) Name() string {
	return f.name
}

// Mode returns the mode the file was opened with.
func (f *File) Mode() Mode {
	return f.mode
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, newError(OpWrite, f.name, ErrClosed)
	}
	if f.mode != ModeWrite {
		return 0, newError(OpWrite, f.name, ErrReadOnly)
	}
	n, err := f.f.Write(p)
	if err != nil {
		return n, newError(OpWrite, f.name, err)
	}
	return n, nil
}

// WriteString implements io.StringWriter.
func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, newError(OpRead, f.name, ErrClosed)
	}
	n, err := f.f.Read(p)
	if err != nil && err != io.EOF {
		return n, newError(OpRead, f.name, err)
	}
	return n, err
}

// ReadByte implements io.ByteReader.
func (f *File) ReadByte() (byte, error) {
	var b [1]byte
	for {
		n, err := f.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// ReadAt implements io.ReaderAt. It leaves the read position untouched.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, newError(OpRead, f.name, ErrClosed)
	}
	n, err := f.f.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return n, newError(OpRead, f.name, err)
	}
	return n, err
}

// Position returns the current read/write offset.
func (f *File) Position() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seekLocked(0, io.SeekCurrent)
}

// Rewind moves the read position back to the first byte.
func (f *File) Rewind() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.seekLocked(0, io.SeekStart)
	return err
}

func (f *File) seekLocked(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, newError(OpSeek, f.name, ErrClosed)
	}
	pos, err := f.f.Seek(offset, whence)
	if err != nil {
		return 0, newError(OpSeek, f.name, err)
	}
	return pos, nil
}

// Size returns the current file size.
func (f *File) Size() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, newError(OpStat, f.name, ErrClosed)
	}
	info, err := f.f.Stat()
	if err != nil {
		return 0, newError(OpStat, f.name, err)
	}
	return info.Size(), nil
}

// Available returns the number of bytes left between the read position and
// the end of the file.
func (f *File) Available() (int64, error) {
	size, err := f.Size()
	if err != nil {
		return 0, err
	}
	pos, err := f.Position()
	if err != nil {
		return 0, err
	}
	if pos >= size {
		return 0, nil
	}
	return size - pos, nil
}

// Close closes the file and releases the volume's open slot.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return newError(OpClose, f.name, ErrClosed)
	}
	f.closed = true
	f.vol.release(f)

	if err := f.f.Close(); err != nil {
		return newError(OpClose, f.name, err)
	}
	logger.Debug("Closed %q", f.name)
	return nil
}

// Closed reports whether Close has been called.
func (f *File) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
