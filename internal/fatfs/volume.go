package fatfs

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"sync"

	"forthstore/internal/flash"
	"forthstore/internal/logging"

	"github.com/spf13/afero"
)

var (
	logger = logging.GetLogger().WithPrefix("fatfs")
)

// Mode selects how a file is opened.
type Mode int

const (
	// ModeRead opens an existing file for reading
	ModeRead Mode = iota
	// ModeWrite creates or truncates a file for writing
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// Volume is the filesystem view over a flash device. Like the FAT library on
// the device it allows a single open file at a time.
type Volume struct {
	dev     *flash.Device
	fs      afero.Fs
	mounted bool

	mu   sync.Mutex
	open *File
}

// Mount mounts a volume on the device. There is no failure path: a volume
// mounted on a device that never initialized reports ErrNotMounted from
// every operation.
func Mount(dev *flash.Device) *Volume {
	v := &Volume{dev: dev}

	backing, err := dev.Backing()
	if err != nil {
		logger.Warn("Mounting without a usable device: %v", err)
		return v
	}

	v.fs = backing
	v.mounted = true
	logger.Debug("Volume mounted on %s", dev.Binding())
	return v
}

// Mounted reports whether the volume has a backing device.
func (v *Volume) Mounted() bool {
	return v.mounted
}

func clean(p string) string {
	return path.Clean("/" + p)
}

// Exists reports whether a file or directory exists at p.
func (v *Volume) Exists(p string) bool {
	if !v.mounted {
		return false
	}
	ok, err := afero.Exists(v.fs, clean(p))
	if err != nil {
		// newError logs the failure; Exists only answers yes or no
		_ = newError(OpExists, p, translate(err))
		return false
	}
	return ok
}

// Stat returns file info for p.
func (v *Volume) Stat(p string) (os.FileInfo, error) {
	if !v.mounted {
		return nil, newError(OpStat, p, ErrNotMounted)
	}
	info, err := v.fs.Stat(clean(p))
	if err != nil {
		return nil, newError(OpStat, p, translate(err))
	}
	return info, nil
}

// ReadDir lists the directory at p sorted by name.
func (v *Volume) ReadDir(p string) ([]os.FileInfo, error) {
	if !v.mounted {
		return nil, newError(OpReadDir, p, ErrNotMounted)
	}
	entries, err := afero.ReadDir(v.fs, clean(p))
	if err != nil {
		return nil, newError(OpReadDir, p, translate(err))
	}
	return entries, nil
}

// Mkdir creates a single directory. The parent must exist.
func (v *Volume) Mkdir(p string) error {
	if !v.mounted {
		return newError(OpMkdir, p, ErrNotMounted)
	}
	p = clean(p)
	if v.Exists(p) {
		return newError(OpMkdir, p, ErrExists)
	}
	if parent := path.Dir(p); !v.Exists(parent) {
		return newError(OpMkdir, p, ErrNotFound)
	}
	if err := v.fs.Mkdir(p, 0755); err != nil {
		return newError(OpMkdir, p, translate(err))
	}
	logger.Debug("Created directory %q", p)
	return nil
}

// Remove deletes a file. Directories are not removed.
func (v *Volume) Remove(p string) error {
	if !v.mounted {
		return newError(OpRemove, p, ErrNotMounted)
	}
	p = clean(p)

	info, err := v.fs.Stat(p)
	if err != nil {
		return newError(OpRemove, p, translate(err))
	}
	if info.IsDir() {
		return newError(OpRemove, p, ErrIsDir)
	}

	v.mu.Lock()
	busy := v.open != nil && v.open.name == p
	v.mu.Unlock()
	if busy {
		return newError(OpRemove, p, ErrFileBusy)
	}

	if err := v.fs.Remove(p); err != nil {
		return newError(OpRemove, p, translate(err))
	}
	logger.Debug("Removed %q", p)
	return nil
}

// Open opens p for reading or writing. It fails with ErrFileBusy while any
// other file from this volume is still open.
func (v *Volume) Open(p string, mode Mode) (*File, error) {
	if !v.mounted {
		return nil, newError(OpOpen, p, ErrNotMounted)
	}
	p = clean(p)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.open != nil {
		logger.Warn("Open of %q refused, %q is still open", p, v.open.name)
		return nil, newError(OpOpen, p, ErrFileBusy)
	}

	var (
		f   afero.File
		err error
	)
	switch mode {
	case ModeWrite:
		if !v.existsLocked(path.Dir(p)) {
			return nil, newError(OpOpen, p, ErrNotFound)
		}
		f, err = v.fs.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	default:
		f, err = v.fs.OpenFile(p, os.O_RDONLY, 0)
	}
	if err != nil {
		return nil, newError(OpOpen, p, translate(err))
	}

	info, err := f.Stat()
	if err == nil && info.IsDir() {
		f.Close()
		return nil, newError(OpOpen, p, ErrIsDir)
	}

	file := &File{vol: v, f: f, name: p, mode: mode}
	v.open = file
	logger.Debug("Opened %q for %s", p, mode)
	return file, nil
}

// OpenFile returns the currently open file, if any.
func (v *Volume) OpenFile() (*File, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open, v.open != nil
}

func (v *Volume) existsLocked(p string) bool {
	ok, err := afero.Exists(v.fs, p)
	return err == nil && ok
}

func (v *Volume) release(f *File) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.open == f {
		v.open = nil
	}
}

func translate(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errors.Join(ErrNotFound, err)
	case errors.Is(err, fs.ErrExist):
		return errors.Join(ErrExists, err)
	default:
		return err
	}
}
