package inspect

import (
	"context"
	"io"
	"syscall"

	"forthstore/internal/fatfs"
	"forthstore/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("inspect/file")
)

// File is a regular file on the flash volume.
type File struct {
	fs   *FS
	path *VolumePath
}

// Attr implements the Node interface, returning the file's attributes.
func (f *File) Attr(_ context.Context, a *fuse.Attr) error {
	info, err := f.fs.vol.Stat(f.path.String())
	if err != nil {
		fileLogger.Warn("Stat of %q failed: %v", f.path.String(), err)
		return ToFuseError(err)
	}

	a.Mode = info.Mode().Perm() & 0444
	a.Size = safeInt64ToUint64(info.Size())
	a.Mtime = info.ModTime()
	a.Atime = info.ModTime()
	a.Ctime = info.ModTime()
	a.Uid = f.fs.uid
	a.Gid = f.fs.gid
	a.BlockSize = 512
	a.Blocks = safeInt64ToUint64((info.Size() + 511) / 512)
	return nil
}

// Open implements the NodeOpener interface. Only read access is allowed.
func (f *File) Open(_ context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	fileLogger.Debug("Opening %q with flags %v", f.path.String(), req.Flags)

	if !req.Flags.IsReadOnly() {
		fileLogger.Warn("Attempted write access to read-only file: %q", f.path.String())
		return nil, syscall.EPERM
	}

	resp.Flags |= fuse.OpenDirectIO

	if h, ok := f.fs.slot.Handle(); ok && h.Name() == f.path.String() {
		fileLogger.Debug("Serving %q through the loader handle", f.path.String())
		return &FileHandle{file: h, path: f.path.String(), shared: true}, nil
	}

	file, err := f.fs.vol.Open(f.path.String(), fatfs.ModeRead)
	if err != nil {
		fileLogger.Warn("Failed to open %q: %v", f.path.String(), err)
		return nil, ToFuseError(err)
	}
	return &FileHandle{file: file, path: f.path.String()}, nil
}

// FileHandle is an open file served over FUSE. A shared handle belongs to
// the handoff slot and is not closed on release.
type FileHandle struct {
	file   *fatfs.File
	path   string
	shared bool
}

// Read implements the HandleReader interface using positional reads.
func (fh *FileHandle) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	fileLogger.Trace("Reading %d bytes from %q at offset %d", req.Size, fh.path, req.Offset)

	resp.Data = make([]byte, req.Size)
	n, err := fh.file.ReadAt(resp.Data, req.Offset)
	if err != nil && err != io.EOF {
		fileLogger.Error("Failed to read from %q: %v", fh.path, err)
		return ToFuseError(err)
	}
	resp.Data = resp.Data[:n]
	return nil
}

// Release implements the HandleReleaser interface.
func (fh *FileHandle) Release(_ context.Context, _ *fuse.ReleaseRequest) error {
	if fh.shared {
		return nil
	}
	fileLogger.Debug("Closing %q", fh.path)
	return ToFuseError(fh.file.Close())
}

func safeInt64ToUint64(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}
