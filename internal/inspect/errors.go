package inspect

import (
	"errors"
	"os"
	"syscall"

	"forthstore/internal/fatfs"
	"forthstore/internal/logging"
)

var (
	errLogger = logging.GetLogger().WithPrefix("inspect/error")
)

// ToFuseError converts volume errors to the errno FUSE reports to the kernel.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}

	var fsErr *fatfs.Error
	if errors.As(err, &fsErr) {
		errLogger.Trace("Converting volume error to FUSE error: %v", fsErr)
	}

	switch {
	case errors.Is(err, fatfs.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, fatfs.ErrFileBusy):
		return syscall.EBUSY
	case errors.Is(err, fatfs.ErrIsDir):
		return syscall.EISDIR
	case errors.Is(err, fatfs.ErrExists):
		return syscall.EEXIST
	case errors.Is(err, fatfs.ErrReadOnly):
		return syscall.EROFS
	case errors.Is(err, fatfs.ErrNotMounted), errors.Is(err, fatfs.ErrClosed):
		return syscall.EIO
	case errors.Is(err, os.ErrPermission):
		return syscall.EACCES
	default:
		errLogger.Debug("Unknown error type, returning EIO: %v", err)
		return syscall.EIO
	}
}
