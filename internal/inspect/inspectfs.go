// Package inspect exposes the flash volume as a read-only FUSE filesystem so
// an operator can look at what the installer left on the device.
package inspect

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"forthstore/internal/fatfs"
	"forthstore/internal/handoff"
	"forthstore/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	vfsLogger = logging.GetLogger().WithPrefix("inspect")
)

// FS is the read-only FUSE view of a mounted volume. Reads of the file held
// in the handoff slot go through that handle so the volume's single open
// file is never contended and the loader's read position never moves.
type FS struct {
	vol  *fatfs.Volume
	slot *handoff.Slot
	conn *fuse.Conn
	uid  uint32
	gid  uint32
}

// New creates a FUSE view over vol.
func New(vol *fatfs.Volume, slot *handoff.Slot) *FS {
	uid := safeIntToUint32(os.Getuid())
	gid := safeIntToUint32(os.Getgid())

	if puidStr := os.Getenv("PUID"); puidStr != "" {
		if puid, err := strconv.ParseUint(puidStr, 10, 32); err == nil {
			uid = uint32(puid)
			vfsLogger.Debug("Using PUID from environment: %d", uid)
		}
	}
	if pgidStr := os.Getenv("PGID"); pgidStr != "" {
		if pgid, err := strconv.ParseUint(pgidStr, 10, 32); err == nil {
			gid = uint32(pgid)
			vfsLogger.Debug("Using PGID from environment: %d", gid)
		}
	}

	return &FS{
		vol:  vol,
		slot: slot,
		uid:  uid,
		gid:  gid,
	}
}

// Root implements the fusefs.FS interface, returning the root directory node.
func (vfs *FS) Root() (fusefs.Node, error) {
	return &Dir{
		fs:   vfs,
		path: NewVolumePath("/"),
	}, nil
}

func waitForMount(mountpoint string) error {
	for i := 0; i < 30; i++ {
		info, err := os.Stat(mountpoint)
		if err == nil && info.IsDir() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("mount point not available after 3 seconds")
}

// Mount serves the view at mountPoint in the background.
func (vfs *FS) Mount(mountPoint string) error {
	vfsLogger.Info("Mounting flash volume view at %s", mountPoint)

	if !vfs.vol.Mounted() {
		return fmt.Errorf("inspect: %w", fatfs.ErrNotMounted)
	}

	mountOpts := []fuse.MountOption{
		fuse.FSName("forthstore"),
		fuse.Subtype("forthstore"),
		fuse.ReadOnly(),
		fuse.DefaultPermissions(),
		fuse.AsyncRead(),
	}

	c, err := fuse.Mount(mountPoint, mountOpts...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	vfs.conn = c

	go func() {
		if err := fusefs.Serve(c, vfs); err != nil {
			vfsLogger.Error("FUSE server error: %v", err)
		}
	}()

	if err := waitForMount(mountPoint); err != nil {
		c.Close()
		vfsLogger.Error("Mount point not ready: %v", err)
		return fmt.Errorf("mount point failed to initialize: %w", err)
	}

	vfsLogger.Info("Flash volume view mounted")
	return nil
}

// Unmount detaches the view and closes the FUSE connection.
func (vfs *FS) Unmount(mountPoint string) error {
	vfsLogger.Info("Unmounting flash volume view from: %s", mountPoint)
	if vfs.conn == nil {
		return nil
	}
	err := fuse.Unmount(mountPoint)
	if err != nil {
		vfsLogger.Error("Unmount failed: %v", err)
		return err
	}
	if cerr := vfs.conn.Close(); cerr != nil {
		vfsLogger.Warn("Closing FUSE connection: %v", cerr)
	}
	vfs.conn = nil
	return nil
}
