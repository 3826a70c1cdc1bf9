package inspect

import (
	"context"
	"os"
	"syscall"
	"testing"

	"forthstore/internal/fatfs"
	"forthstore/internal/flash"
	"forthstore/internal/handoff"
	"forthstore/internal/transport"

	"bazil.org/fuse"
	"github.com/spf13/afero"
)

func setupTestFS(t *testing.T) (*FS, *fatfs.Volume, *handoff.Slot) {
	t.Helper()

	binding := transport.Select(transport.Variant{Name: "generic", SPIInterfaces: 1})
	dev := flash.New(binding, afero.NewMemMapFs())
	if err := dev.Begin(); err != nil {
		t.Fatalf("Failed to initialize device: %v", err)
	}
	vol := fatfs.Mount(dev)

	if err := vol.Mkdir("/forth"); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	writeVolumeFile(t, vol, "/forth/boot.txt", ": a 1 ;\r: b a a ;\r")
	writeVolumeFile(t, vol, "/notes.txt", "hello")

	slot := handoff.NewSlot()
	t.Cleanup(func() { slot.Release() })

	return New(vol, slot), vol, slot
}

func writeVolumeFile(t *testing.T, vol *fatfs.Volume, path, content string) {
	t.Helper()
	f, err := vol.Open(path, fatfs.ModeWrite)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close %s: %v", path, err)
	}
}

func TestDirOperations(t *testing.T) {
	vfs, _, _ := setupTestFS(t)
	ctx := context.Background()

	root, err := vfs.Root()
	if err != nil {
		t.Fatalf("Failed to get root: %v", err)
	}
	dir := root.(*Dir)

	t.Run("RootAttributes", func(t *testing.T) {
		attr := &fuse.Attr{}
		if err := dir.Attr(ctx, attr); err != nil {
			t.Fatalf("Failed to get root attributes: %v", err)
		}
		if attr.Mode&os.ModeDir == 0 {
			t.Error("Root should be a directory")
		}
		if attr.Mode.Perm()&0222 != 0 {
			t.Errorf("Root should not be writable, mode %v", attr.Mode)
		}
	})

	t.Run("ListRoot", func(t *testing.T) {
		entries, err := dir.ReadDirAll(ctx)
		if err != nil {
			t.Fatalf("Failed to read directory: %v", err)
		}

		want := map[string]fuse.DirentType{
			".":         fuse.DT_Dir,
			"..":        fuse.DT_Dir,
			"forth":     fuse.DT_Dir,
			"notes.txt": fuse.DT_File,
		}
		if len(entries) != len(want) {
			t.Fatalf("Expected %d entries, got %d: %+v", len(want), len(entries), entries)
		}
		for _, e := range entries {
			typ, ok := want[e.Name]
			if !ok {
				t.Errorf("Unexpected entry %q", e.Name)
				continue
			}
			if e.Type != typ {
				t.Errorf("Entry %q: expected type %v, got %v", e.Name, typ, e.Type)
			}
		}
	})

	t.Run("LookupDirectory", func(t *testing.T) {
		node, err := dir.Lookup(ctx, "forth")
		if err != nil {
			t.Fatalf("Failed to lookup forth: %v", err)
		}
		sub, ok := node.(*Dir)
		if !ok {
			t.Fatalf("Expected *Dir, got %T", node)
		}
		if sub.path.String() != "/forth" {
			t.Errorf("Expected path /forth, got %s", sub.path.String())
		}

		attr := &fuse.Attr{}
		if err := sub.Attr(ctx, attr); err != nil {
			t.Errorf("Failed to get attributes: %v", err)
		}

		entries, err := sub.ReadDirAll(ctx)
		if err != nil {
			t.Fatalf("Failed to read /forth: %v", err)
		}
		if len(entries) != 3 || entries[2].Name != "boot.txt" {
			t.Errorf("Unexpected /forth listing: %+v", entries)
		}
	})

	t.Run("LookupFile", func(t *testing.T) {
		node, err := dir.Lookup(ctx, "notes.txt")
		if err != nil {
			t.Fatalf("Failed to lookup notes.txt: %v", err)
		}
		if _, ok := node.(*File); !ok {
			t.Errorf("Expected *File, got %T", node)
		}
	})

	t.Run("LookupMissing", func(t *testing.T) {
		_, err := dir.Lookup(ctx, "missing")
		if err != syscall.ENOENT {
			t.Errorf("Expected ENOENT, got %v", err)
		}
	})
}

func TestUnmountedVolume(t *testing.T) {
	binding := transport.Select(transport.Variant{Name: "generic", SPIInterfaces: 1})
	vol := fatfs.Mount(flash.New(binding, afero.NewMemMapFs()))
	vfs := New(vol, handoff.NewSlot())

	root, _ := vfs.Root()
	if _, err := root.(*Dir).ReadDirAll(context.Background()); err != syscall.EIO {
		t.Errorf("Expected EIO, got %v", err)
	}
	if err := vfs.Mount(t.TempDir()); err == nil {
		t.Error("Expected mount of an unmounted volume to fail")
	}
}
