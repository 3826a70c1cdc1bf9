package fatfs

import (
	"bytes"
	"io"
	"os"
	"testing"

	"forthstore/internal/flash"
	"forthstore/internal/logging"
	"forthstore/internal/transport"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVolume(t *testing.T) *Volume {
	t.Helper()
	binding := transport.Select(transport.Variant{Name: "generic", SPIInterfaces: 1})
	dev := flash.New(binding, afero.NewMemMapFs())
	require.NoError(t, dev.Begin())
	vol := Mount(dev)
	require.True(t, vol.Mounted())
	return vol
}

func TestMountUninitializedDevice(t *testing.T) {
	binding := transport.Select(transport.Variant{Name: "generic", SPIInterfaces: 1})
	vol := Mount(flash.New(binding, afero.NewMemMapFs()))

	assert.False(t, vol.Mounted())
	assert.False(t, vol.Exists("/"))
	assert.ErrorIs(t, vol.Mkdir("/forth"), ErrNotMounted)
	assert.ErrorIs(t, vol.Remove("/forth/x"), ErrNotMounted)
	_, err := vol.Open("/forth/x", ModeWrite)
	assert.ErrorIs(t, err, ErrNotMounted)
}

func TestMkdir(t *testing.T) {
	vol := newTestVolume(t)

	require.False(t, vol.Exists("/forth"))
	require.NoError(t, vol.Mkdir("/forth"))
	assert.True(t, vol.Exists("/forth"))

	err := vol.Mkdir("/forth")
	assert.ErrorIs(t, err, ErrExists)

	var fsErr *Error
	require.ErrorAs(t, err, &fsErr)
	assert.Equal(t, OpMkdir, fsErr.Op)
	assert.Equal(t, "/forth", fsErr.Path)

	assert.ErrorIs(t, vol.Mkdir("/a/b"), ErrNotFound, "mkdir is not recursive")
}

func TestWriteReadCycle(t *testing.T) {
	vol := newTestVolume(t)
	require.NoError(t, vol.Mkdir("/forth"))

	f, err := vol.Open("/forth/words.txt", ModeWrite)
	require.NoError(t, err)
	n, err := f.WriteString(": a ;\r")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	require.NoError(t, f.Close())

	f, err = vol.Open("/forth/words.txt", ModeRead)
	require.NoError(t, err)
	defer f.Close()

	avail, err := f.Available()
	require.NoError(t, err)
	assert.EqualValues(t, 6, avail)

	b, err := f.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(':'), b)

	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, " a ;\r", string(rest))

	avail, err = f.Available()
	require.NoError(t, err)
	assert.Zero(t, avail)

	require.NoError(t, f.Rewind())
	pos, err := f.Position()
	require.NoError(t, err)
	assert.Zero(t, pos)

	_, err = f.WriteString("x")
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestWriteModeTruncates(t *testing.T) {
	vol := newTestVolume(t)
	require.NoError(t, vol.Mkdir("/forth"))

	for _, content := range []string{"a long first version", "short"} {
		f, err := vol.Open("/forth/f", ModeWrite)
		require.NoError(t, err)
		_, err = f.WriteString(content)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	f, err := vol.Open("/forth/f", ModeRead)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "short", string(data))
}

func TestSingleOpenFile(t *testing.T) {
	vol := newTestVolume(t)
	require.NoError(t, vol.Mkdir("/forth"))

	first, err := vol.Open("/forth/one", ModeWrite)
	require.NoError(t, err)

	_, err = vol.Open("/forth/two", ModeWrite)
	assert.ErrorIs(t, err, ErrFileBusy)

	open, ok := vol.OpenFile()
	require.True(t, ok)
	assert.Same(t, first, open)

	assert.ErrorIs(t, vol.Remove("/forth/one"), ErrFileBusy)

	require.NoError(t, first.Close())
	assert.ErrorIs(t, first.Close(), ErrClosed)
	assert.True(t, first.Closed())

	second, err := vol.Open("/forth/two", ModeWrite)
	require.NoError(t, err)
	require.NoError(t, second.Close())

	_, ok = vol.OpenFile()
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	vol := newTestVolume(t)
	require.NoError(t, vol.Mkdir("/forth"))

	assert.ErrorIs(t, vol.Remove("/forth/missing"), ErrNotFound)
	assert.ErrorIs(t, vol.Remove("/forth"), ErrIsDir)

	f, err := vol.Open("/forth/file", ModeWrite)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, vol.Remove("/forth/file"))
	assert.False(t, vol.Exists("/forth/file"))
}

func TestOpenMissingAndDirectory(t *testing.T) {
	vol := newTestVolume(t)
	require.NoError(t, vol.Mkdir("/forth"))

	_, err := vol.Open("/forth/missing", ModeRead)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = vol.Open("/nodir/file", ModeWrite)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = vol.Open("/forth", ModeRead)
	assert.ErrorIs(t, err, ErrIsDir)

	// failed opens must not hold the slot
	_, ok := vol.OpenFile()
	assert.False(t, ok)
}

func TestReadDirAndReadAt(t *testing.T) {
	vol := newTestVolume(t)
	require.NoError(t, vol.Mkdir("/forth"))
	for _, name := range []string{"/forth/b", "/forth/a"} {
		f, err := vol.Open(name, ModeWrite)
		require.NoError(t, err)
		_, err = f.WriteString("0123456789")
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	entries, err := vol.ReadDir("/forth")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name())
	assert.Equal(t, "b", entries[1].Name())

	f, err := vol.Open("/forth/a", ModeRead)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 3)
	n, err := f.ReadAt(buf, 4)
	require.NoError(t, err)
	assert.Equal(t, "456", string(buf[:n]))

	pos, err := f.Position()
	require.NoError(t, err)
	assert.Zero(t, pos, "ReadAt must not move the read position")
}

// statFailFs fails Stat on one path with something other than not-exist.
type statFailFs struct {
	afero.Fs
	path string
}

func (f *statFailFs) Stat(name string) (os.FileInfo, error) {
	if name == f.path {
		return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Stat(name)
}

func TestExistsStatFailure(t *testing.T) {
	root := logging.GetLogger()
	prevLevel := root.Level()
	var buf bytes.Buffer
	root.SetOutput(&buf)
	root.SetLevel(logging.LevelDebug)
	t.Cleanup(func() {
		root.SetOutput(os.Stderr)
		root.SetLevel(prevLevel)
	})

	binding := transport.Select(transport.Variant{Name: "generic", SPIInterfaces: 1})
	dev := flash.New(binding, &statFailFs{Fs: afero.NewMemMapFs(), path: "/forth"})
	require.NoError(t, dev.Begin())
	vol := Mount(dev)

	assert.False(t, vol.Exists("/forth"))
	assert.Contains(t, buf.String(), "operation "+OpExists+" on /forth failed")
}
