package main

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"forthstore/internal/installer"
	"forthstore/internal/state"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHalter struct {
	failures []*installer.Failure
}

func (h *recordingHalter) Halt(f *installer.Failure) {
	h.failures = append(h.failures, f)
}

func (h *recordingHalter) Delay() time.Duration {
	return 0
}

func TestRunInMemoryWithDump(t *testing.T) {
	t.Setenv("FORTHSTORE_CONFIG", "")
	var stdout, stderr bytes.Buffer
	halter := &recordingHalter{}

	code := run([]string{"--image", ":memory:", "--dump"}, &stdout, &stderr, halter)
	require.Equal(t, 0, code, stderr.String())
	assert.Empty(t, halter.failures)

	out := stdout.String()
	for _, token := range []string{" ckpt AA ", " ckpt BB ", " ckpt CC ", " ckpt DD ", " ckpt HH "} {
		assert.Contains(t, out, token)
	}

	// the dump prints one fragment per line after the checkpoints
	dumped := out[strings.Index(out, " ckpt HH ")+len(" ckpt HH "):]
	for _, frag := range installer.Fragments() {
		assert.Contains(t, dumped, frag+"\n")
	}
}

func TestRunRecordsHistory(t *testing.T) {
	t.Setenv("FORTHSTORE_CONFIG", "")
	stateFile := filepath.Join(t.TempDir(), "history.json")
	var stdout, stderr bytes.Buffer

	code := run([]string{"--state", stateFile, "--board", "samd51"}, &stdout, &stderr, &recordingHalter{})
	require.Equal(t, 0, code)

	manager, err := state.NewManager(afero.NewOsFs(), stateFile)
	require.NoError(t, err)
	history, err := manager.Load()
	require.NoError(t, err)

	rec, ok := history.Last()
	require.True(t, ok)
	assert.Equal(t, "samd51", rec.Board)
	assert.Equal(t, installer.BootstrapFile, rec.Path)
	assert.True(t, rec.Published)
	assert.Equal(t, installer.Digest(installer.Content()), rec.Digest)
	assert.Empty(t, rec.Error)
}

func TestRunMissingImageHalts(t *testing.T) {
	t.Setenv("FORTHSTORE_CONFIG", "")
	image := filepath.Join(t.TempDir(), "absent")
	var stdout, stderr bytes.Buffer
	halter := &recordingHalter{}

	code := run([]string{"--image", image}, &stdout, &stderr, halter)
	assert.Equal(t, installer.ExitDeviceInit, code)
	require.Len(t, halter.failures, 1)
	assert.Equal(t, installer.KindDeviceInit, halter.failures[0].Kind)
	assert.Contains(t, stdout.String(), "Error, external flash did not respond!")
}

func TestRunOnDiskImage(t *testing.T) {
	t.Setenv("FORTHSTORE_CONFIG", "")
	image := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := run([]string{"--image", image, "--verbose"}, &stdout, &stderr, &recordingHalter{})
	require.Equal(t, 0, code)

	data, err := afero.ReadFile(afero.NewOsFs(), filepath.Join(image, installer.BootstrapFile))
	require.NoError(t, err)
	assert.Equal(t, installer.Content(), data)
	assert.Contains(t, stdout.String(), "will now be read and printed")
}

func TestRunRejectsBadFlags(t *testing.T) {
	t.Setenv("FORTHSTORE_CONFIG", "")
	var stdout, stderr bytes.Buffer

	assert.Equal(t, 1, run([]string{"--board", "pdp11"}, &stdout, &stderr, &recordingHalter{}))
	assert.Equal(t, 2, run([]string{"--no-such-flag"}, &stdout, &stderr, &recordingHalter{}))
	assert.Equal(t, 0, run([]string{"--help"}, &stdout, &stderr, &recordingHalter{}))
}

func TestScanCR(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader(": a 1 ;\r: b a a ;\rtail"))
	scanner.Split(scanCR)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{": a 1 ;", ": b a a ;", "tail"}, lines)
}
