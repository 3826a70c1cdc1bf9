// Package flash provides the block device handle for the external flash chip.
package flash

import (
	"errors"
	"fmt"
	"os"

	"forthstore/internal/logging"
	"forthstore/internal/transport"

	"github.com/spf13/afero"
)

var (
	logger = logging.GetLogger().WithPrefix("flash")

	// ErrNoResponse indicates the chip did not answer during Begin
	ErrNoResponse = errors.New("flash device did not respond")

	// ErrNotInitialized indicates use of the device before Begin succeeded
	ErrNotInitialized = errors.New("flash device not initialized")
)

// MemoryImage selects a volatile in-memory chip instead of an image directory.
const MemoryImage = ":memory:"

// Device is the handle over the emulated flash chip. The backing filesystem
// stands in for the chip's storage; the binding records how the chip is wired.
type Device struct {
	binding     transport.Binding
	backing     afero.Fs
	initialized bool
}

// New creates a device for the given binding and backing store.
// The device is unusable until Begin succeeds.
func New(binding transport.Binding, backing afero.Fs) *Device {
	return &Device{
		binding: binding,
		backing: backing,
	}
}

// OpenBacking maps an image location to a backing store. The image directory
// is never created here: a missing directory means the chip is not there.
func OpenBacking(image string) afero.Fs {
	if image == MemoryImage {
		return afero.NewMemMapFs()
	}
	return afero.NewBasePathFs(afero.NewOsFs(), image)
}

// Begin brings up the transport and checks that the chip answers.
// Calling Begin again after it succeeded does nothing.
func (d *Device) Begin() error {
	if d.initialized {
		logger.Debug("Device already initialized on %s", d.binding)
		return nil
	}

	logger.Debug("Bringing up flash on %s", d.binding)
	if d.backing == nil {
		return fmt.Errorf("%w: no backing store", ErrNoResponse)
	}

	info, err := d.backing.Stat("/")
	if err != nil {
		logger.Error("Flash probe failed: %v", err)
		return fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	if !info.IsDir() {
		logger.Error("Flash probe returned a non-directory root")
		return fmt.Errorf("%w: backing root is %v", ErrNoResponse, info.Mode()&os.ModeType)
	}

	d.initialized = true
	logger.Info("Flash device initialized on %s", d.binding)
	return nil
}

// Initialized reports whether Begin has succeeded.
func (d *Device) Initialized() bool {
	return d.initialized
}

// Binding returns the transport the device was created with.
func (d *Device) Binding() transport.Binding {
	return d.binding
}

// Backing returns the block store for a filesystem to mount on.
func (d *Device) Backing() (afero.Fs, error) {
	if !d.initialized {
		return nil, ErrNotInitialized
	}
	return d.backing, nil
}
