// Package installer writes the interpreter's bootstrap program to flash and
// hands an open, rewound read handle to the loader.
//
// A run goes through these phases in order:
//
//	Removing -> Creating -> Writing -> Closed -> ReopenedForVerify ->
//	ClosedAgain -> ReopenedForHandoff -> Rewound -> Published
//
// Only one file is ever open at a time. A missing device or working
// directory halts the process; every other failure is reported on the
// console and the run ends without a published handle.
package installer

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"forthstore/internal/fatfs"
	"forthstore/internal/flash"
	"forthstore/internal/handoff"
	"forthstore/internal/logging"

	"github.com/zeebo/blake3"
)

var (
	logger = logging.GetLogger().WithPrefix("installer")
)

const (
	// WorkingDir holds the bootstrap file.
	WorkingDir = "/forth"
	// BootstrapFile is the program the loader reads at startup.
	BootstrapFile = WorkingDir + "/ainsuForth-gen-exp.txt"
)

// Phase is a step of an installation run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRemoving
	PhaseCreating
	PhaseWriting
	PhaseClosed
	PhaseReopenedForVerify
	PhaseClosedAgain
	PhaseReopenedForHandoff
	PhaseRewound
	PhasePublished
)

var phaseNames = [...]string{
	PhaseIdle:               "idle",
	PhaseRemoving:           "removing",
	PhaseCreating:           "creating",
	PhaseWriting:            "writing",
	PhaseClosed:             "closed",
	PhaseReopenedForVerify:  "reopened-for-verify",
	PhaseClosedAgain:        "closed-again",
	PhaseReopenedForHandoff: "reopened-for-handoff",
	PhaseRewound:            "rewound",
	PhasePublished:          "published",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Report summarizes one installation run.
type Report struct {
	Path             string
	Phase            Phase
	DirectoryCreated bool
	Removed          bool
	RemoveErr        error
	BytesWritten     int64
	Digest           string
	VerifiedBytes    int64
	VerifyDigest     string
	Published        bool
}

// Installer runs the bootstrap installation against a mounted volume.
type Installer struct {
	vol     *fatfs.Volume
	slot    *handoff.Slot
	console *Console
	halter  Halter
}

// Option configures an Installer.
type Option func(*Installer)

// WithConsole sets the diagnostic sink.
func WithConsole(c *Console) Option {
	return func(in *Installer) {
		in.console = c
	}
}

// WithHalter sets how fatal failures stop the process.
func WithHalter(h Halter) Option {
	return func(in *Installer) {
		in.halter = h
	}
}

// New creates an installer that publishes into slot.
func New(vol *fatfs.Volume, slot *handoff.Slot, opts ...Option) *Installer {
	in := &Installer{
		vol:     vol,
		slot:    slot,
		console: NewConsole(os.Stdout, Verbose),
		halter:  NewExitHalter(DefaultHaltDelay),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// InitializeStorage brings up the flash device and mounts the volume on it.
// A device that does not respond is fatal. Mounting has no failure path.
func InitializeStorage(dev *flash.Device, console *Console, halter Halter) (*fatfs.Volume, error) {
	console.StepInline("\r\nInitializing Filesystem on external flash...", " ckpt AA ")

	if err := dev.Begin(); err != nil {
		console.Println("")
		console.Println("Error, external flash did not respond!")
		f := &Failure{Kind: KindDeviceInit, Phase: PhaseIdle, Err: err}
		halter.Halt(f)
		return nil, f
	}

	vol := fatfs.Mount(dev)
	console.Step("initialization done.", " ckpt BB ")
	return vol, nil
}

// EnsureWorkingDirectory creates path unless it already exists. It reports
// whether it created the directory. Failing to create it is fatal.
func (in *Installer) EnsureWorkingDirectory(path string) (bool, error) {
	if in.vol.Exists(path) {
		logger.Debug("Working directory %q already present", path)
		in.console.Step(path+"  directory was previously created.  No worries.  Continuing.. ", " +dpc ")
		return false, nil
	}

	in.console.Println(path + " directory not found, creating...")
	if err := in.vol.Mkdir(path); err != nil {
		logger.Error("Failed to create working directory %q: %v", path, err)
		in.console.Println("Error, failed to create " + path + " directory!")
		in.console.Println(fmt.Sprintf("Entering an endless loop (as a trap) after a delay of %s.", describeDelay(in.halter.Delay())))
		f := &Failure{Kind: KindDirectoryCreate, Phase: PhaseIdle, Path: path, Err: err}
		in.halter.Halt(f)
		return false, f
	}

	logger.Info("Created working directory %q", path)
	in.console.Step("Created "+path+" directory!", " +dcr ")
	return true, nil
}

func describeDelay(d time.Duration) string {
	secs := int(d.Seconds())
	if secs == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", secs)
}

// Install replaces the bootstrap file and publishes a rewound read handle.
// Any handle from a previous run is released first. The returned error is a
// *Failure; check Fatal to tell a halt from a degraded run.
func (in *Installer) Install() (*Report, error) {
	r := &Report{Path: BootstrapFile}

	if err := in.slot.Release(); err != nil {
		logger.Warn("Releasing previous loader handle: %v", err)
	}

	created, err := in.EnsureWorkingDirectory(WorkingDir)
	if err != nil {
		return r, err
	}
	r.DirectoryCreated = created

	r.Phase = PhaseRemoving
	if err := in.vol.Remove(BootstrapFile); err != nil {
		logger.Debug("Remove of previous bootstrap file failed: %v", err)
		in.console.Println("Failed to remove " + BootstrapFile)
		r.RemoveErr = &Failure{Kind: KindFileRemove, Phase: PhaseRemoving, Path: BootstrapFile, Err: err}
	} else {
		r.Removed = true
	}

	// note that only one file can be open at a time, each handle below is
	// closed before the next open
	r.Phase = PhaseCreating
	f, err := in.vol.Open(BootstrapFile, fatfs.ModeWrite)
	if err != nil {
		return r, in.openFailed(r, err)
	}

	r.Phase = PhaseWriting
	in.console.StepInline("Writing to "+BootstrapFile+" ", " ckpt CC ")
	n, werr := emit(f)
	r.BytesWritten = n
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		logger.Error("Writing %q failed after %d bytes: %v", BootstrapFile, n, werr)
		in.console.Println("error writing " + BootstrapFile)
		return r, &Failure{Kind: KindFileWrite, Phase: r.Phase, Path: BootstrapFile, Err: werr}
	}
	r.Phase = PhaseClosed
	r.Digest = Digest(Content())
	in.console.Step(" has now been done.", " ckpt DD ")
	logger.Info("Wrote %d bytes to %q", n, BootstrapFile)

	f, err = in.vol.Open(BootstrapFile, fatfs.ModeRead)
	if err != nil {
		return r, in.openFailed(r, err)
	}
	r.Phase = PhaseReopenedForVerify
	in.console.Detail(BootstrapFile + " .. will now be read and printed")
	in.console.StepInline("to the console.  Attention: design has strange line endings!\r\n\r\n", " ckpt EE ")

	count, digest, derr := in.drain(f)
	cerr = f.Close()
	if derr == nil {
		derr = cerr
	}
	r.VerifiedBytes = count
	r.VerifyDigest = digest
	if derr != nil {
		logger.Error("Reading back %q failed: %v", BootstrapFile, derr)
		in.console.Println("error reading " + BootstrapFile)
		return r, &Failure{Kind: KindVerify, Phase: r.Phase, Path: BootstrapFile, Err: derr}
	}
	r.Phase = PhaseClosedAgain
	in.console.Detail("\r\n")
	in.console.Step(BootstrapFile+" .. is now closed, safely.", " ckpt FF ")

	if digest != r.Digest || count != r.BytesWritten {
		logger.Error("Verify mismatch on %q: wrote %d bytes (%s), read %d bytes (%s)",
			BootstrapFile, r.BytesWritten, r.Digest, count, digest)
		in.console.Println("error verifying " + BootstrapFile)
		return r, &Failure{Kind: KindVerify, Phase: r.Phase, Path: BootstrapFile, Err: ErrContentMismatch}
	}

	f, err = in.vol.Open(BootstrapFile, fatfs.ModeRead)
	if err != nil {
		return r, in.openFailed(r, err)
	}
	r.Phase = PhaseReopenedForHandoff
	in.console.Step(BootstrapFile+" is now re-opened (for reading).", " ckpt GG ")

	if err := f.Rewind(); err != nil {
		f.Close()
		return r, in.handoffFailed(r, err)
	}
	r.Phase = PhaseRewound

	if err := in.slot.Publish(f); err != nil {
		f.Close()
		return r, in.handoffFailed(r, err)
	}
	r.Phase = PhasePublished
	r.Published = true
	in.console.Step("FILE STAYS OPEN (and rewound) (for a possible fload).", " ckpt HH ")
	logger.Info("Loader handle for %q published", BootstrapFile)
	return r, nil
}

// emit writes every fragment with its terminator and checks each write
// completed.
func emit(w io.StringWriter) (int64, error) {
	var total int64
	for i, frag := range fragments {
		line := frag + Terminator
		n, err := w.WriteString(line)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("fragment %d: %w", i, err)
		}
		if n != len(line) {
			return total, fmt.Errorf("fragment %d: %w", i, io.ErrShortWrite)
		}
	}
	return total, nil
}

// drain reads f to the end one byte at a time, echoing to the console and
// hashing what it reads.
func (in *Installer) drain(f *fatfs.File) (int64, string, error) {
	h := blake3.New()
	var count int64
	for {
		avail, err := f.Available()
		if err != nil {
			return count, "", err
		}
		if avail == 0 {
			break
		}
		b, err := f.ReadByte()
		if err != nil {
			return count, "", err
		}
		in.console.Echo(b)
		_, _ = h.Write([]byte{b})
		count++
	}
	return count, hex.EncodeToString(h.Sum(nil)), nil
}

func (in *Installer) openFailed(r *Report, err error) error {
	logger.Warn("Opening %q failed during %s: %v", BootstrapFile, r.Phase, err)
	in.console.Println("error opening " + BootstrapFile)
	return &Failure{Kind: KindFileOpen, Phase: r.Phase, Path: BootstrapFile, Err: err}
}

func (in *Installer) handoffFailed(r *Report, err error) error {
	logger.Warn("Handing off %q failed during %s: %v", BootstrapFile, r.Phase, err)
	in.console.Println("error opening " + BootstrapFile)
	return &Failure{Kind: KindHandoff, Phase: r.Phase, Path: BootstrapFile, Err: err}
}
