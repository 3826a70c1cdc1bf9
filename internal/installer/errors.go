package installer

import (
	"errors"
	"fmt"
)

// Kind classifies installation failures.
type Kind int

const (
	// KindDeviceInit: the flash chip did not come up. Fatal.
	KindDeviceInit Kind = iota
	// KindDirectoryCreate: the working directory is missing and cannot be made. Fatal.
	KindDirectoryCreate
	// KindFileRemove: the previous bootstrap file could not be removed.
	// Recorded in Report.RemoveErr; the run continues.
	KindFileRemove
	// KindFileOpen: an open for writing or reading failed.
	KindFileOpen
	// KindFileWrite: a fragment was not written completely, or close failed.
	KindFileWrite
	// KindVerify: the bytes read back differ from the program.
	KindVerify
	// KindHandoff: the loader handle could not be prepared or published.
	KindHandoff
)

var kindNames = map[Kind]string{
	KindDeviceInit:      "device-init",
	KindDirectoryCreate: "directory-create",
	KindFileRemove:      "file-remove",
	KindFileOpen:        "file-open",
	KindFileWrite:       "file-write",
	KindVerify:          "verify",
	KindHandoff:         "handoff",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fatal reports whether the kind halts the device.
func (k Kind) Fatal() bool {
	return k == KindDeviceInit || k == KindDirectoryCreate
}

// Exit codes used when a fatal failure halts the process.
const (
	ExitDeviceInit      = 3
	ExitDirectoryCreate = 4
)

// ErrContentMismatch indicates the verify pass read back different bytes.
var ErrContentMismatch = errors.New("content read back does not match program")

// Failure describes why an installation step failed.
type Failure struct {
	Kind  Kind
	Phase Phase
	Path  string
	Err   error
}

func (f *Failure) Error() string {
	if f.Path == "" {
		return fmt.Sprintf("%s failed during %s: %v", f.Kind, f.Phase, f.Err)
	}
	return fmt.Sprintf("%s failed on %s during %s: %v", f.Kind, f.Path, f.Phase, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Fatal reports whether this failure halts the device.
func (f *Failure) Fatal() bool {
	return f.Kind.Fatal()
}

// ExitCode is the process exit status for a fatal failure, zero otherwise.
func (f *Failure) ExitCode() int {
	switch f.Kind {
	case KindDeviceInit:
		return ExitDeviceInit
	case KindDirectoryCreate:
		return ExitDirectoryCreate
	default:
		return 0
	}
}

// IsFatal reports whether err carries a fatal Failure.
func IsFatal(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Fatal()
}
