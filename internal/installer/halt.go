package installer

import (
	"os"
	"time"
)

// DefaultHaltDelay leaves time for an attached console to show the trap
// message before the process goes away.
const DefaultHaltDelay = 4 * time.Second

// Halter stops the device after a fatal failure. Production halters do not
// return; test halters record the call and return, after which the installer
// gives up with the fatal Failure.
type Halter interface {
	Halt(f *Failure)
	Delay() time.Duration
}

// ExitHalter waits Delay and exits with the failure's exit code.
type ExitHalter struct {
	HaltDelay time.Duration
	Sleep     func(time.Duration)
	Exit      func(int)
}

// NewExitHalter returns a halter that sleeps then calls os.Exit.
func NewExitHalter(delay time.Duration) *ExitHalter {
	return &ExitHalter{
		HaltDelay: delay,
		Sleep:     time.Sleep,
		Exit:      os.Exit,
	}
}

// Halt implements Halter.
func (h *ExitHalter) Halt(f *Failure) {
	logger.Error("Halting: %v", f)
	if h.HaltDelay > 0 && h.Sleep != nil {
		h.Sleep(h.HaltDelay)
	}
	code := f.ExitCode()
	if code == 0 {
		code = 1
	}
	h.Exit(code)
}

// Delay implements Halter.
func (h *ExitHalter) Delay() time.Duration {
	return h.HaltDelay
}
