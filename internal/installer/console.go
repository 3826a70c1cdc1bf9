package installer

import (
	"fmt"
	"io"
	"strings"
)

// Verbosity controls how much the console says. It never changes what the
// installer does.
type Verbosity int

const (
	// Quiet prints short checkpoint tokens
	Quiet Verbosity = iota
	// Verbose prints full progress sentences and echoes the file back
	Verbose
)

func (v Verbosity) String() string {
	if v == Verbose {
		return "verbose"
	}
	return "quiet"
}

// ParseVerbosity accepts "quiet" or "verbose".
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiet":
		return Quiet, nil
	case "verbose":
		return Verbose, nil
	default:
		return Quiet, fmt.Errorf("unknown verbosity %q (want quiet or verbose)", s)
	}
}

// Console is the serial-style diagnostic sink. Lines end in CR LF as on the
// device's serial port. Write errors are ignored: there is nowhere else to
// report them.
type Console struct {
	w         io.Writer
	verbosity Verbosity
}

// NewConsole wraps w.
func NewConsole(w io.Writer, verbosity Verbosity) *Console {
	if w == nil {
		w = io.Discard
	}
	return &Console{w: w, verbosity: verbosity}
}

// Verbosity returns the configured verbosity.
func (c *Console) Verbosity() Verbosity {
	return c.verbosity
}

// Print writes s as is.
func (c *Console) Print(s string) {
	_, _ = io.WriteString(c.w, s)
}

// Println writes s followed by CR LF.
func (c *Console) Println(s string) {
	_, _ = io.WriteString(c.w, s+"\r\n")
}

// Step prints the full line in verbose mode and the token in quiet mode.
func (c *Console) Step(line, token string) {
	if c.verbosity == Verbose {
		c.Println(line)
		return
	}
	c.Print(token)
}

// StepInline is Step without the line ending in verbose mode.
func (c *Console) StepInline(text, token string) {
	if c.verbosity == Verbose {
		c.Print(text)
		return
	}
	c.Print(token)
}

// Detail prints a line in verbose mode only.
func (c *Console) Detail(line string) {
	if c.verbosity == Verbose {
		c.Println(line)
	}
}

// Echo copies a byte read from the file in verbose mode only.
func (c *Console) Echo(b byte) {
	if c.verbosity == Verbose {
		_, _ = c.w.Write([]byte{b})
	}
}
