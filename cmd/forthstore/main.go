package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"forthstore/internal/config"
	"forthstore/internal/fatfs"
	"forthstore/internal/flash"
	"forthstore/internal/handoff"
	"forthstore/internal/inspect"
	"forthstore/internal/installer"
	"forthstore/internal/logging"
	"forthstore/internal/state"
	"forthstore/internal/transport"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

var (
	logger = logging.GetLogger()
)

type options struct {
	configPath string
	image      string
	board      string
	verbose    bool
	stateFile  string
	logLevel   string
	dump       bool
	inspect    string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, nil))
}

func parseFlags(args []string, stderr io.Writer) (*options, *pflag.FlagSet, error) {
	opts := &options{}
	flags := pflag.NewFlagSet("forthstore", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	flags.StringVar(&opts.configPath, "config", "", "Config file path (default $"+config.EnvConfig+")")
	flags.StringVar(&opts.image, "image", "", "Flash image directory, or "+flash.MemoryImage)
	flags.StringVar(&opts.board, "board", "", "Board variant ("+strings.Join(transport.Names(), ", ")+")")
	flags.BoolVar(&opts.verbose, "verbose", false, "Verbose console output")
	flags.StringVar(&opts.stateFile, "state", "", "Install history file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (error, warn, info, debug, trace)")
	flags.BoolVar(&opts.dump, "dump", false, "Print the bootstrap file through the loader handle")
	flags.StringVar(&opts.inspect, "inspect", "", "Mount a read-only view of the volume here until interrupted")

	if err := flags.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, flags, nil
}

func loadConfig(opts *options, flags *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(config.Path(opts.configPath))
	if err != nil {
		return cfg, err
	}

	if flags.Changed("image") {
		cfg.Image = opts.image
	}
	if flags.Changed("board") {
		cfg.Board = opts.board
	}
	if flags.Changed("verbose") {
		cfg.Verbosity = installer.Quiet.String()
		if opts.verbose {
			cfg.Verbosity = installer.Verbose.String()
		}
	}
	if flags.Changed("state") {
		cfg.StateFile = opts.stateFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, cfg.Validate()
}

// run wires the installer and returns the process exit code. A nil halter
// uses the exiting halter configured by HaltDelay.
func run(args []string, stdout, stderr io.Writer, halter installer.Halter) int {
	opts, flags, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(opts, flags)
	if err != nil {
		logger.Error("Invalid configuration: %v", err)
		return 1
	}
	logger.SetLevel(cfg.Level())

	runID := uuid.New()
	logger.Info("Starting forthstore run %s", runID)
	logger.Debug("Board: %s", cfg.Board)
	logger.Debug("Image: %s", cfg.Image)

	variant, err := transport.Lookup(cfg.Board)
	if err != nil {
		logger.Error("%v", err)
		return 1
	}
	binding := transport.Select(variant)
	logger.Info("Flash transport: %s", binding)

	if halter == nil {
		halter = installer.NewExitHalter(cfg.HaltDelay)
	}
	console := installer.NewConsole(stdout, cfg.VerbosityLevel())
	dev := flash.New(binding, flash.OpenBacking(cfg.Image))

	vol, err := installer.InitializeStorage(dev, console, halter)
	if err != nil {
		return exitCode(err)
	}

	slot := handoff.NewSlot()
	defer func() {
		if err := slot.Release(); err != nil {
			logger.Warn("Releasing loader handle: %v", err)
		}
	}()

	in := installer.New(vol, slot, installer.WithConsole(console), installer.WithHalter(halter))
	report, installErr := in.Install()

	if cfg.StateFile != "" {
		recordInstall(cfg, runID, report, installErr)
	}

	if installErr != nil {
		if installer.IsFatal(installErr) {
			return exitCode(installErr)
		}
		logger.Warn("Install degraded at %s: %v", report.Phase, installErr)
	}

	if opts.dump {
		if err := dumpLoader(slot, stdout); err != nil {
			logger.Error("Dump failed: %v", err)
			return 1
		}
	}

	if opts.inspect != "" {
		if err := serveInspect(vol, slot, opts.inspect); err != nil {
			logger.Error("Inspect failed: %v", err)
			return 1
		}
	}
	return 0
}

func exitCode(err error) int {
	var f *installer.Failure
	if errors.As(err, &f) && f.ExitCode() != 0 {
		return f.ExitCode()
	}
	return 1
}

func recordInstall(cfg config.Config, runID uuid.UUID, report *installer.Report, installErr error) {
	manager, err := state.NewManager(afero.NewOsFs(), cfg.StateFile)
	if err != nil {
		logger.Warn("Install history unavailable: %v", err)
		return
	}

	rec := state.InstallRecord{
		RunID:            runID,
		Time:             time.Now().UTC(),
		Board:            cfg.Board,
		Path:             report.Path,
		Phase:            report.Phase.String(),
		DirectoryCreated: report.DirectoryCreated,
		Removed:          report.Removed,
		BytesWritten:     report.BytesWritten,
		Digest:           report.Digest,
		Published:        report.Published,
	}
	if installErr != nil {
		rec.Error = installErr.Error()
	}
	if err := manager.Record(rec); err != nil {
		logger.Warn("Recording install history: %v", err)
		return
	}
	logger.Debug("Install recorded in %s", manager.Path())
}

// dumpLoader reads the handed-off file the way the loader would, one
// CR-terminated line at a time, then rewinds it.
func dumpLoader(slot *handoff.Slot, w io.Writer) error {
	f, ok := slot.Handle()
	if !ok {
		return errors.New("no loader handle was published")
	}

	scanner := bufio.NewScanner(f)
	scanner.Split(scanCR)
	for scanner.Scan() {
		if _, err := fmt.Fprintf(w, "%s\n", scanner.Text()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", f.Name(), err)
	}
	return f.Rewind()
}

func scanCR(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\r'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func serveInspect(vol *fatfs.Volume, slot *handoff.Slot, mountPoint string) error {
	cleanMount := filepath.Clean(mountPoint)
	vfs := inspect.New(vol, slot)

	logger.Debug("Setting up signal handlers...")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := vfs.Mount(cleanMount); err != nil {
		return err
	}
	logger.Info("Volume view ready at %s", cleanMount)

	sig := <-sigChan
	logger.Info("Received signal %v", sig)
	if err := vfs.Unmount(cleanMount); err != nil {
		return err
	}
	logger.Info("Clean shutdown complete")
	return nil
}
