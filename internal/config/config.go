// Package config loads forthstore configuration.
//
// Configuration comes from a single YAML file named by the --config flag or
// the FORTHSTORE_CONFIG environment variable. Without a file the defaults
// apply. Command-line flags override file values after loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"forthstore/internal/flash"
	"forthstore/internal/installer"
	"forthstore/internal/logging"
	"forthstore/internal/transport"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "FORTHSTORE_CONFIG"

// Config is the forthstore configuration.
type Config struct {
	// Board selects the transport variant (samd51, nrf52840, samd21, generic).
	Board string `yaml:"board"`

	// Image is the directory emulating the flash chip, or ":memory:".
	Image string `yaml:"image"`

	// Verbosity is quiet or verbose console output.
	Verbosity string `yaml:"verbosity"`

	// HaltDelay is how long a fatal failure waits before exiting.
	HaltDelay time.Duration `yaml:"halt_delay"`

	// StateFile records install history when set.
	StateFile string `yaml:"state_file"`

	// LogLevel is the operator log level (error, warn, info, debug, trace).
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Board:     transport.DefaultVariant,
		Image:     flash.MemoryImage,
		Verbosity: installer.Quiet.String(),
		HaltDelay: installer.DefaultHaltDelay,
		LogLevel:  "info",
	}
}

// Path returns the config file path from flagValue or the environment.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvConfig)
}

// Load reads the file at path over the defaults. An empty path yields the
// defaults. Fields missing from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every field holds a known value.
func (c Config) Validate() error {
	var errs []error
	if _, err := transport.Lookup(c.Board); err != nil {
		errs = append(errs, err)
	}
	if c.Image == "" {
		errs = append(errs, errors.New("image must not be empty"))
	}
	if _, err := installer.ParseVerbosity(c.Verbosity); err != nil {
		errs = append(errs, err)
	}
	if c.HaltDelay < 0 {
		errs = append(errs, fmt.Errorf("halt_delay must not be negative, got %s", c.HaltDelay))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// VerbosityLevel returns the parsed console verbosity.
func (c Config) VerbosityLevel() installer.Verbosity {
	v, _ := installer.ParseVerbosity(c.Verbosity)
	return v
}

// Level returns the parsed log level.
func (c Config) Level() logging.LogLevel {
	l, _ := logging.ParseLevel(c.LogLevel)
	return l
}
