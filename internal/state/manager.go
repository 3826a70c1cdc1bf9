// Package state provides persistent install history.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"forthstore/internal/logging"

	"github.com/spf13/afero"
)

var (
	logger = logging.GetLogger().WithPrefix("state")
)

// Manager handles loading and saving the install history
type Manager struct {
	fs          afero.Fs
	statePath   string
	backupDir   string
	backupCount int
	now         func() time.Time
	mu          sync.RWMutex
}

// NewManager creates a new state manager for the given history file path.
// It ensures the state directory exists and is writable.
func NewManager(fs afero.Fs, statePath string) (*Manager, error) {
	logger.Debug("Creating new state manager with path: %s", statePath)

	absPath, err := filepath.Abs(statePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state path %s: %w", statePath, err)
	}
	logger.Debug("Resolved state path: %s", absPath)

	stateDir := filepath.Dir(absPath)
	if mkdirErr := fs.MkdirAll(stateDir, 0755); mkdirErr != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, mkdirErr)
	}

	// Try to open the file for writing to verify we have write permissions
	f, writeErr := fs.OpenFile(absPath, os.O_WRONLY|os.O_CREATE, 0644)
	if writeErr != nil {
		return nil, fmt.Errorf("failed to create state file %s: %w", absPath, writeErr)
	}
	f.Close()

	backupDir := filepath.Join(stateDir, ".forthstore-backups")
	logger.Debug("Creating backup directory: %s", backupDir)
	if backupDirErr := fs.MkdirAll(backupDir, 0755); backupDirErr != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", backupDir, backupDirErr)
	}

	return &Manager{
		fs:          fs,
		statePath:   absPath,
		backupDir:   backupDir,
		backupCount: 5,
		now:         time.Now,
	}, nil
}

// Path returns the absolute history file path.
func (sm *Manager) Path() string {
	return sm.statePath
}

// Load reads the history. A missing or empty file yields an empty history.
func (sm *Manager) Load() (*History, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	logger.Debug("Loading state from: %s", sm.statePath)
	data, err := afero.ReadFile(sm.fs, sm.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &History{Version: CurrentVersion}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if len(data) == 0 {
		logger.Info("No install history yet")
		return &History{Version: CurrentVersion}, nil
	}

	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if h.Version == 0 {
		h.Version = CurrentVersion
	}
	if h.Version > CurrentVersion {
		return nil, fmt.Errorf("state file version %d is newer than supported version %d", h.Version, CurrentVersion)
	}

	logger.Debug("Loaded %d install records", len(h.Installs))
	return &h, nil
}

// Save writes the history, backing up the previous file first.
func (sm *Manager) Save(h *History) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if backupErr := sm.createBackup(); backupErr != nil {
		logger.Warn("Failed to create backup: %v", backupErr)
		// Continue with save even if backup fails
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	logger.Trace("Writing %d bytes of state data", len(data))
	if err := afero.WriteFile(sm.fs, sm.statePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	// Verify the write
	written, err := afero.ReadFile(sm.fs, sm.statePath)
	if err != nil {
		return fmt.Errorf("failed to verify written state: %w", err)
	}
	if len(written) != len(data) {
		return fmt.Errorf("state file holds %d bytes after writing %d", len(written), len(data))
	}

	logger.Debug("State saved and verified successfully")
	return nil
}

// Record appends rec to the stored history.
func (sm *Manager) Record(rec InstallRecord) error {
	h, err := sm.Load()
	if err != nil {
		return err
	}
	h.Append(rec)
	return sm.Save(h)
}

// createBackup creates a timestamped backup of the current history file
func (sm *Manager) createBackup() error {
	data, err := afero.ReadFile(sm.fs, sm.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	timestamp := sm.now().UTC().Format("20060102-150405.000000000")
	backupPath := filepath.Join(sm.backupDir, fmt.Sprintf("state-%s.json", timestamp))

	logger.Debug("Creating backup: %s", backupPath)
	if err := afero.WriteFile(sm.fs, backupPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	return sm.cleanupOldBackups()
}

// cleanupOldBackups removes old backup files, keeping only the most recent ones
func (sm *Manager) cleanupOldBackups() error {
	entries, err := afero.ReadDir(sm.fs, sm.backupDir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			names = append(names, entry.Name())
		}
	}

	// Timestamped names sort oldest first
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for i := sm.backupCount; i < len(names); i++ {
		path := filepath.Join(sm.backupDir, names[i])
		logger.Debug("Removing old backup: %s", path)
		if err := sm.fs.Remove(path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", path, err)
		}
	}

	return nil
}

// Backups lists backup file names, newest first.
func (sm *Manager) Backups() ([]string, error) {
	entries, err := afero.ReadDir(sm.fs, sm.backupDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			names = append(names, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}
