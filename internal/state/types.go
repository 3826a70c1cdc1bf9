// Package state provides persistent install history.
package state

import (
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is the history file format version.
const CurrentVersion = 1

// MaxRecords bounds the number of install records kept in the history.
const MaxRecords = 32

// History is the persisted list of installation runs, oldest first.
type History struct {
	// Version for future compatibility
	Version int `json:"version"`

	Installs []InstallRecord `json:"installs"`
}

// InstallRecord describes one installation run.
type InstallRecord struct {
	RunID            uuid.UUID `json:"run_id"`
	Time             time.Time `json:"time"`
	Board            string    `json:"board"`
	Path             string    `json:"path"`
	Phase            string    `json:"phase"`
	DirectoryCreated bool      `json:"directory_created"`
	Removed          bool      `json:"removed"`
	BytesWritten     int64     `json:"bytes_written"`
	Digest           string    `json:"digest,omitempty"`
	Published        bool      `json:"published"`
	Error            string    `json:"error,omitempty"`
}

// Append adds rec and drops the oldest records beyond MaxRecords.
func (h *History) Append(rec InstallRecord) {
	h.Installs = append(h.Installs, rec)
	if extra := len(h.Installs) - MaxRecords; extra > 0 {
		h.Installs = append([]InstallRecord(nil), h.Installs[extra:]...)
	}
}

// Last returns the most recent record.
func (h *History) Last() (InstallRecord, bool) {
	if len(h.Installs) == 0 {
		return InstallRecord{}, false
	}
	return h.Installs[len(h.Installs)-1], true
}
