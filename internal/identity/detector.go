// Package identity decides when certificate material on disk is bound to a
// stale public hostname and must be discarded.
package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Verdict is the detector state for one run.
type Verdict int

const (
	Unchanged Verdict = iota
	Changed
)

func (v Verdict) String() string {
	if v == Changed {
		return "changed"
	}
	return "unchanged"
}

// Reason explains a verdict.
type Reason string

const (
	ReasonFirstRun         Reason = "first_run"
	ReasonHostnameChanged  Reason = "hostname_changed"
	ReasonRecordUnreadable Reason = "record_unreadable"
	ReasonSameHostname     Reason = "same_hostname"
)

// Detection is the outcome of comparing the resolved hostname against the
// HostnameRecord, plus what was purged because of it.
type Detection struct {
	Verdict  Verdict
	Reason   Reason
	Previous string // empty on first run or unreadable record
	Current  string

	Purged       []string // artifact file names actually removed
	ConfigPurged bool

	// Errors holds removal failures other than "not found". They are
	// reported, never fatal.
	Errors []error
}

// Changed reports whether regeneration is required.
func (d Detection) Changed() bool {
	return d.Verdict == Changed
}

// Detector owns the HostnameRecord and the CertificateArtifact set of one data directory.
type Detector struct {
	DataDir    string
	RecordPath string
	ConfigPath string
	Artifacts  []string
}

// NewDetector creates a detector for the given data directory layout.
func NewDetector(dataDir, recordPath, configPath string) *Detector {
	return &Detector{
		DataDir:    dataDir,
		RecordPath: recordPath,
		ConfigPath: configPath,
		Artifacts:  CertificateArtifacts,
	}
}

// Detect compares hostname with the persisted record. It has no side effects.
// Any failure to read the record counts as Changed so a stale certificate is
// never served.
func (d *Detector) Detect(hostname string) Detection {
	det := Detection{Current: hostname}

	data, err := os.ReadFile(d.RecordPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		det.Verdict, det.Reason = Changed, ReasonFirstRun
	case err != nil:
		det.Verdict, det.Reason = Changed, ReasonRecordUnreadable
	default:
		det.Previous = strings.TrimSpace(string(data))
		if det.Previous == hostname {
			det.Verdict, det.Reason = Unchanged, ReasonSameHostname
		} else {
			det.Verdict, det.Reason = Changed, ReasonHostnameChanged
		}
	}

	return det
}

// Check runs Detect and, on Changed, purges every certificate artifact and
// the persisted config. Missing files are not errors.
func (d *Detector) Check(hostname string) Detection {
	det := d.Detect(hostname)
	if det.Changed() {
		d.purge(&det)
	}
	return det
}

func (d *Detector) purge(det *Detection) {
	for _, name := range d.Artifacts {
		removed, err := removeIfExists(filepath.Join(d.DataDir, name))
		if err != nil {
			det.Errors = append(det.Errors, err)
			continue
		}
		if removed {
			det.Purged = append(det.Purged, name)
		}
	}

	removed, err := removeIfExists(d.ConfigPath)
	if err != nil {
		det.Errors = append(det.Errors, err)
	}
	det.ConfigPurged = removed
}

// Commit persists the current hostname after reconciliation. It only writes
// when the verdict was Changed; an Unchanged record already holds the value.
func (d *Detector) Commit(det Detection) error {
	if !det.Changed() {
		return nil
	}
	return WriteRecord(d.RecordPath, det.Current)
}

// ReadRecord returns the persisted hostname, or "" if there is none.
func ReadRecord(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read hostname record: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteRecord writes the hostname atomically (temp file + rename).
func WriteRecord(path, hostname string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(hostname), 0o644); err != nil {
		return fmt.Errorf("failed to write temp hostname record: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename hostname record: %w", err)
	}
	return nil
}

// Present lists which artifacts currently exist.
func (d *Detector) Present() []string {
	var present []string
	for _, name := range d.Artifacts {
		if _, err := os.Stat(filepath.Join(d.DataDir, name)); err == nil {
			present = append(present, name)
		}
	}
	return present
}

func removeIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
}
