package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

const (
	snapshotFile = "snapshot.json"
	latestFile   = "latest.json"
	runsDir      = "runs"
)

// Storage handles persistence of snapshots and run results
type Storage struct {
	dataDir string
	now     func() time.Time
}

// New creates a new Storage instance
func New(dataDir string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(filepath.Join(dataDir, runsDir), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		dataDir: dataDir,
		now:     time.Now,
	}, nil
}

// Dir returns the data directory
func (s *Storage) Dir() string {
	return s.dataDir
}

// LoadSnapshot loads the last saved snapshot. A missing file yields an empty
// snapshot.
func (s *Storage) LoadSnapshot() (*event.Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, snapshotFile))
	if err != nil {
		if os.IsNotExist(err) {
			return event.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snapshot event.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if snapshot.Events == nil {
		snapshot.Events = make(map[string]*event.Candidate)
	}
	return &snapshot, nil
}

// SaveSnapshot saves a snapshot to disk
func (s *Storage) SaveSnapshot(snapshot *event.Snapshot) error {
	snapshot.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	return s.writeJSON(filepath.Join(s.dataDir, snapshotFile), snapshot)
}

// SaveRun diffs approved against the previous snapshot, replaces the snapshot
// and returns the diff.
func (s *Storage) SaveRun(runID string, approved []*event.Candidate) (*event.DiffResult, error) {
	previous, err := s.LoadSnapshot()
	if err != nil {
		return nil, err
	}
	diff := event.Diff(previous, approved)

	snapshot := event.CreateSnapshot(runID, approved, s.now().UTC().Format(time.RFC3339))
	if err := s.SaveSnapshot(snapshot); err != nil {
		return nil, err
	}
	return diff, nil
}

// WriteResult writes a run result to runs/<date>_<runID>.json and mirrors it
// to latest.json. It returns the path of the run file.
func (s *Storage) WriteResult(runID string, result any) (string, error) {
	name := fmt.Sprintf("%s_%s.json", s.now().UTC().Format("20060102T150405"), runID)
	path := filepath.Join(s.dataDir, runsDir, name)
	if err := s.writeJSON(path, result); err != nil {
		return "", err
	}
	if err := s.writeJSON(filepath.Join(s.dataDir, latestFile), result); err != nil {
		return "", err
	}
	return path, nil
}

// GetEventByID retrieves an approved event by ID from the snapshot
func (s *Storage) GetEventByID(eventID string) (*event.Candidate, error) {
	snapshot, err := s.LoadSnapshot()
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	for _, evt := range snapshot.Events {
		if evt.ID == eventID {
			return evt, nil
		}
	}
	return nil, fmt.Errorf("event not found: %s", eventID)
}

// writeJSON writes through a temp file so readers never see a partial file.
func (s *Storage) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
