package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/jsonx"
)

// FileSource reads raw event records from a JSON file: either an array of
// records or an object holding one.
type FileSource struct {
	path string
	name string
}

// NewFileSource creates a FileSource. Records without a source field are
// attributed to the file's base name.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, name: "file:" + filepath.Base(path)}
}

// Name implements CandidateSource
func (f *FileSource) Name() string {
	return f.name
}

// FetchCandidates loads the file and returns the records matching q.
func (f *FileSource) FetchCandidates(_ context.Context, q Query) ([]*event.Candidate, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading candidates file: %w", err)
	}
	records, err := DecodeRecords(string(data), f.name)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path, err)
	}

	out := make([]*event.Candidate, 0, len(records))
	for _, c := range records {
		if q.Matches(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// DecodeRecords turns a JSON payload of raw records into candidates. Entries
// that are not objects or have no title are skipped.
func DecodeRecords(payload, defaultSource string) ([]*event.Candidate, error) {
	items, err := jsonx.Array(payload)
	if err != nil {
		return nil, err
	}
	out := make([]*event.Candidate, 0, len(items))
	for _, item := range items {
		var rec map[string]any
		if err := json.Unmarshal(item, &rec); err != nil {
			continue
		}
		c := event.FromRecord(rec, defaultSource)
		if c.Title == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
