package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 11, 8, 12, 30, 0, 0, time.UTC) }
	return s
}

func TestLoadSnapshotMissing(t *testing.T) {
	s := newTestStorage(t)

	snap, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Events)
}

func TestSaveRun(t *testing.T) {
	s := newTestStorage(t)

	jazz := event.NewCandidate("Jazz Night", "15/11/2025", "20:00", "Blue Note Rio", "search")
	samba := event.NewCandidate("Roda de Samba", "16/11/2025", "18:00", "Pedra do Sal", "search")
	choro := event.NewCandidate("Choro no Largo", "22/11/2025", "17:00", "Largo do Machado", "search")

	diff, err := s.SaveRun("run-1", []*event.Candidate{jazz, samba})
	require.NoError(t, err)
	assert.Len(t, diff.NewEvents, 2, "first run reports everything as new")

	diff, err = s.SaveRun("run-2", []*event.Candidate{samba, choro})
	require.NoError(t, err)
	require.Len(t, diff.NewEvents, 1)
	assert.Equal(t, "Choro no Largo", diff.NewEvents[0].Title)
	require.Len(t, diff.DroppedEvents, 1)
	assert.Equal(t, "Jazz Night", diff.DroppedEvents[0].Title)

	snap, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, "run-2", snap.RunID)
	assert.Len(t, snap.Events, 2)
	assert.Equal(t, "2025-11-08T12:30:00Z", snap.UpdatedAt)
}

func TestWriteResult(t *testing.T) {
	s := newTestStorage(t)

	result := map[string]any{"run_id": "abc", "approved": 3}
	path, err := s.WriteResult("abc", result)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "runs", "20251108T123000_abc.json"), path)

	for _, p := range []string{path, filepath.Join(s.Dir(), "latest.json")} {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "abc", got["run_id"])
	}

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file left behind")
}

func TestGetEventByID(t *testing.T) {
	s := newTestStorage(t)

	jazz := event.NewCandidate("Jazz Night", "15/11/2025", "20:00", "Blue Note Rio", "search")
	_, err := s.SaveRun("run-1", []*event.Candidate{jazz})
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		want    string
		wantErr bool
	}{
		{name: "found", id: jazz.ID, want: "Jazz Night"},
		{name: "not found", id: "missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetEventByID(tt.id)
			if tt.wantErr {
				assert.ErrorContains(t, err, "event not found")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Title)
		})
	}
}

func TestCorruptSnapshot(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "snapshot.json"), []byte("{not json"), 0644))

	_, err := s.LoadSnapshot()
	assert.ErrorContains(t, err, "parsing snapshot")
}
