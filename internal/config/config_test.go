package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 65, cfg.LinkQuality.Threshold)
	assert.Equal(t, 25, cfg.Consolidation.MaxEventsPerVenue)
	assert.Equal(t, 6*time.Hour, cfg.Fetch.CacheTTL)
	assert.Equal(t, 60, cfg.LinkQuality.SearchBudget)
	assert.Equal(t, 30, cfg.Search.Budget)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv(EnvOpenRouterKey, "or-key")
	t.Setenv(EnvPostgresDSN, "postgres://localhost/events")

	path := writeConfig(t, `
strictness: strict
window:
  start: "08/11/2025"
  end: "29/11/2025"
link_quality:
  threshold: 50
fetch:
  timeout: 5s
search:
  budget: 12
gaps:
  min_total: 4
  category_min:
    jazz: 2
  day_rules:
    - weekday: sábado
      category: ar livre
      min: 1
venues:
  - name: Blue Note Rio
    url: https://www.bluenoterio.com.br/shows
    item: article.show
    title: h2
    date: .date
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "strict", cfg.Strictness)
	assert.Equal(t, 50, cfg.LinkQuality.Threshold)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts, "unset keys keep their defaults")
	assert.Equal(t, 12, cfg.Search.Budget)
	assert.Equal(t, "or-key", cfg.OpenRouterKey)
	assert.Equal(t, "postgres://localhost/events", cfg.Publish.DSN)
	require.Len(t, cfg.Venues, 1)
	assert.Equal(t, "h2", cfg.Venues[0].Title)

	start, end, err := cfg.SearchWindow(time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 8, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 11, 29, 0, 0, 0, 0, time.UTC), end)

	rules := cfg.GapRules(start, end)
	assert.Equal(t, 4, rules.MinTotal)
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, rules.CountedDays)
	require.Len(t, rules.DayRules, 1)
	assert.Equal(t, time.Saturday, rules.DayRules[0].Weekday)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"strictness", "strictness: lenient", "Strictness"},
		{"threshold", "link_quality:\n  threshold: 150", "Threshold"},
		{"negative budget", "search:\n  budget: -1", "Budget"},
		{"weekday", "gaps:\n  counted_days: [funday]", "unknown weekday"},
		{"window date", "window:\n  start: \"31/02/2025\"", "not DD/MM/YYYY"},
		{"venue url", "venues:\n  - {name: X, url: not-a-url, item: a, title: b, date: c}", "URL"},
		{"yaml", "strictness: [", "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "reading config"))
}

func TestSearchWindowDefaults(t *testing.T) {
	cfg := Default()
	cfg.Timezone = "UTC"
	now := time.Date(2025, 11, 8, 15, 30, 0, 0, time.UTC)

	start, end, err := cfg.SearchWindow(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 8, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 11, 29, 0, 0, 0, 0, time.UTC), end)

	cfg.Window = Window{Start: "20/11/2025", End: "10/11/2025"}
	_, _, err = cfg.SearchWindow(now)
	assert.ErrorContains(t, err, "before it starts")
}

func TestParseWeekday(t *testing.T) {
	got := map[string]time.Weekday{}
	for _, s := range []string{"Saturday", "sábado", "Sexta-feira", "domingo", "MONDAY"} {
		wd, err := ParseWeekday(s)
		require.NoError(t, err, s)
		got[s] = wd
	}
	want := map[string]time.Weekday{
		"Saturday": time.Saturday, "sábado": time.Saturday, "Sexta-feira": time.Friday,
		"domingo": time.Sunday, "MONDAY": time.Monday,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseWeekday mismatch (-want +got):\n%s", diff)
	}
	_, err := ParseWeekday("someday")
	assert.Error(t, err)
}
