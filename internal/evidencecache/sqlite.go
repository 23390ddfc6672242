package evidencecache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/logger"
)

// SQLite persists evidence across runs. Reads and writes go straight to the
// database; WAL mode lets concurrent fetches share it.
type SQLite struct {
	db   *sql.DB
	path string
	ttl  time.Duration
	now  func() time.Time
	log  *logger.Logger
}

// OpenSQLite opens or creates the cache database at path.
func OpenSQLite(path string, ttl time.Duration, log *logger.Logger) (*SQLite, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening evidence cache: %w", err)
	}

	s := &SQLite{db: db, path: path, ttl: ttl, now: time.Now, log: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing evidence cache: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS link_evidence (
		url TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		cached_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_link_evidence_cached_at ON link_evidence(cached_at);
	`)
	return err
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *SQLite) Path() string {
	return s.path
}

// Get returns fresh evidence for url. Lookup errors are logged and reported
// as a miss.
func (s *SQLite) Get(url string) (*event.LinkEvidence, bool) {
	var (
		payload  string
		cachedAt int64
	)
	err := s.db.QueryRow(`SELECT payload, cached_at FROM link_evidence WHERE url = ?`, url).Scan(&payload, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.log.Warn("Evidence cache lookup failed", logger.Fields{"url": url, "error": err.Error()})
		return nil, false
	}
	if s.now().Sub(time.Unix(cachedAt, 0)) > s.ttl {
		return nil, false
	}

	var ev event.LinkEvidence
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		s.log.Warn("Corrupt evidence cache entry", logger.Fields{"url": url, "error": err.Error()})
		return nil, false
	}
	return &ev, true
}

// Set stores evidence for url, replacing any previous entry.
func (s *SQLite) Set(url string, ev *event.LinkEvidence) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("Cannot encode evidence", logger.Fields{"url": url, "error": err.Error()})
		return
	}
	_, err = s.db.Exec(`
		INSERT INTO link_evidence (url, payload, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		url, string(payload), s.now().Unix())
	if err != nil {
		s.log.Warn("Evidence cache write failed", logger.Fields{"url": url, "error": err.Error()})
	}
}

// Prune deletes expired entries and returns how many were removed.
func (s *SQLite) Prune() (int, error) {
	cutoff := s.now().Add(-s.ttl).Unix()
	res, err := s.db.Exec(`DELETE FROM link_evidence WHERE cached_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning evidence cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
