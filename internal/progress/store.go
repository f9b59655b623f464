// Package progress persists the last-seen episode per show in a local
// sqlite database. Rows are owned here; the tracking engine only proposes
// new last_episode values after an unambiguously successful run.
package progress

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timestampLayout is RFC3339 with a fixed-width fraction so stored text
// sorts chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS seen_progress (
	ani_id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	last_episode TEXT NOT NULL,
	last_seen_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_seen_progress_seen_at ON seen_progress(last_seen_at DESC);
`

// Show is one tracked row.
type Show struct {
	ShowID      string
	Title       string
	LastEpisode string
	LastSeenAt  string // RFC3339 UTC
}

// Store wraps the progress database.
type Store struct {
	db *sql.DB
}

// DefaultPath resolves the database location under the user data directory.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "anitrack", "anitrack.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "anitrack", "anitrack.db"), nil
}

// Open opens the database at path, creating parent directories and the
// schema as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open progress database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Upsert records the last-seen episode for a show, updating title and
// timestamp in place when the show is already tracked.
func (s *Store) Upsert(showID, title, episode string) error {
	now := time.Now().UTC().Format(timestampLayout)
	_, err := s.db.Exec(`
		INSERT INTO seen_progress (ani_id, title, last_episode, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ani_id) DO UPDATE SET
			title = excluded.title,
			last_episode = excluded.last_episode,
			last_seen_at = excluded.last_seen_at`,
		showID, title, episode, now)
	if err != nil {
		return fmt.Errorf("record progress for %s: %w", showID, err)
	}
	return nil
}

// LastSeen returns the most recently seen show, or nil when nothing is
// tracked yet.
func (s *Store) LastSeen() (*Show, error) {
	row := s.db.QueryRow(`
		SELECT ani_id, title, last_episode, last_seen_at
		FROM seen_progress
		ORDER BY last_seen_at DESC
		LIMIT 1`)
	var sh Show
	if err := row.Scan(&sh.ShowID, &sh.Title, &sh.LastEpisode, &sh.LastSeenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load last seen: %w", err)
	}
	return &sh, nil
}

// List returns every tracked show, most recently seen first.
func (s *Store) List() ([]Show, error) {
	rows, err := s.db.Query(`
		SELECT ani_id, title, last_episode, last_seen_at
		FROM seen_progress
		ORDER BY last_seen_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var shows []Show
	for rows.Next() {
		var sh Show
		if err := rows.Scan(&sh.ShowID, &sh.Title, &sh.LastEpisode, &sh.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan progress row: %w", err)
		}
		shows = append(shows, sh)
	}
	return shows, rows.Err()
}

// Delete removes a show, reporting whether a row existed.
func (s *Store) Delete(showID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM seen_progress WHERE ani_id = ?`, showID)
	if err != nil {
		return false, fmt.Errorf("delete progress for %s: %w", showID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
