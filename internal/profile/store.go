// Package profile persists the local identity record and photo gallery the
// room screens read. It is a distinct namespace from the history cache:
// clearing one never touches the other.
package profile

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"chatcam/pkg/types"
)

// Store holds the single profile record and the photo gallery.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens a profile store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize profile schema: %w", err)
	}
	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS profile (
	id     INTEGER PRIMARY KEY CHECK (id = 1),
	pseudo TEXT NOT NULL,
	photo  TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS photos (
	seq   INTEGER PRIMARY KEY AUTOINCREMENT,
	photo TEXT NOT NULL
);
`

// Save stores the profile record, replacing any previous one.
func (s *Store) Save(p types.Profile) error {
	if p.Pseudo == "" {
		return ErrMissingPseudo
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO profile (id, pseudo, photo) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET pseudo = excluded.pseudo, photo = excluded.photo`,
		p.Pseudo, p.Photo,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Load reads the profile record. The room core reads it once at join time and
// treats it as immutable for the duration of the session.
func (s *Store) Load() (types.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p types.Profile
	err := s.db.QueryRow(`SELECT pseudo, photo FROM profile WHERE id = 1`).Scan(&p.Pseudo, &p.Photo)
	if err == sql.ErrNoRows {
		return types.Profile{}, ErrNoProfile
	}
	if err != nil {
		return types.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

// AddPhoto appends a captured photo (data URL) to the gallery.
func (s *Store) AddPhoto(photo string) error {
	if photo == "" {
		return ErrEmptyPhoto
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`INSERT INTO photos (photo) VALUES (?)`, photo); err != nil {
		return fmt.Errorf("failed to add photo: %w", err)
	}
	return nil
}

// Photos returns the gallery, newest first.
func (s *Store) Photos() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT photo FROM photos ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var photos []string
	for rows.Next() {
		var photo string
		if err := rows.Scan(&photo); err != nil {
			return nil, fmt.Errorf("failed to scan photo row: %w", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photo rows: %w", err)
	}
	return photos, nil
}

// ClearPhotos empties the gallery. The profile record stays.
func (s *Store) ClearPhotos() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM photos`); err != nil {
		return fmt.Errorf("failed to clear photos: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
