// Package history implements the client-side bounded per-room message log.
// It primes the room UI instantly on (re)entry, before the live feed resumes.
package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chatcam/pkg/types"
)

// DefaultCapacity is the canonical per-room log bound.
const DefaultCapacity = 50

// Options configure a cache.
type Options struct {
	// Capacity bounds each room's log; entries beyond it are evicted FIFO.
	// Zero means DefaultCapacity.
	Capacity int
	// Dedup drops an appended entry whose message id is already cached for
	// the room. Messages have no identity in some deployments, so this is
	// configurable rather than assumed; entries without an id always append.
	Dedup bool
}

// Cache is a durable, bounded per-room append log. Only the owning client's
// event loop mutates it; the mutex merely guards against accidental misuse.
type Cache struct {
	db       *sql.DB
	capacity int
	dedup    bool
	mu       sync.Mutex
}

// Open creates or opens a cache at path. Use a file under the client's data
// directory; ":memory:" works for throwaway caches.
func Open(path string, opts Options) (*Cache, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open history cache: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and matches
	// the single event loop that owns the cache.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Cache{db: db, capacity: capacity, dedup: opts.Dedup}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS history (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	room           TEXT NOT NULL,
	message_id     TEXT NOT NULL DEFAULT '',
	kind           TEXT NOT NULL,
	event          TEXT NOT NULL DEFAULT '',
	pseudo         TEXT NOT NULL,
	content        TEXT NOT NULL DEFAULT '',
	attachment_ref TEXT NOT NULL DEFAULT '',
	emitted_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_room ON history(room, seq);
`

// Append inserts an entry at the chronological tail of a room's log and
// evicts from the head once the log exceeds capacity. Write failures are
// wrapped in ErrAppendFailed; callers surface them as non-fatal warnings and
// keep their in-memory state.
func (c *Cache) Append(roomName string, entry *types.Envelope) error {
	if roomName == "" {
		return ErrEmptyRoomName
	}
	if entry == nil {
		return ErrNilEntry
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if c.dedup && entry.ID != "" {
		var exists int
		err := tx.QueryRow(
			`SELECT 1 FROM history WHERE room = ? AND message_id = ? LIMIT 1`,
			roomName, entry.ID,
		).Scan(&exists)
		if err == nil {
			return nil // already cached, duplicate delivery suppressed
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("%w: %v", ErrAppendFailed, err)
		}
	}

	emittedAt := entry.EmittedAt
	if emittedAt.IsZero() {
		emittedAt = time.Now()
	}

	_, err = tx.Exec(
		`INSERT INTO history (room, message_id, kind, event, pseudo, content, attachment_ref, emitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		roomName, entry.ID, entry.Kind, entry.Event, entry.Pseudo,
		entry.Content, entry.AttachmentRef, emittedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}

	// FIFO eviction: keep the newest capacity entries, drop the oldest.
	// Read access never reorders the log.
	_, err = tx.Exec(
		`DELETE FROM history WHERE room = ? AND seq NOT IN (
			SELECT seq FROM history WHERE room = ? ORDER BY seq DESC LIMIT ?
		)`,
		roomName, roomName, c.capacity,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	return nil
}

// Load returns a room's current log, oldest first.
func (c *Cache) Load(roomName string) ([]*types.Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(
		`SELECT message_id, kind, event, pseudo, content, attachment_ref, emitted_at
		 FROM history WHERE room = ? ORDER BY seq ASC`,
		roomName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*types.Envelope
	for rows.Next() {
		var e types.Envelope
		if err := rows.Scan(&e.ID, &e.Kind, &e.Event, &e.Pseudo, &e.Content, &e.AttachmentRef, &e.EmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.RoomName = roomName
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return entries, nil
}

// Clear empties one room's log. Other rooms and the profile/gallery
// namespaces are untouched.
func (c *Cache) Clear(roomName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec(`DELETE FROM history WHERE room = ?`, roomName); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
