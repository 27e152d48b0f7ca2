// Package position persists the playback position record restored across
// restarts. The record is owned exclusively by the playback session.
package position

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"bookspool/internal/config"
)

// Speed bounds applied when loading and saving.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// ErrNoPosition indicates no playback position has been saved yet.
var ErrNoPosition = errors.New("no saved position")

// Position is the persisted playback state: book, segment, offset, speed.
type Position struct {
	BookID       string
	SegmentIndex int
	OffsetMillis int64
	Speed        float64
	UpdatedAt    time.Time
}

// ClampSpeed forces a playback speed into the supported range.
func ClampSpeed(value float64) float64 {
	switch {
	case value < MinSpeed:
		return MinSpeed
	case value > MaxSpeed:
		return MaxSpeed
	default:
		return value
	}
}

// Normalize clamps the position fields into their valid ranges.
func (p Position) Normalize() Position {
	if p.SegmentIndex < 0 {
		p.SegmentIndex = 0
	}
	if p.OffsetMillis < 0 {
		p.OffsetMillis = 0
	}
	if p.Speed == 0 {
		p.Speed = 1.0
	}
	p.Speed = ClampSpeed(p.Speed)
	return p
}

// ClampToSegments clamps SegmentIndex against the owning book's current
// segment count. Used at resume time when the book may have shrunk.
func (p Position) ClampToSegments(count int) Position {
	if count <= 0 {
		p.SegmentIndex = 0
		p.OffsetMillis = 0
		return p
	}
	if p.SegmentIndex >= count {
		p.SegmentIndex = count - 1
		p.OffsetMillis = 0
	}
	return p
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS playback_position (
    slot INTEGER PRIMARY KEY CHECK (slot = 1),
    last_book_id TEXT NOT NULL,
    last_segment_index INTEGER NOT NULL,
    last_position_ms INTEGER NOT NULL,
    last_speed REAL NOT NULL,
    updated_at TEXT NOT NULL
);`

// Store persists the single playback position record in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the playback position database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "playback.db"))
}

// OpenPath connects to a position database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save writes the position record. Writes are last-write-wins and
// idempotent: saving the same tuple twice leaves a single record.
func (s *Store) Save(ctx context.Context, pos Position) error {
	if pos.BookID == "" {
		return errors.New("position requires a book id")
	}
	pos = pos.Normalize()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playback_position (slot, last_book_id, last_segment_index, last_position_ms, last_speed, updated_at)
         VALUES (1, ?, ?, ?, ?, ?)
         ON CONFLICT(slot) DO UPDATE SET
           last_book_id = excluded.last_book_id,
           last_segment_index = excluded.last_segment_index,
           last_position_ms = excluded.last_position_ms,
           last_speed = excluded.last_speed,
           updated_at = excluded.updated_at`,
		pos.BookID, pos.SegmentIndex, pos.OffsetMillis, pos.Speed,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// Load reads the saved position, or ErrNoPosition when none exists.
func (s *Store) Load(ctx context.Context) (Position, error) {
	var pos Position
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_book_id, last_segment_index, last_position_ms, last_speed, updated_at
         FROM playback_position WHERE slot = 1`,
	).Scan(&pos.BookID, &pos.SegmentIndex, &pos.OffsetMillis, &pos.Speed, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Position{}, ErrNoPosition
		}
		return Position{}, fmt.Errorf("load position: %w", err)
	}
	if ts, parseErr := time.Parse(time.RFC3339Nano, updatedAt); parseErr == nil {
		pos.UpdatedAt = ts
	}
	return pos.Normalize(), nil
}

// Clear removes the saved position.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM playback_position WHERE slot = 1"); err != nil {
		return fmt.Errorf("clear position: %w", err)
	}
	return nil
}
