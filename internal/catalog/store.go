package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"bookspool/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrNotFound indicates the requested book is absent from the catalog.
var ErrNotFound = errors.New("book not found")

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "library.db"))
}

// OpenPath connects to a catalog database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// SaveBook inserts or replaces a book and its ordered segments atomically.
func (s *Store) SaveBook(ctx context.Context, book *Book) error {
	if book == nil || book.ID == "" {
		return errors.New("book with non-empty id required")
	}
	if len(book.Segments) == 0 {
		return errors.New("book requires at least one segment")
	}

	now := time.Now().UTC()
	createdAt := book.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO books (id, display_name, toc_file_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
           display_name = excluded.display_name,
           toc_file_id = excluded.toc_file_id,
           updated_at = excluded.updated_at`,
		book.ID,
		book.DisplayName,
		book.TOCFileID,
		createdAt.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert book: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM segments WHERE book_id = ?", book.ID); err != nil {
		return fmt.Errorf("clear segments: %w", err)
	}

	for i, seg := range book.Segments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO segments (book_id, seq, file_id, display_name, size_bytes, duration_seconds)
             VALUES (?, ?, ?, ?, ?, ?)`,
			book.ID, i, seg.FileID, seg.DisplayName, seg.SizeBytes, seg.DurationSeconds,
		)
		if err != nil {
			return fmt.Errorf("insert segment %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit book: %w", err)
	}
	return nil
}

// GetBook fetches one book and its ordered segments.
func (s *Store) GetBook(ctx context.Context, id string) (*Book, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, display_name, toc_file_id, created_at, updated_at FROM books WHERE id = ?", id)
	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query book: %w", err)
	}

	segments, err := s.segmentsForBook(ctx, book.ID)
	if err != nil {
		return nil, err
	}
	book.Segments = segments
	return book, nil
}

// ListBooks returns all books with their segments, ordered by display name.
func (s *Store) ListBooks(ctx context.Context) ([]*Book, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, display_name, toc_file_id, created_at, updated_at FROM books ORDER BY display_name")
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}

	for _, book := range books {
		segments, err := s.segmentsForBook(ctx, book.ID)
		if err != nil {
			return nil, err
		}
		book.Segments = segments
	}
	return books, nil
}

// DeleteBook removes a book and its segments.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) segmentsForBook(ctx context.Context, bookID string) ([]Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, file_id, display_name, size_bytes, duration_seconds
         FROM segments WHERE book_id = ? ORDER BY seq`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(&seg.Index, &seg.FileID, &seg.DisplayName, &seg.SizeBytes, &seg.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return segments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*Book, error) {
	var book Book
	var createdAt, updatedAt string
	if err := row.Scan(&book.ID, &book.DisplayName, &book.TOCFileID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		book.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		book.UpdatedAt = ts
	}
	return &book, nil
}
