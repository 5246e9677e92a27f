// Package history keeps a local log of generation calls in SQLite.
//
// Only call metadata is stored: provider, model, mode, outcome, timing and a
// SHA-256 of the prompt. Prompts, system prompts and model output never reach
// the database.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// Status values stored in Entry.Status
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DefaultListLimit caps List when ListOptions.Limit is zero.
const DefaultListLimit = 50

// Entry is one recorded generation call.
type Entry struct {
	ID        string
	CreatedAt time.Time

	Provider string
	Model    string

	// Mode is "text" or "structured"
	Mode string

	Status string

	// ErrorType is the classified error label for failed calls
	ErrorType string

	DurationMs int64

	// PromptSHA256 is the hex digest of the prompt (see HashPrompt)
	PromptSHA256 string

	// SchemaName is set for structured calls
	SchemaName string
}

// ListOptions filters List. Zero values mean "no filter".
type ListOptions struct {
	Limit    int
	Provider string
	Status   string
	Since    time.Time
}

// Store is the generation log.
type Store interface {
	Record(ctx context.Context, entry *Entry) error
	List(ctx context.Context, opts ListOptions) ([]Entry, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path using the pure-Go
// driver. path may be ":memory:".
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create history directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single connection keeps ":memory:" databases alive across calls
	db.SetMaxOpenConns(1)

	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an already opened database, creating the schema if
// needed. Any database/sql SQLite driver works.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		error_type TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL,
		prompt_sha256 TEXT NOT NULL,
		schema_name TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations(created_at);
	CREATE INDEX IF NOT EXISTS idx_generations_provider ON generations(provider);
	`

	_, err := s.db.Exec(schema)
	return err
}

// DB returns the underlying database connection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Record inserts entry, filling ID and CreatedAt when unset.
func (s *SQLiteStore) Record(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Status == "" {
		entry.Status = StatusSuccess
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generations (id, created_at, provider, model, mode, status, error_type, duration_ms, prompt_sha256, schema_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.CreatedAt.UnixMilli(),
		entry.Provider,
		entry.Model,
		entry.Mode,
		entry.Status,
		entry.ErrorType,
		entry.DurationMs,
		entry.PromptSHA256,
		entry.SchemaName,
	)
	if err != nil {
		return fmt.Errorf("failed to record generation: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if opts.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, opts.Provider)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, opts.Status)
	}
	if !opts.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, opts.Since.UnixMilli())
	}

	query := `SELECT id, created_at, provider, model, mode, status, error_type, duration_ms, prompt_sha256, schema_name FROM generations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.Provider, &e.Model, &e.Mode, &e.Status, &e.ErrorType, &e.DurationMs, &e.PromptSHA256, &e.SchemaName); err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM generations").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count generations: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HashPrompt returns the hex SHA-256 of the trimmed prompt.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(prompt)))
	return hex.EncodeToString(sum[:])
}
