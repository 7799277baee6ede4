// Package sqlite persists the reference server's projects and notifications.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

var (
	// ErrProjectNotFound indicates that a project cannot be found.
	ErrProjectNotFound = fmt.Errorf("project %w", domain.ErrNotFound)
	// ErrNotificationNotFound indicates that a notification cannot be found.
	ErrNotificationNotFound = fmt.Errorf("notification %w", domain.ErrNotFound)
	// ErrInvalidID indicates an empty ID.
	ErrInvalidID = errors.New("invalid ID")
)

// timeLayout is fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	client_name  TEXT NOT NULL,
	status       TEXT NOT NULL,
	budget       REAL NOT NULL DEFAULT 0,
	deadline     TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	completed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_projects_created_at ON projects(created_at);

CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	time        TEXT NOT NULL,
	unread      INTEGER NOT NULL DEFAULT 1,
	type        TEXT NOT NULL DEFAULT 'info',
	project_id  TEXT NOT NULL DEFAULT '',
	client_name TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_notifications_time ON notifications(time);
`

// Storage is a SQLite-backed store.
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Storage.
type Option func(*Storage)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

// NewStorage opens (and creates if needed) the database at dbPath.
func NewStorage(dbPath string, opts ...Option) (*Storage, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("sqlite storage: db path cannot be empty")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite storage: create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite storage: open db: %w", err)
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	s := &Storage{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying SQLite connection.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) init() error {
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("sqlite storage: set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("sqlite storage: create schema: %w", err)
	}
	return nil
}

func (s *Storage) utcNow() time.Time {
	return s.now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite storage: parse time %q: %w", v, err)
	}
	return t, nil
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}
	return nil
}
