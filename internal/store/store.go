package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is recorded in PRAGMA user_version once schema.sql applied.
const schemaVersion = 1

// ErrNotFound is returned when a binding key is not in the registry.
var ErrNotFound = errors.New("binding not found")

// Store is the SQLite binding registry. The database runs in WAL mode, so
// readers in other processes see committed bindings while one writer holds
// the single connection.
type Store struct {
	db *sql.DB
}

type config struct {
	busyTimeout time.Duration
}

// Option configures Open.
type Option func(*config)

// WithBusyTimeout sets how long a write waits for a lock held by another
// process. Default: 5s.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *config) {
		c.busyTimeout = d
	}
}

// Open creates or opens the registry at path and brings its schema up to
// date. Opening an existing registry keeps its bindings.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := config{busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d",
		path, cfg.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open binding registry: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("binding registry %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
