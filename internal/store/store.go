package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/roach88/storysync/internal/story"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added created_at index on pending_stories
const currentSchemaVersion = 1

// timeLayout is fixed-width so TEXT comparison in SQLite orders correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store provides durable storage for stories and the pending queue.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db     *sql.DB
	path   string
	ids    story.IDGenerator
	clock  story.Clock
	logger *zap.Logger
	closed atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the generator for pending local ids.
// Default: story.UUIDv7Generator.
func WithIDGenerator(g story.IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithClock sets the clock used to stamp pending entries.
// Default: story.SystemClock.
func WithClock(c story.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// Any failure is reported as story.ErrStorageUnavailable.
// This function is idempotent - safe to call multiple times, including
// concurrently for the same path.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		ids:    story.UUIDv7Generator{},
		clock:  story.SystemClock{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, story.StorageUnavailable("open", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, story.StorageUnavailable("open", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// This also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, story.StorageUnavailable("open", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, story.StorageUnavailable("open", err)
	}

	s.db = db
	s.logger.Debug("store opened", zap.String("path", path))
	return s, nil
}

// dsn appends the busy timeout so lock waits apply from the first statement,
// and makes transactions take the write lock up front.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000&_txlock=immediate"
}

// Close closes the database connection.
// Operations on a closed store report story.ErrStorageUnavailable.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ready reports story.ErrStorageUnavailable for a closed or unopened store.
func (s *Store) ready(op string) error {
	if s.db == nil || s.closed.Load() {
		return story.StorageUnavailable(op, fmt.Errorf("store is closed"))
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version >= currentSchemaVersion {
		return nil
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the created_at index to databases created before v1.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_pending_created_at
		ON pending_stories(created_at)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts only timeLayout. Date filters compare created_at as
// TEXT, so any other shape would sort wrongly.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
