package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/larder/internal/querysql"
	"github.com/roach88/larder/internal/recipe"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on recipes.last_updated for the newest-first view
const currentSchemaVersion = 1

// driverName is the go-sqlite3 driver registered with a ConnectHook that
// installs fold() and per-connection pragmas.
const driverName = "sqlite3_larder"

var registerOnce sync.Once

// Store is the durable Entity Store for Recipe records.
// Uses SQLite with WAL mode: one writer connection, a pool of readers.
type Store struct {
	db     *sql.DB // writer, exactly one connection
	reader *sql.DB

	writeMu  sync.Mutex // serializes Upsert, orders CommitEvents
	notifier *notifier
	compiler *querysql.SQLCompiler
	now      func() time.Time
	newID    func() string
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the wall clock used to stamp commits.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithCommitIDs overrides the commit id generator (UUIDv7 by default).
func WithCommitIDs(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The path must name a file: the writer and reader pools are separate
// connections and would not share an in-memory database.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	registerDriver()

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	reader, err := sql.Open(driverName, path)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	reader.SetMaxIdleConns(2)

	s := &Store{
		db:       db,
		reader:   reader,
		notifier: newNotifier(),
		compiler: querysql.NewSQLCompiler(),
		now:      time.Now,
		newID:    newCommitID,
	}
	for _, opt := range opts {
		opt(s)
	}

	slog.Debug("store opened", "path", path, "schema_version", currentSchemaVersion)
	return s, nil
}

// Close closes every subscription and both connection pools.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s.notifier != nil {
		s.notifier.closeAll()
	}
	if s.reader != nil {
		s.reader.Close()
	}
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying writer sql.DB for direct statements.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

func newCommitID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// registerDriver registers the larder sqlite3 driver exactly once.
func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: connectHook,
		})
	})
}

// connectHook runs on every new connection, writer and reader alike.
func connectHook(conn *sqlite3.SQLiteConn) error {
	if err := conn.RegisterFunc(querysql.FoldFunc, recipe.Fold, true); err != nil {
		return fmt.Errorf("register %s(): %w", querysql.FoldFunc, err)
	}
	for _, pragma := range connPragmas {
		if _, err := conn.Exec(pragma, nil); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// connPragmas are per-connection settings.
var connPragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

// applyPragmas sets database-wide configuration. journal_mode persists in
// the file, so running it on the writer covers the readers too.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
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

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		slog.Debug("store migrated", "from", version, "to", 1)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes last_updated for the newest-first sort.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_recipes_last_updated
		ON recipes(last_updated)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(db *sql.DB, name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
