package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion is the layout this build reads and writes. An on-disk
// database with any other version is dropped and recreated on Open.
const SchemaVersion = 3

// DefaultRetention is how long addresses and elevations stay cached.
const DefaultRetention = 365 * 24 * time.Hour

// ErrNotPersistable is returned for records carrying an ephemeral id.
var ErrNotPersistable = errors.New("record is not persistable")

// Store wraps the SQLite database holding cached addresses, elevations and
// city state. Read failures degrade to empty results and write failures are
// logged and dropped: the store is a best-effort cache.
type Store struct {
	db        *sql.DB
	logger    *slog.Logger
	now       func() time.Time
	retention time.Duration

	// migrateMu serialises schema creation and upgrade.
	migrateMu sync.Mutex
}

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger used for degraded operations.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRetention sets the age after which cached records expire.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

func newStore(opts []Option) *Store {
	s := &Store{
		logger:    slog.Default(),
		now:       time.Now,
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open initializes the database at path, creating directories as needed,
// migrates the schema and prunes expired records once.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := newStore(opts)
	s.db = db

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.PruneExpired(ctx, s.retention)
	return s, nil
}

// Disabled returns a store without a database: reads are empty and writes
// are no-ops. It stands in when the database cannot be opened.
func Disabled(logger *slog.Logger) *Store {
	return newStore([]Option{WithLogger(logger)})
}

// Available reports whether the store has a database behind it.
func (s *Store) Available() bool {
	return s.db != nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS addresses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_latitude REAL NOT NULL,
		query_longitude REAL NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		formatted TEXT NOT NULL,
		language TEXT,
		timestamp INTEGER NOT NULL,
		favorite INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_addresses_timestamp ON addresses(timestamp);`,
	`CREATE TABLE IF NOT EXISTS elevations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		elevation REAL NOT NULL,
		timestamp INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_elevations_timestamp ON elevations(timestamp);`,
	`CREATE TABLE IF NOT EXISTS cities (
		id INTEGER PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		favorite INTEGER NOT NULL DEFAULT 0
	);`,
}

var dropStatements = []string{
	`DROP TABLE IF EXISTS addresses;`,
	`DROP TABLE IF EXISTS elevations;`,
	`DROP TABLE IF EXISTS cities;`,
}

// migrate brings the schema to SchemaVersion. Upgrades are destructive: the
// cache is rebuilt from the network rather than converted.
func (s *Store) migrate(ctx context.Context) error {
	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()

	var version int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version == SchemaVersion {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if version != 0 {
		s.logger.Warn("schema version changed, discarding cached data", "from", version, "to", SchemaVersion)
		for _, stmt := range dropStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("drop schema: %w", err)
			}
		}
	}

	for _, stmt := range createStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, SchemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// PruneExpired deletes addresses and elevations older than maxAge and
// returns the number of rows removed. Cities are kept.
func (s *Store) PruneExpired(ctx context.Context, maxAge time.Duration) int64 {
	if s.db == nil {
		return 0
	}
	if maxAge <= 0 {
		maxAge = DefaultRetention
	}

	cutoff := s.now().Add(-maxAge).UnixMilli()

	var removed int64
	for _, table := range []string{"addresses", "elevations"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE timestamp < ?;`, cutoff)
		if err != nil {
			s.logger.Error("prune expired records", "table", table, "error", err)
			continue
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += n
		}
	}

	if removed > 0 {
		s.logger.Info("pruned expired records", "removed", removed, "max_age", maxAge)
	}
	return removed
}

// Counts reports the number of rows per table.
type Counts struct {
	Addresses  int `json:"addresses"`
	Elevations int `json:"elevations"`
	Cities     int `json:"cities"`
}

// Counts returns the row count of each table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	if s.db == nil {
		return Counts{}, fmt.Errorf("store not initialized")
	}

	var c Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM addresses),
			(SELECT COUNT(*) FROM elevations),
			(SELECT COUNT(*) FROM cities);`,
	).Scan(&c.Addresses, &c.Elevations, &c.Cities)
	if err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

// Wipe removes every cached address, elevation and city row.
func (s *Store) Wipe(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}

	stmts := []string{
		`DELETE FROM addresses;`,
		`DELETE FROM elevations;`,
		`DELETE FROM cities;`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("wipe data: %w", err)
		}
	}

	return nil
}

// expiry is the oldest timestamp still considered fresh.
func (s *Store) expiry() int64 {
	return s.now().Add(-s.retention).UnixMilli()
}

func (s *Store) deleteByID(ctx context.Context, table string, id int64) bool {
	if s.db == nil || id <= 0 {
		return false
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?;`, id)
	if err != nil {
		s.logger.Error("delete record", "table", table, "id", id, "error", err)
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

type scanner interface {
	Scan(dest ...any) error
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
