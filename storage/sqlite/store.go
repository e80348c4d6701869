// Package sqlite provides a SQLite implementation of storage.Backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	stdSync "sync"
	"time"

	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
	"github.com/c0deZ3R0/go-sibling-kit/logging"
	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
	"github.com/c0deZ3R0/go-sibling-kit/storage"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Operation constants for consistent error reporting
const (
	opPut    = "sqlite.Put"
	opGet    = "sqlite.Get"
	opDelete = "sqlite.Delete"

	component = "storage/sqlite"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds configuration options for the Store.
//
// Defaults applied by DefaultConfig():
//   - WAL mode enabled for better concurrency
//   - busy timeout of 5 seconds
//   - Connection pool with 25 max open, 5 max idle connections
//   - Connection lifetimes of 1 hour max, 5 minutes max idle
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	// Example: "file:cache.db"
	DataSourceName string

	// EnableWAL enables Write-Ahead Logging mode for better concurrency.
	// When true, "_journal_mode=WAL" is appended to DataSourceName.
	EnableWAL bool

	// Logger receives lifecycle logs. Defaults to logging.Default().
	Logger *logging.Logger

	// TableName is the name of the cache table. Defaults to "sibling_cache".
	TableName string

	// Connection pool settings.
	// Defaults: MaxOpen=25, MaxIdle=5, Lifetime=1h, IdleTime=5m
	MaxOpenConns    int           // Default: 25 - Maximum number of open connections
	MaxIdleConns    int           // Default: 5  - Maximum number of idle connections
	ConnMaxLifetime time.Duration // Default: 1h - Maximum lifetime of connections
	ConnMaxIdleTime time.Duration // Default: 5m - Maximum idle time before closing
}

// setDefaults applies default values to the config
func (c *Config) setDefaults() {
	if c.TableName == "" {
		c.TableName = "sibling_cache"
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.DataSourceName != "" && c.DataSourceName != ":memory:" {
		if c.EnableWAL && !strings.Contains(c.DataSourceName, "_journal_mode=") {
			c.DataSourceName = appendParam(c.DataSourceName, "_journal_mode=WAL")
		}
		if !strings.Contains(c.DataSourceName, "_busy_timeout=") {
			c.DataSourceName = appendParam(c.DataSourceName, "_busy_timeout=5000")
		}
	}
}

func appendParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}

// NewWithDataSource is a convenience constructor
func NewWithDataSource(dataSourceName string) (*Store, error) {
	return New(DefaultConfig(dataSourceName))
}

// DefaultConfig returns a Config with WAL enabled and the default pool.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// Store implements storage.Backend on a SQLite table keyed by
// (bucket_type, bucket, key). Entries are kept as JSON.
type Store struct {
	db        *sql.DB
	mu        stdSync.RWMutex
	closed    bool
	tableName string
}

// Compile-time check to ensure Store satisfies the Backend interface
var _ storage.Backend = (*Store)(nil)

// New opens the database and creates the cache table.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	config.setDefaults()

	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}
	if !tableNamePattern.MatchString(config.TableName) {
		return nil, fmt.Errorf("invalid table name %q", config.TableName)
	}

	logger := config.Logger.WithComponent(logging.Component("sqlite-store"))
	logger.InfoContext(context.Background(), "Opening SQLite database",
		slog.String("data_source", config.DataSourceName),
		slog.Bool("wal_enabled", config.EnableWAL),
	)

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	store := &Store{db: db, tableName: config.TableName}
	if err := store.setupSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", err)
	}

	logger.InfoContext(context.Background(), "SQLite cache successfully initialized",
		slog.String("table_name", config.TableName),
	)
	return store, nil
}

func (s *Store) setupSchema() error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %[1]s (
        bucket_type TEXT NOT NULL,
        bucket      TEXT NOT NULL,
        key         TEXT NOT NULL,
        payload     TEXT NOT NULL,
        cached_at   TIMESTAMP NOT NULL,
        PRIMARY KEY (bucket_type, bucket, key)
    );
    CREATE INDEX IF NOT EXISTS idx_%[1]s_cached_at ON %[1]s (cached_at);
    `, s.tableName)
	_, err := s.db.Exec(query)
	return err
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrBackendClosed
	}
	return nil
}

// Put inserts or replaces the entry.
func (s *Store) Put(ctx context.Context, e storage.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	payload, err := storage.MarshalEntry(e)
	if err != nil {
		return kverrors.WrapOpComponent(err, opPut, component)
	}

	query := fmt.Sprintf(`INSERT INTO %s (bucket_type, bucket, key, payload, cached_at) VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (bucket_type, bucket, key) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, bucketType(e.Ref), e.Bucket, e.Key, string(payload), e.CachedAt.UTC()); err != nil {
		return kverrors.WrapOpComponentCode(err, opPut, component, kverrors.ErrCodeStorageFailure)
	}
	return nil
}

// Get returns the entry or storage.ErrNotCached.
func (s *Store) Get(ctx context.Context, ref storage.Ref) (storage.Entry, error) {
	if err := s.checkOpen(); err != nil {
		return storage.Entry{}, err
	}

	query := fmt.Sprintf(`SELECT payload FROM %s WHERE bucket_type = ? AND bucket = ? AND key = ?`, s.tableName)
	var payload string
	err := s.db.QueryRowContext(ctx, query, bucketType(ref), ref.Bucket, ref.Key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Entry{}, storage.ErrNotCached
	}
	if err != nil {
		return storage.Entry{}, kverrors.WrapOpComponentCode(err, opGet, component, kverrors.ErrCodeStorageFailure)
	}

	e, err := storage.UnmarshalEntry([]byte(payload))
	if err != nil {
		return storage.Entry{}, kverrors.WrapOpComponent(err, opGet, component)
	}
	return e, nil
}

// Delete removes the entry. Deleting a missing entry succeeds.
func (s *Store) Delete(ctx context.Context, ref storage.Ref) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE bucket_type = ? AND bucket = ? AND key = ?`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, bucketType(ref), ref.Bucket, ref.Key); err != nil {
		return kverrors.WrapOpComponentCode(err, opDelete, component, kverrors.ErrCodeStorageFailure)
	}
	return nil
}

// Prune removes entries cached before cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE cached_at < ?`, s.tableName)
	res, err := s.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, kverrors.WrapOpComponentCode(err, "sqlite.Prune", component, kverrors.ErrCodeStorageFailure)
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// Stats returns database statistics for monitoring
func (s *Store) Stats() sql.DBStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return sql.DBStats{}
	}

	return s.db.Stats()
}

func bucketType(r storage.Ref) string {
	if r.BucketType == "" {
		return siblingkit.DefaultBucketType
	}
	return r.BucketType
}
