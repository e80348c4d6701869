// Package pebble provides a storage.Backend on an embedded Pebble LSM store.
package pebble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdSync "sync"

	"github.com/cockroachdb/pebble"

	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
	"github.com/c0deZ3R0/go-sibling-kit/logging"
	"github.com/c0deZ3R0/go-sibling-kit/storage"
)

const component = "storage/pebble"

// keyPrefix namespaces cache entries inside the database.
const keyPrefix = "sibling/"

// Config holds configuration options for the Store.
type Config struct {
	// Path is the directory holding the database.
	Path string

	// Sync makes every write durable before it returns. Defaults to false,
	// which is enough for a cache.
	Sync bool

	// Logger receives lifecycle logs. Defaults to logging.Default().
	Logger *logging.Logger

	// Options are passed to pebble.Open. Nil uses pebble's defaults.
	Options *pebble.Options
}

// Store implements storage.Backend on Pebble.
type Store struct {
	db        *pebble.DB
	mu        stdSync.RWMutex
	closed    bool
	writeOpts *pebble.WriteOptions
}

var _ storage.Backend = (*Store)(nil)

// New opens or creates the database at config.Path.
func New(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if config.Logger == nil {
		config.Logger = logging.Default()
	}
	opts := config.Options
	if opts == nil {
		opts = &pebble.Options{}
	}

	db, err := pebble.Open(config.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}

	config.Logger.WithComponent(logging.Component("pebble-store")).InfoContext(context.Background(),
		"Pebble cache successfully initialized",
		slog.String("path", config.Path),
		slog.Bool("sync", config.Sync))

	writeOpts := pebble.NoSync
	if config.Sync {
		writeOpts = pebble.Sync
	}
	return &Store{db: db, writeOpts: writeOpts}, nil
}

func dbKey(ref storage.Ref) []byte {
	return []byte(keyPrefix + ref.Path())
}

// Put inserts or replaces the entry.
func (s *Store) Put(ctx context.Context, e storage.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrBackendClosed
	}

	payload, err := storage.MarshalEntry(e)
	if err != nil {
		return kverrors.WrapOpComponent(err, "pebble.Put", component)
	}
	if err := s.db.Set(dbKey(e.Ref), payload, s.writeOpts); err != nil {
		return kverrors.WrapOpComponentCode(err, "pebble.Put", component, kverrors.ErrCodeStorageFailure)
	}
	return nil
}

// Get returns the entry or storage.ErrNotCached.
func (s *Store) Get(ctx context.Context, ref storage.Ref) (storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return storage.Entry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.Entry{}, storage.ErrBackendClosed
	}

	value, closer, err := s.db.Get(dbKey(ref))
	if errors.Is(err, pebble.ErrNotFound) {
		return storage.Entry{}, storage.ErrNotCached
	}
	if err != nil {
		return storage.Entry{}, kverrors.WrapOpComponentCode(err, "pebble.Get", component, kverrors.ErrCodeStorageFailure)
	}
	// value is only valid until closer is closed
	e, err := storage.UnmarshalEntry(value)
	closer.Close()
	if err != nil {
		return storage.Entry{}, kverrors.WrapOpComponent(err, "pebble.Get", component)
	}
	return e, nil
}

// Delete removes the entry. Deleting a missing entry succeeds.
func (s *Store) Delete(ctx context.Context, ref storage.Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrBackendClosed
	}

	if err := s.db.Delete(dbKey(ref), s.writeOpts); err != nil {
		return kverrors.WrapOpComponentCode(err, "pebble.Delete", component, kverrors.ErrCodeStorageFailure)
	}
	return nil
}

// Flush forces buffered writes to disk.
func (s *Store) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrBackendClosed
	}
	return s.db.Flush()
}

// Close closes the database. Pebble panics on use after close, so every
// operation checks the closed flag under the read lock first.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
