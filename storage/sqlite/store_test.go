package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sibling-kit/logging"
	"github.com/c0deZ3R0/go-sibling-kit/storage"
	"github.com/c0deZ3R0/go-sibling-kit/storage/storagetest"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	config := DefaultConfig(filepath.Join(t.TempDir(), "cache.db"))
	config.Logger = logging.Discard()
	store, err := New(config)
	require.NoError(t, err)
	return store
}

func TestStoreBackend(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return setupTestDB(t)
	})
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("cache.db")
	assert.True(t, config.EnableWAL)
	assert.Equal(t, "sibling_cache", config.TableName)
	assert.Equal(t, 25, config.MaxOpenConns)
	assert.Equal(t, 5, config.MaxIdleConns)
	assert.Equal(t, time.Hour, config.ConnMaxLifetime)
	assert.Equal(t, 5*time.Minute, config.ConnMaxIdleTime)
	assert.True(t, strings.Contains(config.DataSourceName, "_journal_mode=WAL"))
	assert.True(t, strings.Contains(config.DataSourceName, "_busy_timeout=5000"))
	assert.Equal(t, "cache.db?_journal_mode=WAL&_busy_timeout=5000", config.DataSourceName)

	config = DefaultConfig("file:cache.db?cache=shared&_journal_mode=DELETE")
	assert.Equal(t, "file:cache.db?cache=shared&_journal_mode=DELETE&_busy_timeout=5000", config.DataSourceName)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{})
	assert.Error(t, err)

	_, err = New(&Config{DataSourceName: filepath.Join(t.TempDir(), "x.db"), TableName: "cache; DROP TABLE x", Logger: logging.Discard()})
	assert.Error(t, err)
}

func TestCustomTableName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := New(&Config{DataSourceName: path, TableName: "riak_cache", Logger: logging.Discard()})
	require.NoError(t, err)
	defer store.Close()

	e := storagetest.SampleEntry("k")
	require.NoError(t, store.Put(context.Background(), e))

	var n int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM riak_cache`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := NewWithDataSource(path)
	require.NoError(t, err)
	e := storagetest.SampleEntry("cart:1")
	require.NoError(t, store.Put(ctx, e))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "closing twice is a no-op")

	store, err = NewWithDataSource(path)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Get(ctx, e.Ref)
	require.NoError(t, err)
	storagetest.AssertEntryEqual(t, e, got)
}

func TestPrune(t *testing.T) {
	store := setupTestDB(t)
	defer store.Close()
	ctx := context.Background()

	old := storagetest.SampleEntry("old")
	old.CachedAt = time.Now().Add(-2 * time.Hour)
	fresh := storagetest.SampleEntry("fresh")
	fresh.CachedAt = time.Now()
	require.NoError(t, store.Put(ctx, old))
	require.NoError(t, store.Put(ctx, fresh))

	n, err := store.Prune(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, old.Ref)
	assert.ErrorIs(t, err, storage.ErrNotCached)
	_, err = store.Get(ctx, fresh.Ref)
	assert.NoError(t, err)
}

func TestPutContextCancellation(t *testing.T) {
	store := setupTestDB(t)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.Put(ctx, storagetest.SampleEntry("k"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStats(t *testing.T) {
	store := setupTestDB(t)
	assert.Equal(t, 25, store.Stats().MaxOpenConnections)
	require.NoError(t, store.Close())
	assert.Equal(t, 0, store.Stats().MaxOpenConnections)
}
