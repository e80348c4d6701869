package pebble

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sibling-kit/logging"
	"github.com/c0deZ3R0/go-sibling-kit/storage"
	"github.com/c0deZ3R0/go-sibling-kit/storage/storagetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "cache"),
		Logger:  logging.Discard(),
		Options: &pebble.Options{ErrorIfExists: true},
	})
	require.NoError(t, err)
	return s
}

func TestStoreBackend(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return newTestStore(t)
	})
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	ctx := context.Background()

	s, err := New(Config{Path: path, Sync: true, Logger: logging.Discard()})
	require.NoError(t, err)
	e := storagetest.SampleEntry("cart:1")
	require.NoError(t, s.Put(ctx, e))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s, err = New(Config{Path: path, Logger: logging.Discard()})
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, e.Ref)
	require.NoError(t, err)
	storagetest.AssertEntryEqual(t, e, got)
}

func TestUseAfterClose(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	ctx := context.Background()
	_, err := s.Get(ctx, storage.Ref{Bucket: "b", Key: "k"})
	assert.ErrorIs(t, err, storage.ErrBackendClosed)
	assert.ErrorIs(t, s.Delete(ctx, storage.Ref{Bucket: "b", Key: "k"}), storage.ErrBackendClosed)
	assert.ErrorIs(t, s.Flush(), storage.ErrBackendClosed)
}
