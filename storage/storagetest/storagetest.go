// Package storagetest checks storage.Backend implementations against the
// behaviour CachingClient relies on.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
	"github.com/c0deZ3R0/go-sibling-kit/storage"
	"github.com/c0deZ3R0/go-sibling-kit/version"
)

// SampleEntry returns an entry exercising every sibling field.
func SampleEntry(key string) storage.Entry {
	return storage.Entry{
		Ref:    storage.Ref{BucketType: "maps", Bucket: "carts", Key: key},
		VClock: version.NewVClock([]byte("a85hYGBgzGDKBVIcR4M2cgczH7HPYEpkzGNlsP")),
		Exists: true,
		Siblings: []siblingkit.RawContent{
			{
				ContentType:  "application/json",
				Charset:      "utf-8",
				LastModified: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
				Etag:         "1a2b",
				UserMeta:     map[string]string{"owner": "alice"},
				Indexes:      []siblingkit.Index{{Field: "user_bin", Value: "alice"}},
				Links:        []siblingkit.Link{{Bucket: "users", Key: "alice", Tag: "owner"}},
				Value:        []byte(`{"items":["apple"]}`),
			},
			{
				ContentType:  "application/json",
				LastModified: time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC),
				Deleted:      true,
				Value:        []byte{},
			},
		},
		CachedAt: time.Date(2024, 5, 1, 10, 2, 0, 0, time.UTC),
	}
}

// Run exercises a fresh backend returned by newBackend for each subtest.
// newBackend is responsible for cleanup of anything but Close.
func Run(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		want := SampleEntry("cart:1")
		require.NoError(t, b.Put(ctx, want))

		got, err := b.Get(ctx, want.Ref)
		require.NoError(t, err)
		AssertEntryEqual(t, want, got)
	})

	t.Run("miss", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		_, err := b.Get(ctx, storage.Ref{Bucket: "carts", Key: "missing"})
		assert.True(t, errors.Is(err, storage.ErrNotCached), "got %v", err)
	})

	t.Run("overwrite", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		first := SampleEntry("cart:2")
		require.NoError(t, b.Put(ctx, first))

		second := SampleEntry("cart:2")
		second.Siblings = second.Siblings[:1]
		second.VClock = version.NewVClock([]byte("newer"))
		require.NoError(t, b.Put(ctx, second))

		got, err := b.Get(ctx, second.Ref)
		require.NoError(t, err)
		AssertEntryEqual(t, second, got)
	})

	t.Run("not found entry", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		absent := storage.Entry{Ref: storage.Ref{Bucket: "carts", Key: "gone"}, CachedAt: time.Now().UTC().Truncate(time.Second)}
		require.NoError(t, b.Put(ctx, absent))
		got, err := b.Get(ctx, absent.Ref)
		require.NoError(t, err)
		assert.False(t, got.Exists)
		assert.Empty(t, got.Siblings)
	})

	t.Run("delete", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		e := SampleEntry("cart:3")
		require.NoError(t, b.Put(ctx, e))
		require.NoError(t, b.Delete(ctx, e.Ref))
		_, err := b.Get(ctx, e.Ref)
		assert.True(t, errors.Is(err, storage.ErrNotCached))

		assert.NoError(t, b.Delete(ctx, e.Ref), "deleting a missing entry succeeds")
	})

	t.Run("refs are distinct", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		a := SampleEntry("k")
		other := SampleEntry("k")
		other.Ref.BucketType = "default"
		other.Siblings = other.Siblings[:1]
		require.NoError(t, b.Put(ctx, a))
		require.NoError(t, b.Put(ctx, other))

		got, err := b.Get(ctx, a.Ref)
		require.NoError(t, err)
		assert.Len(t, got.Siblings, 2)
	})

	t.Run("slashes in names do not collide", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		nested := SampleEntry("1")
		nested.Ref.Bucket = "users/admin"
		require.NoError(t, b.Put(ctx, nested))

		_, err := b.Get(ctx, storage.Ref{BucketType: nested.Ref.BucketType, Bucket: "users", Key: "admin/1"})
		assert.True(t, errors.Is(err, storage.ErrNotCached))

		flat := SampleEntry("admin/1")
		flat.Ref.Bucket = "users"
		flat.Siblings = flat.Siblings[:1]
		require.NoError(t, b.Put(ctx, flat))

		got, err := b.Get(ctx, nested.Ref)
		require.NoError(t, err)
		assert.Len(t, got.Siblings, 2)
		got, err = b.Get(ctx, flat.Ref)
		require.NoError(t, err)
		assert.Len(t, got.Siblings, 1)

		require.NoError(t, b.Delete(ctx, flat.Ref))
		_, err = b.Get(ctx, nested.Ref)
		assert.NoError(t, err)
	})

	t.Run("concurrent", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				e := SampleEntry(fmt.Sprintf("c:%d", i))
				if err := b.Put(ctx, e); err != nil {
					errs <- err
					return
				}
				if _, err := b.Get(ctx, e.Ref); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	})

	t.Run("closed", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Close())
		assert.Error(t, b.Put(ctx, SampleEntry("x")))
	})
}

// AssertEntryEqual compares entries, treating timestamps by instant.
func AssertEntryEqual(t *testing.T, want, got storage.Entry) {
	t.Helper()
	assert.Equal(t, want.Ref, got.Ref)
	assert.True(t, want.VClock.Equal(got.VClock), "vclock %s != %s", want.VClock, got.VClock)
	assert.Equal(t, want.Exists, got.Exists)
	assert.True(t, want.CachedAt.Equal(got.CachedAt), "cached_at %v != %v", want.CachedAt, got.CachedAt)

	require.Len(t, got.Siblings, len(want.Siblings))
	for i := range want.Siblings {
		w, g := want.Siblings[i], got.Siblings[i]
		assert.True(t, w.LastModified.Equal(g.LastModified))
		w.LastModified, g.LastModified = time.Time{}, time.Time{}
		assert.Equal(t, w, g)
	}
}
