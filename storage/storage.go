// Package storage caches fetched objects outside the store. A Backend holds
// Entry values keyed by bucket type, bucket and key; CachingClient keeps a
// Backend in step with a siblingkit.StoreClient.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
	"github.com/c0deZ3R0/go-sibling-kit/version"
)

var (
	// ErrNotCached is returned by Backend.Get when no entry exists.
	ErrNotCached = errors.New("entry not cached")

	// ErrBackendClosed is returned by a Backend after Close.
	ErrBackendClosed = errors.New("backend is closed")
)

// Ref names one key of the store.
type Ref struct {
	BucketType string `json:"bucket_type"`
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
}

// String returns "type/bucket/key" for logs. Segments are not escaped, so
// distinct refs may print alike; use Path to index entries.
func (r Ref) String() string {
	return r.bucketType() + "/" + r.Bucket + "/" + r.Key
}

// Path returns "type/bucket/key" with each segment path-escaped. Bucket names
// and keys may contain "/", so backends index entries by Path rather than
// String.
func (r Ref) Path() string {
	return url.PathEscape(r.bucketType()) + "/" + url.PathEscape(r.Bucket) + "/" + url.PathEscape(r.Key)
}

func (r Ref) bucketType() string {
	if r.BucketType == "" {
		return siblingkit.DefaultBucketType
	}
	return r.BucketType
}

// Entry is the cached state of one key.
type Entry struct {
	Ref
	VClock   version.VClock          `json:"vclock"`
	Exists   bool                    `json:"exists"`
	Siblings []siblingkit.RawContent `json:"siblings,omitempty"`
	CachedAt time.Time               `json:"cached_at"`
}

// Backend stores entries. Implementations are safe for concurrent use.
type Backend interface {
	Put(ctx context.Context, e Entry) error
	Get(ctx context.Context, ref Ref) (Entry, error)
	Delete(ctx context.Context, ref Ref) error
	Close() error
}

// MarshalEntry encodes an entry for backends that persist bytes.
func MarshalEntry(e Entry) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry %s: %w", e.Ref, err)
	}
	return b, nil
}

// UnmarshalEntry decodes bytes produced by MarshalEntry.
func UnmarshalEntry(b []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return e, nil
}

func (e Entry) clone() Entry {
	e.Siblings = siblingkit.CloneRaw(e.Siblings)
	return e
}
