package siblingkit

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

import (
	"context"
	"time"

	"github.com/c0deZ3R0/go-sibling-kit/version"
)

// StoreClient performs the round trips against the backing store. It is the
// only I/O boundary the object model depends on.
type StoreClient interface {
	// Fetch reads every sibling stored under a key. A missing key is reported
	// with Exists set to false, not as an error.
	Fetch(ctx context.Context, req FetchRequest) (*FetchResponse, error)

	// Store writes one sibling. An empty Key asks the store to assign one.
	Store(ctx context.Context, req StoreRequest) (*StoreResponse, error)

	// Remove deletes a key. Removing a missing key succeeds.
	Remove(ctx context.Context, req RemoveRequest) error
}

// RawContent is the wire-neutral form of one sibling.
type RawContent struct {
	ContentType     string            `json:"content_type,omitempty"`
	Charset         string            `json:"charset,omitempty"`
	ContentEncoding string            `json:"content_encoding,omitempty"`
	LastModified    time.Time         `json:"last_modified"`
	Etag            string            `json:"etag,omitempty"`
	UserMeta        map[string]string `json:"user_meta,omitempty"`
	Indexes         []Index           `json:"indexes,omitempty"`
	Links           []Link            `json:"links,omitempty"`
	Deleted         bool              `json:"deleted,omitempty"`
	Value           []byte            `json:"value"`
}

// Clone returns a deep copy of r.
func (r RawContent) Clone() RawContent {
	out := r
	out.UserMeta = copyMeta(r.UserMeta)
	if r.Indexes != nil {
		out.Indexes = append([]Index(nil), r.Indexes...)
	}
	if r.Links != nil {
		out.Links = append([]Link(nil), r.Links...)
	}
	if r.Value != nil {
		out.Value = append([]byte{}, r.Value...)
	}
	return out
}

// CloneRaw deep-copies a sibling list.
func CloneRaw(siblings []RawContent) []RawContent {
	if siblings == nil {
		return nil
	}
	out := make([]RawContent, len(siblings))
	for i, s := range siblings {
		out[i] = s.Clone()
	}
	return out
}

// FetchRequest identifies the key to read.
type FetchRequest struct {
	BucketType string
	Bucket     string
	Key        string
}

// FetchResponse carries the stored siblings and causal context of a key.
type FetchResponse struct {
	Exists   bool
	VClock   version.VClock
	Siblings []RawContent
}

// StoreRequest carries one sibling and the causal context it was derived from.
type StoreRequest struct {
	BucketType string
	Bucket     string
	Key        string
	VClock     version.VClock
	Content    RawContent
	ReturnBody bool
}

// StoreResponse reports the key and causal context after a write. Siblings is
// only populated when the request asked for the body back.
type StoreResponse struct {
	Key      string
	VClock   version.VClock
	Siblings []RawContent
}

// RemoveRequest identifies the key to delete.
type RemoveRequest struct {
	BucketType string
	Bucket     string
	Key        string
	VClock     version.VClock
}
