package siblingkit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
)

var (
	_ Resolver = (*LastWriteWinsResolver)(nil)
	_ Resolver = (*DropTombstonesResolver)(nil)
	_ Resolver = (*ManualReviewResolver)(nil)
	_ Resolver = (*MergeResolver)(nil)
)

// DefaultResolver returns the object unchanged, leaving any conflict visible
// to the caller.
var DefaultResolver Resolver = ResolverFunc(func(_ context.Context, o *Object) (*Object, error) {
	return o, nil
})

// LastWriteWinsResolver keeps the sibling with the latest LastModified.
// Ties keep the earliest sibling, except that a live sibling beats a
// tombstone with the same timestamp.
type LastWriteWinsResolver struct{}

func (r *LastWriteWinsResolver) Resolve(_ context.Context, o *Object) (*Object, error) {
	siblings := o.siblings
	if len(siblings) <= 1 {
		return o, nil
	}
	best := siblings[0]
	for _, c := range siblings[1:] {
		switch {
		case c.lastModified.After(best.lastModified):
			best = c
		case c.lastModified.Equal(best.lastModified) && best.deleted && !c.deleted:
			best = c
		}
	}
	return o.WithSiblings(best), nil
}

// DropTombstonesResolver removes deleted siblings as long as at least one
// live sibling remains.
type DropTombstonesResolver struct{}

func (r *DropTombstonesResolver) Resolve(_ context.Context, o *Object) (*Object, error) {
	live := make([]*Content, 0, len(o.siblings))
	for _, c := range o.siblings {
		if !c.deleted {
			live = append(live, c)
		}
	}
	if len(live) == 0 || len(live) == len(o.siblings) {
		return o, nil
	}
	return o.WithSiblings(live...), nil
}

// ManualReviewResolver refuses to pick a winner. Resolve returns a conflict
// error so the siblings stay in place for the application to inspect.
type ManualReviewResolver struct{ Reason string }

func (r *ManualReviewResolver) Resolve(_ context.Context, o *Object) (*Object, error) {
	if len(o.siblings) <= 1 {
		return o, nil
	}
	err := kverrors.NewConflictError(kverrors.OpResolve, len(o.siblings))
	err.Component = "resolver"
	err.WithMetadata("decision", "manual_review")
	if r.Reason != "" {
		err.WithMetadata("reason", r.Reason)
	}
	return nil, err
}

// MergeFunc folds two decoded sibling values into one.
type MergeFunc func(acc, next any) (any, error)

// MergeResolver decodes every sibling and folds the values with Fn into a
// single new sibling carrying the first sibling's content type and charset.
type MergeResolver struct {
	Fn MergeFunc
}

// NewMergeResolver returns a MergeResolver folding with fn.
func NewMergeResolver(fn MergeFunc) *MergeResolver {
	return &MergeResolver{Fn: fn}
}

func (r *MergeResolver) Resolve(_ context.Context, o *Object) (*Object, error) {
	if len(o.siblings) <= 1 {
		return o, nil
	}
	if r.Fn == nil {
		return nil, kverrors.NewInvalidResolverError(kverrors.OpResolve, "resolver")
	}

	first := o.siblings[0]
	acc, err := first.Data()
	if err != nil {
		return nil, err
	}
	for _, c := range o.siblings[1:] {
		next, err := c.Data()
		if err != nil {
			return nil, err
		}
		if acc, err = r.Fn(acc, next); err != nil {
			return nil, err
		}
	}

	merged := NewContent(first.contentType)
	merged.charset = first.charset
	merged.SetData(acc)
	return o.WithSiblings(merged), nil
}

// Names under which the built-in resolvers are registered.
const (
	ResolverDefault        = "default"
	ResolverLastWriteWins  = "last_write_wins"
	ResolverDropTombstones = "drop_tombstones"
	ResolverManualReview   = "manual_review"
)

var resolverRegistry = struct {
	mu sync.RWMutex
	m  map[string]Resolver
}{
	m: map[string]Resolver{
		ResolverDefault:        DefaultResolver,
		ResolverLastWriteWins:  &LastWriteWinsResolver{},
		"lww":                  &LastWriteWinsResolver{},
		ResolverDropTombstones: &DropTombstonesResolver{},
		ResolverManualReview:   &ManualReviewResolver{},
	},
}

// RegisterResolver makes r available to ResolverByName and bucket
// configuration files under name. Names are case-insensitive.
func RegisterResolver(name string, r Resolver) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return kverrors.NewValidationError(kverrors.OpConfig, fmt.Errorf("resolver name is required"))
	}
	if r == nil || validateResolver(r) != nil {
		return kverrors.NewInvalidResolverError(kverrors.OpConfig, "resolver").WithMetadata("name", name)
	}
	resolverRegistry.mu.Lock()
	defer resolverRegistry.mu.Unlock()
	resolverRegistry.m[name] = r
	return nil
}

// ResolverByName looks up a registered resolver.
func ResolverByName(name string) (Resolver, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	resolverRegistry.mu.RLock()
	defer resolverRegistry.mu.RUnlock()
	r, ok := resolverRegistry.m[key]
	if !ok {
		return nil, kverrors.NewInvalidResolverError(kverrors.OpConfig, "resolver").WithMetadata("name", name)
	}
	return r, nil
}
