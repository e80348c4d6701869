package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
	"github.com/c0deZ3R0/go-sibling-kit/logging"
	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
)

// CachingOption configures a CachingClient.
type CachingOption func(*CachingClient)

// WithStaleOnError serves the cached entry when the upstream fetch fails
// with a retryable error. maxAge bounds how old that entry may be; zero
// means any age.
func WithStaleOnError(maxAge time.Duration) CachingOption {
	return func(c *CachingClient) {
		c.staleOnError = true
		c.maxStale = maxAge
	}
}

// WithCacheLogger sets the logger cache failures are reported to.
func WithCacheLogger(l *logging.Logger) CachingOption {
	return func(c *CachingClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// Cache events reported to CacheMetrics.
const (
	CacheStored        = "stored"
	CacheEvicted       = "evicted"
	CacheStaleServed   = "stale_served"
	CacheBackendFailed = "backend_failed"
)

// CacheMetrics receives one call per cache event.
type CacheMetrics interface {
	RecordCacheEvent(event string)
}

type noopCacheMetrics struct{}

func (noopCacheMetrics) RecordCacheEvent(string) {}

// WithCacheMetrics reports cache events to m.
func WithCacheMetrics(m CacheMetrics) CachingOption {
	return func(c *CachingClient) {
		if m != nil {
			c.metrics = m
		}
	}
}

// CachingClient is a write-through cache in front of a StoreClient. Cache
// failures are logged and never fail the round trip.
type CachingClient struct {
	next         siblingkit.StoreClient
	backend      Backend
	staleOnError bool
	maxStale     time.Duration
	logger       *logging.Logger
	metrics      CacheMetrics
	now          func() time.Time
}

var _ siblingkit.StoreClient = (*CachingClient)(nil)

// NewCachingClient wraps next with backend.
func NewCachingClient(next siblingkit.StoreClient, backend Backend, opts ...CachingOption) (*CachingClient, error) {
	if next == nil || backend == nil {
		e := kverrors.NewValidationError(kverrors.OpCache, errors.New("caching client requires a store client and a backend"))
		e.Component = "cache"
		return nil, e
	}
	c := &CachingClient{
		next:    next,
		backend: backend,
		logger:  logging.Default().WithComponent("cache"),
		metrics: noopCacheMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Backend returns the wrapped backend.
func (c *CachingClient) Backend() Backend { return c.backend }

// Fetch reads through to the store and records the result.
func (c *CachingClient) Fetch(ctx context.Context, req siblingkit.FetchRequest) (*siblingkit.FetchResponse, error) {
	ref := Ref{BucketType: req.BucketType, Bucket: req.Bucket, Key: req.Key}

	resp, err := c.next.Fetch(ctx, req)
	if err != nil {
		if stale, ok := c.stale(ctx, ref, err); ok {
			return stale, nil
		}
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	c.put(ctx, Entry{
		Ref:      ref,
		VClock:   resp.VClock,
		Exists:   resp.Exists,
		Siblings: siblingkit.CloneRaw(resp.Siblings),
		CachedAt: c.now(),
	})
	return resp, nil
}

// Store writes through. When the store returned the body the cache holds
// the new siblings; otherwise the entry is evicted, since a write without
// the current causal context may have added a sibling the client never saw.
func (c *CachingClient) Store(ctx context.Context, req siblingkit.StoreRequest) (*siblingkit.StoreResponse, error) {
	resp, err := c.next.Store(ctx, req)
	if err != nil || resp == nil {
		return resp, err
	}

	ref := Ref{BucketType: req.BucketType, Bucket: req.Bucket, Key: resp.Key}
	if len(resp.Siblings) > 0 {
		c.put(ctx, Entry{
			Ref:      ref,
			VClock:   resp.VClock,
			Exists:   true,
			Siblings: siblingkit.CloneRaw(resp.Siblings),
			CachedAt: c.now(),
		})
	} else {
		c.evict(ctx, ref)
	}
	return resp, nil
}

// Remove deletes through and evicts the entry.
func (c *CachingClient) Remove(ctx context.Context, req siblingkit.RemoveRequest) error {
	if err := c.next.Remove(ctx, req); err != nil {
		return err
	}
	c.evict(ctx, Ref{BucketType: req.BucketType, Bucket: req.Bucket, Key: req.Key})
	return nil
}

// Peek reads the cache without contacting the store.
func (c *CachingClient) Peek(ctx context.Context, ref Ref) (Entry, error) {
	return c.backend.Get(ctx, ref)
}

// Close closes the backend.
func (c *CachingClient) Close() error {
	return c.backend.Close()
}

func (c *CachingClient) stale(ctx context.Context, ref Ref, cause error) (*siblingkit.FetchResponse, bool) {
	if !c.staleOnError || !kverrors.IsRetryable(cause) {
		return nil, false
	}
	e, err := c.backend.Get(ctx, ref)
	if err != nil {
		if !errors.Is(err, ErrNotCached) {
			c.metrics.RecordCacheEvent(CacheBackendFailed)
			c.logger.LogError(ctx, kverrors.NewStorageError(kverrors.OpCache, err), "cache read failed",
				slog.String("ref", ref.String()))
		}
		return nil, false
	}
	age := c.now().Sub(e.CachedAt)
	if c.maxStale > 0 && age > c.maxStale {
		return nil, false
	}

	c.metrics.RecordCacheEvent(CacheStaleServed)
	c.logger.WarnContext(ctx, "serving stale entry",
		slog.String("ref", ref.String()),
		slog.Duration("age", age),
		slog.String("cause", cause.Error()))
	return &siblingkit.FetchResponse{Exists: e.Exists, VClock: e.VClock, Siblings: e.Siblings}, true
}

func (c *CachingClient) put(ctx context.Context, e Entry) {
	if err := c.backend.Put(ctx, e); err != nil {
		c.metrics.RecordCacheEvent(CacheBackendFailed)
		c.logger.LogError(ctx, kverrors.NewStorageError(kverrors.OpCache, err), "cache write failed",
			slog.String("ref", e.Ref.String()))
		return
	}
	c.metrics.RecordCacheEvent(CacheStored)
}

func (c *CachingClient) evict(ctx context.Context, ref Ref) {
	if err := c.backend.Delete(ctx, ref); err != nil {
		c.metrics.RecordCacheEvent(CacheBackendFailed)
		c.logger.LogError(ctx, kverrors.NewStorageError(kverrors.OpCache, err), "cache eviction failed",
			slog.String("ref", ref.String()))
		return
	}
	c.metrics.RecordCacheEvent(CacheEvicted)
}
