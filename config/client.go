package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c0deZ3R0/go-sibling-kit/logging"
	"github.com/c0deZ3R0/go-sibling-kit/metrics"
	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
	"github.com/c0deZ3R0/go-sibling-kit/storage"
	pebblestore "github.com/c0deZ3R0/go-sibling-kit/storage/pebble"
	pgstore "github.com/c0deZ3R0/go-sibling-kit/storage/postgres"
	s3store "github.com/c0deZ3R0/go-sibling-kit/storage/s3"
	sqlitestore "github.com/c0deZ3R0/go-sibling-kit/storage/sqlite"
	"github.com/c0deZ3R0/go-sibling-kit/transport/httptransport"
	"github.com/c0deZ3R0/go-sibling-kit/transport/retry"
)

// Client is the assembled client stack. Requests flow from the cache, through
// the retrier, to the transport; absent layers are skipped.
type Client struct {
	// Store is what objects talk to.
	Store     siblingkit.StoreClient
	Transport *httptransport.TransportClient
	// Retry is nil when retries are disabled.
	Retry *retry.Client
	// Cache is nil when no cache backend is configured.
	Cache *storage.CachingClient
	// Buckets holds the buckets from BucketsFile, keyed by name.
	Buckets map[string]*siblingkit.Bucket
	// Metrics is nil unless metrics are enabled.
	Metrics *metrics.Prometheus
	Logger  *logging.Logger
}

// Option customises NewClient.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	logger     *logging.Logger
	transport  []httptransport.TransportClientOption
}

// WithRegisterer registers metrics with reg instead of the default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithClientLogger overrides the logger built from Config.Log.
func WithClientLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTransportOptions appends transport options after the configured ones.
func WithTransportOptions(opts ...httptransport.TransportClientOption) Option {
	return func(o *options) { o.transport = append(o.transport, opts...) }
}

// NewClient builds the transport, the optional cache and metrics, and the
// configured buckets. Close releases the cache backend.
func NewClient(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, configError(errors.New("config cannot be nil"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = logging.NewLogger(cfg.Log)
	}

	c := &Client{Logger: logger}

	if cfg.Metrics.Enabled {
		m, err := metrics.NewPrometheus(o.registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		c.Metrics = m
	}

	transportOpts := []httptransport.TransportClientOption{
		httptransport.WithTimeout(cfg.Timeout),
		httptransport.WithLimits(httptransport.Limits{MaxBodyBytes: cfg.MaxBodyBytes, MaxSiblings: cfg.MaxSiblings}),
		httptransport.WithClientID(cfg.ClientID),
		httptransport.WithLogger(logger.WithComponent("transport")),
	}
	c.Transport = httptransport.NewTransportClient(cfg.Endpoint, append(transportOpts, o.transport...)...)
	c.Store = c.Transport

	if cfg.Retry.MaxAttempts > 1 {
		c.Retry = retry.New(c.Transport, retry.Config{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   cfg.Retry.Multiplier,
			RetryStores:  cfg.Retry.Stores,
		}, logger.WithComponent("retry"))
		c.Store = c.Retry
	}

	backend, err := openBackend(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		cacheOpts := []storage.CachingOption{storage.WithCacheLogger(logger.WithComponent("cache"))}
		if cfg.Cache.StaleOnError {
			cacheOpts = append(cacheOpts, storage.WithStaleOnError(cfg.Cache.MaxStale))
		}
		if c.Metrics != nil {
			cacheOpts = append(cacheOpts, storage.WithCacheMetrics(c.Metrics))
		}
		cache, err := storage.NewCachingClient(c.Store, backend, cacheOpts...)
		if err != nil {
			backend.Close()
			return nil, err
		}
		c.Cache = cache
		c.Store = cache
	}

	if cfg.BucketsFile != "" {
		bc, err := siblingkit.LoadBucketConfig(cfg.BucketsFile)
		if err != nil {
			c.Close()
			return nil, err
		}
		bucketOpts := []siblingkit.BucketOption{siblingkit.WithLogger(logger)}
		if c.Metrics != nil {
			bucketOpts = append(bucketOpts, siblingkit.WithMetrics(c.Metrics))
		}
		if c.Buckets, err = bc.Build(bucketOpts...); err != nil {
			c.Close()
			return nil, err
		}
	}

	logger.InfoContext(ctx, "client ready",
		slog.String("endpoint", c.Transport.BaseURL()),
		slog.String("cache", cfg.Cache.Backend),
		slog.Int("buckets", len(c.Buckets)),
		slog.Bool("metrics", c.Metrics != nil))
	return c, nil
}

// Bucket returns a configured bucket, or a new bucket with default settings
// and the client's logger and metrics when name is not configured.
func (c *Client) Bucket(name string) (*siblingkit.Bucket, error) {
	if b, ok := c.Buckets[name]; ok {
		return b, nil
	}
	opts := []siblingkit.BucketOption{siblingkit.WithLogger(c.Logger)}
	if c.Metrics != nil {
		opts = append(opts, siblingkit.WithMetrics(c.Metrics))
	}
	return siblingkit.NewBucket(name, opts...)
}

// Close releases the cache backend, if any.
func (c *Client) Close() error {
	if c.Cache == nil {
		return nil
	}
	return c.Cache.Close()
}

func openBackend(ctx context.Context, cfg CacheConfig, logger *logging.Logger) (storage.Backend, error) {
	var (
		backend storage.Backend
		err     error
	)
	switch cfg.Backend {
	case CacheNone, "":
		return nil, nil
	case CacheMemory:
		return storage.NewMemoryBackend(), nil
	case CacheSQLite:
		sc := sqlitestore.DefaultConfig(cfg.DSN)
		sc.Logger = logger
		backend, err = sqlitestore.New(sc)
	case CachePostgres:
		pc := pgstore.DefaultConfig(cfg.DSN)
		pc.Logger = logger
		backend, err = pgstore.New(pc)
	case CachePebble:
		backend, err = pebblestore.New(pebblestore.Config{Path: cfg.DSN, Logger: logger})
	case CacheS3:
		backend, err = s3store.New(ctx, s3store.Config{
			Region:                 cfg.S3.Region,
			Bucket:                 cfg.S3.Bucket,
			Prefix:                 cfg.S3.Prefix,
			AccessKeyID:            cfg.S3.AccessKeyID,
			SecretAccessKey:        cfg.S3.SecretAccessKey,
			Endpoint:               cfg.S3.Endpoint,
			UsePathStyle:           cfg.S3.UsePathStyle,
			CreateBucketIfNotExist: cfg.S3.CreateBucket,
			Logger:                 logger,
		})
	default:
		return nil, configError(fmt.Errorf("unknown cache backend %q", cfg.Backend))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache: %w", cfg.Backend, err)
	}
	return backend, nil
}
