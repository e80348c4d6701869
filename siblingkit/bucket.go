package siblingkit

import (
	"errors"

	"github.com/c0deZ3R0/go-sibling-kit/codec"
	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
	"github.com/c0deZ3R0/go-sibling-kit/logging"
)

// DefaultBucketType is the bucket type used when none is configured.
const DefaultBucketType = "default"

// Bucket describes a collection of objects: where they live, which codecs
// convert their payloads and how their conflicts are resolved. A Bucket is
// shared by every object created in it and should be configured before use.
type Bucket struct {
	name        string
	bucketType  string
	codecs      *codec.Registry
	resolver    Resolver
	autoResolve bool
	contentType string
	logger      *logging.Logger
	metrics     MetricsCollector
}

// BucketOption is a functional option for configuring a Bucket via NewBucket.
type BucketOption func(*Bucket) error

// WithBucketType sets the bucket type. Empty keeps DefaultBucketType.
func WithBucketType(t string) BucketOption {
	return func(b *Bucket) error {
		if t != "" {
			b.bucketType = t
		}
		return nil
	}
}

// WithCodecs sets the codec registry used by objects in the bucket.
func WithCodecs(r *codec.Registry) BucketOption {
	return func(b *Bucket) error {
		if r == nil {
			return errors.New("codec registry cannot be nil")
		}
		b.codecs = r
		return nil
	}
}

// WithDefaultResolver sets the bucket-level resolver.
func WithDefaultResolver(r Resolver) BucketOption {
	return func(b *Bucket) error {
		return b.SetResolver(r)
	}
}

// WithAutoResolve makes Reload and Store resolve conflicts automatically.
func WithAutoResolve(enabled bool) BucketOption {
	return func(b *Bucket) error {
		b.autoResolve = enabled
		return nil
	}
}

// WithDefaultContentType sets the content type of siblings created for new objects.
func WithDefaultContentType(ct string) BucketOption {
	return func(b *Bucket) error {
		b.contentType = ct
		return nil
	}
}

// WithLogger sets the logger used for object operations.
func WithLogger(l *logging.Logger) BucketOption {
	return func(b *Bucket) error {
		if l != nil {
			b.logger = l
		}
		return nil
	}
}

// WithMetrics sets the metrics collector used for object operations.
func WithMetrics(m MetricsCollector) BucketOption {
	return func(b *Bucket) error {
		if m != nil {
			b.metrics = m
		}
		return nil
	}
}

// NewBucket creates a bucket descriptor.
func NewBucket(name string, opts ...BucketOption) (*Bucket, error) {
	if name == "" {
		return nil, kverrors.NewValidationError(kverrors.OpConfig, errors.New("bucket name is required"))
	}

	b := &Bucket{
		name:        name,
		bucketType:  DefaultBucketType,
		codecs:      codec.DefaultRegistry,
		contentType: codec.ContentTypeBinary,
		metrics:     &NoOpMetricsCollector{},
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	if b.logger == nil {
		b.logger = logging.Default()
	}
	b.logger = b.logger.WithComponent("object")
	return b, nil
}

func (b *Bucket) Name() string { return b.name }

// Type returns the bucket type.
func (b *Bucket) Type() string { return b.bucketType }

// Codecs returns the codec registry consulted by siblings in this bucket.
func (b *Bucket) Codecs() *codec.Registry { return b.codecs }

// AutoResolve reports whether reloads resolve conflicts automatically.
func (b *Bucket) AutoResolve() bool { return b.autoResolve }

// DefaultContentType returns the content type given to new objects.
func (b *Bucket) DefaultContentType() string { return b.contentType }

// Logger returns the bucket's logger.
func (b *Bucket) Logger() *logging.Logger { return b.logger }

// Metrics returns the bucket's metrics collector.
func (b *Bucket) Metrics() MetricsCollector { return b.metrics }

// Resolver returns the bucket default, or DefaultResolver when none is set.
func (b *Bucket) Resolver() Resolver {
	if b.resolver != nil {
		return b.resolver
	}
	return DefaultResolver
}

// SetResolver replaces the bucket default. A nil Resolver clears it; a
// non-nil value that cannot be called is rejected and the previous resolver
// stays in place.
func (b *Bucket) SetResolver(r Resolver) error {
	if err := validateResolver(r); err != nil {
		return kverrors.NewInvalidResolverError(kverrors.OpSetResolver, "bucket")
	}
	b.resolver = r
	return nil
}

// NewObject creates an object in this bucket.
func (b *Bucket) NewObject(client StoreClient, opts ...ObjectOption) (*Object, error) {
	return NewObject(client, b, opts...)
}
