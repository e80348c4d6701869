// Package s3 provides a storage.Backend that keeps cache entries as objects
// in an S3 bucket or an S3-compatible service such as MinIO.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	stdSync "sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
	"github.com/c0deZ3R0/go-sibling-kit/logging"
	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
	"github.com/c0deZ3R0/go-sibling-kit/storage"
)

const component = "storage/s3"

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region (default: us-east-1)
	Bucket          string // S3 bucket name
	Prefix          string // Key prefix for every entry (default: sibling-cache)
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)

	// CreateBucketIfNotExist creates the bucket on startup when missing.
	CreateBucketIfNotExist bool

	Logger *logging.Logger
}

// Backend is an S3 implementation of storage.Backend. Each entry is one
// JSON object under Prefix/bucketType/bucket/key.
type Backend struct {
	client *s3.Client
	bucket string
	prefix string

	mu     stdSync.RWMutex
	closed bool
}

var _ storage.Backend = (*Backend)(nil)

// New creates a new S3 storage backend
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.Prefix == "" {
		config.Prefix = "sibling-cache"
	}
	if config.Logger == nil {
		config.Logger = logging.Default()
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = config.UsePathStyle
	})

	if config.CreateBucketIfNotExist {
		if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(config.Bucket)}); err != nil {
			if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(config.Bucket)}); err != nil {
				return nil, fmt.Errorf("failed to create bucket: %w", err)
			}
		}
	}

	config.Logger.WithComponent(logging.Component("s3-store")).InfoContext(ctx, "S3 cache initialized",
		slog.String("bucket", config.Bucket),
		slog.String("prefix", config.Prefix),
		slog.String("endpoint", config.Endpoint))

	return NewWithClient(client, config.Bucket, config.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *s3.Client, bucket, prefix string) *Backend {
	return &Backend{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// ObjectKey returns the S3 key an entry for ref is stored under. Each
// segment is escaped so keys containing "/" cannot collide.
func (b *Backend) ObjectKey(ref storage.Ref) string {
	bt := ref.BucketType
	if bt == "" {
		bt = siblingkit.DefaultBucketType
	}
	return path.Join(b.prefix, escape(bt), escape(ref.Bucket), escape(ref.Key)+".json")
}

func escape(s string) string {
	r := strings.NewReplacer("%", "%25", "/", "%2F")
	return r.Replace(s)
}

func (b *Backend) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return storage.ErrBackendClosed
	}
	return nil
}

// Put uploads the entry, replacing any previous object.
func (b *Backend) Put(ctx context.Context, e storage.Entry) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	payload, err := storage.MarshalEntry(e)
	if err != nil {
		return kverrors.WrapOpComponent(err, "s3.Put", component)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.ObjectKey(e.Ref)),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return kverrors.WrapOpComponentCode(err, "s3.Put", component, kverrors.ErrCodeStorageFailure)
	}
	return nil
}

// Get downloads the entry or returns storage.ErrNotCached.
func (b *Backend) Get(ctx context.Context, ref storage.Ref) (storage.Entry, error) {
	if err := b.checkOpen(); err != nil {
		return storage.Entry{}, err
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.ObjectKey(ref)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return storage.Entry{}, storage.ErrNotCached
		}
		return storage.Entry{}, kverrors.WrapOpComponentCode(err, "s3.Get", component, kverrors.ErrCodeStorageFailure)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return storage.Entry{}, kverrors.WrapOpComponentCode(err, "s3.Get", component, kverrors.ErrCodeStorageFailure)
	}
	e, err := storage.UnmarshalEntry(payload)
	if err != nil {
		return storage.Entry{}, kverrors.WrapOpComponent(err, "s3.Get", component)
	}
	return e, nil
}

// Delete removes the entry. S3 reports success for missing keys.
func (b *Backend) Delete(ctx context.Context, ref storage.Ref) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.ObjectKey(ref)),
	})
	if err != nil {
		return kverrors.WrapOpComponentCode(err, "s3.Delete", component, kverrors.ErrCodeStorageFailure)
	}
	return nil
}

// Close marks the backend closed. The underlying client holds no resources.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
