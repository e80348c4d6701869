// Package httptransport implements siblingkit.StoreClient over the Riak
// HTTP API. Siblings travel as multipart/mixed bodies; per-sibling metadata
// travels in headers.
package httptransport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
	"github.com/c0deZ3R0/go-sibling-kit/logging"
	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
)

// TracerName is the instrumentation name of the default tracer.
const TracerName = "github.com/c0deZ3R0/go-sibling-kit/transport/httptransport"

// errResponseTooLarge is returned when a response body exceeds Limits.MaxBodyBytes.
var errResponseTooLarge = errors.New("response body exceeds maximum size limit")

// StatusError describes an unexpected HTTP status returned by the store.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// TransportClient talks to one Riak HTTP endpoint.
type TransportClient struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	limits   Limits
	clientID string
	tracer   trace.Tracer
	logger   *logging.Logger
}

var _ siblingkit.StoreClient = (*TransportClient)(nil)

// NewTransportClient creates a client for the store at baseURL, for example
// "http://127.0.0.1:8098".
func NewTransportClient(baseURL string, opts ...TransportClientOption) *TransportClient {
	c := &TransportClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  30 * time.Second,
		limits:   DefaultLimits(),
		clientID: uuid.NewString(),
		tracer:   otel.Tracer(TracerName),
		logger:   logging.Default().WithComponent("transport"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = newHTTPClient(c.timeout)
	}
	return c
}

// newHTTPClient disables transparent decompression so a stored
// Content-Encoding reaches the caller untouched.
func newHTTPClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DisableCompression = true
	return &http.Client{Transport: tr, Timeout: timeout}
}

// BaseURL returns the endpoint the client talks to.
func (c *TransportClient) BaseURL() string { return c.baseURL }

// HTTPClient returns the underlying http.Client.
func (c *TransportClient) HTTPClient() *http.Client { return c.http }

// Limits returns the response limits in effect.
func (c *TransportClient) Limits() Limits { return c.limits }

// ClientID returns the X-Riak-ClientId sent with every request.
func (c *TransportClient) ClientID() string { return c.clientID }

// Fetch reads every sibling stored under a key.
func (c *TransportClient) Fetch(ctx context.Context, req siblingkit.FetchRequest) (*siblingkit.FetchResponse, error) {
	ctx, span := c.startSpan(ctx, "riak.fetch", req.BucketType, req.Bucket, req.Key)
	defer span.End()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.keyURL(req.BucketType, req.Bucket, req.Key), nil)
	if err != nil {
		return nil, c.fail(span, kverrors.NewWithComponent(kverrors.OpReload, "transport", fmt.Errorf("failed to create request: %w", err)))
	}
	httpReq.Header.Set("Accept", ContentTypeMultipart+", */*;q=0.5")

	resp, err := c.do(ctx, span, kverrors.OpReload, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	vc, err := VClockFromHeader(resp.Header)
	if err != nil {
		return nil, c.fail(span, c.protocolError(kverrors.OpReload, err))
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &siblingkit.FetchResponse{Exists: false, VClock: vc}, nil
	case http.StatusOK, http.StatusMultipleChoices:
		siblings, err := c.readSiblings(resp)
		if err != nil {
			return nil, c.fail(span, c.protocolError(kverrors.OpReload, err))
		}
		span.SetAttributes(attribute.Int("riak.siblings", len(siblings)))
		return &siblingkit.FetchResponse{Exists: true, VClock: vc, Siblings: siblings}, nil
	default:
		return nil, c.fail(span, c.statusError(kverrors.OpReload, resp))
	}
}

// Store writes one sibling. An empty key is sent as a POST and the key the
// store assigned is read back from the Location header.
func (c *TransportClient) Store(ctx context.Context, req siblingkit.StoreRequest) (*siblingkit.StoreResponse, error) {
	ctx, span := c.startSpan(ctx, "riak.store", req.BucketType, req.Bucket, req.Key)
	defer span.End()

	method := http.MethodPut
	target := c.keyURL(req.BucketType, req.Bucket, req.Key)
	if req.Key == "" {
		method = http.MethodPost
		target = c.bucketURL(req.BucketType, req.Bucket) + "/keys"
	}
	if req.ReturnBody {
		target += "?returnbody=true"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(req.Content.Value))
	if err != nil {
		return nil, c.fail(span, kverrors.NewWithComponent(kverrors.OpStore, "transport", fmt.Errorf("failed to create request: %w", err)))
	}
	EncodeContentHeaders(httpReq.Header, requestContent(req.Content))
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/octet-stream")
	}
	SetVClockHeader(httpReq.Header, req.VClock)
	if req.ReturnBody {
		httpReq.Header.Set("Accept", ContentTypeMultipart+", */*;q=0.5")
	}

	resp, err := c.do(ctx, span, kverrors.OpStore, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent, http.StatusMultipleChoices:
	default:
		return nil, c.fail(span, c.statusError(kverrors.OpStore, resp))
	}

	out := &siblingkit.StoreResponse{Key: req.Key}
	if out.VClock, err = VClockFromHeader(resp.Header); err != nil {
		return nil, c.fail(span, c.protocolError(kverrors.OpStore, err))
	}
	if loc := resp.Header.Get("Location"); loc != "" {
		key, err := url.PathUnescape(path.Base(loc))
		if err != nil {
			return nil, c.fail(span, c.protocolError(kverrors.OpStore, fmt.Errorf("invalid Location %q: %w", loc, err)))
		}
		out.Key = key
	}
	if out.Key == "" {
		return nil, c.fail(span, c.protocolError(kverrors.OpStore, errors.New("store did not report the assigned key")))
	}
	span.SetAttributes(attribute.String("riak.key", out.Key))

	if req.ReturnBody && resp.StatusCode != http.StatusNoContent {
		if out.Siblings, err = c.readSiblings(resp); err != nil {
			return nil, c.fail(span, c.protocolError(kverrors.OpStore, err))
		}
		span.SetAttributes(attribute.Int("riak.siblings", len(out.Siblings)))
	}
	return out, nil
}

// Remove deletes a key. The store answers 404 for a missing key, which is
// treated as success.
func (c *TransportClient) Remove(ctx context.Context, req siblingkit.RemoveRequest) error {
	ctx, span := c.startSpan(ctx, "riak.remove", req.BucketType, req.Bucket, req.Key)
	defer span.End()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.keyURL(req.BucketType, req.Bucket, req.Key), nil)
	if err != nil {
		return c.fail(span, kverrors.NewWithComponent(kverrors.OpDelete, "transport", fmt.Errorf("failed to create request: %w", err)))
	}
	SetVClockHeader(httpReq.Header, req.VClock)

	resp, err := c.do(ctx, span, kverrors.OpDelete, httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.limits.MaxBodyBytes))
		return nil
	default:
		return c.fail(span, c.statusError(kverrors.OpDelete, resp))
	}
}

func (c *TransportClient) bucketURL(bucketType, bucket string) string {
	if bucketType == "" {
		bucketType = siblingkit.DefaultBucketType
	}
	return fmt.Sprintf("%s/types/%s/buckets/%s", c.baseURL, url.PathEscape(bucketType), url.PathEscape(bucket))
}

func (c *TransportClient) keyURL(bucketType, bucket, key string) string {
	return c.bucketURL(bucketType, bucket) + "/keys/" + url.PathEscape(key)
}

func (c *TransportClient) startSpan(ctx context.Context, name, bucketType, bucket, key string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("riak.bucket_type", bucketType),
			attribute.String("riak.bucket", bucket),
			attribute.String("riak.key", key),
		))
}

// do sends the request. Context errors are returned as-is; every other
// transport failure is a retryable network error.
func (c *TransportClient) do(ctx context.Context, span trace.Span, op kverrors.Operation, req *http.Request) (*http.Response, error) {
	req.Header.Set(HeaderClientID, c.clientID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.RecordError(ctxErr)
			span.SetStatus(otelcodes.Error, ctxErr.Error())
			return nil, ctxErr
		}
		c.logger.Error("Riak request failed",
			slog.String("method", req.Method),
			slog.String("url", req.URL.String()),
			slog.String("error", err.Error()))
		return nil, c.fail(span, kverrors.NewNetworkError(op, fmt.Errorf("network error: %w", err)))
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.Debug("Riak request completed",
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.Int("status_code", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))
	return resp, nil
}

// readSiblings reads a 200 single-value body or a 300 multipart body.
func (c *TransportClient) readSiblings(resp *http.Response) ([]siblingkit.RawContent, error) {
	body := &maxBytesReader{reader: resp.Body, limit: c.limits.MaxBodyBytes}

	var siblings []siblingkit.RawContent
	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode == http.StatusMultipleChoices || strings.HasPrefix(ct, ContentTypeMultipart) {
		var err error
		if siblings, err = ReadSiblings(ct, body); err != nil {
			return nil, err
		}
	} else {
		value, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		rc, err := DecodeContentHeaders(resp.Header, value)
		if err != nil {
			return nil, err
		}
		siblings = []siblingkit.RawContent{rc}
	}

	if c.limits.MaxSiblings > 0 && len(siblings) > c.limits.MaxSiblings {
		return nil, fmt.Errorf("response carries %d siblings, limit is %d", len(siblings), c.limits.MaxSiblings)
	}
	return siblings, nil
}

// statusError maps a non-success status: 5xx is a retryable network
// failure, anything else is rejected as invalid.
func (c *TransportClient) statusError(op kverrors.Operation, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	cause := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}

	c.logger.Error("Riak request returned error status",
		slog.Int("status_code", resp.StatusCode),
		slog.String("response_body", cause.Body),
		slog.String("url", resp.Request.URL.String()))

	if resp.StatusCode >= 500 {
		return kverrors.NewNetworkError(op, cause).WithMetadata("status_code", resp.StatusCode)
	}
	e := kverrors.NewValidationError(op, cause)
	e.Component = "transport"
	return e.WithMetadata("status_code", resp.StatusCode)
}

// protocolError reports a response the client could not interpret.
func (c *TransportClient) protocolError(op kverrors.Operation, err error) error {
	e := kverrors.NewValidationError(op, err)
	e.Component = "transport"
	return e
}

func (c *TransportClient) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	return err
}
