package httptransport

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/c0deZ3R0/go-sibling-kit/logging"
)

// Limits bounds what the client accepts from the store.
type Limits struct {
	// MaxBodyBytes caps a response body, sibling lists included.
	// If 0, defaults to 8MB.
	MaxBodyBytes int64

	// MaxSiblings caps the number of siblings parsed from one response.
	// If 0, any number is accepted.
	MaxSiblings int
}

// DefaultLimits returns the limits a new client starts with.
func DefaultLimits() Limits {
	return Limits{
		MaxBodyBytes: 8 << 20, // 8MB
		MaxSiblings:  0,
	}
}

// TransportClientOption configures a TransportClient.
type TransportClientOption func(*TransportClient)

// WithHTTPClient replaces the underlying http.Client. The caller owns its
// transport settings, including decompression.
func WithHTTPClient(h *http.Client) TransportClientOption {
	return func(c *TransportClient) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) TransportClientOption {
	return func(c *TransportClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLimits overrides the response limits.
func WithLimits(l Limits) TransportClientOption {
	return func(c *TransportClient) {
		if l.MaxBodyBytes <= 0 {
			l.MaxBodyBytes = DefaultLimits().MaxBodyBytes
		}
		c.limits = l
	}
}

// WithClientID sets the X-Riak-ClientId sent with every request.
func WithClientID(id string) TransportClientOption {
	return func(c *TransportClient) {
		if id != "" {
			c.clientID = id
		}
	}
}

// WithTracer sets the tracer request spans are started on.
func WithTracer(t trace.Tracer) TransportClientOption {
	return func(c *TransportClient) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l *logging.Logger) TransportClientOption {
	return func(c *TransportClient) {
		if l != nil {
			c.logger = l
		}
	}
}
