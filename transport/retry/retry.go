// Package retry wraps a siblingkit.StoreClient so that retryable failures
// are attempted again with exponential backoff.
package retry

import (
	"context"
	"log/slog"
	"time"

	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
	"github.com/c0deZ3R0/go-sibling-kit/logging"
	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
)

// Config configures the retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// Multiplier is the factor by which the delay increases.
	Multiplier float64

	// RetryStores also retries keyed stores. A store whose response was lost
	// may already have been applied, and sending it again with the same
	// causal context adds a sibling, so stores are not retried by default.
	// Stores without a key are never retried.
	RetryStores bool
}

// DefaultConfig returns three attempts starting at 100ms, capped at 5s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// Client retries the calls of the wrapped client that fail with an error
// for which errors.IsRetryable holds.
type Client struct {
	next    siblingkit.StoreClient
	config  Config
	backoff exponentialBackoff
	logger  *logging.Logger
}

var _ siblingkit.StoreClient = (*Client)(nil)

// New wraps next. MaxAttempts below one is treated as one.
func New(next siblingkit.StoreClient, config Config, logger *logging.Logger) *Client {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	if logger == nil {
		logger = logging.Default().WithComponent("retry")
	}
	return &Client{
		next:   next,
		config: config,
		backoff: exponentialBackoff{
			initialDelay: config.InitialDelay,
			maxDelay:     config.MaxDelay,
			multiplier:   config.Multiplier,
		},
		logger: logger,
	}
}

func (c *Client) Fetch(ctx context.Context, req siblingkit.FetchRequest) (*siblingkit.FetchResponse, error) {
	var resp *siblingkit.FetchResponse
	err := c.do(ctx, kverrors.OpReload, func() error {
		var err error
		resp, err = c.next.Fetch(ctx, req)
		return err
	})
	return resp, err
}

func (c *Client) Store(ctx context.Context, req siblingkit.StoreRequest) (*siblingkit.StoreResponse, error) {
	if !c.config.RetryStores || req.Key == "" {
		return c.next.Store(ctx, req)
	}
	var resp *siblingkit.StoreResponse
	err := c.do(ctx, kverrors.OpStore, func() error {
		var err error
		resp, err = c.next.Store(ctx, req)
		return err
	})
	return resp, err
}

func (c *Client) Remove(ctx context.Context, req siblingkit.RemoveRequest) error {
	return c.do(ctx, kverrors.OpDelete, func() error {
		return c.next.Remove(ctx, req)
	})
}

func (c *Client) do(ctx context.Context, op kverrors.Operation, operation func() error) error {
	// Initial attempt, no delay
	err := operation()
	if err == nil || !kverrors.IsRetryable(err) {
		return err
	}

	for attempt := 1; attempt < c.config.MaxAttempts; attempt++ {
		delay := c.backoff.nextDelay(attempt - 1)
		c.logger.DebugContext(ctx, "retrying",
			slog.String("operation", string(op)),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("cause", err.Error()))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err = operation()
		if err == nil || !kverrors.IsRetryable(err) {
			return err
		}
	}
	return err
}

type exponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
}

func (eb exponentialBackoff) nextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// initialDelay * multiplier^attempt
	delay := float64(eb.initialDelay)
	for i := 0; i < attempt; i++ {
		delay *= eb.multiplier
	}

	result := time.Duration(delay)
	if eb.maxDelay > 0 && result > eb.maxDelay {
		result = eb.maxDelay
	}
	return result
}
