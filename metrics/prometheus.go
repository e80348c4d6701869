// Package metrics exports object and cache metrics to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
	"github.com/c0deZ3R0/go-sibling-kit/storage"
)

const namespace = "siblingkit"

// Prometheus implements siblingkit.MetricsCollector and storage.CacheMetrics.
type Prometheus struct {
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	siblings          *prometheus.HistogramVec
	resolutions       *prometheus.CounterVec
	resolvedSiblings  *prometheus.CounterVec
	cacheEvents       *prometheus.CounterVec
}

var (
	_ siblingkit.MetricsCollector = (*Prometheus)(nil)
	_ storage.CacheMetrics        = (*Prometheus)(nil)
)

// NewPrometheus registers the collectors with reg, or with the default
// registerer when reg is nil. Collectors already registered by an earlier
// call are reused.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Prometheus{
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "object",
				Name:      "operation_duration_seconds",
				Help:      "Duration of reload, store and delete round trips.",
				Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"operation"},
		),
		operationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "object",
				Name:      "operation_errors_total",
				Help:      "Object operation failures by error type.",
			},
			[]string{"operation", "error_type"},
		),
		siblings: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "object",
				Name:      "siblings",
				Help:      "Number of siblings returned by a fetch or store.",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 50},
			},
			[]string{"bucket"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resolver",
				Name:      "resolutions_total",
				Help:      "Resolver runs by outcome (resolved, partial, unchanged).",
			},
			[]string{"bucket", "result"},
		),
		resolvedSiblings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resolver",
				Name:      "discarded_siblings_total",
				Help:      "Siblings removed by resolvers.",
			},
			[]string{"bucket"},
		),
		cacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "events_total",
				Help:      "Cache writes, evictions, stale reads and backend failures.",
			},
			[]string{"event"},
		),
	}

	if err := m.register(reg); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Prometheus) register(reg prometheus.Registerer) error {
	if err := registerOrReuseHistogramVec(reg, &m.operationDuration); err != nil {
		return fmt.Errorf("register operation duration histogram: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.operationErrors); err != nil {
		return fmt.Errorf("register operation error counter: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.siblings); err != nil {
		return fmt.Errorf("register siblings histogram: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.resolutions); err != nil {
		return fmt.Errorf("register resolution counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.resolvedSiblings); err != nil {
		return fmt.Errorf("register discarded siblings counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.cacheEvents); err != nil {
		return fmt.Errorf("register cache event counter: %w", err)
	}
	return nil
}

func registerOrReuseHistogramVec(reg prometheus.Registerer, c **prometheus.HistogramVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func registerOrReuseCounterVec(reg prometheus.Registerer, c **prometheus.CounterVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func (m *Prometheus) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Prometheus) RecordOperationError(operation string, errorType string) {
	m.operationErrors.WithLabelValues(operation, errorType).Inc()
}

func (m *Prometheus) RecordSiblings(bucket string, count int) {
	if count < 0 {
		count = 0
	}
	m.siblings.WithLabelValues(bucket).Observe(float64(count))
}

func (m *Prometheus) RecordResolution(bucket string, before, after int) {
	m.resolutions.WithLabelValues(bucket, resolutionResult(before, after)).Inc()
	if before > after {
		m.resolvedSiblings.WithLabelValues(bucket).Add(float64(before - after))
	}
}

func (m *Prometheus) RecordCacheEvent(event string) {
	m.cacheEvents.WithLabelValues(event).Inc()
}

func resolutionResult(before, after int) string {
	switch {
	case after <= 1 && before > 1:
		return "resolved"
	case after < before:
		return "partial"
	default:
		return "unchanged"
	}
}
