package siblingkit

import "time"

// MetricsCollector provides hooks for collecting object operation metrics
type MetricsCollector interface {
	// RecordOperationDuration records how long a reload, store or delete took
	RecordOperationDuration(operation string, duration time.Duration)

	// RecordOperationError records operation errors by type
	RecordOperationError(operation string, errorType string)

	// RecordSiblings records the number of siblings a fetch returned for a bucket
	RecordSiblings(bucket string, count int)

	// RecordResolution records the sibling count before and after a resolver ran
	RecordResolution(bucket string, before, after int)
}

// NoOpMetricsCollector is a default implementation that does nothing
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordOperationDuration(operation string, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordOperationError(operation string, errorType string)         {}
func (n *NoOpMetricsCollector) RecordSiblings(bucket string, count int)                         {}
func (n *NoOpMetricsCollector) RecordResolution(bucket string, before, after int)               {}
