package metrics

import (
	"time"
)

// Exporter defines the interface for cache metrics exporters
// This abstraction allows supporting multiple observability systems
type Exporter interface {
	// ExportStats publishes point-in-time gauges derived from the stats snapshot
	ExportStats(stats Stats, labels Labels) error

	// RecordCacheOperation records a single cache operation, its outcome and its duration
	RecordCacheOperation(operation Operation, result Result, duration time.Duration, labels Labels) error

	// RecordPayloadSize records the size of an encoded value written to the store
	RecordPayloadSize(size int, labels Labels) error

	// Close shuts down the exporter and flushes any pending metrics
	Close() error
}

// Labels represents key-value pairs for metric labels/tags
type Labels map[string]string

// LabelCacheName identifies the cache instance an observation belongs to
const LabelCacheName = "cache_name"

// Stats interface defines the cache statistics that can be exported
// This allows the metrics package to work with any stats implementation
type Stats interface {
	Hits() int64
	Misses() int64
	Writes() int64
	Invalidations() int64
	Errors() int64
	InFlight() int64
	HitRate() float64
}

// Operation represents different cache operations for metrics
type Operation string

const (
	OperationGet        Operation = "get"
	OperationSet        Operation = "set"
	OperationDelete     Operation = "delete"
	OperationInvalidate Operation = "invalidate"
	OperationEncode     Operation = "encode"
	OperationDecode     Operation = "decode"

	// Wrapped function executions on a miss
	OperationFunctionCall Operation = "function_call"
)

// Result represents the result of a cache operation
type Result string

const (
	ResultHit     Result = "hit"
	ResultMiss    Result = "miss"
	ResultSuccess Result = "success"
	ResultError   Result = "error"
)

// MetricNames defines standard metric names used across exporters
type MetricNames struct {
	// Counters
	CacheHitsTotal          string
	CacheMissesTotal        string
	CacheInvalidationsTotal string
	CacheOperationsTotal    string
	CacheErrorsTotal        string

	// Histograms
	CacheOperationDuration string
	CacheValueSize         string

	// Gauges
	CacheInFlightRequests string
	CacheHitRate          string
}

// DefaultMetricNames returns the default metric names with proper namespacing
func DefaultMetricNames() MetricNames {
	return MetricNames{
		CacheHitsTotal:          "rcache_hits_total",
		CacheMissesTotal:        "rcache_misses_total",
		CacheInvalidationsTotal: "rcache_invalidations_total",
		CacheOperationsTotal:    "rcache_operations_total",
		CacheErrorsTotal:        "rcache_errors_total",
		CacheOperationDuration:  "rcache_operation_duration_seconds",
		CacheValueSize:          "rcache_value_size_bytes",
		CacheInFlightRequests:   "rcache_inflight_requests",
		CacheHitRate:            "rcache_hit_rate",
	}
}

// Config holds configuration for metrics exporters
type Config struct {
	// Enabled determines whether metrics collection is enabled
	Enabled bool

	// Labels are constant labels applied to all metrics
	Labels Labels

	// MetricNames allows customizing metric names
	MetricNames MetricNames

	// ReportingInterval determines how often stats gauges are exported
	ReportingInterval time.Duration

	// IncludeDetailedTimings enables operation duration histograms
	IncludeDetailedTimings bool

	// IncludeValueSizes enables the encoded value size histogram
	IncludeValueSizes bool
}

// NewDefaultConfig creates a default metrics configuration
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		Labels:            make(Labels),
		MetricNames:       DefaultMetricNames(),
		ReportingInterval: 30 * time.Second,
	}
}

// WithLabels adds constant labels to all metrics
func (c *Config) WithLabels(labels Labels) *Config {
	if c.Labels == nil {
		c.Labels = make(Labels)
	}
	for k, v := range labels {
		c.Labels[k] = v
	}
	return c
}

// WithReportingInterval sets the stats export interval
func (c *Config) WithReportingInterval(interval time.Duration) *Config {
	c.ReportingInterval = interval
	return c
}

// WithDetailedTimings enables detailed operation timing metrics
func (c *Config) WithDetailedTimings(enabled bool) *Config {
	c.IncludeDetailedTimings = enabled
	return c
}

// WithValueSizes enables value size metrics
func (c *Config) WithValueSizes(enabled bool) *Config {
	c.IncludeValueSizes = enabled
	return c
}

// MultiExporter allows using multiple exporters simultaneously
type MultiExporter struct {
	exporters []Exporter
}

// NewMultiExporter creates an exporter that writes to multiple backends
func NewMultiExporter(exporters ...Exporter) *MultiExporter {
	return &MultiExporter{
		exporters: exporters,
	}
}

// ExportStats exports to all configured exporters
func (m *MultiExporter) ExportStats(stats Stats, labels Labels) error {
	for _, exporter := range m.exporters {
		if err := exporter.ExportStats(stats, labels); err != nil {
			return err
		}
	}
	return nil
}

// RecordCacheOperation records to all configured exporters
func (m *MultiExporter) RecordCacheOperation(operation Operation, result Result, duration time.Duration, labels Labels) error {
	for _, exporter := range m.exporters {
		if err := exporter.RecordCacheOperation(operation, result, duration, labels); err != nil {
			return err
		}
	}
	return nil
}

// RecordPayloadSize records to all configured exporters
func (m *MultiExporter) RecordPayloadSize(size int, labels Labels) error {
	for _, exporter := range m.exporters {
		if err := exporter.RecordPayloadSize(size, labels); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all configured exporters
func (m *MultiExporter) Close() error {
	for _, exporter := range m.exporters {
		if err := exporter.Close(); err != nil {
			return err
		}
	}
	return nil
}

// NoOpExporter provides a no-op implementation for when metrics are disabled
type NoOpExporter struct{}

// NewNoOpExporter creates a no-op exporter
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

// ExportStats does nothing
func (n *NoOpExporter) ExportStats(Stats, Labels) error { return nil }

// RecordCacheOperation does nothing
func (n *NoOpExporter) RecordCacheOperation(Operation, Result, time.Duration, Labels) error {
	return nil
}

// RecordPayloadSize does nothing
func (n *NoOpExporter) RecordPayloadSize(int, Labels) error { return nil }

// Close does nothing
func (n *NoOpExporter) Close() error { return nil }

func cacheName(labels Labels) string {
	if name, ok := labels[LabelCacheName]; ok {
		return name
	}
	return "default"
}

// Ensure interfaces are implemented
var (
	_ Exporter = (*MultiExporter)(nil)
	_ Exporter = (*NoOpExporter)(nil)
)
