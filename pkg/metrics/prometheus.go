package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusExporter implements the Exporter interface for Prometheus metrics
type PrometheusExporter struct {
	config *Config

	// Counters
	hitsTotal          *prometheus.CounterVec
	missesTotal        *prometheus.CounterVec
	invalidationsTotal *prometheus.CounterVec
	operationsTotal    *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec

	// Histograms
	operationDuration *prometheus.HistogramVec
	valueSize         *prometheus.HistogramVec

	// Gauges
	inFlightRequests *prometheus.GaugeVec
	hitRate          *prometheus.GaugeVec
}

// PrometheusConfig holds Prometheus-specific configuration
type PrometheusConfig struct {
	// Registry is the Prometheus registry to use (optional, uses default if nil)
	Registry prometheus.Registerer

	// Buckets for histogram metrics
	DurationBuckets []float64
	SizeBuckets     []float64
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(config *Config, promConfig *PrometheusConfig) (*PrometheusExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	if promConfig == nil {
		promConfig = &PrometheusConfig{}
	}

	registry := promConfig.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	durationBuckets := promConfig.DurationBuckets
	if durationBuckets == nil {
		durationBuckets = []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	}

	sizeBuckets := promConfig.SizeBuckets
	if sizeBuckets == nil {
		sizeBuckets = prometheus.ExponentialBuckets(64, 4, 9)
	}

	constLabels := prometheus.Labels{}
	for k, v := range config.Labels {
		constLabels[k] = v
	}

	exporter := &PrometheusExporter{config: config}
	if err := exporter.createStandardMetrics(registry, constLabels, durationBuckets, sizeBuckets); err != nil {
		return nil, fmt.Errorf("failed to create standard metrics: %w", err)
	}

	return exporter, nil
}

func (p *PrometheusExporter) createStandardMetrics(registry prometheus.Registerer, constLabels prometheus.Labels, durationBuckets, sizeBuckets []float64) error {
	names := p.config.MetricNames
	base := []string{LabelCacheName}

	counters := []struct {
		target **prometheus.CounterVec
		name   string
		help   string
		labels []string
	}{
		{&p.hitsTotal, names.CacheHitsTotal, "Total number of cache hits", base},
		{&p.missesTotal, names.CacheMissesTotal, "Total number of cache misses", base},
		{&p.invalidationsTotal, names.CacheInvalidationsTotal, "Total number of keys invalidated after a mutation", base},
		{&p.operationsTotal, names.CacheOperationsTotal, "Total number of cache operations", []string{LabelCacheName, "operation", "result"}},
		{&p.errorsTotal, names.CacheErrorsTotal, "Total number of failed cache operations", []string{LabelCacheName, "operation"}},
	}
	for _, c := range counters {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        c.name,
			Help:        c.help,
			ConstLabels: constLabels,
		}, c.labels)
		if err := registry.Register(vec); err != nil {
			return fmt.Errorf("register %s: %w", c.name, err)
		}
		*c.target = vec
	}

	if p.config.IncludeDetailedTimings {
		p.operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        names.CacheOperationDuration,
			Help:        "Cache operation duration in seconds",
			ConstLabels: constLabels,
			Buckets:     durationBuckets,
		}, []string{LabelCacheName, "operation"})
		if err := registry.Register(p.operationDuration); err != nil {
			return fmt.Errorf("register %s: %w", names.CacheOperationDuration, err)
		}
	}

	if p.config.IncludeValueSizes {
		p.valueSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        names.CacheValueSize,
			Help:        "Encoded cache value size in bytes",
			ConstLabels: constLabels,
			Buckets:     sizeBuckets,
		}, base)
		if err := registry.Register(p.valueSize); err != nil {
			return fmt.Errorf("register %s: %w", names.CacheValueSize, err)
		}
	}

	p.inFlightRequests = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        names.CacheInFlightRequests,
		Help:        "Current number of wrapped calls computing a missed value",
		ConstLabels: constLabels,
	}, base)
	if err := registry.Register(p.inFlightRequests); err != nil {
		return fmt.Errorf("register %s: %w", names.CacheInFlightRequests, err)
	}

	p.hitRate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        names.CacheHitRate,
		Help:        "Cache hit rate as a percentage",
		ConstLabels: constLabels,
	}, base)
	if err := registry.Register(p.hitRate); err != nil {
		return fmt.Errorf("register %s: %w", names.CacheHitRate, err)
	}

	return nil
}

// ExportStats sets the gauges from the stats snapshot. Counters are driven
// by RecordCacheOperation so repeated exports never double count.
func (p *PrometheusExporter) ExportStats(stats Stats, labels Labels) error {
	name := cacheName(labels)
	p.inFlightRequests.WithLabelValues(name).Set(float64(stats.InFlight()))
	p.hitRate.WithLabelValues(name).Set(stats.HitRate())
	return nil
}

// RecordCacheOperation records a cache operation with its outcome and timing
func (p *PrometheusExporter) RecordCacheOperation(operation Operation, result Result, duration time.Duration, labels Labels) error {
	name := cacheName(labels)

	p.operationsTotal.WithLabelValues(name, string(operation), string(result)).Inc()

	switch {
	case result == ResultHit:
		p.hitsTotal.WithLabelValues(name).Inc()
	case result == ResultMiss:
		p.missesTotal.WithLabelValues(name).Inc()
	case result == ResultError:
		p.errorsTotal.WithLabelValues(name, string(operation)).Inc()
	case operation == OperationInvalidate && result == ResultSuccess:
		p.invalidationsTotal.WithLabelValues(name).Inc()
	}

	if p.operationDuration != nil {
		p.operationDuration.WithLabelValues(name, string(operation)).Observe(duration.Seconds())
	}

	return nil
}

// RecordPayloadSize records the encoded value size if enabled
func (p *PrometheusExporter) RecordPayloadSize(size int, labels Labels) error {
	if p.valueSize != nil {
		p.valueSize.WithLabelValues(cacheName(labels)).Observe(float64(size))
	}
	return nil
}

// Close shuts down the exporter
func (p *PrometheusExporter) Close() error {
	// Prometheus metrics don't need explicit cleanup
	return nil
}

// Ensure interface is implemented
var _ Exporter = (*PrometheusExporter)(nil)
