package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OpenTelemetryExporter implements the Exporter interface for OpenTelemetry metrics
type OpenTelemetryExporter struct {
	config *Config
	meter  metric.Meter
	ctx    context.Context

	hitsCounter          metric.Int64Counter
	missesCounter        metric.Int64Counter
	invalidationsCounter metric.Int64Counter
	operationsCounter    metric.Int64Counter
	errorsCounter        metric.Int64Counter

	operationDuration metric.Float64Histogram
	valueSize         metric.Int64Histogram

	inFlightGauge metric.Int64Gauge
	hitRateGauge  metric.Float64Gauge
}

// OpenTelemetryConfig holds OpenTelemetry-specific configuration
type OpenTelemetryConfig struct {
	// Meter is the OpenTelemetry meter to use
	Meter metric.Meter

	// Context is the context to use for metric operations
	Context context.Context
}

// NewOpenTelemetryExporter creates a new OpenTelemetry metrics exporter
func NewOpenTelemetryExporter(config *Config, otelConfig *OpenTelemetryConfig) (*OpenTelemetryExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	if otelConfig == nil {
		return nil, fmt.Errorf("OpenTelemetry configuration is required")
	}

	if otelConfig.Meter == nil {
		return nil, fmt.Errorf("OpenTelemetry meter is required")
	}

	ctx := otelConfig.Context
	if ctx == nil {
		ctx = context.Background()
	}

	exporter := &OpenTelemetryExporter{
		config: config,
		meter:  otelConfig.Meter,
		ctx:    ctx,
	}

	if err := exporter.createStandardMetrics(); err != nil {
		return nil, fmt.Errorf("failed to create standard metrics: %w", err)
	}

	return exporter, nil
}

func (o *OpenTelemetryExporter) createStandardMetrics() error {
	names := o.config.MetricNames
	var err error

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&o.hitsCounter, names.CacheHitsTotal, "Total number of cache hits"},
		{&o.missesCounter, names.CacheMissesTotal, "Total number of cache misses"},
		{&o.invalidationsCounter, names.CacheInvalidationsTotal, "Total number of keys invalidated after a mutation"},
		{&o.operationsCounter, names.CacheOperationsTotal, "Total number of cache operations"},
		{&o.errorsCounter, names.CacheErrorsTotal, "Total number of failed cache operations"},
	}
	for _, c := range counters {
		*c.target, err = o.meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
	}

	if o.config.IncludeDetailedTimings {
		o.operationDuration, err = o.meter.Float64Histogram(
			names.CacheOperationDuration,
			metric.WithDescription("Cache operation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return fmt.Errorf("failed to create operation duration histogram: %w", err)
		}
	}

	if o.config.IncludeValueSizes {
		o.valueSize, err = o.meter.Int64Histogram(
			names.CacheValueSize,
			metric.WithDescription("Encoded cache value size in bytes"),
			metric.WithUnit("By"),
		)
		if err != nil {
			return fmt.Errorf("failed to create value size histogram: %w", err)
		}
	}

	o.inFlightGauge, err = o.meter.Int64Gauge(
		names.CacheInFlightRequests,
		metric.WithDescription("Current number of wrapped calls computing a missed value"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create in-flight gauge: %w", err)
	}

	o.hitRateGauge, err = o.meter.Float64Gauge(
		names.CacheHitRate,
		metric.WithDescription("Cache hit rate as a percentage"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return fmt.Errorf("failed to create hit rate gauge: %w", err)
	}

	return nil
}

// ExportStats records the gauges from the stats snapshot
func (o *OpenTelemetryExporter) ExportStats(stats Stats, labels Labels) error {
	attrs := metric.WithAttributes(o.convertLabels(labels)...)

	o.inFlightGauge.Record(o.ctx, stats.InFlight(), attrs)
	o.hitRateGauge.Record(o.ctx, stats.HitRate(), attrs)

	return nil
}

// RecordCacheOperation records a cache operation with its outcome and timing
func (o *OpenTelemetryExporter) RecordCacheOperation(operation Operation, result Result, duration time.Duration, labels Labels) error {
	attrs := o.convertLabels(labels)
	attrs = attrs[:len(attrs):len(attrs)]
	base := metric.WithAttributes(attrs...)
	opOnly := metric.WithAttributes(append(attrs, attribute.String("operation", string(operation)))...)

	o.operationsCounter.Add(o.ctx, 1, metric.WithAttributes(append(attrs,
		attribute.String("operation", string(operation)),
		attribute.String("result", string(result)),
	)...))

	switch {
	case result == ResultHit:
		o.hitsCounter.Add(o.ctx, 1, base)
	case result == ResultMiss:
		o.missesCounter.Add(o.ctx, 1, base)
	case result == ResultError:
		o.errorsCounter.Add(o.ctx, 1, opOnly)
	case operation == OperationInvalidate && result == ResultSuccess:
		o.invalidationsCounter.Add(o.ctx, 1, base)
	}

	if o.operationDuration != nil {
		o.operationDuration.Record(o.ctx, duration.Seconds(), opOnly)
	}

	return nil
}

// RecordPayloadSize records the encoded value size if enabled
func (o *OpenTelemetryExporter) RecordPayloadSize(size int, labels Labels) error {
	if o.valueSize != nil {
		o.valueSize.Record(o.ctx, int64(size), metric.WithAttributes(o.convertLabels(labels)...))
	}
	return nil
}

// Close shuts down the exporter
func (o *OpenTelemetryExporter) Close() error {
	// OpenTelemetry metrics don't need explicit cleanup
	return nil
}

func (o *OpenTelemetryExporter) convertLabels(labels Labels) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels)+len(o.config.Labels)+1)

	for k, v := range o.config.Labels {
		attrs = append(attrs, attribute.String(k, v))
	}

	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}

	if _, ok := labels[LabelCacheName]; !ok {
		attrs = append(attrs, attribute.String(LabelCacheName, cacheName(labels)))
	}

	return attrs
}

// Ensure interface is implemented
var _ Exporter = (*OpenTelemetryExporter)(nil)
