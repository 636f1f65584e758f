package rcache

import (
	"testing"
	"time"

	"github.com/vnykmshr/rcache-go/pkg/compression"
	"github.com/vnykmshr/rcache-go/pkg/metrics"
)

func TestNewDefaultConfig(t *testing.T) {
	c := NewDefaultConfig()

	if c.StoreType != StoreTypeMemory {
		t.Fatalf("Expected memory store, got %v", c.StoreType)
	}
	if c.DefaultTTL != 5*time.Minute || c.OperationTimeout != 2*time.Second {
		t.Fatalf("Unexpected timing defaults: ttl=%v timeout=%v", c.DefaultTTL, c.OperationTimeout)
	}
	if c.Serializer == nil || c.Serializer.Name() != "json" {
		t.Fatal("Expected JSON serializer by default")
	}
	if c.Hooks == nil || c.Logger == nil {
		t.Fatal("Expected hooks and logger to be set")
	}
}

func TestRedisConfigBuilders(t *testing.T) {
	c := NewRedisConfig("localhost:6379").
		WithRedisAuth("app", "secret").
		WithRedisDB(2).
		WithRedisKeyPrefix("svc:")

	if c.StoreType != StoreTypeRedis {
		t.Fatalf("Expected Redis store, got %v", c.StoreType)
	}
	if c.CleanupInterval != 0 || c.MaxEntries != 0 {
		t.Fatal("Expected memory-only settings to be cleared")
	}

	r := c.Redis
	if r.Addr != "localhost:6379" || r.Username != "app" || r.Password != "secret" || r.DB != 2 || r.KeyPrefix != "svc:" {
		t.Fatalf("Unexpected Redis config %+v", r)
	}

	if NewRedisConfigWithClient(nil).Redis.KeyPrefix != DefaultKeyPrefix {
		t.Fatal("Expected default key prefix")
	}
}

func TestMetricsConfigBuilders(t *testing.T) {
	c := NewDefaultConfig().
		WithMetricsExporter(metrics.NewNoOpExporter(), "users").
		WithMetricsLabels(metrics.Labels{"env": "test"}).
		WithMetricsReportingInterval(time.Second)

	m := c.Metrics
	if !m.Enabled || m.CacheName != "users" || m.Labels["env"] != "test" || m.ReportingInterval != time.Second {
		t.Fatalf("Unexpected metrics config %+v", m)
	}
}

func TestCompressionConfigBuilders(t *testing.T) {
	c := NewDefaultConfig().
		WithCompressionAlgorithm(compression.CompressorDeflate).
		WithCompressionMinSize(256)

	if c.Compression.Algorithm != compression.CompressorDeflate || c.Compression.MinSize != 256 {
		t.Fatalf("Unexpected compression config %+v", c.Compression)
	}
}
